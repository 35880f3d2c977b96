package domain

import "testing"

func TestAdjustmentTypeValid(t *testing.T) {
	valid := []AdjustmentType{
		AdjustmentDamage, AdjustmentLoss, AdjustmentTheft,
		AdjustmentExpiration, AdjustmentCountVariance, AdjustmentManualCorrection,
	}
	for _, at := range valid {
		if !at.Valid() {
			t.Errorf("expected %q to be valid", at)
		}
	}
	if AdjustmentType("shrinkage").Valid() {
		t.Error("expected unknown type to be invalid")
	}
}

func TestAdjustmentTypeTransactionKind(t *testing.T) {
	tests := []struct {
		typ  AdjustmentType
		want TransactionKind
	}{
		{AdjustmentDamage, TxnDamage},
		{AdjustmentExpiration, TxnExpiration},
		{AdjustmentLoss, TxnManualAdjustment},
		{AdjustmentTheft, TxnManualAdjustment},
		{AdjustmentCountVariance, TxnManualAdjustment},
		{AdjustmentManualCorrection, TxnManualAdjustment},
	}

	for _, tt := range tests {
		got, err := tt.typ.TransactionKind()
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.typ, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.typ, tt.want, got)
		}
	}

	if _, err := AdjustmentType("shrinkage").TransactionKind(); err == nil {
		t.Error("expected error for unknown adjustment type")
	}
}

func TestAdjustmentApproved(t *testing.T) {
	a := &Adjustment{}
	if a.Approved() {
		t.Error("expected unapproved adjustment")
	}
	approver := int64(7)
	a.ApprovedBy = &approver
	if !a.Approved() {
		t.Error("expected approved adjustment")
	}
}

func TestBatchRemainingAndResize(t *testing.T) {
	b := &Batch{Quantity: 100, QuantityUsed: 30}
	if got := b.Remaining(); got != 70 {
		t.Errorf("expected remaining 70, got %d", got)
	}

	if !b.CanResize(30) {
		t.Error("expected resize down to used quantity to be allowed")
	}
	if !b.CanResize(150) {
		t.Error("expected resize up to be allowed")
	}
	if b.CanResize(29) {
		t.Error("expected resize below used quantity to be rejected")
	}
}
