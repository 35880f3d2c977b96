package domain

import "testing"

func TestMovementKindValid(t *testing.T) {
	valid := []MovementKind{
		MovementStockIn, MovementStockOut, MovementTransfer, MovementAdjustment,
		MovementSale, MovementReturn, MovementDamage, MovementExpiration, MovementInitial,
	}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("expected %q to be valid", k)
		}
	}

	for _, k := range []MovementKind{"", "teleport", "STOCK_IN"} {
		if k.Valid() {
			t.Errorf("expected %q to be invalid", k)
		}
	}
}

func TestMovementKindTransactionKind(t *testing.T) {
	tests := []struct {
		kind MovementKind
		want TransactionKind
	}{
		{MovementStockIn, TxnStockIn},
		{MovementStockOut, TxnStockOut},
		{MovementTransfer, TxnTransfer},
		{MovementAdjustment, TxnManualAdjustment},
		{MovementSale, TxnSale},
		{MovementReturn, TxnReturn},
		{MovementDamage, TxnDamage},
		{MovementExpiration, TxnExpiration},
		{MovementInitial, TxnInitial},
	}

	for _, tt := range tests {
		got, err := tt.kind.TransactionKind()
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.kind, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.kind, tt.want, got)
		}
	}

	if _, err := MovementKind("teleport").TransactionKind(); err == nil {
		t.Error("expected error for unknown movement kind")
	}
}

func TestMovementKindLogKind(t *testing.T) {
	// initial is a manager-level concept; it lands as stock_in in the movement log
	got, err := MovementInitial.LogKind()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != MovementStockIn {
		t.Errorf("expected initial to log as stock_in, got %q", got)
	}

	got, err = MovementSale.LogKind()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != MovementSale {
		t.Errorf("expected sale to log as itself, got %q", got)
	}

	if _, err := MovementKind("bogus").LogKind(); err == nil {
		t.Error("expected error for unknown movement kind")
	}
}
