package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

func newAdjustmentServiceForTest(env *testEnv) AdjustmentService {
	stock := NewStockService(env.uow, env.publisher, zap.NewNop())
	return NewAdjustmentService(env.uow, stock, zap.NewNop())
}

func TestCreateAdjustment_AggregateLevel(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.levels.put(&domain.StockLevel{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		QuantityOnHand: 20, QuantityAvailable: 20,
	})
	svc := newAdjustmentServiceForTest(env)

	adj, err := svc.CreateAdjustment(context.Background(), testTenant(1), &domain.CreateAdjustmentRequest{
		ProductID:     100,
		LocationID:    10,
		Type:          domain.AdjustmentCountVariance,
		QuantityAfter: 17,
		ReasonCode:    "cycle_count",
	})
	if err != nil {
		t.Fatalf("CreateAdjustment failed: %v", err)
	}

	if adj.QuantityBefore != 20 {
		t.Errorf("expected before 20, got %d", adj.QuantityBefore)
	}
	if adj.QuantityAfter != 17 {
		t.Errorf("expected after 17, got %d", adj.QuantityAfter)
	}
	if adj.QuantityChange != -3 {
		t.Errorf("expected change -3, got %d", adj.QuantityChange)
	}
	if adj.Approved() {
		t.Error("expected unapproved adjustment without approver")
	}

	level, _ := env.levels.Get(context.Background(), 1, 100, nil, 10)
	if level.QuantityOnHand != 17 {
		t.Errorf("expected on hand 17, got %d", level.QuantityOnHand)
	}

	// the stock update writes one ledger entry, the adjustment type a second
	if len(env.transactions.transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(env.transactions.transactions))
	}
	first, second := env.transactions.transactions[0], env.transactions.transactions[1]
	if first.Kind != domain.TxnManualAdjustment {
		t.Errorf("expected first transaction manual_adjustment, got %s", first.Kind)
	}
	if second.Kind != domain.TxnManualAdjustment {
		t.Errorf("expected second transaction manual_adjustment, got %s", second.Kind)
	}
	if first.QuantityChange != -3 || second.QuantityChange != -3 {
		t.Errorf("expected both transactions to record -3, got %d and %d",
			first.QuantityChange, second.QuantityChange)
	}
	if second.Reason != "count_variance: cycle_count" {
		t.Errorf("unexpected reason %q", second.Reason)
	}

	// movement created by the delegated stock update
	if len(env.movements.movements) != 1 {
		t.Errorf("expected 1 movement, got %d", len(env.movements.movements))
	}

	// event published after commit
	if len(env.publisher.events) != 1 {
		t.Errorf("expected 1 event, got %d", len(env.publisher.events))
	}
}

func TestCreateAdjustment_DamageKeepsOwnKind(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.levels.put(&domain.StockLevel{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		QuantityOnHand: 10, QuantityAvailable: 10,
	})
	svc := newAdjustmentServiceForTest(env)

	_, err := svc.CreateAdjustment(context.Background(), testTenant(1), &domain.CreateAdjustmentRequest{
		ProductID:     100,
		LocationID:    10,
		Type:          domain.AdjustmentDamage,
		QuantityAfter: 8,
	})
	if err != nil {
		t.Fatalf("CreateAdjustment failed: %v", err)
	}

	// damage maps to its own transaction kind on the second entry
	second := env.transactions.transactions[1]
	if second.Kind != domain.TxnDamage {
		t.Errorf("expected damage transaction kind, got %s", second.Kind)
	}
	if second.Reason != "damage" {
		t.Errorf("expected reason %q, got %q", "damage", second.Reason)
	}
}

func TestCreateAdjustment_WithApprover(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.levels.put(&domain.StockLevel{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		QuantityOnHand: 5, QuantityAvailable: 5,
	})
	svc := newAdjustmentServiceForTest(env)

	adj, err := svc.CreateAdjustment(context.Background(), testTenant(1), &domain.CreateAdjustmentRequest{
		ProductID:     100,
		LocationID:    10,
		Type:          domain.AdjustmentManualCorrection,
		QuantityAfter: 8,
		ApproverID:    int64Ptr(42),
	})
	if err != nil {
		t.Fatalf("CreateAdjustment failed: %v", err)
	}

	if !adj.Approved() {
		t.Fatal("expected adjustment approved at creation")
	}
	if *adj.ApprovedBy != 42 {
		t.Errorf("expected approver 42, got %d", *adj.ApprovedBy)
	}
	if adj.ApprovedAt == nil {
		t.Error("expected approved_at set")
	}
}

func TestCreateAdjustment_BatchLevel(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.levels.put(&domain.StockLevel{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		QuantityOnHand: 30, QuantityAvailable: 30,
	})
	env.batches.put(&domain.Batch{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		BatchNumber: "LOT-1", Quantity: 12, QuantityUsed: 2,
	})
	svc := newAdjustmentServiceForTest(env)

	// remaining is 10; adjusting to 6 shrinks the batch by 4
	adj, err := svc.CreateAdjustment(context.Background(), testTenant(1), &domain.CreateAdjustmentRequest{
		ProductID:     100,
		LocationID:    10,
		BatchID:       int64Ptr(1),
		Type:          domain.AdjustmentExpiration,
		QuantityAfter: 6,
	})
	if err != nil {
		t.Fatalf("CreateAdjustment failed: %v", err)
	}

	if adj.QuantityBefore != 10 {
		t.Errorf("expected before 10 (batch remaining), got %d", adj.QuantityBefore)
	}
	if adj.QuantityChange != -4 {
		t.Errorf("expected change -4, got %d", adj.QuantityChange)
	}

	batch, _ := env.batches.GetForUpdate(context.Background(), 1, 1)
	if batch.Quantity != 8 {
		t.Errorf("expected batch quantity resized to 8, got %d", batch.Quantity)
	}

	// the aggregate level moves by the same delta
	level, _ := env.levels.Get(context.Background(), 1, 100, nil, 10)
	if level.QuantityOnHand != 26 {
		t.Errorf("expected on hand 26, got %d", level.QuantityOnHand)
	}
}

func TestCreateAdjustment_BatchResizeRejected(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.batches.put(&domain.Batch{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		BatchNumber: "LOT-1", Quantity: 10, QuantityUsed: 2,
	})
	// simulate a concurrent consumer winning between the lock and the resize
	env.batches.failResize = true
	svc := newAdjustmentServiceForTest(env)

	_, err := svc.CreateAdjustment(context.Background(), testTenant(1), &domain.CreateAdjustmentRequest{
		ProductID:     100,
		LocationID:    10,
		BatchID:       int64Ptr(1),
		Type:          domain.AdjustmentLoss,
		QuantityAfter: 5,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateAdjustment_BatchMismatch(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.locations.addLocation(11, 1)
	env.batches.put(&domain.Batch{
		OrganizationID: 1, ProductID: 100, LocationID: 11,
		BatchNumber: "LOT-1", Quantity: 10,
	})
	svc := newAdjustmentServiceForTest(env)

	_, err := svc.CreateAdjustment(context.Background(), testTenant(1), &domain.CreateAdjustmentRequest{
		ProductID:     100,
		LocationID:    10, // batch lives at location 11
		BatchID:       int64Ptr(1),
		Type:          domain.AdjustmentLoss,
		QuantityAfter: 5,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateAdjustment_Validation(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	env.levels.put(&domain.StockLevel{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		QuantityOnHand: 5, QuantityAvailable: 5,
	})
	svc := newAdjustmentServiceForTest(env)

	tests := []struct {
		name    string
		tc      *domain.TenantContext
		req     *domain.CreateAdjustmentRequest
		wantErr error
	}{
		{
			name:    "missing tenant",
			tc:      nil,
			req:     &domain.CreateAdjustmentRequest{ProductID: 100, LocationID: 10, Type: domain.AdjustmentLoss, QuantityAfter: 3},
			wantErr: ErrTenantRequired,
		},
		{
			name:    "super admin without org",
			tc:      &domain.TenantContext{IsSuperAdmin: true},
			req:     &domain.CreateAdjustmentRequest{ProductID: 100, LocationID: 10, Type: domain.AdjustmentLoss, QuantityAfter: 3},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "invalid type",
			tc:      testTenant(1),
			req:     &domain.CreateAdjustmentRequest{ProductID: 100, LocationID: 10, Type: "shrinkage", QuantityAfter: 3},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "negative target",
			tc:      testTenant(1),
			req:     &domain.CreateAdjustmentRequest{ProductID: 100, LocationID: 10, Type: domain.AdjustmentLoss, QuantityAfter: -1},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unchanged quantity",
			tc:      testTenant(1),
			req:     &domain.CreateAdjustmentRequest{ProductID: 100, LocationID: 10, Type: domain.AdjustmentLoss, QuantityAfter: 5},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "no stock level",
			tc:      testTenant(1),
			req:     &domain.CreateAdjustmentRequest{ProductID: 100, LocationID: 10, VariantID: int64Ptr(1), Type: domain.AdjustmentLoss, QuantityAfter: 3},
			wantErr: ErrNotFound,
		},
	}

	// variant 1 belongs to product 100 so the scope check passes and the
	// missing variant-level row is what trips ErrNotFound
	env.products.variantOf[1] = 100

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAdjustment(context.Background(), tt.tc, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApproveAdjustment(t *testing.T) {
	env := newTestEnv()
	env.seedScope(1, 100, 10)
	svc := newAdjustmentServiceForTest(env)

	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{
		OrganizationID: 1, ProductID: 100, LocationID: 10,
		Type: domain.AdjustmentLoss, QuantityChange: -2,
	})

	adj, err := svc.ApproveAdjustment(context.Background(), testTenant(1), 1)
	if err != nil {
		t.Fatalf("ApproveAdjustment failed: %v", err)
	}
	if !adj.Approved() {
		t.Fatal("expected approved adjustment")
	}
	if *adj.ApprovedBy != 9 {
		t.Errorf("expected approver 9 (actor), got %d", *adj.ApprovedBy)
	}

	// second approval conflicts
	_, err = svc.ApproveAdjustment(context.Background(), testTenant(1), 1)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on repeat approval, got %v", err)
	}
}

func TestApproveAdjustment_RequiresActor(t *testing.T) {
	env := newTestEnv()
	svc := newAdjustmentServiceForTest(env)

	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{OrganizationID: 1})

	tc := &domain.TenantContext{OrganizationID: 1} // no actor
	_, err := svc.ApproveAdjustment(context.Background(), tc, 1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteAdjustment(t *testing.T) {
	env := newTestEnv()
	svc := newAdjustmentServiceForTest(env)

	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{
		OrganizationID: 1, ProductID: 100, QuantityChange: -2,
	})

	if err := svc.DeleteAdjustment(context.Background(), testTenant(1), 1); err != nil {
		t.Fatalf("DeleteAdjustment failed: %v", err)
	}

	if _, err := svc.GetAdjustment(context.Background(), testTenant(1), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteAdjustment_ApprovedIsImmutable(t *testing.T) {
	env := newTestEnv()
	svc := newAdjustmentServiceForTest(env)

	approver := int64(7)
	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{
		OrganizationID: 1, ProductID: 100, ApprovedBy: &approver,
	})

	err := svc.DeleteAdjustment(context.Background(), testTenant(1), 1)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for approved adjustment, got %v", err)
	}
}

func TestGetAdjustmentSummary(t *testing.T) {
	env := newTestEnv()
	svc := newAdjustmentServiceForTest(env)

	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{
		OrganizationID: 1, Type: domain.AdjustmentLoss, QuantityChange: -3,
	})
	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{
		OrganizationID: 1, Type: domain.AdjustmentLoss, QuantityChange: 2,
	})
	_ = env.adjustments.Create(context.Background(), &domain.Adjustment{
		OrganizationID: 2, Type: domain.AdjustmentDamage, QuantityChange: -5,
	})

	rows, err := svc.GetAdjustmentSummary(context.Background(), testTenant(1), &domain.AdjustmentSummaryRequest{})
	if err != nil {
		t.Fatalf("GetAdjustmentSummary failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row (other org excluded), got %d", len(rows))
	}
	if rows[0].Type != domain.AdjustmentLoss || rows[0].Count != 2 || rows[0].TotalQuantity != 5 {
		t.Errorf("unexpected summary row: %+v", rows[0])
	}
}

func TestGetAdjustmentSummary_InvertedRange(t *testing.T) {
	env := newTestEnv()
	svc := newAdjustmentServiceForTest(env)

	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := svc.GetAdjustmentSummary(context.Background(), testTenant(1), &domain.AdjustmentSummaryRequest{
		From: &from, To: &to,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListBatches(t *testing.T) {
	env := newTestEnv()
	env.batches.put(&domain.Batch{OrganizationID: 1, ProductID: 100, LocationID: 10, BatchNumber: "LOT-1"})
	env.batches.put(&domain.Batch{OrganizationID: 1, ProductID: 100, LocationID: 11, BatchNumber: "LOT-2"})
	svc := newAdjustmentServiceForTest(env)

	batches, err := svc.ListBatches(context.Background(), testTenant(1), 100, 10)
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch at location 10, got %d", len(batches))
	}
	if batches[0].BatchNumber != "LOT-1" {
		t.Errorf("expected LOT-1, got %s", batches[0].BatchNumber)
	}
}
