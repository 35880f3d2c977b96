package domain

import "testing"

func TestStockLevelNeedsReorder(t *testing.T) {
	rp := int64(10)
	tests := []struct {
		name  string
		level StockLevel
		want  bool
	}{
		{"no reorder point", StockLevel{QuantityAvailable: 0}, false},
		{"above point", StockLevel{QuantityAvailable: 11, ReorderPoint: &rp}, false},
		{"at point", StockLevel{QuantityAvailable: 10, ReorderPoint: &rp}, true},
		{"below point", StockLevel{QuantityAvailable: 3, ReorderPoint: &rp}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.NeedsReorder(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStockLevelCanReserve(t *testing.T) {
	level := StockLevel{QuantityOnHand: 10, QuantityReserved: 4, QuantityAvailable: 6}

	if !level.CanReserve(6) {
		t.Error("expected reserving the whole available quantity to be allowed")
	}
	if level.CanReserve(7) {
		t.Error("expected over-reservation to be rejected")
	}
	if level.CanReserve(0) {
		t.Error("expected zero quantity to be rejected")
	}
	if level.CanReserve(-1) {
		t.Error("expected negative quantity to be rejected")
	}
}

func TestReservedForTypeValid(t *testing.T) {
	for _, rt := range []ReservedForType{ReservedForOrder, ReservedForTransfer, ReservedForAdjustment} {
		if !rt.Valid() {
			t.Errorf("expected %q to be valid", rt)
		}
	}
	if ReservedForType("invoice").Valid() {
		t.Error("expected unknown reference type to be invalid")
	}
}

func TestTenantContextValid(t *testing.T) {
	actor := int64(1)
	tests := []struct {
		name string
		tc   *TenantContext
		want bool
	}{
		{"nil context", nil, false},
		{"no org, not super admin", &TenantContext{ActorID: &actor}, false},
		{"with org", &TenantContext{OrganizationID: 5}, true},
		{"super admin without org", &TenantContext{IsSuperAdmin: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tc.Valid(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
