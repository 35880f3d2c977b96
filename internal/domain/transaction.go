package domain

import "time"

// TransactionKind 表示账务日志条目的类型（与移动日志的词汇表独立）
type TransactionKind string

const (
	TxnStockIn          TransactionKind = "stock_in"
	TxnStockOut         TransactionKind = "stock_out"
	TxnTransfer         TransactionKind = "transfer"
	TxnSale             TransactionKind = "sale"
	TxnReturn           TransactionKind = "return"
	TxnDamage           TransactionKind = "damage"
	TxnExpiration       TransactionKind = "expiration"
	TxnInitial          TransactionKind = "initial"
	TxnManualAdjustment TransactionKind = "manual_adjustment"
)

// StockTransaction 表示一条账务日志（审计流水），每次逻辑库存变更恰好产生一条。
// 只追加，不修改，不删除，用于数量对账。
type StockTransaction struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	ProductID      int64           `json:"product_id"`
	VariantID      *int64          `json:"variant_id,omitempty"`
	LocationID     int64           `json:"location_id"`
	Kind           TransactionKind `json:"kind"`
	QuantityChange int64           `json:"quantity_change"` // 带符号
	Reason         string          `json:"reason"`
	ActorID        *int64          `json:"actor_id,omitempty"`
	OrderLineID    *int64          `json:"order_line_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
