// Package domain 定义库存账本相关的业务领域模型和核心业务规则。
// 领域模型独立于外部依赖（数据库、HTTP、消息队列等）。
package domain

import "time"

// StockLevel 表示某个 (商品, 变体, 库位) 三元组的库存计数行，是账本的最小真实单元。
// 所有计数变更必须经过库存管理器，不允许直接写库。
type StockLevel struct {
	ID                int64     `json:"id"`
	OrganizationID    int64     `json:"organization_id"`
	ProductID         int64     `json:"product_id"`
	VariantID         *int64    `json:"variant_id,omitempty"` // 为空表示基础商品
	LocationID        int64     `json:"location_id"`
	QuantityOnHand    int64     `json:"quantity_on_hand"`  // 实物数量
	QuantityReserved  int64     `json:"quantity_reserved"` // 被预留占用的数量
	QuantityAvailable int64     `json:"quantity_available"`
	ReorderPoint      *int64    `json:"reorder_point,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
	CreatedAt         time.Time `json:"created_at"`
}

// NeedsReorder 判断是否到达补货点
func (s *StockLevel) NeedsReorder() bool {
	return s.ReorderPoint != nil && s.QuantityAvailable <= *s.ReorderPoint
}

// CanReserve 判断是否可以预留指定数量
func (s *StockLevel) CanReserve(quantity int64) bool {
	return quantity > 0 && quantity <= s.QuantityAvailable
}

// UpdateStockRequest 表示一次库存变更意图（库存管理器的入口参数）
type UpdateStockRequest struct {
	ProductID            int64        `json:"product_id" binding:"required"`
	VariantID            *int64       `json:"variant_id"`
	LocationID           int64        `json:"location_id" binding:"required"`
	QuantityChange       int64        `json:"quantity_change" binding:"required"` // 带符号
	MovementType         MovementKind `json:"movement_type" binding:"required"`
	Reason               string       `json:"reason"`
	OrderLineID          *int64       `json:"order_line_id"`
	CreateMovement       bool         `json:"create_movement"`
	ValidateAvailability bool         `json:"validate_availability"`
}

// StockUpdateResult 表示一次库存变更的结果，用于提交后发布事件
type StockUpdateResult struct {
	Level         *StockLevel  `json:"level"`
	TransactionID int64        `json:"transaction_id"`
	MovementID    *int64       `json:"movement_id,omitempty"`
	MovementType  MovementKind `json:"movement_type"`
	ActorID       *int64       `json:"actor_id,omitempty"`
}

// StockUpdatedEvent 是库存变更后对外发布的领域事件载荷
type StockUpdatedEvent struct {
	ProductID     int64        `json:"product_id"`
	VariantID     *int64       `json:"variant_id,omitempty"`
	LocationID    int64        `json:"location_id"`
	NewQuantity   int64        `json:"new_quantity"` // 变更后的可用数量
	TransactionID int64        `json:"transaction_id"`
	MovementType  MovementKind `json:"movement_type"`
	UserID        *int64       `json:"user_id,omitempty"`
}

// ReserveStockRequest 表示预留库存请求
type ReserveStockRequest struct {
	ProductID     int64           `json:"product_id" binding:"required"`
	VariantID     *int64          `json:"variant_id"`
	LocationID    int64           `json:"location_id" binding:"required"`
	Quantity      int64           `json:"quantity" binding:"required,gt=0"`
	ReservedFor   ReservedForType `json:"reserved_for_type" binding:"required"`
	ReservedForID int64           `json:"reserved_for_id" binding:"required"`
}

// ReleaseReservationRequest 表示释放预留请求
type ReleaseReservationRequest struct {
	ProductID     int64           `json:"product_id" binding:"required"`
	VariantID     *int64          `json:"variant_id"`
	LocationID    int64           `json:"location_id" binding:"required"`
	ReservedFor   ReservedForType `json:"reserved_for_type" binding:"required"`
	ReservedForID int64           `json:"reserved_for_id" binding:"required"`
}

// StockLevelListRequest 表示库存行列表查询请求
type StockLevelListRequest struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	ProductID  *int64 `json:"product_id"`
	LocationID *int64 `json:"location_id"`
	LowStock   *bool  `json:"low_stock"` // 只看到达补货点的行
}

// StockLevelListResponse 表示库存行列表查询响应
type StockLevelListResponse struct {
	Levels   []*StockLevel `json:"levels"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}
