package domain

import "time"

// Batch 表示某商品在某库位的一个批次（批号级追踪），用于可过期/可追溯商品。
// quantity 是批次规模，quantity_used 是已消耗量；
// 针对批次的调整直接修改 quantity，且不允许降到 quantity_used 之下。
type Batch struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	ProductID      int64      `json:"product_id"`
	LocationID     int64      `json:"location_id"`
	BatchNumber    string     `json:"batch_number"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Quantity       int64      `json:"quantity"`
	QuantityUsed   int64      `json:"quantity_used"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Remaining 返回批次剩余量
func (b *Batch) Remaining() int64 {
	return b.Quantity - b.QuantityUsed
}

// CanResize 判断批次规模能否调整为 quantity，不允许低于已消耗量
func (b *Batch) CanResize(quantity int64) bool {
	return quantity >= b.QuantityUsed
}
