package domain

import "time"

// Product 表示商品注册表中的条目。
// TotalAvailableStock 是冗余的汇总字段：该商品（含变体）在所有库位的可用数量之和，
// 由库存管理器在每次变更后同步重算。
type Product struct {
	ID                  int64     `json:"id"`
	StoreID             int64     `json:"store_id"`
	SKU                 string    `json:"sku"`
	Name                string    `json:"name"`
	TotalAvailableStock int64     `json:"total_available_stock"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ProductVariant 表示商品变体
type ProductVariant struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 表示组织下的店铺，商品通过店铺归属组织
type Store struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Location 表示组织下的库位（仓库/门店等）
type Location struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"` // warehouse, store
	CreatedAt      time.Time `json:"created_at"`
}

// Organization 表示租户组织
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
