package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// ProductRepository 定义商品注册表的数据访问接口。
// 注册表对库存核心是只读依赖，唯一的写入是汇总字段的回写。
type ProductRepository interface {
	// GetByID 读取商品，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// BelongsToOrganization 校验商品是否经由店铺归属指定组织
	BelongsToOrganization(ctx context.Context, productID, orgID int64) (bool, error)
	// VariantBelongsToProduct 校验变体归属
	VariantBelongsToProduct(ctx context.Context, variantID, productID int64) (bool, error)
	// UpdateTotalAvailable 回写商品的总可用库存汇总字段
	UpdateTotalAvailable(ctx context.Context, productID, total int64) error
}

type productRepo struct {
	q Queryer
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(q Queryer) ProductRepository {
	return &productRepo{q: q}
}

// GetByID 读取商品
func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, store_id, sku, name, total_available_stock, created_at, updated_at
		FROM products
		WHERE id = ?
	`

	p := &domain.Product{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.StoreID,
		&p.SKU,
		&p.Name,
		&p.TotalAvailableStock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// BelongsToOrganization 商品 → 店铺 → 组织 的归属校验。
// 数字上存在的跨租户ID也必须判为不归属。
func (r *productRepo) BelongsToOrganization(ctx context.Context, productID, orgID int64) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM products p
		JOIN stores s ON p.store_id = s.id
		WHERE p.id = ? AND s.organization_id = ?
	`

	var count int64
	if err := r.q.QueryRowContext(ctx, query, productID, orgID).Scan(&count); err != nil {
		return false, fmt.Errorf("check product organization: %w", err)
	}
	return count > 0, nil
}

// VariantBelongsToProduct 校验变体归属
func (r *productRepo) VariantBelongsToProduct(ctx context.Context, variantID, productID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM product_variants WHERE id = ? AND product_id = ?`

	var count int64
	if err := r.q.QueryRowContext(ctx, query, variantID, productID).Scan(&count); err != nil {
		return false, fmt.Errorf("check variant product: %w", err)
	}
	return count > 0, nil
}

// UpdateTotalAvailable 回写汇总字段
func (r *productRepo) UpdateTotalAvailable(ctx context.Context, productID, total int64) error {
	query := `UPDATE products SET total_available_stock = ? WHERE id = ?`

	if _, err := r.q.ExecContext(ctx, query, total, productID); err != nil {
		return fmt.Errorf("update product total stock: %w", err)
	}
	return nil
}
