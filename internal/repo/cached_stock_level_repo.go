package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/MorseWayne/stock_ledger/internal/cache"
	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// CachedStockLevelRepository 带缓存的库存行仓储装饰器。
// 只缓存单行读路径；GetForUpdate 走事务行锁，必须绕过缓存直达数据库。
type CachedStockLevelRepository struct {
	repo  StockLevelRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedStockLevelRepository 创建带缓存的库存行仓储
func NewCachedStockLevelRepository(repo StockLevelRepository, c cache.Cache, ttl time.Duration) StockLevelRepository {
	return &CachedStockLevelRepository{
		repo:  repo,
		cache: c,
		ttl:   ttl,
	}
}

func (r *CachedStockLevelRepository) levelKey(orgID, productID int64, variantID *int64, locationID int64) string {
	v := int64(0)
	if variantID != nil {
		v = *variantID
	}
	return fmt.Sprintf("stock:level:%d:%d:%d:%d", orgID, productID, v, locationID)
}

// Get 读取库存行（带缓存）
func (r *CachedStockLevelRepository) Get(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	key := r.levelKey(orgID, productID, variantID, locationID)

	var cached domain.StockLevel
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	level, err := r.repo.Get(ctx, orgID, productID, variantID, locationID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, nil
	}

	// 库存数据变化频繁，TTL折半
	_ = r.cache.Set(ctx, key, level, r.ttl/2)
	return level, nil
}

// GetForUpdate 行锁读取，绕过缓存
func (r *CachedStockLevelRepository) GetForUpdate(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	return r.repo.GetForUpdate(ctx, orgID, productID, variantID, locationID)
}

// Create 创建库存行（清除缓存）
func (r *CachedStockLevelRepository) Create(ctx context.Context, level *domain.StockLevel) error {
	if err := r.repo.Create(ctx, level); err != nil {
		return err
	}
	_ = r.cache.Del(ctx, r.levelKey(level.OrganizationID, level.ProductID, level.VariantID, level.LocationID))
	return nil
}

// UpdateQuantities 写回计数（清除缓存）
func (r *CachedStockLevelRepository) UpdateQuantities(ctx context.Context, level *domain.StockLevel) error {
	if err := r.repo.UpdateQuantities(ctx, level); err != nil {
		return err
	}
	_ = r.cache.Del(ctx, r.levelKey(level.OrganizationID, level.ProductID, level.VariantID, level.LocationID))
	return nil
}

// ListByProduct 列表读不缓存，直接透传
func (r *CachedStockLevelRepository) ListByProduct(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	return r.repo.ListByProduct(ctx, orgID, productID)
}

// SumAvailableByProduct 汇总读透传
func (r *CachedStockLevelRepository) SumAvailableByProduct(ctx context.Context, productID int64) (int64, error) {
	return r.repo.SumAvailableByProduct(ctx, productID)
}

// ListReorderDue 补货点查询透传
func (r *CachedStockLevelRepository) ListReorderDue(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	return r.repo.ListReorderDue(ctx, orgID, productID)
}

// List 分页查询透传
func (r *CachedStockLevelRepository) List(ctx context.Context, orgID int64, req *domain.StockLevelListRequest) ([]*domain.StockLevel, int64, error) {
	return r.repo.List(ctx, orgID, req)
}
