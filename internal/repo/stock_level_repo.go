package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// StockLevelRepository 定义库存行数据访问接口
type StockLevelRepository interface {
	// Get 读取库存行，不存在时返回 (nil, nil)
	Get(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error)
	// GetForUpdate 行锁读取（SELECT ... FOR UPDATE），用于事务内的串行化变更
	GetForUpdate(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error)
	Create(ctx context.Context, level *domain.StockLevel) error
	// UpdateQuantities 写回计数字段并刷新 last_updated
	UpdateQuantities(ctx context.Context, level *domain.StockLevel) error
	ListByProduct(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error)
	// SumAvailableByProduct 汇总该商品（基础+变体）在全部库位的可用数量
	SumAvailableByProduct(ctx context.Context, productID int64) (int64, error)
	// ListReorderDue 返回设置了补货点且可用数量已到达补货点的行
	ListReorderDue(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error)
	List(ctx context.Context, orgID int64, req *domain.StockLevelListRequest) ([]*domain.StockLevel, int64, error)
}

const stockLevelColumns = `id, organization_id, product_id, variant_id, location_id,
	quantity_on_hand, quantity_reserved, quantity_available, reorder_point, last_updated, created_at`

// stockLevelRepo 实现StockLevelRepository接口
type stockLevelRepo struct {
	q Queryer
}

// NewStockLevelRepository 创建库存行仓储实例
func NewStockLevelRepository(q Queryer) StockLevelRepository {
	return &stockLevelRepo{q: q}
}

func scanStockLevel(row interface{ Scan(...any) error }) (*domain.StockLevel, error) {
	level := &domain.StockLevel{}
	err := row.Scan(
		&level.ID,
		&level.OrganizationID,
		&level.ProductID,
		&level.VariantID,
		&level.LocationID,
		&level.QuantityOnHand,
		&level.QuantityReserved,
		&level.QuantityAvailable,
		&level.ReorderPoint,
		&level.LastUpdated,
		&level.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return level, nil
}

// Get 读取库存行
// variant_id 使用 NULL 安全比较（<=>），基础商品行的 variant_id 为 NULL
func (r *stockLevelRepo) Get(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_levels
		WHERE organization_id = ? AND product_id = ? AND variant_id <=> ? AND location_id = ?
	`, stockLevelColumns)

	level, err := scanStockLevel(r.q.QueryRowContext(ctx, query, orgID, productID, variantID, locationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock level: %w", err)
	}
	return level, nil
}

// GetForUpdate 行锁读取，同一三元组的并发变更在存储层串行化
func (r *stockLevelRepo) GetForUpdate(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_levels
		WHERE organization_id = ? AND product_id = ? AND variant_id <=> ? AND location_id = ?
		FOR UPDATE
	`, stockLevelColumns)

	level, err := scanStockLevel(r.q.QueryRowContext(ctx, query, orgID, productID, variantID, locationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock level for update: %w", err)
	}
	return level, nil
}

// Create 创建库存行
func (r *stockLevelRepo) Create(ctx context.Context, level *domain.StockLevel) error {
	query := `
		INSERT INTO stock_levels
			(organization_id, product_id, variant_id, location_id,
			 quantity_on_hand, quantity_reserved, quantity_available, reorder_point)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.q.ExecContext(ctx, query,
		level.OrganizationID,
		level.ProductID,
		level.VariantID,
		level.LocationID,
		level.QuantityOnHand,
		level.QuantityReserved,
		level.QuantityAvailable,
		level.ReorderPoint,
	)
	if err != nil {
		return fmt.Errorf("create stock level: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	level.ID = id
	return nil
}

// UpdateQuantities 写回计数字段
// 计数永远不允许落库为负值，这里是最后一道防线
func (r *stockLevelRepo) UpdateQuantities(ctx context.Context, level *domain.StockLevel) error {
	query := `
		UPDATE stock_levels
		SET quantity_on_hand = GREATEST(?, 0),
			quantity_reserved = GREATEST(?, 0),
			quantity_available = GREATEST(?, 0),
			last_updated = NOW()
		WHERE id = ?
	`

	result, err := r.q.ExecContext(ctx, query,
		level.QuantityOnHand,
		level.QuantityReserved,
		level.QuantityAvailable,
		level.ID,
	)
	if err != nil {
		return fmt.Errorf("update stock level: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("stock level %d not found", level.ID)
	}

	return nil
}

// ListByProduct 返回该商品（基础+变体）在全部库位的库存行
func (r *stockLevelRepo) ListByProduct(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_levels
		WHERE organization_id = ? AND product_id = ?
		ORDER BY location_id, variant_id
	`, stockLevelColumns)

	return r.queryLevels(ctx, query, orgID, productID)
}

// SumAvailableByProduct 汇总商品总可用量（跨库位、含变体），用于商品汇总字段
func (r *stockLevelRepo) SumAvailableByProduct(ctx context.Context, productID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity_available), 0)
		FROM stock_levels
		WHERE product_id = ?
	`

	var total int64
	if err := r.q.QueryRowContext(ctx, query, productID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum available stock: %w", err)
	}
	return total, nil
}

// ListReorderDue 返回到达补货点的库存行
func (r *stockLevelRepo) ListReorderDue(ctx context.Context, orgID, productID int64) ([]*domain.StockLevel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_levels
		WHERE organization_id = ? AND product_id = ?
			AND reorder_point IS NOT NULL
			AND quantity_available <= reorder_point
		ORDER BY quantity_available ASC
	`, stockLevelColumns)

	return r.queryLevels(ctx, query, orgID, productID)
}

// List 分页查询库存行
func (r *stockLevelRepo) List(ctx context.Context, orgID int64, req *domain.StockLevelListRequest) ([]*domain.StockLevel, int64, error) {
	conditions := []string{"organization_id = ?"}
	args := []any{orgID}

	if req.ProductID != nil {
		conditions = append(conditions, "product_id = ?")
		args = append(args, *req.ProductID)
	}
	if req.LocationID != nil {
		conditions = append(conditions, "location_id = ?")
		args = append(args, *req.LocationID)
	}
	if req.LowStock != nil && *req.LowStock {
		conditions = append(conditions, "reorder_point IS NOT NULL AND quantity_available <= reorder_point")
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM stock_levels %s", where)
	if err := r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock levels: %w", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM stock_levels %s
		ORDER BY last_updated DESC
		LIMIT ? OFFSET ?
	`, stockLevelColumns, where)
	args = append(args, pageSize, (page-1)*pageSize)

	levels, err := r.queryLevels(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return levels, total, nil
}

func (r *stockLevelRepo) queryLevels(ctx context.Context, query string, args ...any) ([]*domain.StockLevel, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []*domain.StockLevel
	for rows.Next() {
		level, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}
