package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// BatchRepository 定义批次数据访问接口
type BatchRepository interface {
	// GetForUpdate 行锁读取批次，不存在时返回 (nil, nil)
	GetForUpdate(ctx context.Context, orgID, id int64) (*domain.Batch, error)
	// Resize 调整批次规模，带守卫条件：新规模不得低于已消耗量。
	// 返回是否有行被更新（false 表示守卫条件拒绝或批次不存在）。
	Resize(ctx context.Context, id, newQuantity int64) (bool, error)
	ListByProductLocation(ctx context.Context, orgID, productID, locationID int64) ([]*domain.Batch, error)
}

type batchRepo struct {
	q Queryer
}

// NewBatchRepository 创建批次仓储实例
func NewBatchRepository(q Queryer) BatchRepository {
	return &batchRepo{q: q}
}

const batchColumns = `id, organization_id, product_id, location_id, batch_number,
	expiration_date, quantity, quantity_used, created_at, updated_at`

// GetForUpdate 行锁读取批次
func (r *batchRepo) GetForUpdate(ctx context.Context, orgID, id int64) (*domain.Batch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM inventory_batches
		WHERE organization_id = ? AND id = ?
		FOR UPDATE
	`, batchColumns)

	b := &domain.Batch{}
	err := r.q.QueryRowContext(ctx, query, orgID, id).Scan(
		&b.ID,
		&b.OrganizationID,
		&b.ProductID,
		&b.LocationID,
		&b.BatchNumber,
		&b.ExpirationDate,
		&b.Quantity,
		&b.QuantityUsed,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// Resize 调整批次规模
func (r *batchRepo) Resize(ctx context.Context, id, newQuantity int64) (bool, error) {
	query := `
		UPDATE inventory_batches
		SET quantity = ?
		WHERE id = ? AND quantity_used <= ?
	`

	result, err := r.q.ExecContext(ctx, query, newQuantity, id, newQuantity)
	if err != nil {
		return false, fmt.Errorf("resize batch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListByProductLocation 返回某商品在某库位的全部批次
func (r *batchRepo) ListByProductLocation(ctx context.Context, orgID, productID, locationID int64) ([]*domain.Batch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM inventory_batches
		WHERE organization_id = ? AND product_id = ? AND location_id = ?
		ORDER BY expiration_date, id
	`, batchColumns)

	rows, err := r.q.QueryContext(ctx, query, orgID, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.Batch
	for rows.Next() {
		b := &domain.Batch{}
		err := rows.Scan(
			&b.ID,
			&b.OrganizationID,
			&b.ProductID,
			&b.LocationID,
			&b.BatchNumber,
			&b.ExpirationDate,
			&b.Quantity,
			&b.QuantityUsed,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
