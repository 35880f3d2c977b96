package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// AdjustmentRepository 定义调整单数据访问接口
type AdjustmentRepository interface {
	Create(ctx context.Context, adj *domain.Adjustment) error
	// GetByID 读取调整单，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, orgID, id int64) (*domain.Adjustment, error)
	// Approve 条件更新：仅当未审批时写入审批人和时间，返回是否有行被更新
	Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error)
	// Delete 条件删除：仅删除未审批的调整单，返回是否有行被删除
	Delete(ctx context.Context, id int64) (bool, error)
	// Summary 按类型聚合的调整统计，可选时间范围
	Summary(ctx context.Context, orgID int64, from, to *time.Time) ([]*domain.AdjustmentSummaryRow, error)
}

type adjustmentRepo struct {
	q Queryer
}

// NewAdjustmentRepository 创建调整单仓储实例
func NewAdjustmentRepository(q Queryer) AdjustmentRepository {
	return &adjustmentRepo{q: q}
}

// Create 创建调整单
func (r *adjustmentRepo) Create(ctx context.Context, adj *domain.Adjustment) error {
	query := `
		INSERT INTO inventory_adjustments
			(organization_id, product_id, variant_id, location_id, batch_id, type,
			 quantity_before, quantity_after, quantity_change,
			 reason_code, description, created_by, approved_by, approved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.q.ExecContext(ctx, query,
		adj.OrganizationID,
		adj.ProductID,
		adj.VariantID,
		adj.LocationID,
		adj.BatchID,
		string(adj.Type),
		adj.QuantityBefore,
		adj.QuantityAfter,
		adj.QuantityChange,
		adj.ReasonCode,
		adj.Description,
		adj.CreatedBy,
		adj.ApprovedBy,
		adj.ApprovedAt,
	)
	if err != nil {
		return fmt.Errorf("create adjustment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	adj.ID = id
	return nil
}

// GetByID 读取调整单
func (r *adjustmentRepo) GetByID(ctx context.Context, orgID, id int64) (*domain.Adjustment, error) {
	query := `
		SELECT id, organization_id, product_id, variant_id, location_id, batch_id, type,
			quantity_before, quantity_after, quantity_change,
			reason_code, description, created_by, approved_by, approved_at, created_at
		FROM inventory_adjustments
		WHERE organization_id = ? AND id = ?
	`

	adj := &domain.Adjustment{}
	err := r.q.QueryRowContext(ctx, query, orgID, id).Scan(
		&adj.ID,
		&adj.OrganizationID,
		&adj.ProductID,
		&adj.VariantID,
		&adj.LocationID,
		&adj.BatchID,
		&adj.Type,
		&adj.QuantityBefore,
		&adj.QuantityAfter,
		&adj.QuantityChange,
		&adj.ReasonCode,
		&adj.Description,
		&adj.CreatedBy,
		&adj.ApprovedBy,
		&adj.ApprovedAt,
		&adj.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get adjustment: %w", err)
	}
	return adj, nil
}

// Approve 条件审批，已审批的单子不会被改写
func (r *adjustmentRepo) Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error) {
	query := `
		UPDATE inventory_adjustments
		SET approved_by = ?, approved_at = ?
		WHERE id = ? AND approved_by IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, approverID, at, id)
	if err != nil {
		return false, fmt.Errorf("approve adjustment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return affected > 0, nil
}

// Delete 条件删除，已审批的单子是不可变历史
func (r *adjustmentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM inventory_adjustments WHERE id = ? AND approved_by IS NULL`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete adjustment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return affected > 0, nil
}

// Summary 按类型聚合统计
func (r *adjustmentRepo) Summary(ctx context.Context, orgID int64, from, to *time.Time) ([]*domain.AdjustmentSummaryRow, error) {
	query := `
		SELECT type, COUNT(*), COALESCE(SUM(ABS(quantity_change)), 0)
		FROM inventory_adjustments
		WHERE organization_id = ?
	`
	args := []any{orgID}

	if from != nil {
		query += " AND created_at >= ?"
		args = append(args, *from)
	}
	if to != nil {
		query += " AND created_at < ?"
		args = append(args, *to)
	}
	query += " GROUP BY type ORDER BY type"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query adjustment summary: %w", err)
	}
	defer rows.Close()

	var summary []*domain.AdjustmentSummaryRow
	for rows.Next() {
		row := &domain.AdjustmentSummaryRow{}
		if err := rows.Scan(&row.Type, &row.Count, &row.TotalQuantity); err != nil {
			return nil, fmt.Errorf("scan adjustment summary: %w", err)
		}
		summary = append(summary, row)
	}
	return summary, rows.Err()
}
