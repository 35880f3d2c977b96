package repo

import (
	"context"
	"fmt"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// MovementRepository 定义移动日志数据访问接口。
// 移动日志只追加：没有更新和删除方法是有意为之。
type MovementRepository interface {
	Create(ctx context.Context, m *domain.Movement) error
	ListByProduct(ctx context.Context, orgID, productID int64, limit int) ([]*domain.Movement, error)
}

type movementRepo struct {
	q Queryer
}

// NewMovementRepository 创建移动日志仓储实例
func NewMovementRepository(q Queryer) MovementRepository {
	return &movementRepo{q: q}
}

// Create 追加一条移动记录
func (r *movementRepo) Create(ctx context.Context, m *domain.Movement) error {
	query := `
		INSERT INTO inventory_movements
			(organization_id, product_id, variant_id, from_location_id, to_location_id,
			 kind, quantity, reason, actor_id, transaction_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.q.ExecContext(ctx, query,
		m.OrganizationID,
		m.ProductID,
		m.VariantID,
		m.FromLocationID,
		m.ToLocationID,
		string(m.Kind),
		m.Quantity,
		m.Reason,
		m.ActorID,
		m.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("create movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	m.ID = id
	return nil
}

// ListByProduct 按时间倒序返回商品的移动记录
func (r *movementRepo) ListByProduct(ctx context.Context, orgID, productID int64, limit int) ([]*domain.Movement, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, product_id, variant_id, from_location_id, to_location_id,
			kind, quantity, reason, actor_id, transaction_id, created_at
		FROM inventory_movements
		WHERE organization_id = ? AND product_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.q.QueryContext(ctx, query, orgID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var movements []*domain.Movement
	for rows.Next() {
		m := &domain.Movement{}
		err := rows.Scan(
			&m.ID,
			&m.OrganizationID,
			&m.ProductID,
			&m.VariantID,
			&m.FromLocationID,
			&m.ToLocationID,
			&m.Kind,
			&m.Quantity,
			&m.Reason,
			&m.ActorID,
			&m.TransactionID,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
