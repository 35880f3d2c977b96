package repo

import (
	"context"
	"fmt"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// TransactionRepository 定义账务日志数据访问接口（只追加）
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.StockTransaction) error
	ListByProduct(ctx context.Context, orgID, productID int64, limit int) ([]*domain.StockTransaction, error)
}

type transactionRepo struct {
	q Queryer
}

// NewTransactionRepository 创建账务日志仓储实例
func NewTransactionRepository(q Queryer) TransactionRepository {
	return &transactionRepo{q: q}
}

// Create 追加一条账务记录
func (r *transactionRepo) Create(ctx context.Context, t *domain.StockTransaction) error {
	query := `
		INSERT INTO inventory_transactions
			(organization_id, product_id, variant_id, location_id,
			 kind, quantity_change, reason, actor_id, order_line_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.q.ExecContext(ctx, query,
		t.OrganizationID,
		t.ProductID,
		t.VariantID,
		t.LocationID,
		string(t.Kind),
		t.QuantityChange,
		t.Reason,
		t.ActorID,
		t.OrderLineID,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	t.ID = id
	return nil
}

// ListByProduct 按时间倒序返回商品的账务记录
func (r *transactionRepo) ListByProduct(ctx context.Context, orgID, productID int64, limit int) ([]*domain.StockTransaction, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, product_id, variant_id, location_id,
			kind, quantity_change, reason, actor_id, order_line_id, created_at
		FROM inventory_transactions
		WHERE organization_id = ? AND product_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.q.QueryContext(ctx, query, orgID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.StockTransaction
	for rows.Next() {
		t := &domain.StockTransaction{}
		err := rows.Scan(
			&t.ID,
			&t.OrganizationID,
			&t.ProductID,
			&t.VariantID,
			&t.LocationID,
			&t.Kind,
			&t.QuantityChange,
			&t.Reason,
			&t.ActorID,
			&t.OrderLineID,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
