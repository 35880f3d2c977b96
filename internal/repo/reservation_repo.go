package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// ReservationRepository 定义预留记录数据访问接口。
// 预留不做物理删除，状态只能从 active 迁移到 consumed 或 expired。
type ReservationRepository interface {
	Create(ctx context.Context, res *domain.Reservation) error
	// ListActiveByReference 查找指定三元组上、由某个上游实体创建的全部 active 预留
	ListActiveByReference(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64,
		refType domain.ReservedForType, refID int64) ([]*domain.Reservation, error)
	// MarkConsumed 将一组预留标记为已消费
	MarkConsumed(ctx context.Context, ids []int64) error
	// ExpireDue 将过期时间早于 now 的 active 预留标记为 expired，返回影响行数。
	// 核心不调度此方法，仅供运维工具做对账清理。
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type reservationRepo struct {
	q Queryer
}

// NewReservationRepository 创建预留仓储实例
func NewReservationRepository(q Queryer) ReservationRepository {
	return &reservationRepo{q: q}
}

// Create 创建预留记录
func (r *reservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	query := `
		INSERT INTO stock_reservations
			(organization_id, product_id, variant_id, location_id, quantity,
			 reserved_for_type, reserved_for_id, status, expires_at, actor_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.q.ExecContext(ctx, query,
		res.OrganizationID,
		res.ProductID,
		res.VariantID,
		res.LocationID,
		res.Quantity,
		string(res.ReservedFor),
		res.ReservedForID,
		string(res.Status),
		res.ExpiresAt,
		res.ActorID,
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	res.ID = id
	return nil
}

// ListActiveByReference 查找 active 预留
func (r *reservationRepo) ListActiveByReference(ctx context.Context, orgID, productID int64, variantID *int64, locationID int64,
	refType domain.ReservedForType, refID int64) ([]*domain.Reservation, error) {
	query := `
		SELECT id, organization_id, product_id, variant_id, location_id, quantity,
			reserved_for_type, reserved_for_id, status, expires_at, actor_id, created_at
		FROM stock_reservations
		WHERE organization_id = ? AND product_id = ? AND variant_id <=> ? AND location_id = ?
			AND reserved_for_type = ? AND reserved_for_id = ? AND status = ?
		FOR UPDATE
	`

	rows, err := r.q.QueryContext(ctx, query,
		orgID, productID, variantID, locationID,
		string(refType), refID, string(domain.ReservationActive),
	)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*domain.Reservation
	for rows.Next() {
		res := &domain.Reservation{}
		err := rows.Scan(
			&res.ID,
			&res.OrganizationID,
			&res.ProductID,
			&res.VariantID,
			&res.LocationID,
			&res.Quantity,
			&res.ReservedFor,
			&res.ReservedForID,
			&res.Status,
			&res.ExpiresAt,
			&res.ActorID,
			&res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

// MarkConsumed 批量标记为已消费
func (r *reservationRepo) MarkConsumed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	query := fmt.Sprintf(`
		UPDATE stock_reservations
		SET status = ?
		WHERE id IN (%s) AND status = ?
	`, placeholders)

	args := make([]any, 0, len(ids)+2)
	args = append(args, string(domain.ReservationConsumed))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(domain.ReservationActive))

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark reservations consumed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("expected to consume %d reservations, consumed %d", len(ids), affected)
	}

	return nil
}

// ExpireDue 标记过期预留
func (r *reservationRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE stock_reservations
		SET status = ?
		WHERE status = ? AND expires_at < ?
	`

	result, err := r.q.ExecContext(ctx, query,
		string(domain.ReservationExpired), string(domain.ReservationActive), now)
	if err != nil {
		return 0, fmt.Errorf("expire reservations: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}
	return affected, nil
}
