package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// LocationRepository 定义库位注册表的数据访问接口（对库存核心只读）
type LocationRepository interface {
	// GetByID 读取库位，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id int64) (*domain.Location, error)
	// BelongsToOrganization 校验库位归属
	BelongsToOrganization(ctx context.Context, locationID, orgID int64) (bool, error)
}

type locationRepo struct {
	q Queryer
}

// NewLocationRepository 创建库位仓储实例
func NewLocationRepository(q Queryer) LocationRepository {
	return &locationRepo{q: q}
}

// GetByID 读取库位
func (r *locationRepo) GetByID(ctx context.Context, id int64) (*domain.Location, error) {
	query := `SELECT id, organization_id, name, kind, created_at FROM locations WHERE id = ?`

	loc := &domain.Location{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&loc.ID,
		&loc.OrganizationID,
		&loc.Name,
		&loc.Kind,
		&loc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return loc, nil
}

// BelongsToOrganization 校验库位归属
func (r *locationRepo) BelongsToOrganization(ctx context.Context, locationID, orgID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM locations WHERE id = ? AND organization_id = ?`

	var count int64
	if err := r.q.QueryRowContext(ctx, query, locationID, orgID).Scan(&count); err != nil {
		return false, fmt.Errorf("check location organization: %w", err)
	}
	return count > 0, nil
}
