package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/repo"
)

// StockEventPublisher 抽象库存变更事件的发布端。
// 由 mq 包实现，service 不直接依赖消息队列。
type StockEventPublisher interface {
	PublishStockUpdated(ctx context.Context, event *domain.StockUpdatedEvent) error
}

// StockService 定义库存管理器接口：所有库存计数变更的唯一入口。
type StockService interface {
	// UpdateStock 执行一次库存变更：加锁、校验、落账、汇总回写，提交后发布事件。
	UpdateStock(ctx context.Context, tc *domain.TenantContext, req *domain.UpdateStockRequest) (*domain.StockUpdateResult, error)

	// UpdateStockInTx 在调用方的事务内执行库存变更，供上层工作流
	// （如调整审批）与自身的写入组合成一个原子提交。不发布事件，
	// 调用方提交事务后自行调用 EmitStockUpdated。
	UpdateStockInTx(ctx context.Context, r *repo.Repositories, tc *domain.TenantContext, req *domain.UpdateStockRequest) (*domain.StockUpdateResult, error)

	// EmitStockUpdated 发布库存变更事件。发布失败只记日志，不影响已提交的数据。
	EmitStockUpdated(ctx context.Context, result *domain.StockUpdateResult)

	// ReserveStock 预留可用库存
	ReserveStock(ctx context.Context, tc *domain.TenantContext, req *domain.ReserveStockRequest) (*domain.Reservation, error)

	// ReleaseReservation 释放某上游实体的全部活跃预留，返回释放的总量。
	// 没有活跃预留时静默成功（幂等释放）。
	ReleaseReservation(ctx context.Context, tc *domain.TenantContext, req *domain.ReleaseReservationRequest) (int64, error)

	// 查询
	GetStockLevel(ctx context.Context, tc *domain.TenantContext, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error)
	ListStockLevels(ctx context.Context, tc *domain.TenantContext, req *domain.StockLevelListRequest) (*domain.StockLevelListResponse, error)
	CheckReorderPoints(ctx context.Context, tc *domain.TenantContext, productID int64) ([]*domain.StockLevel, error)
	ListMovements(ctx context.Context, tc *domain.TenantContext, productID int64, limit int) ([]*domain.Movement, error)
	ListTransactions(ctx context.Context, tc *domain.TenantContext, productID int64, limit int) ([]*domain.StockTransaction, error)
}

// stockService 实现StockService接口
type stockService struct {
	uow       repo.TxRunner
	publisher StockEventPublisher
	logger    *zap.Logger
}

// NewStockService 创建库存服务实例。publisher 可为 nil（不发布事件）。
func NewStockService(uow repo.TxRunner, publisher StockEventPublisher, logger *zap.Logger) StockService {
	return &stockService{
		uow:       uow,
		publisher: publisher,
		logger:    logger,
	}
}

// resolveScope 解析本次操作的组织范围并校验资源归属：
// 普通租户校验商品（经店铺）与库位都归属其组织；
// 超级管理员未指定组织时，以库位所属组织为准。
func resolveScope(ctx context.Context, r *repo.Repositories, tc *domain.TenantContext,
	productID int64, variantID *int64, locationID int64) (int64, error) {
	if !tc.Valid() {
		return 0, ErrTenantRequired
	}

	orgID := tc.OrganizationID
	if orgID == 0 {
		// 超级管理员跨租户访问：从库位反查组织
		loc, err := r.Locations.GetByID(ctx, locationID)
		if err != nil {
			return 0, fmt.Errorf("resolve location %d: %w", locationID, err)
		}
		if loc == nil {
			return 0, fmt.Errorf("location %d: %w", locationID, ErrNotFound)
		}
		orgID = loc.OrganizationID

		product, err := r.Products.GetByID(ctx, productID)
		if err != nil {
			return 0, fmt.Errorf("resolve product %d: %w", productID, err)
		}
		if product == nil {
			return 0, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
	} else {
		product, err := r.Products.GetByID(ctx, productID)
		if err != nil {
			return 0, fmt.Errorf("resolve product %d: %w", productID, err)
		}
		if product == nil {
			return 0, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}

		ok, err := r.Products.BelongsToOrganization(ctx, productID, orgID)
		if err != nil {
			return 0, fmt.Errorf("check product ownership: %w", err)
		}
		if !ok {
			return 0, fmt.Errorf("product %d: %w", productID, ErrCrossTenant)
		}

		loc, err := r.Locations.GetByID(ctx, locationID)
		if err != nil {
			return 0, fmt.Errorf("resolve location %d: %w", locationID, err)
		}
		if loc == nil {
			return 0, fmt.Errorf("location %d: %w", locationID, ErrNotFound)
		}
		if loc.OrganizationID != orgID {
			return 0, fmt.Errorf("location %d: %w", locationID, ErrCrossTenant)
		}
	}

	if variantID != nil {
		ok, err := r.Products.VariantBelongsToProduct(ctx, *variantID, productID)
		if err != nil {
			return 0, fmt.Errorf("check variant ownership: %w", err)
		}
		if !ok {
			return 0, fmt.Errorf("variant %d of product %d: %w", *variantID, productID, ErrNotFound)
		}
	}

	return orgID, nil
}

// lockOrCreateLevel 行锁读取库存行，不存在时惰性建行（零计数）后再加锁读取。
func (s *stockService) lockOrCreateLevel(ctx context.Context, r *repo.Repositories, orgID int64,
	productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	level, err := r.StockLevels.GetForUpdate(ctx, orgID, productID, variantID, locationID)
	if err != nil {
		return nil, fmt.Errorf("lock stock level: %w", err)
	}
	if level != nil {
		return level, nil
	}

	level = &domain.StockLevel{
		OrganizationID: orgID,
		ProductID:      productID,
		VariantID:      variantID,
		LocationID:     locationID,
	}
	if err := r.StockLevels.Create(ctx, level); err != nil {
		return nil, fmt.Errorf("create stock level: %w", err)
	}

	level, err = r.StockLevels.GetForUpdate(ctx, orgID, productID, variantID, locationID)
	if err != nil {
		return nil, fmt.Errorf("lock created stock level: %w", err)
	}
	if level == nil {
		return nil, fmt.Errorf("stock level vanished after create")
	}
	return level, nil
}

// syncProductRollup 重算商品的全局可用总量并回写商品表。
// 汇总跨所有组织和库位，供商品目录展示，不用于任何扣减判断。
func (s *stockService) syncProductRollup(ctx context.Context, r *repo.Repositories, productID int64) error {
	total, err := r.StockLevels.SumAvailableByProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("sum available stock: %w", err)
	}
	if err := r.Products.UpdateTotalAvailable(ctx, productID, total); err != nil {
		return fmt.Errorf("update product rollup: %w", err)
	}
	return nil
}

// UpdateStock 执行一次独立事务的库存变更
func (s *stockService) UpdateStock(ctx context.Context, tc *domain.TenantContext, req *domain.UpdateStockRequest) (*domain.StockUpdateResult, error) {
	var result *domain.StockUpdateResult

	err := s.uow.WithinTx(ctx, func(r *repo.Repositories) error {
		var txErr error
		result, txErr = s.UpdateStockInTx(ctx, r, tc, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.EmitStockUpdated(ctx, result)
	return result, nil
}

// UpdateStockInTx 在给定事务内执行库存变更的完整流程
func (s *stockService) UpdateStockInTx(ctx context.Context, r *repo.Repositories, tc *domain.TenantContext, req *domain.UpdateStockRequest) (*domain.StockUpdateResult, error) {
	if req.QuantityChange == 0 {
		return nil, fmt.Errorf("quantity change must be non-zero: %w", ErrInvalidInput)
	}
	if !req.MovementType.Valid() {
		return nil, fmt.Errorf("movement type %q: %w", req.MovementType, ErrInvalidInput)
	}

	orgID, err := resolveScope(ctx, r, tc, req.ProductID, req.VariantID, req.LocationID)
	if err != nil {
		return nil, err
	}

	level, err := s.lockOrCreateLevel(ctx, r, orgID, req.ProductID, req.VariantID, req.LocationID)
	if err != nil {
		return nil, err
	}

	// 可用性校验：变更幅度超过当前可用量时拒绝，幅度取绝对值
	if req.ValidateAvailability {
		magnitude := req.QuantityChange
		if magnitude < 0 {
			magnitude = -magnitude
		}
		if magnitude > level.QuantityAvailable {
			return nil, fmt.Errorf("requested %d, available %d: %w",
				magnitude, level.QuantityAvailable, ErrInsufficientStock)
		}
	}

	// 计数落地：在手数量不允许为负；销售直接扣可用量（预留消费），
	// 其余类型由 在手-预留 重新推导可用量。
	level.QuantityOnHand += req.QuantityChange
	if level.QuantityOnHand < 0 {
		level.QuantityOnHand = 0
	}
	if req.MovementType == domain.MovementSale {
		level.QuantityAvailable += req.QuantityChange
		if level.QuantityAvailable < 0 {
			level.QuantityAvailable = 0
		}
	} else {
		level.QuantityAvailable = level.QuantityOnHand - level.QuantityReserved
		if level.QuantityAvailable < 0 {
			level.QuantityAvailable = 0
		}
	}

	if err := r.StockLevels.UpdateQuantities(ctx, level); err != nil {
		return nil, fmt.Errorf("update stock level: %w", err)
	}

	// 账务流水：每次逻辑变更恰好一条，记录请求的带符号变更量
	txnKind, err := req.MovementType.TransactionKind()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	txn := &domain.StockTransaction{
		OrganizationID: orgID,
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		LocationID:     req.LocationID,
		Kind:           txnKind,
		QuantityChange: req.QuantityChange,
		Reason:         req.Reason,
		ActorID:        tc.ActorID,
		OrderLineID:    req.OrderLineID,
	}
	if err := r.Transactions.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("create stock transaction: %w", err)
	}

	// 可选的物理移动记录
	var movementID *int64
	if req.CreateMovement {
		logKind, err := req.MovementType.LogKind()
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}

		quantity := req.QuantityChange
		movement := &domain.Movement{
			OrganizationID: orgID,
			ProductID:      req.ProductID,
			VariantID:      req.VariantID,
			Kind:           logKind,
			Reason:         req.Reason,
			ActorID:        tc.ActorID,
			TransactionID:  txn.ID,
		}
		if quantity < 0 {
			movement.Quantity = -quantity
			movement.FromLocationID = &req.LocationID
		} else {
			movement.Quantity = quantity
			movement.ToLocationID = &req.LocationID
		}

		if err := r.Movements.Create(ctx, movement); err != nil {
			return nil, fmt.Errorf("create movement: %w", err)
		}
		movementID = &movement.ID
	}

	if err := s.syncProductRollup(ctx, r, req.ProductID); err != nil {
		return nil, err
	}

	return &domain.StockUpdateResult{
		Level:         level,
		TransactionID: txn.ID,
		MovementID:    movementID,
		MovementType:  req.MovementType,
		ActorID:       tc.ActorID,
	}, nil
}

// EmitStockUpdated 发布库存变更事件。
// 事件链路的失败不能吞掉已提交的变更，只记录告警等待对账。
func (s *stockService) EmitStockUpdated(ctx context.Context, result *domain.StockUpdateResult) {
	if s.publisher == nil || result == nil {
		return
	}

	event := &domain.StockUpdatedEvent{
		ProductID:     result.Level.ProductID,
		VariantID:     result.Level.VariantID,
		LocationID:    result.Level.LocationID,
		NewQuantity:   result.Level.QuantityAvailable,
		TransactionID: result.TransactionID,
		MovementType:  result.MovementType,
		UserID:        result.ActorID,
	}

	if err := s.publisher.PublishStockUpdated(ctx, event); err != nil {
		s.logger.Warn("failed to publish stock.updated event",
			zap.Int64("product_id", event.ProductID),
			zap.Int64("transaction_id", event.TransactionID),
			zap.Error(err))
	}
}

// ReserveStock 预留可用库存。
// 预留记录本身就是审计凭证，不产生账务流水。
func (s *stockService) ReserveStock(ctx context.Context, tc *domain.TenantContext, req *domain.ReserveStockRequest) (*domain.Reservation, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("reservation quantity must be positive: %w", ErrInvalidInput)
	}
	if !req.ReservedFor.Valid() {
		return nil, fmt.Errorf("reserved_for_type %q: %w", req.ReservedFor, ErrInvalidInput)
	}

	var reservation *domain.Reservation

	err := s.uow.WithinTx(ctx, func(r *repo.Repositories) error {
		orgID, err := resolveScope(ctx, r, tc, req.ProductID, req.VariantID, req.LocationID)
		if err != nil {
			return err
		}

		// 三元组还没有库存行时惰性建零计数行，让可用量校验给出冲突而非未找到
		level, err := s.lockOrCreateLevel(ctx, r, orgID, req.ProductID, req.VariantID, req.LocationID)
		if err != nil {
			return err
		}

		if !level.CanReserve(req.Quantity) {
			return fmt.Errorf("requested %d, available %d: %w", req.Quantity, level.QuantityAvailable, ErrInsufficientStock)
		}

		level.QuantityReserved += req.Quantity
		level.QuantityAvailable -= req.Quantity
		if err := r.StockLevels.UpdateQuantities(ctx, level); err != nil {
			return fmt.Errorf("update stock level: %w", err)
		}

		reservation = &domain.Reservation{
			OrganizationID: orgID,
			ProductID:      req.ProductID,
			VariantID:      req.VariantID,
			LocationID:     req.LocationID,
			Quantity:       req.Quantity,
			ReservedFor:    req.ReservedFor,
			ReservedForID:  req.ReservedForID,
			Status:         domain.ReservationActive,
			ExpiresAt:      time.Now().Add(domain.ReservationTTL),
			ActorID:        tc.ActorID,
		}
		if err := r.Reservations.Create(ctx, reservation); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		return s.syncProductRollup(ctx, r, req.ProductID)
	})
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

// ReleaseReservation 释放上游实体在指定三元组上的全部活跃预留
func (s *stockService) ReleaseReservation(ctx context.Context, tc *domain.TenantContext, req *domain.ReleaseReservationRequest) (int64, error) {
	if !req.ReservedFor.Valid() {
		return 0, fmt.Errorf("reserved_for_type %q: %w", req.ReservedFor, ErrInvalidInput)
	}

	var released int64

	err := s.uow.WithinTx(ctx, func(r *repo.Repositories) error {
		orgID, err := resolveScope(ctx, r, tc, req.ProductID, req.VariantID, req.LocationID)
		if err != nil {
			return err
		}

		reservations, err := r.Reservations.ListActiveByReference(ctx, orgID, req.ProductID, req.VariantID,
			req.LocationID, req.ReservedFor, req.ReservedForID)
		if err != nil {
			return fmt.Errorf("list active reservations: %w", err)
		}
		// 无活跃预留时幂等成功，重复释放不报错
		if len(reservations) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(reservations))
		for _, res := range reservations {
			ids = append(ids, res.ID)
			released += res.Quantity
		}
		if err := r.Reservations.MarkConsumed(ctx, ids); err != nil {
			return fmt.Errorf("mark reservations consumed: %w", err)
		}

		level, err := r.StockLevels.GetForUpdate(ctx, orgID, req.ProductID, req.VariantID, req.LocationID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}
		if level == nil {
			return fmt.Errorf("stock level for product %d at location %d: %w", req.ProductID, req.LocationID, ErrNotFound)
		}

		level.QuantityAvailable += released
		level.QuantityReserved -= released
		if level.QuantityReserved < 0 {
			level.QuantityReserved = 0
		}
		if err := r.StockLevels.UpdateQuantities(ctx, level); err != nil {
			return fmt.Errorf("update stock level: %w", err)
		}

		return s.syncProductRollup(ctx, r, req.ProductID)
	})
	if err != nil {
		return 0, err
	}

	return released, nil
}

// GetStockLevel 查询单个库存行
func (s *stockService) GetStockLevel(ctx context.Context, tc *domain.TenantContext, productID int64, variantID *int64, locationID int64) (*domain.StockLevel, error) {
	r := s.uow.Repos()

	orgID, err := resolveScope(ctx, r, tc, productID, variantID, locationID)
	if err != nil {
		return nil, err
	}

	level, err := r.StockLevels.Get(ctx, orgID, productID, variantID, locationID)
	if err != nil {
		return nil, fmt.Errorf("get stock level: %w", err)
	}
	if level == nil {
		return nil, fmt.Errorf("stock level for product %d at location %d: %w", productID, locationID, ErrNotFound)
	}
	return level, nil
}

// ListStockLevels 分页查询组织内的库存行
func (s *stockService) ListStockLevels(ctx context.Context, tc *domain.TenantContext, req *domain.StockLevelListRequest) (*domain.StockLevelListResponse, error) {
	if !tc.Valid() {
		return nil, ErrTenantRequired
	}
	if tc.OrganizationID == 0 {
		return nil, fmt.Errorf("list requires an explicit organization: %w", ErrInvalidInput)
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 200 {
		req.PageSize = 50
	}

	levels, total, err := s.uow.Repos().StockLevels.List(ctx, tc.OrganizationID, req)
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}

	return &domain.StockLevelListResponse{
		Levels:   levels,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// CheckReorderPoints 返回指定商品所有到达补货点的库存行
func (s *stockService) CheckReorderPoints(ctx context.Context, tc *domain.TenantContext, productID int64) ([]*domain.StockLevel, error) {
	if !tc.Valid() {
		return nil, ErrTenantRequired
	}
	if tc.OrganizationID == 0 {
		return nil, fmt.Errorf("reorder check requires an explicit organization: %w", ErrInvalidInput)
	}

	levels, err := s.uow.Repos().StockLevels.ListReorderDue(ctx, tc.OrganizationID, productID)
	if err != nil {
		return nil, fmt.Errorf("list reorder due: %w", err)
	}
	return levels, nil
}

// ListMovements 查询商品的移动日志（按时间倒序）
func (s *stockService) ListMovements(ctx context.Context, tc *domain.TenantContext, productID int64, limit int) ([]*domain.Movement, error) {
	if !tc.Valid() {
		return nil, ErrTenantRequired
	}
	if tc.OrganizationID == 0 {
		return nil, fmt.Errorf("movement history requires an explicit organization: %w", ErrInvalidInput)
	}

	movements, err := s.uow.Repos().Movements.ListByProduct(ctx, tc.OrganizationID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

// ListTransactions 查询商品的账务流水（按时间倒序）
func (s *stockService) ListTransactions(ctx context.Context, tc *domain.TenantContext, productID int64, limit int) ([]*domain.StockTransaction, error) {
	if !tc.Valid() {
		return nil, ErrTenantRequired
	}
	if tc.OrganizationID == 0 {
		return nil, fmt.Errorf("transaction history requires an explicit organization: %w", ErrInvalidInput)
	}

	transactions, err := s.uow.Repos().Transactions.ListByProduct(ctx, tc.OrganizationID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}
