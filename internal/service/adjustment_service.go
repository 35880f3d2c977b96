package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/repo"
)

// AdjustmentService 定义库存调整工作流接口。
// 调整单记录"谁在何时把数量从A改到B及原因"，数量落账委托给库存管理器，
// 两者在同一个事务内提交。
type AdjustmentService interface {
	// CreateAdjustment 创建调整单并落账。quantity_after 是目标数量，
	// 差值由服务端按当前权威数量计算；指定 batch_id 时针对批次调整。
	CreateAdjustment(ctx context.Context, tc *domain.TenantContext, req *domain.CreateAdjustmentRequest) (*domain.Adjustment, error)

	// GetAdjustment 查询调整单
	GetAdjustment(ctx context.Context, tc *domain.TenantContext, id int64) (*domain.Adjustment, error)

	// ApproveAdjustment 审批调整单，重复审批返回冲突
	ApproveAdjustment(ctx context.Context, tc *domain.TenantContext, id int64) (*domain.Adjustment, error)

	// DeleteAdjustment 删除未审批的调整单。已落账的数量不做回滚。
	DeleteAdjustment(ctx context.Context, tc *domain.TenantContext, id int64) error

	// GetAdjustmentSummary 按类型聚合的调整统计
	GetAdjustmentSummary(ctx context.Context, tc *domain.TenantContext, req *domain.AdjustmentSummaryRequest) ([]*domain.AdjustmentSummaryRow, error)

	// ListBatches 查询商品在某库位的批次
	ListBatches(ctx context.Context, tc *domain.TenantContext, productID, locationID int64) ([]*domain.Batch, error)
}

// adjustmentService 实现AdjustmentService接口
type adjustmentService struct {
	uow    repo.TxRunner
	stock  StockService
	logger *zap.Logger
}

// NewAdjustmentService 创建调整服务实例
func NewAdjustmentService(uow repo.TxRunner, stock StockService, logger *zap.Logger) AdjustmentService {
	return &adjustmentService{
		uow:    uow,
		stock:  stock,
		logger: logger,
	}
}

// requireOrg 调整工作流是组织内的管理操作，必须携带明确的组织
func requireOrg(tc *domain.TenantContext) (int64, error) {
	if !tc.Valid() {
		return 0, ErrTenantRequired
	}
	if tc.OrganizationID == 0 {
		return 0, fmt.Errorf("adjustment operations require an explicit organization: %w", ErrInvalidInput)
	}
	return tc.OrganizationID, nil
}

// CreateAdjustment 创建调整单：计算差值、落账、记录审计，单事务提交
func (s *adjustmentService) CreateAdjustment(ctx context.Context, tc *domain.TenantContext, req *domain.CreateAdjustmentRequest) (*domain.Adjustment, error) {
	if _, err := requireOrg(tc); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("adjustment type %q: %w", req.Type, ErrInvalidInput)
	}
	if req.QuantityAfter < 0 {
		return nil, fmt.Errorf("quantity after must be non-negative: %w", ErrInvalidInput)
	}

	var (
		adjustment *domain.Adjustment
		result     *domain.StockUpdateResult
	)

	err := s.uow.WithinTx(ctx, func(r *repo.Repositories) error {
		orgID, err := resolveScope(ctx, r, tc, req.ProductID, req.VariantID, req.LocationID)
		if err != nil {
			return err
		}

		// 差值以当前权威数量为基准，不信任客户端
		var quantityBefore int64
		if req.BatchID != nil {
			batch, err := r.Batches.GetForUpdate(ctx, orgID, *req.BatchID)
			if err != nil {
				return fmt.Errorf("lock batch: %w", err)
			}
			if batch == nil {
				return fmt.Errorf("batch %d: %w", *req.BatchID, ErrNotFound)
			}
			if batch.ProductID != req.ProductID || batch.LocationID != req.LocationID {
				return fmt.Errorf("batch %d does not match product/location: %w", *req.BatchID, ErrInvalidInput)
			}

			quantityBefore = batch.Remaining()
			change := req.QuantityAfter - quantityBefore
			if change == 0 {
				return fmt.Errorf("quantity unchanged: %w", ErrInvalidInput)
			}

			// 批次规模随差值同步调整，但不能降到已消耗量之下
			newQuantity := batch.Quantity + change
			if !batch.CanResize(newQuantity) {
				return fmt.Errorf("batch %d quantity %d below used %d: %w",
					batch.ID, newQuantity, batch.QuantityUsed, ErrConflict)
			}
			ok, err := r.Batches.Resize(ctx, batch.ID, newQuantity)
			if err != nil {
				return fmt.Errorf("resize batch: %w", err)
			}
			if !ok {
				return fmt.Errorf("batch %d resize rejected: %w", batch.ID, ErrConflict)
			}
		} else {
			level, err := r.StockLevels.GetForUpdate(ctx, orgID, req.ProductID, req.VariantID, req.LocationID)
			if err != nil {
				return fmt.Errorf("lock stock level: %w", err)
			}
			if level == nil {
				return fmt.Errorf("stock level for product %d at location %d: %w", req.ProductID, req.LocationID, ErrNotFound)
			}
			quantityBefore = level.QuantityOnHand
			if req.QuantityAfter == quantityBefore {
				return fmt.Errorf("quantity unchanged: %w", ErrInvalidInput)
			}
		}

		change := req.QuantityAfter - quantityBefore

		// 数量落账委托给库存管理器，复用同一事务
		result, err = s.stock.UpdateStockInTx(ctx, r, tc, &domain.UpdateStockRequest{
			ProductID:            req.ProductID,
			VariantID:            req.VariantID,
			LocationID:           req.LocationID,
			QuantityChange:       change,
			MovementType:         domain.MovementAdjustment,
			Reason:               adjustmentReason(req),
			CreateMovement:       true,
			ValidateAvailability: false,
		})
		if err != nil {
			return err
		}

		adjustment = &domain.Adjustment{
			OrganizationID: orgID,
			ProductID:      req.ProductID,
			VariantID:      req.VariantID,
			LocationID:     req.LocationID,
			BatchID:        req.BatchID,
			Type:           req.Type,
			QuantityBefore: quantityBefore,
			QuantityAfter:  req.QuantityAfter,
			QuantityChange: change,
			ReasonCode:     req.ReasonCode,
			Description:    req.Description,
			CreatedBy:      tc.ActorID,
		}
		if req.ApproverID != nil {
			now := time.Now()
			adjustment.ApprovedBy = req.ApproverID
			adjustment.ApprovedAt = &now
		}
		if err := r.Adjustments.Create(ctx, adjustment); err != nil {
			return fmt.Errorf("create adjustment: %w", err)
		}

		// 调整类型自己的账务流水：damage/expiration 保留语义，
		// 其余归入 manual_adjustment
		txnKind, err := req.Type.TransactionKind()
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
		txn := &domain.StockTransaction{
			OrganizationID: orgID,
			ProductID:      req.ProductID,
			VariantID:      req.VariantID,
			LocationID:     req.LocationID,
			Kind:           txnKind,
			QuantityChange: change,
			Reason:         adjustmentReason(req),
			ActorID:        tc.ActorID,
		}
		if err := r.Transactions.Create(ctx, txn); err != nil {
			return fmt.Errorf("create adjustment transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stock.EmitStockUpdated(ctx, result)
	return adjustment, nil
}

// adjustmentReason 拼出落账用的原因描述
func adjustmentReason(req *domain.CreateAdjustmentRequest) string {
	if req.ReasonCode == "" {
		return string(req.Type)
	}
	return fmt.Sprintf("%s: %s", req.Type, req.ReasonCode)
}

// GetAdjustment 查询调整单
func (s *adjustmentService) GetAdjustment(ctx context.Context, tc *domain.TenantContext, id int64) (*domain.Adjustment, error) {
	orgID, err := requireOrg(tc)
	if err != nil {
		return nil, err
	}

	adjustment, err := s.uow.Repos().Adjustments.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("get adjustment: %w", err)
	}
	if adjustment == nil {
		return nil, fmt.Errorf("adjustment %d: %w", id, ErrNotFound)
	}
	return adjustment, nil
}

// ApproveAdjustment 审批调整单。审批是一次性的，条件更新保证并发下只成功一次。
func (s *adjustmentService) ApproveAdjustment(ctx context.Context, tc *domain.TenantContext, id int64) (*domain.Adjustment, error) {
	orgID, err := requireOrg(tc)
	if err != nil {
		return nil, err
	}
	if tc.ActorID == nil {
		return nil, fmt.Errorf("approver identity required: %w", ErrInvalidInput)
	}

	r := s.uow.Repos()

	adjustment, err := r.Adjustments.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("get adjustment: %w", err)
	}
	if adjustment == nil {
		return nil, fmt.Errorf("adjustment %d: %w", id, ErrNotFound)
	}
	if adjustment.Approved() {
		return nil, fmt.Errorf("adjustment %d already approved: %w", id, ErrConflict)
	}

	now := time.Now()
	ok, err := r.Adjustments.Approve(ctx, id, *tc.ActorID, now)
	if err != nil {
		return nil, fmt.Errorf("approve adjustment: %w", err)
	}
	if !ok {
		// 并发审批输给了别人
		return nil, fmt.Errorf("adjustment %d already approved: %w", id, ErrConflict)
	}

	adjustment.ApprovedBy = tc.ActorID
	adjustment.ApprovedAt = &now
	return adjustment, nil
}

// DeleteAdjustment 删除未审批的调整单。
// 创建时已落账的数量变更不随删除回滚，账务流水保持原样。
func (s *adjustmentService) DeleteAdjustment(ctx context.Context, tc *domain.TenantContext, id int64) error {
	orgID, err := requireOrg(tc)
	if err != nil {
		return err
	}

	r := s.uow.Repos()

	adjustment, err := r.Adjustments.GetByID(ctx, orgID, id)
	if err != nil {
		return fmt.Errorf("get adjustment: %w", err)
	}
	if adjustment == nil {
		return fmt.Errorf("adjustment %d: %w", id, ErrNotFound)
	}
	if adjustment.Approved() {
		return fmt.Errorf("adjustment %d is approved and immutable: %w", id, ErrConflict)
	}

	ok, err := r.Adjustments.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete adjustment: %w", err)
	}
	if !ok {
		return fmt.Errorf("adjustment %d already approved: %w", id, ErrConflict)
	}

	s.logger.Warn("deleted adjustment without reversing stock",
		zap.Int64("adjustment_id", id),
		zap.Int64("quantity_change", adjustment.QuantityChange),
		zap.Int64("product_id", adjustment.ProductID))

	return nil
}

// GetAdjustmentSummary 按调整类型聚合统计
func (s *adjustmentService) GetAdjustmentSummary(ctx context.Context, tc *domain.TenantContext, req *domain.AdjustmentSummaryRequest) ([]*domain.AdjustmentSummaryRow, error) {
	orgID, err := requireOrg(tc)
	if err != nil {
		return nil, err
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return nil, fmt.Errorf("time range start after end: %w", ErrInvalidInput)
	}

	rows, err := s.uow.Repos().Adjustments.Summary(ctx, orgID, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("adjustment summary: %w", err)
	}
	return rows, nil
}

// ListBatches 查询商品在某库位的批次
func (s *adjustmentService) ListBatches(ctx context.Context, tc *domain.TenantContext, productID, locationID int64) ([]*domain.Batch, error) {
	orgID, err := requireOrg(tc)
	if err != nil {
		return nil, err
	}

	batches, err := s.uow.Repos().Batches.ListByProductLocation(ctx, orgID, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}
