package domain

import (
	"fmt"
	"time"
)

// AdjustmentType 表示人工调整的业务原因（封闭枚举）
type AdjustmentType string

const (
	AdjustmentDamage           AdjustmentType = "damage"
	AdjustmentLoss             AdjustmentType = "loss"
	AdjustmentTheft            AdjustmentType = "theft"
	AdjustmentExpiration       AdjustmentType = "expiration"
	AdjustmentCountVariance    AdjustmentType = "count_variance"
	AdjustmentManualCorrection AdjustmentType = "manual_correction"
)

// Valid 判断调整类型是否在封闭集合内
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentDamage, AdjustmentLoss, AdjustmentTheft,
		AdjustmentExpiration, AdjustmentCountVariance, AdjustmentManualCorrection:
		return true
	}
	return false
}

// TransactionKind 返回调整类型对应的账务日志类型：
// damage 和 expiration 保留各自类型，其余归入 manual_adjustment 桶。
// 新增调整类型必须在这里显式决定映射。
func (t AdjustmentType) TransactionKind() (TransactionKind, error) {
	switch t {
	case AdjustmentDamage:
		return TxnDamage, nil
	case AdjustmentExpiration:
		return TxnExpiration, nil
	case AdjustmentLoss, AdjustmentTheft, AdjustmentCountVariance, AdjustmentManualCorrection:
		return TxnManualAdjustment, nil
	default:
		return "", fmt.Errorf("no transaction kind for adjustment type %q", t)
	}
}

// Adjustment 表示一条人工库存校正记录，可选审批。
// quantity_change 由服务端根据当前权威数量计算，不信任客户端提交的差值。
// 已审批的调整是不可变历史，不允许删除。
type Adjustment struct {
	ID             int64          `json:"id"`
	OrganizationID int64          `json:"organization_id"`
	ProductID      int64          `json:"product_id"`
	VariantID      *int64         `json:"variant_id,omitempty"`
	LocationID     int64          `json:"location_id"`
	BatchID        *int64         `json:"batch_id,omitempty"`
	Type           AdjustmentType `json:"type"`
	QuantityBefore int64          `json:"quantity_before"`
	QuantityAfter  int64          `json:"quantity_after"`
	QuantityChange int64          `json:"quantity_change"` // = after - before
	ReasonCode     string         `json:"reason_code"`
	Description    string         `json:"description"`
	CreatedBy      *int64         `json:"created_by,omitempty"`
	ApprovedBy     *int64         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Approved 判断调整单是否已审批
func (a *Adjustment) Approved() bool {
	return a.ApprovedBy != nil
}

// CreateAdjustmentRequest 表示创建调整单的请求
type CreateAdjustmentRequest struct {
	ProductID     int64          `json:"product_id" binding:"required"`
	VariantID     *int64         `json:"variant_id"`
	LocationID    int64          `json:"location_id" binding:"required"`
	BatchID       *int64         `json:"batch_id"`
	Type          AdjustmentType `json:"type" binding:"required"`
	QuantityAfter int64          `json:"quantity_after"`
	ReasonCode    string         `json:"reason_code"`
	Description   string         `json:"description"`
	ApproverID    *int64         `json:"approver_id"` // 提供则创建时即审批
}

// AdjustmentSummaryRow 按调整类型聚合的统计行
type AdjustmentSummaryRow struct {
	Type          AdjustmentType `json:"type"`
	Count         int64          `json:"count"`
	TotalQuantity int64          `json:"total_quantity"` // 绝对变更量之和
}

// AdjustmentSummaryRequest 调整统计查询
type AdjustmentSummaryRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}
