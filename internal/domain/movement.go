package domain

import (
	"fmt"
	"time"
)

// MovementKind 表示库存变更的业务类型（管理器层的完整词汇表）
type MovementKind string

const (
	MovementStockIn    MovementKind = "stock_in"   // 入库
	MovementStockOut   MovementKind = "stock_out"  // 出库
	MovementTransfer   MovementKind = "transfer"   // 调拨
	MovementAdjustment MovementKind = "adjustment" // 人工调整
	MovementSale       MovementKind = "sale"       // 销售
	MovementReturn     MovementKind = "return"     // 退货
	MovementDamage     MovementKind = "damage"     // 损耗
	MovementExpiration MovementKind = "expiration" // 过期
	MovementInitial    MovementKind = "initial"    // 期初建账
)

// Valid 判断变更类型是否在封闭枚举集合内
func (k MovementKind) Valid() bool {
	switch k {
	case MovementStockIn, MovementStockOut, MovementTransfer, MovementAdjustment,
		MovementSale, MovementReturn, MovementDamage, MovementExpiration, MovementInitial:
		return true
	}
	return false
}

// TransactionKind 返回账务日志使用的类型。
// "adjustment" 映射到专用的 manual_adjustment，避免与调整单自身的类型词汇冲突；
// 未知类型返回错误而不是静默落入默认分支，新增类型必须显式补充映射。
func (k MovementKind) TransactionKind() (TransactionKind, error) {
	switch k {
	case MovementStockIn:
		return TxnStockIn, nil
	case MovementStockOut:
		return TxnStockOut, nil
	case MovementTransfer:
		return TxnTransfer, nil
	case MovementAdjustment:
		return TxnManualAdjustment, nil
	case MovementSale:
		return TxnSale, nil
	case MovementReturn:
		return TxnReturn, nil
	case MovementDamage:
		return TxnDamage, nil
	case MovementExpiration:
		return TxnExpiration, nil
	case MovementInitial:
		return TxnInitial, nil
	default:
		return "", fmt.Errorf("no transaction kind for movement kind %q", k)
	}
}

// LogKind 返回物理移动日志使用的类型。
// "initial" 是管理器层概念，落到移动日志时记为 stock_in。
func (k MovementKind) LogKind() (MovementKind, error) {
	if !k.Valid() {
		return "", fmt.Errorf("unknown movement kind %q", k)
	}
	if k == MovementInitial {
		return MovementStockIn, nil
	}
	return k, nil
}

// Movement 表示一次物理库存移动的不可变记录。
// 创建后不允许修改或删除。
type Movement struct {
	ID             int64        `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	ProductID      int64        `json:"product_id"`
	VariantID      *int64       `json:"variant_id,omitempty"`
	FromLocationID *int64       `json:"from_location_id,omitempty"`
	ToLocationID   *int64       `json:"to_location_id,omitempty"`
	Kind           MovementKind `json:"kind"`
	Quantity       int64        `json:"quantity"` // 始终为非负数量
	Reason         string       `json:"reason"`
	ActorID        *int64       `json:"actor_id,omitempty"`
	TransactionID  int64        `json:"transaction_id"`
	CreatedAt      time.Time    `json:"created_at"`
}
