package domain

import "time"

// ReservedForType 表示预留所服务的上游实体类型
type ReservedForType string

const (
	ReservedForOrder      ReservedForType = "order"
	ReservedForTransfer   ReservedForType = "transfer"
	ReservedForAdjustment ReservedForType = "adjustment"
)

// Valid 判断预留引用类型是否合法
func (t ReservedForType) Valid() bool {
	switch t {
	case ReservedForOrder, ReservedForTransfer, ReservedForAdjustment:
		return true
	}
	return false
}

// ReservationStatus 预留状态：active → consumed 或 active → expired
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationConsumed ReservationStatus = "consumed"
	ReservationExpired  ReservationStatus = "expired"
)

// ReservationTTL 预留的默认有效期。
// 过期时间只是读取方的参考值，核心不做主动清扫；
// 未释放的过期预留仍按 active 计数，由引用方的生命周期负责释放。
const ReservationTTL = 7 * 24 * time.Hour

// Reservation 表示一条针对可用库存的限时占用记录。
// 预留本身即审计记录，创建预留不写账务日志。
type Reservation struct {
	ID             int64             `json:"id"`
	OrganizationID int64             `json:"organization_id"`
	ProductID      int64             `json:"product_id"`
	VariantID      *int64            `json:"variant_id,omitempty"`
	LocationID     int64             `json:"location_id"`
	Quantity       int64             `json:"quantity"`
	ReservedFor    ReservedForType   `json:"reserved_for_type"`
	ReservedForID  int64             `json:"reserved_for_id"`
	Status         ReservationStatus `json:"status"`
	ExpiresAt      time.Time         `json:"expires_at"`
	ActorID        *int64            `json:"actor_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
