// Package mq 提供库存事件的消息定义
package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// MessageType 消息类型
type MessageType string

const (
	MessageTypeStockUpdated MessageType = "stock.updated"
)

// StockMessage 库存事件的统一信封
type StockMessage struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	TraceID   string          `json:"trace_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// StockUpdatedData 库存变更事件载荷
type StockUpdatedData struct {
	ProductID     int64               `json:"product_id"`
	VariantID     *int64              `json:"variant_id,omitempty"`
	LocationID    int64               `json:"location_id"`
	NewQuantity   int64               `json:"new_quantity"`
	TransactionID int64               `json:"transaction_id"`
	MovementType  domain.MovementKind `json:"movement_type"`
	UserID        *int64              `json:"user_id,omitempty"`
}

// NewStockUpdatedMessage 从领域事件构建消息
func NewStockUpdatedMessage(event *domain.StockUpdatedEvent, traceID string) (*StockMessage, error) {
	data, err := json.Marshal(&StockUpdatedData{
		ProductID:     event.ProductID,
		VariantID:     event.VariantID,
		LocationID:    event.LocationID,
		NewQuantity:   event.NewQuantity,
		TransactionID: event.TransactionID,
		MovementType:  event.MovementType,
		UserID:        event.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal stock updated data: %w", err)
	}

	return &StockMessage{
		ID:        uuid.New().String(),
		Type:      MessageTypeStockUpdated,
		Timestamp: time.Now(),
		TraceID:   traceID,
		Data:      data,
	}, nil
}

// ToJSON 序列化消息
func (m *StockMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON 反序列化消息
func (m *StockMessage) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// GetDataAs 解出载荷到目标结构
func (m *StockMessage) GetDataAs(target interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message has no data")
	}
	return json.Unmarshal(m.Data, target)
}

// RoutingKey 返回消息的路由键
func (m *StockMessage) RoutingKey() string {
	return string(m.Type)
}
