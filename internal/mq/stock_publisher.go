// Package mq 提供库存事件发布器
package mq

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/middleware"
)

// StockPublisher 库存事件发布器，实现 service.StockEventPublisher
type StockPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appName  string
}

// NewStockPublisher 创建库存事件发布器
func NewStockPublisher(cm *ConnectionManager, config *ProducerConfig, appName string, logger *zap.Logger) *StockPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StockPublisher{
		producer: NewProducer(cm, config, logger),
		logger:   logger,
		appName:  appName,
	}
}

// PublishStockUpdated 发布库存变更事件。
// 调用方在事务提交后调用，这里的失败不回滚数据，只向上返回错误供记录。
func (sp *StockPublisher) PublishStockUpdated(ctx context.Context, event *domain.StockUpdatedEvent) error {
	// 请求ID贯穿到消息，方便跨服务追踪一次变更
	message, err := NewStockUpdatedMessage(event, middleware.RequestIDFromContext(ctx))
	if err != nil {
		return err
	}

	body, err := message.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal stock message: %w", err)
	}

	err = sp.producer.Publish(ctx, StockExchange, message.RoutingKey(), body, &PublishOptions{
		MessageID: message.ID,
		Timestamp: message.Timestamp,
		Type:      string(message.Type),
		AppID:     sp.appName,
	})
	if err != nil {
		return fmt.Errorf("publish stock.updated: %w", err)
	}

	sp.logger.Debug("stock.updated published",
		zap.String("message_id", message.ID),
		zap.Int64("product_id", event.ProductID),
		zap.Int64("transaction_id", event.TransactionID))

	return nil
}

// GetStats 获取发布统计
func (sp *StockPublisher) GetStats() ProducerStats {
	return sp.producer.GetStats()
}

// Close 关闭发布器
func (sp *StockPublisher) Close() error {
	return sp.producer.Close()
}
