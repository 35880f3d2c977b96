// Package mq 提供补货告警消费者
package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/repo"
)

// ReorderAlertConsumer 订阅库存变更事件，对到达补货点的库存行发出告警。
// 告警走事件链路而不是写路径，避免阻塞库存事务。
type ReorderAlertConsumer struct {
	consumer *Consumer
	uow      repo.TxRunner
	logger   *zap.Logger
}

// NewReorderAlertConsumer 创建补货告警消费者
func NewReorderAlertConsumer(cm *ConnectionManager, config *ConsumerConfig, uow repo.TxRunner, logger *zap.Logger) *ReorderAlertConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}

	ac := &ReorderAlertConsumer{
		consumer: NewConsumer(cm, config, logger),
		uow:      uow,
		logger:   logger,
	}
	ac.consumer.SetHandler(ac.handleMessage)

	return ac
}

// Start 开始消费补货告警队列
func (ac *ReorderAlertConsumer) Start(ctx context.Context) error {
	return ac.consumer.StartConsuming(ctx, StockAlertQueue)
}

// Stop 停止消费
func (ac *ReorderAlertConsumer) Stop() {
	ac.consumer.Stop()
}

// handleMessage 处理一条库存变更事件
func (ac *ReorderAlertConsumer) handleMessage(ctx context.Context, delivery amqp.Delivery) error {
	var message StockMessage
	if err := message.FromJSON(delivery.Body); err != nil {
		// 格式损坏的消息重试也没用，直接进死信
		ac.logger.Error("malformed stock message",
			zap.String("message_id", delivery.MessageId),
			zap.Error(err))
		return nil
	}

	if message.Type != MessageTypeStockUpdated {
		return nil
	}

	var data StockUpdatedData
	if err := message.GetDataAs(&data); err != nil {
		ac.logger.Error("malformed stock.updated payload",
			zap.String("message_id", message.ID),
			zap.Error(err))
		return nil
	}

	return ac.checkReorderPoint(ctx, &data)
}

// checkReorderPoint 检查事件涉及的商品是否有库存行到达补货点
func (ac *ReorderAlertConsumer) checkReorderPoint(ctx context.Context, data *StockUpdatedData) error {
	r := ac.uow.Repos()

	// 事件不带组织，从库位反查
	loc, err := r.Locations.GetByID(ctx, data.LocationID)
	if err != nil {
		return fmt.Errorf("resolve location %d: %w", data.LocationID, err)
	}
	if loc == nil {
		ac.logger.Warn("stock.updated references unknown location",
			zap.Int64("location_id", data.LocationID))
		return nil
	}

	levels, err := r.StockLevels.ListReorderDue(ctx, loc.OrganizationID, data.ProductID)
	if err != nil {
		return fmt.Errorf("list reorder due: %w", err)
	}

	for _, level := range levels {
		ac.logger.Warn("stock at or below reorder point",
			zap.Int64("organization_id", level.OrganizationID),
			zap.Int64("product_id", level.ProductID),
			zap.Int64("location_id", level.LocationID),
			zap.Int64("available", level.QuantityAvailable),
			zap.Int64p("reorder_point", level.ReorderPoint))
	}

	return nil
}
