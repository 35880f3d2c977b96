// Package mq 提供库存相关的队列定义
package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// 库存相关的交换机和队列常量
const (
	// 交换机
	StockExchange    = "stock.exchange"     // 库存事件主交换机
	StockDLXExchange = "stock.dlx.exchange" // 死信交换机

	// 队列
	StockAlertQueue = "stock.alert.queue" // 补货告警队列
	StockDLXQueue   = "stock.dlx.queue"   // 死信队列

	// 路由键
	StockUpdatedRoutingKey = "stock.updated"
	StockDLXRoutingKey     = "stock.failed"
)

// StockQueueManager 库存队列管理器，负责声明拓扑
type StockQueueManager struct {
	cm     *ConnectionManager
	logger *zap.Logger
}

// NewStockQueueManager 创建库存队列管理器
func NewStockQueueManager(cm *ConnectionManager, logger *zap.Logger) *StockQueueManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StockQueueManager{
		cm:     cm,
		logger: logger,
	}
}

// SetupQueues 声明交换机、队列和绑定
func (qm *StockQueueManager) SetupQueues(ctx context.Context) error {
	ch, err := qm.cm.GetChannel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer ch.Close()

	if err := qm.declareExchanges(ch); err != nil {
		return fmt.Errorf("failed to declare exchanges: %w", err)
	}

	if err := qm.declareQueues(ch); err != nil {
		return fmt.Errorf("failed to declare queues: %w", err)
	}

	if err := qm.bindQueues(ch); err != nil {
		return fmt.Errorf("failed to bind queues: %w", err)
	}

	qm.logger.Info("库存队列设置完成")
	return nil
}

// declareExchanges 声明交换机
func (qm *StockQueueManager) declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{name: StockExchange, kind: "topic"},
		{name: StockDLXExchange, kind: "topic"},
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues 声明队列
func (qm *StockQueueManager) declareQueues(ch *amqp.Channel) error {
	// 告警队列挂死信交换机，处理失败的消息不丢
	alertArgs := amqp.Table{
		"x-dead-letter-exchange":    StockDLXExchange,
		"x-dead-letter-routing-key": StockDLXRoutingKey,
	}
	if _, err := ch.QueueDeclare(StockAlertQueue, true, false, false, false, alertArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", StockAlertQueue, err)
	}

	if _, err := ch.QueueDeclare(StockDLXQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", StockDLXQueue, err)
	}

	return nil
}

// bindQueues 绑定队列
func (qm *StockQueueManager) bindQueues(ch *amqp.Channel) error {
	if err := ch.QueueBind(StockAlertQueue, StockUpdatedRoutingKey, StockExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", StockAlertQueue, err)
	}

	if err := ch.QueueBind(StockDLXQueue, StockDLXRoutingKey, StockDLXExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", StockDLXQueue, err)
	}

	return nil
}
