// Package mq 提供RabbitMQ消费者实现
package mq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer RabbitMQ消费者。
// 处理失败按配置在进程内重试，最终失败的消息Nack且不重回队列，
// 由队列的死信配置接管。
type Consumer struct {
	cm      *ConnectionManager
	config  *ConsumerConfig
	logger  *zap.Logger
	handler MessageHandler

	queueName   string
	consumerTag string

	running int32
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	// 统计信息
	processedCount int64
	failedCount    int64
	retriedCount   int64
}

// NewConsumer 创建消费者
func NewConsumer(cm *ConnectionManager, config *ConsumerConfig, logger *zap.Logger) *Consumer {
	if config == nil {
		config = DefaultConfig().Consumer
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consumer{
		cm:     cm,
		config: config,
		logger: logger,
	}
}

// SetHandler 设置消息处理函数
func (c *Consumer) SetHandler(handler MessageHandler) {
	c.handler = handler
}

// StartConsuming 开始消费消息，按配置启动并发工作器
func (c *Consumer) StartConsuming(ctx context.Context, queueName string) error {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return fmt.Errorf("consumer is already running")
	}

	if c.handler == nil {
		atomic.StoreInt32(&c.running, 0)
		return fmt.Errorf("message handler is not set")
	}

	c.queueName = queueName
	c.consumerTag = fmt.Sprintf("consumer-%s-%d", queueName, time.Now().Unix())

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("开始消费消息",
		zap.String("queue", queueName),
		zap.String("consumer_tag", c.consumerTag),
		zap.Int("concurrent_consumers", c.config.ConcurrentConsumers))

	for i := 0; i < c.config.ConcurrentConsumers; i++ {
		deliveries, err := c.openDeliveries(i)
		if err != nil {
			cancel()
			c.wg.Wait()
			atomic.StoreInt32(&c.running, 0)
			return fmt.Errorf("failed to start worker %d: %w", i, err)
		}

		c.wg.Add(1)
		go c.runWorker(workerCtx, i, deliveries)
	}

	return nil
}

// openDeliveries 为工作器打开通道并订阅队列
func (c *Consumer) openDeliveries(workerID int) (<-chan amqp.Delivery, error) {
	ch, err := c.cm.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		fmt.Sprintf("%s-%d", c.consumerTag, workerID),
		c.config.AutoAck,
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return deliveries, nil
}

// runWorker 工作器主循环
func (c *Consumer) runWorker(ctx context.Context, workerID int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed",
					zap.String("queue", c.queueName),
					zap.Int("worker", workerID))
				return
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery 处理单条消息，含重试和确认
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var err error
	maxAttempts := 1
	if c.config.EnableRetry {
		maxAttempts = c.config.MaxRetryAttempts + 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = c.handler(ctx, delivery)
		if err == nil {
			break
		}

		c.logger.Warn("消息处理失败",
			zap.String("queue", c.queueName),
			zap.String("message_id", delivery.MessageId),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < maxAttempts {
			atomic.AddInt64(&c.retriedCount, 1)
			select {
			case <-time.After(c.config.RetryInterval):
			case <-ctx.Done():
				return
			}
		}
	}

	if c.config.AutoAck {
		if err != nil {
			atomic.AddInt64(&c.failedCount, 1)
		} else {
			atomic.AddInt64(&c.processedCount, 1)
		}
		return
	}

	if err != nil {
		atomic.AddInt64(&c.failedCount, 1)
		// 不重回队列，交给死信配置
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	atomic.AddInt64(&c.processedCount, 1)
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("failed to ack message", zap.Error(ackErr))
	}
}

// Stop 停止消费
func (c *Consumer) Stop() {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	c.logger.Info("消费者已停止", zap.String("queue", c.queueName))
}

// GetStats 获取消费统计信息
func (c *Consumer) GetStats() ConsumerStats {
	return ConsumerStats{
		ProcessedCount: atomic.LoadInt64(&c.processedCount),
		FailedCount:    atomic.LoadInt64(&c.failedCount),
		RetriedCount:   atomic.LoadInt64(&c.retriedCount),
	}
}

// ConsumerStats 消费统计信息
type ConsumerStats struct {
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	RetriedCount   int64 `json:"retried_count"`
}
