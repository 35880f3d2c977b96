// Package mq 提供RabbitMQ连接管理
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

// ConnectionState 连接状态
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionManager RabbitMQ连接管理器。
// 事件发布频率跟随库存写入，量级可控，通道按需创建即可，不做池化。
type ConnectionManager struct {
	config *Config
	logger *zap.Logger

	conn      *amqp.Connection
	connMutex sync.RWMutex
	state     int32 // atomic

	stopCh         chan struct{}
	reconnectCount int32

	// 事件回调
	onConnected    func()
	onDisconnected func(error)
	onReconnected  func()
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager(config *Config, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConnectionManager{
		config: config,
		logger: logger,
		state:  int32(StateDisconnected),
		stopCh: make(chan struct{}),
	}
}

// Connect 建立连接
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connection is already in progress or connected")
	}

	cm.logger.Info("连接RabbitMQ",
		zap.String("host", cm.config.Host),
		zap.Int("port", cm.config.Port))

	if err := cm.dial(); err != nil {
		atomic.StoreInt32(&cm.state, int32(StateDisconnected))
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	cm.logger.Info("RabbitMQ连接成功")

	go cm.monitorConnection()

	if cm.onConnected != nil {
		cm.onConnected()
	}

	return nil
}

// dial 建立底层连接并更新状态
func (cm *ConnectionManager) dial() error {
	connConfig := amqp.Config{
		Heartbeat: cm.config.HeartbeatInterval,
		Locale:    "en_US",
	}

	if cm.config.UseTLS {
		tlsConfig, err := cm.config.GetTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to get TLS config: %w", err)
		}
		connConfig.TLSClientConfig = tlsConfig
	}

	conn, err := amqp.DialConfig(cm.config.GetConnectionURL(), connConfig)
	if err != nil {
		return err
	}

	cm.connMutex.Lock()
	cm.conn = conn
	cm.connMutex.Unlock()

	atomic.StoreInt32(&cm.state, int32(StateConnected))
	return nil
}

// GetChannel 创建通道，用完由调用方关闭
func (cm *ConnectionManager) GetChannel() (*amqp.Channel, error) {
	cm.connMutex.RLock()
	conn := cm.conn
	cm.connMutex.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("connection is not available")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// IsConnected 检查是否已连接
func (cm *ConnectionManager) IsConnected() bool {
	return atomic.LoadInt32(&cm.state) == int32(StateConnected)
}

// GetState 获取连接状态
func (cm *ConnectionManager) GetState() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&cm.state))
}

// Close 关闭连接
func (cm *ConnectionManager) Close() error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateClosed)) &&
		!atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateClosed)) &&
		!atomic.CompareAndSwapInt32(&cm.state, int32(StateReconnecting), int32(StateClosed)) {
		return nil // 已经关闭或正在关闭
	}

	cm.logger.Info("关闭RabbitMQ连接")

	close(cm.stopCh)

	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}

	return nil
}

// monitorConnection 监听连接关闭事件
func (cm *ConnectionManager) monitorConnection() {
	cm.connMutex.RLock()
	conn := cm.conn
	cm.connMutex.RUnlock()

	if conn == nil {
		return
	}

	closeCh := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeCh)

	select {
	case err := <-closeCh:
		if err != nil {
			cm.logger.Error("RabbitMQ连接意外关闭", zap.Error(err))
			cm.handleDisconnection(err)
		}
	case <-cm.stopCh:
		return
	}
}

// handleDisconnection 处理连接断开
func (cm *ConnectionManager) handleDisconnection(err error) {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateReconnecting)) {
		return // 已经在重连或已关闭
	}

	cm.logger.Warn("RabbitMQ连接断开，开始重连", zap.Error(err))

	if cm.onDisconnected != nil {
		cm.onDisconnected(err)
	}

	if cm.config.EnableReconnect {
		go cm.reconnect()
	}
}

// reconnect 重连逻辑
func (cm *ConnectionManager) reconnect() {
	defer func() {
		if r := recover(); r != nil {
			cm.logger.Error("重连过程发生panic", zap.Any("panic", r))
		}
	}()

	attempts := 0
	maxAttempts := cm.config.MaxReconnectAttempts

	for {
		select {
		case <-cm.stopCh:
			return
		default:
		}

		attempts++
		atomic.AddInt32(&cm.reconnectCount, 1)

		cm.logger.Info("尝试重连RabbitMQ",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts))

		// 清理旧连接
		cm.connMutex.Lock()
		if cm.conn != nil {
			cm.conn.Close()
			cm.conn = nil
		}
		cm.connMutex.Unlock()

		if err := cm.dial(); err == nil {
			cm.logger.Info("RabbitMQ重连成功", zap.Int("attempts", attempts))

			if cm.onReconnected != nil {
				cm.onReconnected()
			}

			go cm.monitorConnection()
			return
		} else {
			cm.logger.Error("RabbitMQ重连失败",
				zap.Error(err),
				zap.Int("attempt", attempts))
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			cm.logger.Error("RabbitMQ重连失败，达到最大重试次数",
				zap.Int("max_attempts", maxAttempts))
			atomic.StoreInt32(&cm.state, int32(StateDisconnected))
			return
		}

		select {
		case <-time.After(cm.config.ReconnectInterval):
		case <-cm.stopCh:
			return
		}
	}
}

// SetEventCallbacks 设置事件回调
func (cm *ConnectionManager) SetEventCallbacks(
	onConnected func(),
	onDisconnected func(error),
	onReconnected func()) {
	cm.onConnected = onConnected
	cm.onDisconnected = onDisconnected
	cm.onReconnected = onReconnected
}

// GetStats 获取连接统计信息
func (cm *ConnectionManager) GetStats() ConnectionStats {
	return ConnectionStats{
		State:          cm.GetState(),
		ReconnectCount: atomic.LoadInt32(&cm.reconnectCount),
	}
}

// ConnectionStats 连接统计信息
type ConnectionStats struct {
	State          ConnectionState `json:"state"`
	ReconnectCount int32           `json:"reconnect_count"`
}
