// Package mq 提供RabbitMQ消息队列配置和连接管理
package mq

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Config RabbitMQ配置
type Config struct {
	// 连接配置
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	VHost    string `json:"vhost"`

	// TLS配置
	UseTLS                bool   `json:"use_tls"`
	TLSCertFile           string `json:"tls_cert_file"`
	TLSKeyFile            string `json:"tls_key_file"`
	TLSServerName         string `json:"tls_server_name"`
	TLSInsecureSkipVerify bool   `json:"tls_insecure_skip_verify"`

	// 连接配置
	ConnectionTimeout time.Duration `json:"connection_timeout"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// 重连配置
	EnableReconnect      bool          `json:"enable_reconnect"`
	ReconnectInterval    time.Duration `json:"reconnect_interval"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`

	// 生产者配置
	Producer *ProducerConfig `json:"producer"`

	// 消费者配置
	Consumer *ConsumerConfig `json:"consumer"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// 发布确认
	EnableConfirm  bool          `json:"enable_confirm"`
	ConfirmTimeout time.Duration `json:"confirm_timeout"`

	// 重试配置
	EnableRetry      bool          `json:"enable_retry"`
	MaxRetryAttempts int           `json:"max_retry_attempts"`
	RetryInterval    time.Duration `json:"retry_interval"`

	// 发送超时
	PublishTimeout time.Duration `json:"publish_timeout"`
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	PrefetchCount int  `json:"prefetch_count"`
	AutoAck       bool `json:"auto_ack"`

	// 重试配置
	EnableRetry      bool          `json:"enable_retry"`
	MaxRetryAttempts int           `json:"max_retry_attempts"`
	RetryInterval    time.Duration `json:"retry_interval"`

	// 并发消费
	ConcurrentConsumers int `json:"concurrent_consumers"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5672,
		Username: "guest",
		Password: "guest",
		VHost:    "/",

		UseTLS: false,

		ConnectionTimeout: 30 * time.Second,
		HeartbeatInterval: 10 * time.Second,

		EnableReconnect:      true,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,

		Producer: &ProducerConfig{
			EnableConfirm:    true,
			ConfirmTimeout:   5 * time.Second,
			EnableRetry:      true,
			MaxRetryAttempts: 3,
			RetryInterval:    1 * time.Second,
			PublishTimeout:   10 * time.Second,
		},

		Consumer: &ConsumerConfig{
			PrefetchCount:       10,
			AutoAck:             false,
			EnableRetry:         true,
			MaxRetryAttempts:    3,
			RetryInterval:       1 * time.Second,
			ConcurrentConsumers: 1,
		},
	}
}

// GetConnectionURL 获取连接URL
func (c *Config) GetConnectionURL() string {
	scheme := "amqp"
	if c.UseTLS {
		scheme = "amqps"
	}

	return fmt.Sprintf("%s://%s:%s@%s:%d%s",
		scheme, c.Username, c.Password, c.Host, c.Port, c.VHost)
}

// GetTLSConfig 获取TLS配置
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	if !c.UseTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         c.TLSServerName,
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
	}

	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.Username == "" {
		return fmt.Errorf("username is required")
	}

	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection_timeout must be greater than 0")
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be greater than 0")
	}

	if c.Producer != nil {
		if err := c.Producer.Validate(); err != nil {
			return fmt.Errorf("producer config validation failed: %w", err)
		}
	}

	if c.Consumer != nil {
		if err := c.Consumer.Validate(); err != nil {
			return fmt.Errorf("consumer config validation failed: %w", err)
		}
	}

	return nil
}

// Validate 验证生产者配置
func (c *ProducerConfig) Validate() error {
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be greater than 0")
	}

	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be >= 0")
	}

	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be greater than 0")
	}

	if c.PublishTimeout <= 0 {
		return fmt.Errorf("publish_timeout must be greater than 0")
	}

	return nil
}

// Validate 验证消费者配置
func (c *ConsumerConfig) Validate() error {
	if c.PrefetchCount < 0 {
		return fmt.Errorf("prefetch_count must be >= 0")
	}

	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must be >= 0")
	}

	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be greater than 0")
	}

	if c.ConcurrentConsumers <= 0 {
		return fmt.Errorf("concurrent_consumers must be greater than 0")
	}

	return nil
}
