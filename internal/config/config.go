// Package config 提供应用配置加载功能，支持 .env 文件和环境变量。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string
	Env     string // dev, test, prod
	Version string
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string // debug, info, warn, error
	Encoding string // json, console
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig MySQL数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enabled bool
	Type    string // redis, memory
	TTL     time.Duration
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// MQConfig RabbitMQ配置
type MQConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	VHost    string
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	Rate    int64
	Burst   int64
	Window  time.Duration
}

// MigrationsConfig 数据库迁移配置
type MigrationsConfig struct {
	Dir string
}

// Config 聚合全部配置段
type Config struct {
	App        AppConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	JWT        JWTConfig
	MQ         MQConfig
	RateLimit  RateLimitConfig
	Migrations MigrationsConfig
}

// Load 加载配置：先读取 .env 文件（如果存在），再读取环境变量。
// 环境变量优先级高于 .env 文件中的值。
func Load() (*Config, error) {
	// .env 文件缺失不是错误，生产环境通常直接用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "stock-ledger"),
			Env:     getEnv("APP_ENV", "dev"),
			Version: getEnv("APP_VERSION", "0.1.0"),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		HTTP: HTTPConfig{
			Port:            getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "stock_ledger"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", false),
			Type:    getEnv("CACHE_TYPE", "memory"),
			TTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		MQ: MQConfig{
			Enabled:  getEnvBool("MQ_ENABLED", false),
			Host:     getEnv("MQ_HOST", "127.0.0.1"),
			Port:     getEnvInt("MQ_PORT", 5672),
			Username: getEnv("MQ_USERNAME", "guest"),
			Password: getEnv("MQ_PASSWORD", "guest"),
			VHost:    getEnv("MQ_VHOST", "/"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			Rate:    int64(getEnvInt("RATE_LIMIT_RATE", 100)),
			Burst:   int64(getEnvInt("RATE_LIMIT_BURST", 200)),
			Window:  getEnvDuration("RATE_LIMIT_WINDOW", time.Second),
		},
		Migrations: MigrationsConfig{
			Dir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 校验关键配置项
func (c *Config) validate() error {
	switch c.App.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("invalid APP_ENV: %q", c.App.Env)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTP.Port)
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	// 生产环境必须配置JWT密钥
	if c.App.Env == "prod" && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in prod")
	}

	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
