// Package limiter 固定窗口限流器实现
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter 固定窗口限流器。
// 比令牌桶便宜但窗口边界有突刺，适合做全局的粗粒度保护；
// 精细的写路径限流用令牌桶。
type FixedWindowLimiter struct {
	client    redis.Cmdable
	config    *Config
	keyPrefix string
}

// NewFixedWindowLimiter 创建固定窗口限流器
func NewFixedWindowLimiter(client redis.Cmdable, config *Config) *FixedWindowLimiter {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "limiter:fw"
	}

	return &FixedWindowLimiter{
		client:    client,
		config:    config,
		keyPrefix: prefix,
	}
}

// Redis Lua脚本：固定窗口计数
const fixedWindowScript = `
-- KEYS[1]: 计数器key
-- ARGV[1]: 限制数量(rate)
-- ARGV[2]: 时间窗口(window秒)
-- ARGV[3]: 请求数量
-- ARGV[4]: 当前时间戳

local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local requests = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local window_start = math.floor(now / window) * window
local window_key = key .. ":" .. window_start

local current = tonumber(redis.call('GET', window_key) or 0)

if current + requests > limit then
    local retry_after = window_start + window - now
    return {0, math.max(0, limit - current), retry_after}
else
    local new_count = redis.call('INCRBY', window_key, requests)
    redis.call('EXPIRE', window_key, window)
    return {1, limit - new_count, 0}
end
`

func (fw *FixedWindowLimiter) getKey(key string) string {
	return fmt.Sprintf("%s:%s", fw.keyPrefix, key)
}

// Allow 检查是否允许请求通过
func (fw *FixedWindowLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return fw.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (fw *FixedWindowLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	redisKey := fw.getKey(key)
	now := time.Now().Unix()

	result := fw.client.Eval(ctx, fixedWindowScript,
		[]string{redisKey},
		fw.config.Rate,
		int64(fw.config.Window.Seconds()),
		n,
		now,
	)

	if result.Err() != nil {
		return nil, fmt.Errorf("failed to execute fixed window script: %w", result.Err())
	}

	values, ok := result.Val().([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	return &LimitResult{
		Allowed:    values[0].(int64) == 1,
		Remaining:  values[1].(int64),
		RetryAfter: time.Duration(values[2].(int64)) * time.Second,
	}, nil
}

// Reset 清除该key的所有窗口计数
func (fw *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	pattern := fw.getKey(key) + ":*"
	iter := fw.client.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	if len(keys) > 0 {
		if err := fw.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
	}

	return nil
}
