// Package limiter 限流中间件实现
package limiter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/stock_ledger/internal/resp"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	// 限流器
	Limiter Limiter

	// Key生成函数
	KeyGenerator func(*gin.Context) string

	// 限流回调函数
	OnLimitReached func(*gin.Context, *LimitResult)

	// 是否跳过限流检查
	Skip func(*gin.Context) bool
}

// DefaultKeyGenerator 默认Key生成器（基于IP）
func DefaultKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("global:%s", c.ClientIP())
}

// UserKeyGenerator 用户Key生成器，未登录时退化为IP
func UserKeyGenerator(c *gin.Context) string {
	userID := c.GetInt64("user_id")
	if userID > 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimitMiddleware 创建限流中间件
func RateLimitMiddleware(config *MiddlewareConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}

	if config.OnLimitReached == nil {
		config.OnLimitReached = defaultOnLimitReached
	}

	return func(c *gin.Context) {
		if config.Skip != nil && config.Skip(c) {
			c.Next()
			return
		}

		key := config.KeyGenerator(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result, err := config.Limiter.Allow(ctx, key)
		if err != nil {
			// 限流服务不可用时放行，避免Redis故障拖垮主链路
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
		}

		if !result.Allowed {
			config.OnLimitReached(c, result)
			return
		}

		c.Next()
	}
}

// defaultOnLimitReached 默认限流回调
func defaultOnLimitReached(c *gin.Context, result *LimitResult) {
	requestID := c.GetString("request_id")
	traceID := c.GetString("trace_id")

	resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeInvalidParam,
		"请求过于频繁，请稍后重试", requestID, traceID)
	c.Abort()
}

// StockWriteRateLimitMiddleware 库存写路径限流中间件。
// 调整、预占、释放等写操作按用户限流，防止批量脚本打爆行锁。
func StockWriteRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return RateLimitMiddleware(&MiddlewareConfig{
		Limiter: limiter,
		KeyGenerator: func(c *gin.Context) string {
			userID := c.GetInt64("user_id")
			if userID > 0 {
				return fmt.Sprintf("stock:write:user:%d", userID)
			}
			return fmt.Sprintf("stock:write:ip:%s", c.ClientIP())
		},
	})
}

// GlobalRateLimitMiddleware 全局限流中间件
func GlobalRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return RateLimitMiddleware(&MiddlewareConfig{
		Limiter:      limiter,
		KeyGenerator: DefaultKeyGenerator,
	})
}
