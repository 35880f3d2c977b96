// Package middleware 提供幂等性中间件
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/stock_ledger/internal/cache"
	"github.com/MorseWayne/stock_ledger/internal/resp"
)

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	// 幂等键头名称
	IdempotencyKeyHeader string

	// 跳过的请求方法
	SkipMethods []string

	// 幂等键保留时长
	CacheTTL time.Duration
}

// DefaultIdempotencyConfig 默认幂等性配置
func DefaultIdempotencyConfig() *IdempotencyConfig {
	return &IdempotencyConfig{
		IdempotencyKeyHeader: "X-Idempotency-Key",
		SkipMethods:          []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CacheTTL:             24 * time.Hour,
	}
}

// Idempotency 幂等性中间件。
// 客户端在写请求上携带 X-Idempotency-Key，重复提交同一个键直接拒绝，
// 防止重试脚本把同一次调整落账两次。不带键的请求不做幂等检查。
func Idempotency(c cache.Cache, cfg *IdempotencyConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultIdempotencyConfig()
	}

	return func(gc *gin.Context) {
		method := gc.Request.Method
		for _, skipMethod := range cfg.SkipMethods {
			if method == skipMethod {
				gc.Next()
				return
			}
		}

		key := gc.GetHeader(cfg.IdempotencyKeyHeader)
		if key == "" {
			gc.Next()
			return
		}

		ok, err := c.SetNX(gc.Request.Context(), "idem:"+key, 1, cfg.CacheTTL)
		if err != nil {
			// 缓存不可用时放行，幂等保护降级而不是阻断写入
			gc.Next()
			return
		}
		if !ok {
			requestID := RequestIDFromContext(gc.Request.Context())
			resp.Error(gc.Writer, http.StatusConflict, resp.CodeConflict,
				"duplicate request", requestID, "")
			gc.Abort()
			return
		}

		gc.Next()
	}
}
