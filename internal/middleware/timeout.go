package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/MorseWayne/stock_ledger/internal/resp"
)

// Timeout 为请求设置处理超时。超时后 http.TimeoutHandler 返回503，
// 下游处理器的后续写入被丢弃，持有行锁的库存事务随上下文取消回滚。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "")
	}
}

// HandleTimeout 在上下文已取消时写入统一的超时响应，返回是否已处理
func HandleTimeout(w http.ResponseWriter, r *http.Request) bool {
	if err := r.Context().Err(); err == context.DeadlineExceeded || err == context.Canceled {
		reqID := RequestIDFromContext(r.Context())
		resp.Error(w, resp.HTTPStatusFromCode(resp.CodeTimeout), resp.CodeTimeout, "request timeout", reqID, "")
		return true
	}
	return false
}
