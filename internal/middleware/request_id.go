package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID 请求ID头名称
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen 客户端提供的请求ID长度上限，超长的直接丢弃重新生成
const maxRequestIDLen = 64

// RequestID 确保每个请求都有请求ID：优先采用请求头中的
// X-Request-ID（调用方透传的链路ID），缺失或不合规时生成UUID，
// 最终写入响应头和请求上下文。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), rid)))
	})
}
