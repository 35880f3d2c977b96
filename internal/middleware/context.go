// Package middleware 提供 HTTP 中间件：请求 ID、恢复、超时、认证、访问日志等。
package middleware

import (
	"context"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// contextKey 用于在上下文中存取特定键，避免与外部键冲突。
type contextKey string

// 约定的上下文键集合。
const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyUser      contextKey = "user"
	contextKeyTenant    contextKey = "tenant"
)

// withRequestID 将请求 ID 写入上下文。
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）。
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithTenant 将租户上下文写入请求上下文。
// 中间件只做传输，业务方法仍然以显式参数接收租户上下文。
func WithTenant(ctx context.Context, tc *domain.TenantContext) context.Context {
	return context.WithValue(ctx, contextKeyTenant, tc)
}

// TenantFromContext 从上下文中读取租户上下文（可能为 nil）。
func TenantFromContext(ctx context.Context) *domain.TenantContext {
	if tc, ok := ctx.Value(contextKeyTenant).(*domain.TenantContext); ok {
		return tc
	}
	return nil
}
