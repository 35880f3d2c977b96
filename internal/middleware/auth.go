// Package middleware 提供JWT认证和授权中间件。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/resp"
	"github.com/MorseWayne/stock_ledger/internal/service"
)

// AuthMiddleware JWT认证中间件。
// 验证请求头中的JWT令牌，将用户信息和租户上下文注入请求上下文。
func AuthMiddleware(jwtService service.JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing authorization header", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authorization header required", reqID, "")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				logger.Warn("invalid authorization header format", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid authorization header format", reqID, "")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, bearerPrefix)
			if tokenString == "" {
				logger.Warn("empty token", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "token required", reqID, "")
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				logger.Warn("token validation failed",
					zap.String("request_id", reqID),
					zap.Error(err),
				)

				switch err {
				case service.ErrTokenExpired:
					resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "token expired", reqID, "")
				case service.ErrTokenNotReady:
					resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "token not ready", reqID, "")
				default:
					resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid token", reqID, "")
				}
				return
			}

			// 从令牌重建用户和租户上下文，注入请求上下文
			user := &domain.User{
				ID:             claims.UserID,
				Username:       claims.Username,
				Role:           claims.Role,
				OrganizationID: claims.OrganizationID,
				IsActive:       true,
			}

			ctx := context.WithValue(r.Context(), contextKeyUser, user)
			ctx = WithTenant(ctx, claims.TenantContext())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole 角色授权中间件。
// 超级管理员放行一切；组织管理员覆盖普通成员的要求。
func RequireRole(requiredRole domain.UserRole, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())
			user := UserFromContext(r.Context())

			if user == nil {
				logger.Error("user not found in context", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
				return
			}

			if !roleSatisfies(user.Role, requiredRole) {
				logger.Warn("insufficient permissions",
					zap.String("request_id", reqID),
					zap.Int64("user_id", user.ID),
					zap.String("user_role", string(user.Role)),
					zap.String("required_role", string(requiredRole)),
				)
				resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions", reqID, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// roleSatisfies 判断实际角色是否满足要求的角色
func roleSatisfies(actual, required domain.UserRole) bool {
	if actual == domain.UserRoleSuperAdmin {
		return true
	}
	if required == domain.UserRoleMember {
		return actual == domain.UserRoleMember || actual == domain.UserRoleOrgAdmin
	}
	return actual == required
}

// RequireOrgAdmin 组织管理员权限中间件，审批等管理操作使用
func RequireOrgAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(domain.UserRoleOrgAdmin, logger)
}

// UserFromContext 从请求上下文中获取当前用户信息
func UserFromContext(ctx context.Context) *domain.User {
	if user, ok := ctx.Value(contextKeyUser).(*domain.User); ok {
		return user
	}
	return nil
}
