// Package api 提供用户认证相关的HTTP API处理器实现。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/domain"
	"github.com/MorseWayne/stock_ledger/internal/middleware"
	"github.com/MorseWayne/stock_ledger/internal/resp"
	"github.com/MorseWayne/stock_ledger/internal/service"
)

// UserHandler 用户相关的HTTP处理器
type UserHandler struct {
	userService service.UserService
	jwtService  service.JWTService
	logger      *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userService service.UserService, jwtService service.JWTService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// Register 处理用户注册请求
// POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := h.validateRegisterRequest(&req); err != nil {
		h.logger.Warn("validation failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "username or email already exists", reqID, "")
			return
		}

		h.logger.Error("register failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "register failed", reqID, "")
		return
	}

	// 返回成功响应（不包含敏感信息）
	userResp := map[string]interface{}{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"role":            user.Role,
		"organization_id": user.OrganizationID,
		"is_active":       user.IsActive,
		"created_at":      user.CreatedAt,
	}

	resp.OK(w, &userResp, reqID, "")
}

// Login 处理用户登录请求
// POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "username and password are required", reqID, "")
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid username or password", reqID, "")
			return
		}
		if errors.Is(err, service.ErrUserInactive) {
			resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "user is inactive", reqID, "")
			return
		}

		h.logger.Error("login failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "login failed", reqID, "")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		h.logger.Error("failed to generate tokens", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "token generation failed", reqID, "")
		return
	}

	loginResp := &domain.LoginResponse{
		User: &domain.User{
			ID:             user.ID,
			Username:       user.Username,
			Email:          user.Email,
			Role:           user.Role,
			OrganizationID: user.OrganizationID,
			IsActive:       user.IsActive,
			CreatedAt:      user.CreatedAt,
		},
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
	}

	resp.OK(w, loginResp, reqID, "")
}

// RefreshToken 使用刷新令牌换取新的令牌对
// POST /api/v1/auth/refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if req.RefreshToken == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "refresh_token is required", reqID, "")
		return
	}

	tokenPair, err := h.jwtService.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid or expired refresh token", reqID, "")
			return
		}

		h.logger.Error("refresh token failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "refresh token failed", reqID, "")
		return
	}

	resp.OK(w, tokenPair, reqID, "")
}

// GetProfile 获取当前用户信息
// GET /api/v1/users/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	current := middleware.UserFromContext(r.Context())
	if current == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), current.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "user not found", reqID, "")
			return
		}

		h.logger.Error("get profile failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get profile failed", reqID, "")
		return
	}

	userResp := map[string]interface{}{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"role":            user.Role,
		"organization_id": user.OrganizationID,
		"is_active":       user.IsActive,
		"created_at":      user.CreatedAt,
		"updated_at":      user.UpdatedAt,
	}

	resp.OK(w, &userResp, reqID, "")
}

// validateRegisterRequest 校验注册请求
func (h *UserHandler) validateRegisterRequest(req *domain.RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if len(req.Username) < 3 || len(req.Username) > 32 {
		return errors.New("username must be 3-32 characters")
	}
	if !strings.Contains(req.Email, "@") {
		return errors.New("invalid email address")
	}
	if len(req.Password) < 6 || len(req.Password) > 72 {
		return errors.New("password must be 6-72 characters")
	}
	if req.OrganizationID <= 0 {
		return errors.New("organization_id is required")
	}
	return nil
}
