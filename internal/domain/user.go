package domain

import (
	"time"
)

// UserRole 定义用户角色类型
type UserRole string

const (
	UserRoleMember     UserRole = "member"      // 组织内普通成员
	UserRoleOrgAdmin   UserRole = "org_admin"   // 组织管理员
	UserRoleSuperAdmin UserRole = "super_admin" // 平台超级管理员（跨租户）
)

// User 表示用户领域模型。
// 超级管理员不归属组织，OrganizationID 为空。
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // JSON序列化时忽略密码哈希
	Role           UserRole  `json:"role"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsSuperAdmin 判断用户是否为平台超级管理员
func (u *User) IsSuperAdmin() bool {
	return u.Role == UserRoleSuperAdmin
}

// TenantContext 根据用户身份构建租户上下文
func (u *User) TenantContext() *TenantContext {
	tc := &TenantContext{
		ActorID:      &u.ID,
		IsSuperAdmin: u.IsSuperAdmin(),
	}
	if u.OrganizationID != nil {
		tc.OrganizationID = *u.OrganizationID
	}
	return tc
}

// RegisterRequest 表示用户注册请求
type RegisterRequest struct {
	Username       string `json:"username" binding:"required,min=3,max=32"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=6,max=72"`
	OrganizationID int64  `json:"organization_id" binding:"required"`
}

// LoginRequest 表示用户登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 表示登录成功的响应
type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRequest 表示刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
