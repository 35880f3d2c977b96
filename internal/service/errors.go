// Package service 实现库存账本的业务逻辑层。
package service

import "errors"

// 业务语义错误，API 层通过 errors.Is 映射为响应码。
var (
	// ErrTenantRequired 操作缺失租户上下文
	ErrTenantRequired = errors.New("tenant context required")

	// ErrCrossTenant 目标资源存在但不属于当前租户
	ErrCrossTenant = errors.New("resource belongs to another organization")

	// ErrNotFound 目标资源不存在
	ErrNotFound = errors.New("resource not found")

	// ErrInsufficientStock 可用库存不足以完成扣减或预留
	ErrInsufficientStock = errors.New("insufficient available stock")

	// ErrConflict 写入与资源当前状态冲突（重复审批、删除已审批调整单等）
	ErrConflict = errors.New("operation conflicts with current state")

	// ErrInvalidInput 请求参数不满足业务约束
	ErrInvalidInput = errors.New("invalid input")
)
