package domain

// TenantContext 表示一次操作的租户上下文。
// 所有库存变更操作都必须携带租户上下文，缺失时直接拒绝。
// IsSuperAdmin 是内部工具专用的跨租户逃生通道。
type TenantContext struct {
	OrganizationID int64
	ActorID        *int64
	IsSuperAdmin   bool
}

// Valid 判断租户上下文是否可用于数据访问：
// 要么有组织ID，要么是超级管理员。
func (t *TenantContext) Valid() bool {
	if t == nil {
		return false
	}
	return t.OrganizationID > 0 || t.IsSuperAdmin
}
