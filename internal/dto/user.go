package dto

// CreateUserRequest 创建用户请求（管理员）
type CreateUserRequest struct {
	Username       string `json:"username"        binding:"required,min=3,max=50"`
	Name           string `json:"name"            binding:"required,max=100"`
	Password       string `json:"password"        binding:"required,min=8"`
	Role           string `json:"role"            binding:"required,oneof=admin teacher"`
	OrganizationID string `json:"organization_id" binding:"required,uuid"`
}

// UpdateUserRequest 更新用户请求（缺省字段不修改）
type UpdateUserRequest struct {
	Name     *string `json:"name"      binding:"omitempty,max=100"`
	Role     *string `json:"role"      binding:"omitempty,oneof=admin teacher"`
	IsActive *bool   `json:"is_active"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword"`
}
