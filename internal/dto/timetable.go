package dto

// ── 课表模板请求 ──

// CreateTimetableRequest 创建课表模板
type CreateTimetableRequest struct {
	Name           string `json:"name"            binding:"required,max=100"`
	OrganizationID string `json:"organization_id" binding:"required,uuid"`
	IsWeekly       *bool  `json:"is_weekly"` // 缺省为 true
}

// UpdateTimetableRequest 更新课表模板
type UpdateTimetableRequest struct {
	Name     *string `json:"name"      binding:"omitempty,max=100"`
	IsActive *bool   `json:"is_active"`
}

// CreateTemplateSlotRequest 创建模板时段
// DayOfWeek 接受数字 1-7、英文或中文星期名（如 "Monday" / "星期一" / "周一"）
type CreateTemplateSlotRequest struct {
	DayOfWeek   string `json:"day_of_week"  binding:"required"`
	StartTime   string `json:"start_time"   binding:"required"` // HH:MM
	EndTime     string `json:"end_time"     binding:"required"`
	StudentName string `json:"student_name" binding:"required,max=100"`
	Subject     string `json:"subject"      binding:"max=100"`
	Note        string `json:"note"         binding:"max=500"`
}

// UpdateTemplateSlotRequest 更新模板时段（缺省字段不修改）
type UpdateTemplateSlotRequest struct {
	DayOfWeek   *string `json:"day_of_week"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	StudentName *string `json:"student_name" binding:"omitempty,max=100"`
	Subject     *string `json:"subject"      binding:"omitempty,max=100"`
	Note        *string `json:"note"         binding:"omitempty,max=500"`
}

// ── 课表模板响应 ──

// TimetableResponse 课表模板响应
type TimetableResponse struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	IsWeekly       bool                   `json:"is_weekly"`
	OrganizationID string                 `json:"organization_id"`
	OwnerID        string                 `json:"owner_id"`
	IsActive       bool                   `json:"is_active"`
	Slots          []TemplateSlotResponse `json:"slots,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
}

// TemplateSlotResponse 模板时段响应
type TemplateSlotResponse struct {
	ID          string `json:"id"`
	TimetableID string `json:"timetable_id"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	StudentName string `json:"student_name"`
	Subject     string `json:"subject,omitempty"`
	Note        string `json:"note,omitempty"`
}
