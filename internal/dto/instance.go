package dto

// ── 周实例响应 ──

// WeeklyInstanceResponse 周实例响应
type WeeklyInstanceResponse struct {
	ID            string `json:"id"`
	TimetableID   string `json:"timetable_id"`
	YearWeek      string `json:"year_week"`
	WeekStartDate string `json:"week_start_date"` // 2006-01-02
	WeekEndDate   string `json:"week_end_date"`
	IsCurrent     bool   `json:"is_current"`
	GeneratedAt   string `json:"generated_at"`
	LastSyncedAt  string `json:"last_synced_at,omitempty"`
}

// OccurrenceResponse 实例课程响应
type OccurrenceResponse struct {
	ID               string `json:"id"`
	WeeklyInstanceID string `json:"weekly_instance_id"`
	TemplateSlotID   string `json:"template_slot_id,omitempty"`
	StudentName      string `json:"student_name"`
	Subject          string `json:"subject,omitempty"`
	DayOfWeek        int    `json:"day_of_week"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	ScheduleDate     string `json:"schedule_date"`
	Note             string `json:"note,omitempty"`
	IsManualAdded    bool   `json:"is_manual_added"`
	IsModified       bool   `json:"is_modified"`
	IsOnLeave        bool   `json:"is_on_leave"`
	LeaveReason      string `json:"leave_reason,omitempty"`
	LeaveRequestedAt string `json:"leave_requested_at,omitempty"`
	IsCancelled      bool   `json:"is_cancelled"`
	CancelReason     string `json:"cancel_reason,omitempty"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
}

// ── 实例课程请求 ──

// AddManualOccurrenceRequest 手动添加课程
// ScheduleDate 缺省时按实例周起始日期 + DayOfWeek 计算
type AddManualOccurrenceRequest struct {
	DayOfWeek    string `json:"day_of_week"   binding:"required"`
	StartTime    string `json:"start_time"    binding:"required"`
	EndTime      string `json:"end_time"      binding:"required"`
	StudentName  string `json:"student_name"  binding:"required,max=100"`
	Subject      string `json:"subject"       binding:"max=100"`
	Note         string `json:"note"          binding:"max=500"`
	ScheduleDate string `json:"schedule_date"` // 2006-01-02，可选
}

// UpdateOccurrenceRequest 更新课程（缺省字段不修改）
type UpdateOccurrenceRequest struct {
	DayOfWeek   *string `json:"day_of_week"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	StudentName *string `json:"student_name" binding:"omitempty,max=100"`
	Subject     *string `json:"subject"      binding:"omitempty,max=100"`
	Note        *string `json:"note"         binding:"omitempty,max=500"`
}

// RequestLeaveRequest 请假请求
type RequestLeaveRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CancelOccurrenceRequest 停课请求
type CancelOccurrenceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SwapOccurrencesRequest 交换两节课的学生
type SwapOccurrencesRequest struct {
	OccurrenceAID string `json:"occurrence_a_id" binding:"required"`
	OccurrenceBID string `json:"occurrence_b_id" binding:"required"`
}

// SelectiveSyncRequest 时间闸选择性同步请求
// SlotIDs 为空时同步模板的全部时段
type SelectiveSyncRequest struct {
	SlotIDs []string `json:"slot_ids"`
}

// ── 同步 / 维护操作结果 ──

// SyncResultResponse 同步结果
type SyncResultResponse struct {
	Instances int `json:"instances"` // 受影响实例数
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"` // 因时间闸或保护标记跳过的时段数
}

// DedupeResultResponse 去重结果
type DedupeResultResponse struct {
	Groups  int `json:"groups"`  // 发现的重复组数
	Removed int `json:"removed"` // 删除的课程数
}

// RepairResultResponse 重复实例修复结果
type RepairResultResponse struct {
	DuplicatesRemoved int `json:"duplicates_removed"` // 删除的重复实例数
	ManualMigrated    int `json:"manual_migrated"`    // 迁移的手动课程数
}
