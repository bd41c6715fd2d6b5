package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"timetable/backend/internal/model"
)

// WeeklyInstanceRepository 周实例数据访问接口
type WeeklyInstanceRepository interface {
	Create(ctx context.Context, instance *model.WeeklyInstance) error
	GetByID(ctx context.Context, id string) (*model.WeeklyInstance, error)
	GetByYearWeek(ctx context.Context, timetableID, yearWeek string) (*model.WeeklyInstance, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]model.WeeklyInstance, error)
	// ListFromYearWeek 返回指定 ISO 周及之后的实例（year_week 零填充后可按字典序比较）
	ListFromYearWeek(ctx context.Context, timetableID, fromYearWeek string) ([]model.WeeklyInstance, error)
	// ClearCurrent + SetCurrent 共同维护"每模板最多一个当前实例"，
	// 底层存储无部分唯一约束，因此拆成两步显式调用
	ClearCurrent(ctx context.Context, timetableID string) error
	SetCurrent(ctx context.Context, instanceID string) error
	UpdateLastSynced(ctx context.Context, instanceID string, syncedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type weeklyInstanceRepo struct {
	db *gorm.DB
}

// NewWeeklyInstanceRepo 创建 WeeklyInstanceRepository 实例
func NewWeeklyInstanceRepo(db *gorm.DB) WeeklyInstanceRepository {
	return &weeklyInstanceRepo{db: db}
}

func (r *weeklyInstanceRepo) Create(ctx context.Context, instance *model.WeeklyInstance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

func (r *weeklyInstanceRepo) GetByID(ctx context.Context, id string) (*model.WeeklyInstance, error) {
	var instance model.WeeklyInstance
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", id).
		First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *weeklyInstanceRepo) GetByYearWeek(ctx context.Context, timetableID, yearWeek string) (*model.WeeklyInstance, error) {
	var instance model.WeeklyInstance
	err := r.db.WithContext(ctx).
		Where("timetable_id = ? AND year_week = ?", timetableID, yearWeek).
		Order("generated_at ASC, instance_id ASC").
		First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *weeklyInstanceRepo) ListByTimetable(ctx context.Context, timetableID string) ([]model.WeeklyInstance, error) {
	var instances []model.WeeklyInstance
	err := r.db.WithContext(ctx).
		Where("timetable_id = ?", timetableID).
		Order("year_week ASC, generated_at ASC").
		Find(&instances).Error
	return instances, err
}

func (r *weeklyInstanceRepo) ListFromYearWeek(ctx context.Context, timetableID, fromYearWeek string) ([]model.WeeklyInstance, error) {
	var instances []model.WeeklyInstance
	err := r.db.WithContext(ctx).
		Where("timetable_id = ? AND year_week >= ?", timetableID, fromYearWeek).
		Order("year_week ASC").
		Find(&instances).Error
	return instances, err
}

func (r *weeklyInstanceRepo) ClearCurrent(ctx context.Context, timetableID string) error {
	return r.db.WithContext(ctx).
		Model(&model.WeeklyInstance{}).
		Where("timetable_id = ? AND is_current = ?", timetableID, true).
		Update("is_current", false).Error
}

func (r *weeklyInstanceRepo) SetCurrent(ctx context.Context, instanceID string) error {
	return r.db.WithContext(ctx).
		Model(&model.WeeklyInstance{}).
		Where("instance_id = ?", instanceID).
		Update("is_current", true).Error
}

func (r *weeklyInstanceRepo) UpdateLastSynced(ctx context.Context, instanceID string, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.WeeklyInstance{}).
		Where("instance_id = ?", instanceID).
		Update("last_synced_at", syncedAt).Error
}

func (r *weeklyInstanceRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("instance_id = ?", id).
		Delete(&model.WeeklyInstance{}).Error
}
