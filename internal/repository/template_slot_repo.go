package repository

import (
	"context"

	"gorm.io/gorm"

	"timetable/backend/internal/model"
)

// TemplateSlotRepository 模板时段数据访问接口
type TemplateSlotRepository interface {
	Create(ctx context.Context, slot *model.TemplateSlot) error
	GetByID(ctx context.Context, id string) (*model.TemplateSlot, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]model.TemplateSlot, error)
	// ExistsTimeKey 检查 (timetable, day, start, end) 时间键是否已被占用；
	// excludeSlotID 非空时排除自身（用于更新场景）
	ExistsTimeKey(ctx context.Context, timetableID string, dayOfWeek int, startTime, endTime, excludeSlotID string) (bool, error)
	Update(ctx context.Context, slot *model.TemplateSlot) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type templateSlotRepo struct {
	db *gorm.DB
}

// NewTemplateSlotRepo 创建 TemplateSlotRepository 实例
func NewTemplateSlotRepo(db *gorm.DB) TemplateSlotRepository {
	return &templateSlotRepo{db: db}
}

func (r *templateSlotRepo) Create(ctx context.Context, slot *model.TemplateSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *templateSlotRepo) GetByID(ctx context.Context, id string) (*model.TemplateSlot, error) {
	var slot model.TemplateSlot
	err := r.db.WithContext(ctx).
		Where("slot_id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *templateSlotRepo) ListByTimetable(ctx context.Context, timetableID string) ([]model.TemplateSlot, error) {
	var slots []model.TemplateSlot
	err := r.db.WithContext(ctx).
		Where("timetable_id = ?", timetableID).
		Order("day_of_week ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

func (r *templateSlotRepo) ExistsTimeKey(ctx context.Context, timetableID string, dayOfWeek int, startTime, endTime, excludeSlotID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&model.TemplateSlot{}).
		Where("timetable_id = ? AND day_of_week = ? AND start_time = ? AND end_time = ?",
			timetableID, dayOfWeek, startTime, endTime)
	if excludeSlotID != "" {
		db = db.Where("slot_id != ?", excludeSlotID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *templateSlotRepo) Update(ctx context.Context, slot *model.TemplateSlot) error {
	return r.db.WithContext(ctx).Save(slot).Error
}

func (r *templateSlotRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.TemplateSlot{}).
		Where("slot_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
