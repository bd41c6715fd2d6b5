package repository

import (
	"context"

	"gorm.io/gorm"

	"timetable/backend/internal/model"
)

// OccurrenceRepository 实例课程数据访问接口
type OccurrenceRepository interface {
	Create(ctx context.Context, occ *model.InstanceOccurrence) error
	BatchCreate(ctx context.Context, occs []model.InstanceOccurrence) error
	GetByID(ctx context.Context, id string) (*model.InstanceOccurrence, error)
	ListByInstance(ctx context.Context, instanceID string) ([]model.InstanceOccurrence, error)
	Update(ctx context.Context, occ *model.InstanceOccurrence) error
	// UpdateModifiedFlag 读路径惰性修复漂移标记的专用更新
	UpdateModifiedFlag(ctx context.Context, id string, isModified bool) error
	Delete(ctx context.Context, id string) error
	BatchDelete(ctx context.Context, ids []string) error
	DeleteNonManualByInstance(ctx context.Context, instanceID string) error
}

type occurrenceRepo struct {
	db *gorm.DB
}

// NewOccurrenceRepo 创建 OccurrenceRepository 实例
func NewOccurrenceRepo(db *gorm.DB) OccurrenceRepository {
	return &occurrenceRepo{db: db}
}

func (r *occurrenceRepo) Create(ctx context.Context, occ *model.InstanceOccurrence) error {
	return r.db.WithContext(ctx).Create(occ).Error
}

func (r *occurrenceRepo) BatchCreate(ctx context.Context, occs []model.InstanceOccurrence) error {
	if len(occs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&occs).Error
}

func (r *occurrenceRepo) GetByID(ctx context.Context, id string) (*model.InstanceOccurrence, error) {
	var occ model.InstanceOccurrence
	err := r.db.WithContext(ctx).
		Where("occurrence_id = ?", id).
		First(&occ).Error
	if err != nil {
		return nil, err
	}
	return &occ, nil
}

func (r *occurrenceRepo) ListByInstance(ctx context.Context, instanceID string) ([]model.InstanceOccurrence, error) {
	var occs []model.InstanceOccurrence
	err := r.db.WithContext(ctx).
		Where("weekly_instance_id = ?", instanceID).
		Order("schedule_date ASC, start_time ASC, occurrence_id ASC").
		Find(&occs).Error
	return occs, err
}

func (r *occurrenceRepo) Update(ctx context.Context, occ *model.InstanceOccurrence) error {
	return r.db.WithContext(ctx).Save(occ).Error
}

func (r *occurrenceRepo) UpdateModifiedFlag(ctx context.Context, id string, isModified bool) error {
	return r.db.WithContext(ctx).
		Model(&model.InstanceOccurrence{}).
		Where("occurrence_id = ?", id).
		Update("is_modified", isModified).Error
}

func (r *occurrenceRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("occurrence_id = ?", id).
		Delete(&model.InstanceOccurrence{}).Error
}

func (r *occurrenceRepo) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("occurrence_id IN ?", ids).
		Delete(&model.InstanceOccurrence{}).Error
}

func (r *occurrenceRepo) DeleteNonManualByInstance(ctx context.Context, instanceID string) error {
	return r.db.WithContext(ctx).
		Where("weekly_instance_id = ? AND is_manual_added = ?", instanceID, false).
		Delete(&model.InstanceOccurrence{}).Error
}
