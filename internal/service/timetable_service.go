package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"timetable/backend/internal/dto"
	"timetable/backend/internal/model"
	"timetable/backend/internal/repository"
)

// ── 课表模板模块业务错误 ──

var (
	ErrSlotNotFound     = errors.New("模板时段不存在")
	ErrSlotTimeConflict = errors.New("该时段已存在相同时间的课程")
)

// ── TimetableService 接口 ─────────────────────────────────
//
// 设计说明：
//   - 模板时段的 (day_of_week, start_time, end_time) 在同一课表内唯一，
//     写入前仓储层检查，数据库部分唯一索引兜底。
//   - 时段创建 / 更新会触发当前及未来实例的选择性同步，
//     时段删除不触发（实例里的课删不删由用户显式决定）。
//   - 课表元数据更新走乐观锁（version 列），冲突返回 ErrOptimisticLock
//     由上层转 409。
// ─────────────────────────────────────────────────────────────

// TimetableService 课表模板业务接口
type TimetableService interface {
	// CreateTimetable 创建课表模板
	CreateTimetable(ctx context.Context, req *dto.CreateTimetableRequest, ownerID string) (*model.Timetable, error)
	// GetTimetable 查询课表（含模板时段）
	GetTimetable(ctx context.Context, timetableID string) (*model.Timetable, []model.TemplateSlot, error)
	// ListTimetables 分页列出组织内课表
	ListTimetables(ctx context.Context, organizationID string, page *dto.PaginationRequest) ([]model.Timetable, int64, error)
	// UpdateTimetable 更新课表元数据（乐观锁）
	UpdateTimetable(ctx context.Context, timetableID string, req *dto.UpdateTimetableRequest, operatorID string) (*model.Timetable, error)
	// DeleteTimetable 软删除课表
	DeleteTimetable(ctx context.Context, timetableID string, operatorID string) error

	// CreateSlot 创建模板时段并同步未来实例
	CreateSlot(ctx context.Context, timetableID string, req *dto.CreateTemplateSlotRequest, operatorID string) (*model.TemplateSlot, error)
	// UpdateSlot 更新模板时段并同步未来实例
	UpdateSlot(ctx context.Context, slotID string, req *dto.UpdateTemplateSlotRequest, operatorID string) (*model.TemplateSlot, error)
	// DeleteSlot 删除模板时段（不触发同步）
	DeleteSlot(ctx context.Context, slotID string, operatorID string) error
}

type timetableService struct {
	repo   *repository.Repository
	syncs  SyncService
	logger *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(repo *repository.Repository, syncs SyncService, logger *zap.Logger) TimetableService {
	return &timetableService{repo: repo, syncs: syncs, logger: logger}
}

// ════════════════════════════════════════════════════════════
// 课表 CRUD
// ════════════════════════════════════════════════════════════

func (s *timetableService) CreateTimetable(ctx context.Context, req *dto.CreateTimetableRequest, ownerID string) (*model.Timetable, error) {
	isWeekly := true
	if req.IsWeekly != nil {
		isWeekly = *req.IsWeekly
	}
	timetable := &model.Timetable{
		Name:           req.Name,
		IsWeekly:       isWeekly,
		OrganizationID: req.OrganizationID,
		OwnerID:        ownerID,
		IsActive:       true,
	}
	timetable.CreatedBy = &ownerID
	timetable.UpdatedBy = &ownerID
	if err := s.repo.Timetable.Create(ctx, timetable); err != nil {
		return nil, fmt.Errorf("创建课表失败: %w", err)
	}

	s.logger.Info("课表已创建",
		zap.String("timetable_id", timetable.TimetableID),
		zap.String("name", timetable.Name))
	return timetable, nil
}

func (s *timetableService) GetTimetable(ctx context.Context, timetableID string) (*model.Timetable, []model.TemplateSlot, error) {
	timetable, err := s.repo.Timetable.GetByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTimetableNotFound
		}
		return nil, nil, fmt.Errorf("查询课表失败: %w", err)
	}
	slots, err := s.repo.TemplateSlot.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询模板时段失败: %w", err)
	}
	return timetable, slots, nil
}

func (s *timetableService) ListTimetables(ctx context.Context, organizationID string, page *dto.PaginationRequest) ([]model.Timetable, int64, error) {
	timetables, total, err := s.repo.Timetable.ListByOrganization(ctx, organizationID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		return nil, 0, fmt.Errorf("查询课表列表失败: %w", err)
	}
	return timetables, total, nil
}

func (s *timetableService) UpdateTimetable(ctx context.Context, timetableID string, req *dto.UpdateTimetableRequest, operatorID string) (*model.Timetable, error) {
	timetable, err := s.repo.Timetable.GetByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		return nil, fmt.Errorf("查询课表失败: %w", err)
	}

	if req.Name != nil {
		timetable.Name = *req.Name
	}
	if req.IsActive != nil {
		timetable.IsActive = *req.IsActive
	}
	timetable.UpdatedBy = &operatorID

	if err := s.repo.Timetable.Update(ctx, timetable); err != nil {
		return nil, err
	}
	return timetable, nil
}

func (s *timetableService) DeleteTimetable(ctx context.Context, timetableID string, operatorID string) error {
	if _, err := s.repo.Timetable.GetByID(ctx, timetableID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimetableNotFound
		}
		return fmt.Errorf("查询课表失败: %w", err)
	}
	if err := s.repo.Timetable.Delete(ctx, timetableID, operatorID); err != nil {
		return fmt.Errorf("删除课表失败: %w", err)
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 模板时段 CRUD + 同步触发
// ════════════════════════════════════════════════════════════

func (s *timetableService) CreateSlot(ctx context.Context, timetableID string, req *dto.CreateTemplateSlotRequest, operatorID string) (*model.TemplateSlot, error) {
	timetable, err := s.repo.Timetable.GetByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		return nil, fmt.Errorf("查询课表失败: %w", err)
	}

	dayOfWeek, err := ParseDayOfWeek(req.DayOfWeek)
	if err != nil {
		return nil, err
	}
	if err := validateClock(req.StartTime); err != nil {
		return nil, err
	}
	if err := validateClock(req.EndTime); err != nil {
		return nil, err
	}
	startTime := normalizeClock(req.StartTime)
	endTime := normalizeClock(req.EndTime)

	exists, err := s.repo.TemplateSlot.ExistsTimeKey(ctx, timetableID, dayOfWeek, startTime, endTime, "")
	if err != nil {
		return nil, fmt.Errorf("检查时段冲突失败: %w", err)
	}
	if exists {
		return nil, ErrSlotTimeConflict
	}

	slot := &model.TemplateSlot{
		TimetableID: timetableID,
		DayOfWeek:   dayOfWeek,
		StartTime:   startTime,
		EndTime:     endTime,
		StudentName: req.StudentName,
		Subject:     req.Subject,
		Note:        req.Note,
	}
	slot.CreatedBy = &operatorID
	slot.UpdatedBy = &operatorID
	if err := s.repo.TemplateSlot.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("创建模板时段失败: %w", err)
	}

	// 新时段推送到当前及未来实例
	if timetable.IsWeekly {
		if _, err := s.syncs.SelectiveFutureSync(ctx, timetableID, []string{slot.SlotID}); err != nil {
			return nil, fmt.Errorf("同步新时段失败: %w", err)
		}
	}
	return slot, nil
}

func (s *timetableService) UpdateSlot(ctx context.Context, slotID string, req *dto.UpdateTemplateSlotRequest, operatorID string) (*model.TemplateSlot, error) {
	slot, err := s.repo.TemplateSlot.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("查询模板时段失败: %w", err)
	}

	if req.DayOfWeek != nil {
		dayOfWeek, err := ParseDayOfWeek(*req.DayOfWeek)
		if err != nil {
			return nil, err
		}
		slot.DayOfWeek = dayOfWeek
	}
	if req.StartTime != nil {
		if err := validateClock(*req.StartTime); err != nil {
			return nil, err
		}
		slot.StartTime = normalizeClock(*req.StartTime)
	}
	if req.EndTime != nil {
		if err := validateClock(*req.EndTime); err != nil {
			return nil, err
		}
		slot.EndTime = normalizeClock(*req.EndTime)
	}
	if req.StudentName != nil {
		slot.StudentName = *req.StudentName
	}
	if req.Subject != nil {
		slot.Subject = *req.Subject
	}
	if req.Note != nil {
		slot.Note = *req.Note
	}

	exists, err := s.repo.TemplateSlot.ExistsTimeKey(ctx, slot.TimetableID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.SlotID)
	if err != nil {
		return nil, fmt.Errorf("检查时段冲突失败: %w", err)
	}
	if exists {
		return nil, ErrSlotTimeConflict
	}

	slot.UpdatedBy = &operatorID
	if err := s.repo.TemplateSlot.Update(ctx, slot); err != nil {
		return nil, fmt.Errorf("更新模板时段失败: %w", err)
	}

	timetable, err := s.repo.Timetable.GetByID(ctx, slot.TimetableID)
	if err != nil {
		return nil, fmt.Errorf("查询课表失败: %w", err)
	}
	if timetable.IsWeekly {
		if _, err := s.syncs.SelectiveFutureSync(ctx, slot.TimetableID, []string{slot.SlotID}); err != nil {
			return nil, fmt.Errorf("同步时段变更失败: %w", err)
		}
	}
	return slot, nil
}

func (s *timetableService) DeleteSlot(ctx context.Context, slotID string, operatorID string) error {
	if _, err := s.repo.TemplateSlot.GetByID(ctx, slotID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		return fmt.Errorf("查询模板时段失败: %w", err)
	}
	// 模板删除不触碰实例：已物化的课程保留，读路径会标记其漂移
	if err := s.repo.TemplateSlot.Delete(ctx, slotID, operatorID); err != nil {
		return fmt.Errorf("删除模板时段失败: %w", err)
	}
	return nil
}
