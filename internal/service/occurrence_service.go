package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"timetable/backend/config"
	"timetable/backend/internal/dto"
	"timetable/backend/internal/model"
	"timetable/backend/internal/repository"
)

// ── 实例课程模块业务错误 ──

var (
	ErrOccurrenceNotFound  = errors.New("课程不存在")
	ErrAlreadyOnLeave      = errors.New("该课程已处于请假状态")
	ErrInvalidScheduleDate = errors.New("日期格式非法，应为 YYYY-MM-DD")
)

// ── OccurrenceService 接口 ────────────────────────────────
//
// 设计说明：
//   - 手动添加的课程无模板基线（template_slot_id 为空），永不参与
//     漂移判定，也不会被任何同步策略覆盖或删除。
//   - 更新模板关联课程后立即重算 is_modified；改回与模板一致时
//     标记随之清除（漂移是状态而非事件）。
//   - 请假与停课只翻转标记、保留记录；删除是独立的显式操作。
// ─────────────────────────────────────────────────────────────

// OccurrenceService 实例课程业务接口
type OccurrenceService interface {
	// AddManual 向实例手动添加课程
	AddManual(ctx context.Context, instanceID string, req *dto.AddManualOccurrenceRequest, operatorID string) (*model.InstanceOccurrence, error)
	// Update 部分更新课程字段并重算漂移标记
	Update(ctx context.Context, occurrenceID string, req *dto.UpdateOccurrenceRequest, operatorID string) (*model.InstanceOccurrence, error)
	// RequestLeave 课程请假
	RequestLeave(ctx context.Context, occurrenceID string, reason string, operatorID string) (*model.InstanceOccurrence, error)
	// CancelLeave 撤销请假（未请假时为空操作）
	CancelLeave(ctx context.Context, occurrenceID string, operatorID string) (*model.InstanceOccurrence, error)
	// Cancel 停课
	Cancel(ctx context.Context, occurrenceID string, reason string, operatorID string) (*model.InstanceOccurrence, error)
	// Restore 恢复停课课程
	Restore(ctx context.Context, occurrenceID string, operatorID string) (*model.InstanceOccurrence, error)
	// Swap 交换两节课的学生
	Swap(ctx context.Context, occurrenceAID, occurrenceBID string, operatorID string) error
	// Dedupe 清除实例内完全重复的课程（幂等）
	Dedupe(ctx context.Context, instanceID string) (*dto.DedupeResultResponse, error)
	// Delete 删除课程
	Delete(ctx context.Context, occurrenceID string) error
}

type occurrenceService struct {
	repo   *repository.Repository
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewOccurrenceService 创建 OccurrenceService 实例
func NewOccurrenceService(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) OccurrenceService {
	return &occurrenceService{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

func (s *occurrenceService) getOccurrence(ctx context.Context, id string) (*model.InstanceOccurrence, error) {
	occ, err := s.repo.Occurrence.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("查询课程失败: %w", err)
	}
	return occ, nil
}

// refreshDriftFlag 按在库模板重算课程的漂移标记
// 模板时段已删除视为漂移；手动课程（无基线）恒为未漂移
func (s *occurrenceService) refreshDriftFlag(ctx context.Context, occ *model.InstanceOccurrence) error {
	if occ.TemplateSlotID == nil {
		occ.IsModified = false
		return nil
	}
	slot, err := s.repo.TemplateSlot.GetByID(ctx, *occ.TemplateSlotID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("查询模板时段失败: %w", err)
	}
	occ.IsModified = isDrifted(occ, slot, s.cfg.Sync.CompareNote)
	return nil
}

// ════════════════════════════════════════════════════════════
// AddManual — 手动添加课程
// ════════════════════════════════════════════════════════════

func (s *occurrenceService) AddManual(ctx context.Context, instanceID string, req *dto.AddManualOccurrenceRequest, operatorID string) (*model.InstanceOccurrence, error) {
	instance, err := s.repo.WeeklyInstance.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("查询周实例失败: %w", err)
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

	// schedule_date 缺省时按周起始日期 + 星期推算
	scheduleDate := DateForDay(instance.WeekStartDate, dayOfWeek)
	if req.ScheduleDate != "" {
		scheduleDate, err = time.Parse("2006-01-02", req.ScheduleDate)
		if err != nil {
			return nil, ErrInvalidScheduleDate
		}
	}

	occ := &model.InstanceOccurrence{
		WeeklyInstanceID: instance.InstanceID,
		StudentName:      req.StudentName,
		Subject:          req.Subject,
		DayOfWeek:        dayOfWeek,
		StartTime:        normalizeClock(req.StartTime),
		EndTime:          normalizeClock(req.EndTime),
		ScheduleDate:     scheduleDate,
		Note:             req.Note,
		IsManualAdded:    true,
		BaseModel:        model.BaseModel{CreatedBy: &operatorID, UpdatedBy: &operatorID},
	}
	if err := s.repo.Occurrence.Create(ctx, occ); err != nil {
		return nil, fmt.Errorf("创建手动课程失败: %w", err)
	}

	s.logger.Info("手动添加课程",
		zap.String("instance_id", instanceID),
		zap.String("occurrence_id", occ.OccurrenceID),
		zap.String("student", occ.StudentName))
	return occ, nil
}

// ════════════════════════════════════════════════════════════
// Update — 部分更新 + 漂移重算
// ════════════════════════════════════════════════════════════

func (s *occurrenceService) Update(ctx context.Context, occurrenceID string, req *dto.UpdateOccurrenceRequest, operatorID string) (*model.InstanceOccurrence, error) {
	occ, err := s.getOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	dayChanged := false
	if req.DayOfWeek != nil {
		dayOfWeek, err := ParseDayOfWeek(*req.DayOfWeek)
		if err != nil {
			return nil, err
		}
		dayChanged = dayOfWeek != occ.DayOfWeek
		occ.DayOfWeek = dayOfWeek
	}
	if req.StartTime != nil {
		if err := validateClock(*req.StartTime); err != nil {
			return nil, err
		}
		occ.StartTime = normalizeClock(*req.StartTime)
	}
	if req.EndTime != nil {
		if err := validateClock(*req.EndTime); err != nil {
			return nil, err
		}
		occ.EndTime = normalizeClock(*req.EndTime)
	}
	if req.StudentName != nil {
		occ.StudentName = *req.StudentName
	}
	if req.Subject != nil {
		occ.Subject = *req.Subject
	}
	if req.Note != nil {
		occ.Note = *req.Note
	}

	// 星期变更时 schedule_date 跟随周起始日期重算
	if dayChanged {
		instance, err := s.repo.WeeklyInstance.GetByID(ctx, occ.WeeklyInstanceID)
		if err != nil {
			return nil, fmt.Errorf("查询周实例失败: %w", err)
		}
		occ.ScheduleDate = DateForDay(instance.WeekStartDate, occ.DayOfWeek)
	}

	if err := s.refreshDriftFlag(ctx, occ); err != nil {
		return nil, err
	}

	occ.UpdatedBy = &operatorID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		return nil, fmt.Errorf("更新课程失败: %w", err)
	}
	return occ, nil
}

// ── 请假 / 停课 ──

func (s *occurrenceService) RequestLeave(ctx context.Context, occurrenceID string, reason string, operatorID string) (*model.InstanceOccurrence, error) {
	occ, err := s.getOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.IsOnLeave {
		return nil, ErrAlreadyOnLeave
	}

	requestedAt := s.now()
	occ.IsOnLeave = true
	occ.LeaveReason = reason
	occ.LeaveRequestedAt = &requestedAt
	occ.UpdatedBy = &operatorID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		return nil, fmt.Errorf("请假失败: %w", err)
	}

	s.logger.Info("课程请假",
		zap.String("occurrence_id", occurrenceID),
		zap.String("student", occ.StudentName))
	return occ, nil
}

func (s *occurrenceService) CancelLeave(ctx context.Context, occurrenceID string, operatorID string) (*model.InstanceOccurrence, error) {
	occ, err := s.getOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if !occ.IsOnLeave {
		return occ, nil
	}

	occ.IsOnLeave = false
	occ.LeaveReason = ""
	occ.LeaveRequestedAt = nil
	occ.UpdatedBy = &operatorID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		return nil, fmt.Errorf("撤销请假失败: %w", err)
	}
	return occ, nil
}

func (s *occurrenceService) Cancel(ctx context.Context, occurrenceID string, reason string, operatorID string) (*model.InstanceOccurrence, error) {
	occ, err := s.getOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.IsCancelled {
		return occ, nil
	}

	cancelledAt := s.now()
	occ.IsCancelled = true
	occ.CancelReason = reason
	occ.CancelledAt = &cancelledAt
	occ.UpdatedBy = &operatorID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		return nil, fmt.Errorf("停课失败: %w", err)
	}

	s.logger.Info("课程停课",
		zap.String("occurrence_id", occurrenceID),
		zap.String("student", occ.StudentName))
	return occ, nil
}

func (s *occurrenceService) Restore(ctx context.Context, occurrenceID string, operatorID string) (*model.InstanceOccurrence, error) {
	occ, err := s.getOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if !occ.IsCancelled {
		return occ, nil
	}

	occ.IsCancelled = false
	occ.CancelReason = ""
	occ.CancelledAt = nil
	occ.UpdatedBy = &operatorID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		return nil, fmt.Errorf("恢复课程失败: %w", err)
	}
	return occ, nil
}

// ════════════════════════════════════════════════════════════
// Swap — 交换两节课的学生
// ════════════════════════════════════════════════════════════
//
// 只交换 student_name，时段与其余字段原地不动；
// 交换后两侧各自重算漂移标记。

func (s *occurrenceService) Swap(ctx context.Context, occurrenceAID, occurrenceBID string, operatorID string) error {
	occA, err := s.getOccurrence(ctx, occurrenceAID)
	if err != nil {
		return err
	}
	occB, err := s.getOccurrence(ctx, occurrenceBID)
	if err != nil {
		return err
	}

	occA.StudentName, occB.StudentName = occB.StudentName, occA.StudentName

	for _, occ := range []*model.InstanceOccurrence{occA, occB} {
		if err := s.refreshDriftFlag(ctx, occ); err != nil {
			return err
		}
		occ.UpdatedBy = &operatorID
		if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
			return fmt.Errorf("交换课程学生失败: %w", err)
		}
	}

	s.logger.Info("交换课程学生",
		zap.String("occurrence_a", occurrenceAID),
		zap.String("occurrence_b", occurrenceBID))
	return nil
}

// ════════════════════════════════════════════════════════════
// Dedupe — 实例内去重
// ════════════════════════════════════════════════════════════
//
// 分组键 (student, start, end, schedule_date)；每组保留
// occurrence_id 字典序最小者，其余删除。幂等。

func (s *occurrenceService) Dedupe(ctx context.Context, instanceID string) (*dto.DedupeResultResponse, error) {
	occs, err := s.repo.Occurrence.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("查询实例课程失败: %w", err)
	}

	groups := make(map[string][]string)
	for _, occ := range occs {
		key := fmt.Sprintf("%s|%s|%s|%s",
			occ.StudentName,
			normalizeClock(occ.StartTime),
			normalizeClock(occ.EndTime),
			occ.ScheduleDate.Format("2006-01-02"))
		groups[key] = append(groups[key], occ.OccurrenceID)
	}

	result := &dto.DedupeResultResponse{}
	var toDelete []string
	for _, ids := range groups {
		if len(ids) <= 1 {
			continue
		}
		sort.Strings(ids)
		toDelete = append(toDelete, ids[1:]...)
		result.Groups++
	}
	if err := s.repo.Occurrence.BatchDelete(ctx, toDelete); err != nil {
		return nil, fmt.Errorf("删除重复课程失败: %w", err)
	}
	result.Removed = len(toDelete)

	if result.Removed > 0 {
		s.logger.Warn("实例课程去重",
			zap.String("instance_id", instanceID),
			zap.Int("groups", result.Groups),
			zap.Int("removed", result.Removed))
	}
	return result, nil
}

func (s *occurrenceService) Delete(ctx context.Context, occurrenceID string) error {
	if _, err := s.getOccurrence(ctx, occurrenceID); err != nil {
		return err
	}
	if err := s.repo.Occurrence.Delete(ctx, occurrenceID); err != nil {
		return fmt.Errorf("删除课程失败: %w", err)
	}
	return nil
}
