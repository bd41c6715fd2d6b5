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

// ── InstanceService 接口 ──────────────────────────────────
//
// 设计说明：
//   - EnsureInstance 幂等：同一 (课表, ISO 周) 已有实例时原样返回，
//     绝不重建、绝不触碰已有课程；仅在不存在时创建并全量物化。
//   - "当前实例"唯一性由 clear-then-set 两步维护：先清掉该课表的
//     全部 is_current，再置目标实例，避免出现多个当前周。
//   - 读路径（ListOccurrences）对 is_modified 做惰性修复：按在库模板
//     重新判定漂移，与存量标记不一致时落库纠正。
// ─────────────────────────────────────────────────────────────

// InstanceService 周实例业务接口
type InstanceService interface {
	// EnsureInstance 确保 forDate 所在 ISO 周存在实例（幂等）
	EnsureInstance(ctx context.Context, timetableID string, forDate time.Time) (*model.WeeklyInstance, error)
	// EnsureCurrentWeekInstance 确保当前周实例存在并置为当前
	EnsureCurrentWeekInstance(ctx context.Context, timetableID string) (*model.WeeklyInstance, error)
	// EnsureNextWeekInstance 确保下一周实例存在
	EnsureNextWeekInstance(ctx context.Context, timetableID string) (*model.WeeklyInstance, error)
	// SetCurrentInstance 显式将实例置为其课表的当前周
	SetCurrentInstance(ctx context.Context, instanceID string) (*model.WeeklyInstance, error)
	// GetInstance 查询单个实例
	GetInstance(ctx context.Context, instanceID string) (*model.WeeklyInstance, error)
	// ListInstances 列出课表的全部实例
	ListInstances(ctx context.Context, timetableID string) ([]model.WeeklyInstance, error)
	// ListOccurrences 读取实例课程，惰性修复漂移标记；
	// includeLeaves 为 false 时过滤请假与停课课程
	ListOccurrences(ctx context.Context, instanceID string, includeLeaves bool) ([]model.InstanceOccurrence, error)
	// RepairDuplicateInstances 修复同周重复实例（保留最早者并迁移手动课程）
	RepairDuplicateInstances(ctx context.Context, timetableID string) (*dto.RepairResultResponse, error)
}

type instanceService struct {
	repo   *repository.Repository
	syncs  SyncService
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewInstanceService 创建 InstanceService 实例
func NewInstanceService(repo *repository.Repository, syncs SyncService, cfg *config.Config, logger *zap.Logger) InstanceService {
	return &instanceService{repo: repo, syncs: syncs, cfg: cfg, logger: logger, now: time.Now}
}

// ════════════════════════════════════════════════════════════
// EnsureInstance — 幂等生成周实例
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 校验课表存在且为周模板
//   2. (timetable, year_week) 已有实例 → 原样返回
//   3. 否则创建实例并全量物化模板时段

func (s *instanceService) EnsureInstance(ctx context.Context, timetableID string, forDate time.Time) (*model.WeeklyInstance, error) {
	// 1. 校验课表
	timetable, err := s.repo.Timetable.GetByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimetableNotFound
		}
		return nil, fmt.Errorf("查询课表失败: %w", err)
	}
	if !timetable.IsWeekly {
		return nil, ErrNotWeeklyTimetable
	}

	// 2. 幂等命中
	yearWeek := YearWeekKey(forDate)
	existing, err := s.repo.WeeklyInstance.GetByYearWeek(ctx, timetableID, yearWeek)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询周实例失败: %w", err)
	}

	// 3. 创建并物化
	monday, sunday := WeekBounds(forDate)
	instance := &model.WeeklyInstance{
		TimetableID:   timetableID,
		YearWeek:      yearWeek,
		WeekStartDate: monday,
		WeekEndDate:   sunday,
		GeneratedAt:   s.now(),
	}
	if err := s.repo.WeeklyInstance.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("创建周实例失败: %w", err)
	}

	slots, err := s.repo.TemplateSlot.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, fmt.Errorf("查询模板时段失败: %w", err)
	}
	created, err := s.syncs.Materialize(ctx, instance, slots)
	if err != nil {
		return nil, err
	}

	s.logger.Info("周实例已生成",
		zap.String("timetable_id", timetableID),
		zap.String("year_week", yearWeek),
		zap.Int("occurrences", created))
	return instance, nil
}

func (s *instanceService) EnsureCurrentWeekInstance(ctx context.Context, timetableID string) (*model.WeeklyInstance, error) {
	instance, err := s.EnsureInstance(ctx, timetableID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.markCurrent(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *instanceService) EnsureNextWeekInstance(ctx context.Context, timetableID string) (*model.WeeklyInstance, error) {
	return s.EnsureInstance(ctx, timetableID, s.now().AddDate(0, 0, 7))
}

func (s *instanceService) SetCurrentInstance(ctx context.Context, instanceID string) (*model.WeeklyInstance, error) {
	instance, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.markCurrent(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// markCurrent clear-then-set，保证每课表最多一个当前实例
func (s *instanceService) markCurrent(ctx context.Context, instance *model.WeeklyInstance) error {
	if err := s.repo.WeeklyInstance.ClearCurrent(ctx, instance.TimetableID); err != nil {
		return fmt.Errorf("清除当前周标记失败: %w", err)
	}
	if err := s.repo.WeeklyInstance.SetCurrent(ctx, instance.InstanceID); err != nil {
		return fmt.Errorf("设置当前周标记失败: %w", err)
	}
	instance.IsCurrent = true
	return nil
}

func (s *instanceService) GetInstance(ctx context.Context, instanceID string) (*model.WeeklyInstance, error) {
	instance, err := s.repo.WeeklyInstance.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("查询周实例失败: %w", err)
	}
	return instance, nil
}

func (s *instanceService) ListInstances(ctx context.Context, timetableID string) ([]model.WeeklyInstance, error) {
	instances, err := s.repo.WeeklyInstance.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, fmt.Errorf("查询周实例列表失败: %w", err)
	}
	return instances, nil
}

// ════════════════════════════════════════════════════════════
// ListOccurrences — 读路径 + 惰性漂移修复
// ════════════════════════════════════════════════════════════

func (s *instanceService) ListOccurrences(ctx context.Context, instanceID string, includeLeaves bool) ([]model.InstanceOccurrence, error) {
	instance, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	occs, err := s.repo.Occurrence.ListByInstance(ctx, instance.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("查询实例课程失败: %w", err)
	}

	slots, err := s.repo.TemplateSlot.ListByTimetable(ctx, instance.TimetableID)
	if err != nil {
		return nil, fmt.Errorf("查询模板时段失败: %w", err)
	}
	slotByID := make(map[string]*model.TemplateSlot, len(slots))
	for i := range slots {
		slotByID[slots[i].SlotID] = &slots[i]
	}

	result := make([]model.InstanceOccurrence, 0, len(occs))
	for i := range occs {
		occ := &occs[i]

		// 惰性修复：按在库模板重算漂移标记，与存量不一致时落库纠正
		if occ.TemplateSlotID != nil {
			drifted := isDrifted(occ, slotByID[*occ.TemplateSlotID], s.cfg.Sync.CompareNote)
			if drifted != occ.IsModified {
				if err := s.repo.Occurrence.UpdateModifiedFlag(ctx, occ.OccurrenceID, drifted); err != nil {
					return nil, fmt.Errorf("修复漂移标记失败: %w", err)
				}
				occ.IsModified = drifted
			}
		}

		if !includeLeaves && (occ.IsOnLeave || occ.IsCancelled) {
			continue
		}
		result = append(result, *occ)
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// RepairDuplicateInstances — 同周重复实例修复
// ════════════════════════════════════════════════════════════
//
// 唯一约束缺位时期的历史数据可能同周多实例。修复策略：
//   1. 按 year_week 分组，保留 generated_at 最早者（uuid 升序兜底）
//   2. 重复实例中的手动课程迁移到保留实例（合并、不丢失）
//   3. 删除重复实例（非手动课程随实例级联清除）

func (s *instanceService) RepairDuplicateInstances(ctx context.Context, timetableID string) (*dto.RepairResultResponse, error) {
	instances, err := s.repo.WeeklyInstance.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, fmt.Errorf("查询周实例列表失败: %w", err)
	}

	byWeek := make(map[string][]model.WeeklyInstance)
	for _, instance := range instances {
		byWeek[instance.YearWeek] = append(byWeek[instance.YearWeek], instance)
	}

	result := &dto.RepairResultResponse{}
	for yearWeek, group := range byWeek {
		if len(group) <= 1 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].GeneratedAt.Equal(group[j].GeneratedAt) {
				return group[i].GeneratedAt.Before(group[j].GeneratedAt)
			}
			return group[i].InstanceID < group[j].InstanceID
		})
		keeper := group[0]

		for _, dup := range group[1:] {
			occs, err := s.repo.Occurrence.ListByInstance(ctx, dup.InstanceID)
			if err != nil {
				return nil, fmt.Errorf("查询重复实例课程失败: %w", err)
			}
			for i := range occs {
				if !occs[i].IsManualAdded {
					continue
				}
				occs[i].WeeklyInstanceID = keeper.InstanceID
				if err := s.repo.Occurrence.Update(ctx, &occs[i]); err != nil {
					return nil, fmt.Errorf("迁移手动课程失败: %w", err)
				}
				result.ManualMigrated++
			}
			if err := s.repo.WeeklyInstance.Delete(ctx, dup.InstanceID); err != nil {
				return nil, fmt.Errorf("删除重复实例失败: %w", err)
			}
			result.DuplicatesRemoved++
		}

		s.logger.Warn("修复同周重复实例",
			zap.String("timetable_id", timetableID),
			zap.String("year_week", yearWeek),
			zap.Int("duplicates", len(group)-1))
	}

	return result, nil
}
