package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"timetable/backend/config"
	"timetable/backend/internal/dto"
	"timetable/backend/internal/model"
	"timetable/backend/internal/repository"
)

// ── 同步模块业务错误 ──

var (
	ErrTimetableNotFound  = errors.New("课表不存在")
	ErrNotWeeklyTimetable = errors.New("课表不是周模板，无法生成或同步周实例")
	ErrInstanceNotFound   = errors.New("周实例不存在")
)

// ── SyncService 接口 ──────────────────────────────────────
//
// 设计说明：
//   - 三种同步策略共用一个参数化的 reconcile：
//     全量物化 = 删除全部非手动课程后对空集合 reconcile（纯创建）；
//     全量覆盖 = reconcile{deleteStale}，匹配即覆盖，未匹配模板侧创建、
//     实例侧删除；选择性同步 = reconcile{timeGate}，只动未来时段，从不删除。
//   - 匹配键为 (day_of_week, start_time, end_time)，从不按学生名匹配。
//   - 手动添加的课程（is_manual_added）对任何策略都不可见：
//     不参与匹配、不被覆盖、不被删除。
//   - 选择性同步无视 is_modified：时间闸本身就是保护边界，
//     已到期/进行中的课程不会被改动，未来课程跟随模板。
// ─────────────────────────────────────────────────────────────

// SyncService 模板→周实例同步业务接口
type SyncService interface {
	// Materialize 将模板全量物化到实例（删除非手动课程后按模板重建）
	Materialize(ctx context.Context, instance *model.WeeklyInstance, slots []model.TemplateSlot) (int, error)
	// FullOverrideSync 全量覆盖同步单个实例，模板为准
	FullOverrideSync(ctx context.Context, instanceID string) (*dto.SyncResultResponse, error)
	// SelectiveFutureSync 对当前及未来实例做时间闸选择性同步；
	// changedSlotIDs 为空表示全部时段
	SelectiveFutureSync(ctx context.Context, timetableID string, changedSlotIDs []string) (*dto.SyncResultResponse, error)
}

type syncService struct {
	repo   *repository.Repository
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) SyncService {
	return &syncService{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// ── 漂移判定 ──

// isDrifted 判断实例课程是否偏离了模板基线
// template_slot_id 为空（手动/无基线）不构成漂移；模板时段已删除视为漂移
func isDrifted(occ *model.InstanceOccurrence, slot *model.TemplateSlot, compareNote bool) bool {
	if occ.TemplateSlotID == nil {
		return false
	}
	if slot == nil {
		return true
	}
	if occ.StudentName != slot.StudentName ||
		occ.Subject != slot.Subject ||
		occ.DayOfWeek != slot.DayOfWeek ||
		normalizeClock(occ.StartTime) != normalizeClock(slot.StartTime) ||
		normalizeClock(occ.EndTime) != normalizeClock(slot.EndTime) {
		return true
	}
	if compareNote && occ.Note != slot.Note {
		return true
	}
	return false
}

// timeKey (day, start, end) 匹配键，时刻归一化到 HH:MM
func timeKey(dayOfWeek int, startTime, endTime string) string {
	return fmt.Sprintf("%d|%s|%s", dayOfWeek, normalizeClock(startTime), normalizeClock(endTime))
}

// ── reconcile ──

// reconcileOptions 三种同步策略的参数化选项
type reconcileOptions struct {
	// deleteStale 删除模板中已不存在的非手动课程
	deleteStale bool
	// timeGate 非空时只改动严格晚于该时刻的课程
	timeGate *time.Time
	// protectModified 跳过已被手动修改（is_modified）的课程
	protectModified bool
}

type reconcileStats struct {
	created int
	updated int
	deleted int
	skipped int
}

// ════════════════════════════════════════════════════════════
// reconcile — 模板与实例的统一调和
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 读取实例内全部课程，非手动课程按 (day, start, end) 建索引
//   2. 逐模板时段：命中则覆盖（受 timeGate / protectModified 约束），
//      未命中则按时段创建（同样受 timeGate 约束）
//   3. deleteStale 时删除剩余未匹配的非手动课程

func (s *syncService) reconcile(ctx context.Context, instance *model.WeeklyInstance, slots []model.TemplateSlot, opts reconcileOptions) (reconcileStats, error) {
	var stats reconcileStats

	occs, err := s.repo.Occurrence.ListByInstance(ctx, instance.InstanceID)
	if err != nil {
		return stats, fmt.Errorf("读取实例课程失败: %w", err)
	}

	// 1. 非手动课程索引；同键重复时保持列表顺序逐个消耗
	unmatched := make(map[string][]*model.InstanceOccurrence)
	for i := range occs {
		occ := &occs[i]
		if occ.IsManualAdded {
			continue
		}
		key := timeKey(occ.DayOfWeek, occ.StartTime, occ.EndTime)
		unmatched[key] = append(unmatched[key], occ)
	}

	// 2. 逐模板时段调和
	var toCreate []model.InstanceOccurrence
	for i := range slots {
		slot := &slots[i]
		key := timeKey(slot.DayOfWeek, slot.StartTime, slot.EndTime)

		if queue := unmatched[key]; len(queue) > 0 {
			occ := queue[0]
			unmatched[key] = queue[1:]

			if opts.protectModified && occ.IsModified {
				stats.skipped++
				continue
			}
			if opts.timeGate != nil {
				classTime := combineDateTime(occ.ScheduleDate, occ.StartTime)
				if !classTime.After(*opts.timeGate) {
					stats.skipped++
					continue
				}
			}

			relink := occ.TemplateSlotID == nil || *occ.TemplateSlotID != slot.SlotID
			// is_modified 残留 true 时即使字段与模板一致也回写，把标记复位
			if !relink && !occ.IsModified && !isDrifted(occ, slot, s.cfg.Sync.CompareNote) {
				continue
			}

			// 覆盖模板字段，保留请假/停课状态
			occ.TemplateSlotID = &slot.SlotID
			occ.StudentName = slot.StudentName
			occ.Subject = slot.Subject
			occ.Note = slot.Note
			occ.IsModified = false
			if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
				return stats, fmt.Errorf("覆盖实例课程失败: %w", err)
			}
			stats.updated++
			continue
		}

		// 未命中：按模板时段创建
		scheduleDate := DateForDay(instance.WeekStartDate, slot.DayOfWeek)
		if opts.timeGate != nil {
			classTime := combineDateTime(scheduleDate, slot.StartTime)
			if !classTime.After(*opts.timeGate) {
				stats.skipped++
				continue
			}
		}
		slotID := slot.SlotID
		toCreate = append(toCreate, model.InstanceOccurrence{
			WeeklyInstanceID: instance.InstanceID,
			TemplateSlotID:   &slotID,
			StudentName:      slot.StudentName,
			Subject:          slot.Subject,
			DayOfWeek:        slot.DayOfWeek,
			StartTime:        normalizeClock(slot.StartTime),
			EndTime:          normalizeClock(slot.EndTime),
			ScheduleDate:     scheduleDate,
			Note:             slot.Note,
		})
	}
	if err := s.repo.Occurrence.BatchCreate(ctx, toCreate); err != nil {
		return stats, fmt.Errorf("创建实例课程失败: %w", err)
	}
	stats.created = len(toCreate)

	// 3. 清理模板中已不存在的非手动课程
	if opts.deleteStale {
		var staleIDs []string
		for _, queue := range unmatched {
			for _, occ := range queue {
				staleIDs = append(staleIDs, occ.OccurrenceID)
			}
		}
		if err := s.repo.Occurrence.BatchDelete(ctx, staleIDs); err != nil {
			return stats, fmt.Errorf("删除过期实例课程失败: %w", err)
		}
		stats.deleted = len(staleIDs)
	}

	return stats, nil
}

// ════════════════════════════════════════════════════════════
// Materialize — 全量物化
// ════════════════════════════════════════════════════════════

func (s *syncService) Materialize(ctx context.Context, instance *model.WeeklyInstance, slots []model.TemplateSlot) (int, error) {
	if err := s.repo.Occurrence.DeleteNonManualByInstance(ctx, instance.InstanceID); err != nil {
		return 0, fmt.Errorf("清空实例非手动课程失败: %w", err)
	}
	stats, err := s.reconcile(ctx, instance, slots, reconcileOptions{})
	if err != nil {
		return 0, err
	}

	s.logger.Info("周实例全量物化完成",
		zap.String("instance_id", instance.InstanceID),
		zap.String("year_week", instance.YearWeek),
		zap.Int("created", stats.created))
	return stats.created, nil
}

// ════════════════════════════════════════════════════════════
// FullOverrideSync — 全量覆盖同步
// ════════════════════════════════════════════════════════════
//
// 模板为准：匹配即覆盖（含 is_modified 的课程），模板侧多出的创建，
// 实例侧多出的非手动课程删除。幂等：重复执行结果不变。

func (s *syncService) FullOverrideSync(ctx context.Context, instanceID string) (*dto.SyncResultResponse, error) {
	instance, err := s.repo.WeeklyInstance.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("查询周实例失败: %w", err)
	}

	slots, err := s.repo.TemplateSlot.ListByTimetable(ctx, instance.TimetableID)
	if err != nil {
		return nil, fmt.Errorf("查询模板时段失败: %w", err)
	}

	stats, err := s.reconcile(ctx, instance, slots, reconcileOptions{deleteStale: true})
	if err != nil {
		return nil, err
	}

	syncedAt := s.now()
	if err := s.repo.WeeklyInstance.UpdateLastSynced(ctx, instance.InstanceID, syncedAt); err != nil {
		return nil, fmt.Errorf("更新同步时间失败: %w", err)
	}

	s.logger.Info("全量覆盖同步完成",
		zap.String("instance_id", instance.InstanceID),
		zap.String("year_week", instance.YearWeek),
		zap.Int("created", stats.created),
		zap.Int("updated", stats.updated),
		zap.Int("deleted", stats.deleted))

	return &dto.SyncResultResponse{
		Instances: 1,
		Created:   stats.created,
		Updated:   stats.updated,
		Deleted:   stats.deleted,
		Skipped:   stats.skipped,
	}, nil
}

// ════════════════════════════════════════════════════════════
// SelectiveFutureSync — 时间闸选择性同步
// ════════════════════════════════════════════════════════════
//
// 覆盖当前周及之后的所有实例；只改动开课时刻严格晚于当前时刻的课程，
// 从不删除。changedSlotIDs 限定受影响的模板时段。

func (s *syncService) SelectiveFutureSync(ctx context.Context, timetableID string, changedSlotIDs []string) (*dto.SyncResultResponse, error) {
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

	slots, err := s.repo.TemplateSlot.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, fmt.Errorf("查询模板时段失败: %w", err)
	}
	if len(changedSlotIDs) > 0 {
		wanted := make(map[string]struct{}, len(changedSlotIDs))
		for _, id := range changedSlotIDs {
			wanted[id] = struct{}{}
		}
		filtered := slots[:0]
		for _, slot := range slots {
			if _, ok := wanted[slot.SlotID]; ok {
				filtered = append(filtered, slot)
			}
		}
		slots = filtered
	}

	now := s.now()
	instances, err := s.repo.WeeklyInstance.ListFromYearWeek(ctx, timetableID, YearWeekKey(now))
	if err != nil {
		return nil, fmt.Errorf("查询当前及未来实例失败: %w", err)
	}

	result := &dto.SyncResultResponse{Instances: len(instances)}
	for i := range instances {
		stats, err := s.reconcile(ctx, &instances[i], slots, reconcileOptions{timeGate: &now})
		if err != nil {
			return nil, err
		}
		result.Created += stats.created
		result.Updated += stats.updated
		result.Skipped += stats.skipped
	}

	s.logger.Info("选择性同步完成",
		zap.String("timetable_id", timetableID),
		zap.Int("instances", result.Instances),
		zap.Int("slots", len(slots)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))

	return result, nil
}
