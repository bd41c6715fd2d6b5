package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"timetable/backend/config"
	"timetable/backend/internal/dto"
	"timetable/backend/internal/repository"
)

func newOccurrenceTestService(t *testing.T) (*occurrenceService, *syncTestRepos) {
	t.Helper()
	repos := &syncTestRepos{
		timetables: newMockTimetableRepo(),
		slots:      newMockTemplateSlotRepo(),
		instances:  newMockWeeklyInstanceRepo(),
		occs:       newMockOccurrenceRepo(),
	}
	repoAgg := &repository.Repository{
		User:           newMockUserRepo(),
		Timetable:      repos.timetables,
		TemplateSlot:   repos.slots,
		WeeklyInstance: repos.instances,
		Occurrence:     repos.occs,
	}
	svc := NewOccurrenceService(repoAgg, &config.Config{}, zap.NewNop()).(*occurrenceService)
	return svc, repos
}

// ── 手动添加 ──

func TestAddManual(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)

	occ, err := svc.AddManual(context.Background(), instance.InstanceID, &dto.AddManualOccurrenceRequest{
		DayOfWeek:   "周六",
		StartTime:   "9:00",
		EndTime:     "10:00",
		StudentName: "插班生",
		Subject:     "钢琴",
	}, "user-admin")
	if err != nil {
		t.Fatalf("AddManual 失败: %v", err)
	}
	if !occ.IsManualAdded {
		t.Error("手动课程应标记 is_manual_added")
	}
	if occ.TemplateSlotID != nil {
		t.Error("手动课程不应关联模板时段")
	}
	if occ.IsModified {
		t.Error("手动课程不应标记 is_modified")
	}
	if occ.DayOfWeek != 6 {
		t.Errorf("day_of_week = %d, want 6", occ.DayOfWeek)
	}
	if occ.StartTime != "09:00" {
		t.Errorf("start_time = %s, want 09:00（归一化）", occ.StartTime)
	}
	// schedule_date 按周起始日期 + 星期推算
	if !occ.ScheduleDate.Equal(date(2024, 6, 8)) {
		t.Errorf("schedule_date = %v, want 2024-06-08", occ.ScheduleDate)
	}

	t.Run("显式指定日期", func(t *testing.T) {
		occ, err := svc.AddManual(context.Background(), instance.InstanceID, &dto.AddManualOccurrenceRequest{
			DayOfWeek: "7", StartTime: "10:00", EndTime: "11:00",
			StudentName: "补课生", ScheduleDate: "2024-06-09",
		}, "user-admin")
		if err != nil {
			t.Fatalf("AddManual 失败: %v", err)
		}
		if !occ.ScheduleDate.Equal(date(2024, 6, 9)) {
			t.Errorf("schedule_date = %v, want 2024-06-09", occ.ScheduleDate)
		}
	})

	t.Run("非法星期", func(t *testing.T) {
		_, err := svc.AddManual(context.Background(), instance.InstanceID, &dto.AddManualOccurrenceRequest{
			DayOfWeek: "someday", StartTime: "10:00", EndTime: "11:00", StudentName: "x",
		}, "user-admin")
		if !errors.Is(err, ErrInvalidDayToken) {
			t.Errorf("err = %v, want ErrInvalidDayToken", err)
		}
	})

	t.Run("实例不存在", func(t *testing.T) {
		_, err := svc.AddManual(context.Background(), "inst-nope", &dto.AddManualOccurrenceRequest{
			DayOfWeek: "1", StartTime: "10:00", EndTime: "11:00", StudentName: "x",
		}, "user-admin")
		if !errors.Is(err, ErrInstanceNotFound) {
			t.Errorf("err = %v, want ErrInstanceNotFound", err)
		}
	})
}

// ── 更新与漂移 ──

func TestUpdateOccurrenceDrift(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)
	seedSlot(repos, "slot-1", 1, "10:00", "11:00", "李华", "数学")
	occ := seedOccurrence(repos, "occ-1", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	occ.Subject = "数学"

	// 改学生名 → 漂移
	updated, err := svc.Update(context.Background(), "occ-1", &dto.UpdateOccurrenceRequest{
		StudentName: strptr("王伟"),
	}, "user-admin")
	if err != nil {
		t.Fatalf("Update 失败: %v", err)
	}
	if !updated.IsModified {
		t.Error("偏离模板后应标记 is_modified")
	}

	// 改回与模板一致 → 标记清除
	restored, err := svc.Update(context.Background(), "occ-1", &dto.UpdateOccurrenceRequest{
		StudentName: strptr("李华"),
	}, "user-admin")
	if err != nil {
		t.Fatalf("Update 失败: %v", err)
	}
	if restored.IsModified {
		t.Error("改回模板值后 is_modified 应清除")
	}

	t.Run("星期变更重算日期", func(t *testing.T) {
		moved, err := svc.Update(context.Background(), "occ-1", &dto.UpdateOccurrenceRequest{
			DayOfWeek: strptr("周五"),
		}, "user-admin")
		if err != nil {
			t.Fatalf("Update 失败: %v", err)
		}
		if !moved.ScheduleDate.Equal(date(2024, 6, 7)) {
			t.Errorf("schedule_date = %v, want 2024-06-07", moved.ScheduleDate)
		}
		if !moved.IsModified {
			t.Error("星期偏离模板应标记 is_modified")
		}
	})

	t.Run("手动课程不标记漂移", func(t *testing.T) {
		seedOccurrence(repos, "occ-manual", instance.InstanceID, nil, 6, "09:00", "10:00", "插班生", date(2024, 6, 8))
		updated, err := svc.Update(context.Background(), "occ-manual", &dto.UpdateOccurrenceRequest{
			StudentName: strptr("换人"),
		}, "user-admin")
		if err != nil {
			t.Fatalf("Update 失败: %v", err)
		}
		if updated.IsModified {
			t.Error("手动课程永不标记 is_modified")
		}
	})
}

// ── 请假 / 停课 ──

func TestLeaveLifecycle(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)
	seedOccurrence(repos, "occ-1", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	svc.now = func() time.Time { return date(2024, 6, 2) }

	occ, err := svc.RequestLeave(context.Background(), "occ-1", "生病", "user-admin")
	if err != nil {
		t.Fatalf("RequestLeave 失败: %v", err)
	}
	if !occ.IsOnLeave || occ.LeaveReason != "生病" || occ.LeaveRequestedAt == nil {
		t.Errorf("请假状态不完整: %+v", occ)
	}

	t.Run("重复请假被拒", func(t *testing.T) {
		if _, err := svc.RequestLeave(context.Background(), "occ-1", "再请一次", "user-admin"); !errors.Is(err, ErrAlreadyOnLeave) {
			t.Errorf("err = %v, want ErrAlreadyOnLeave", err)
		}
	})

	t.Run("撤销请假", func(t *testing.T) {
		occ, err := svc.CancelLeave(context.Background(), "occ-1", "user-admin")
		if err != nil {
			t.Fatalf("CancelLeave 失败: %v", err)
		}
		if occ.IsOnLeave || occ.LeaveReason != "" || occ.LeaveRequestedAt != nil {
			t.Errorf("请假状态未清除: %+v", occ)
		}
	})

	t.Run("未请假时撤销为空操作", func(t *testing.T) {
		if _, err := svc.CancelLeave(context.Background(), "occ-1", "user-admin"); err != nil {
			t.Errorf("未请假撤销不应报错: %v", err)
		}
	})
}

func TestCancelLifecycle(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)
	seedOccurrence(repos, "occ-1", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	svc.now = func() time.Time { return date(2024, 6, 2) }

	occ, err := svc.Cancel(context.Background(), "occ-1", "假期停课", "user-admin")
	if err != nil {
		t.Fatalf("Cancel 失败: %v", err)
	}
	if !occ.IsCancelled || occ.CancelReason != "假期停课" || occ.CancelledAt == nil {
		t.Errorf("停课状态不完整: %+v", occ)
	}

	restored, err := svc.Restore(context.Background(), "occ-1", "user-admin")
	if err != nil {
		t.Fatalf("Restore 失败: %v", err)
	}
	if restored.IsCancelled || restored.CancelReason != "" || restored.CancelledAt != nil {
		t.Errorf("停课状态未清除: %+v", restored)
	}
}

// ── 交换学生 ──

func TestSwap(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)
	seedSlot(repos, "slot-a", 1, "10:00", "11:00", "李华", "")
	seedSlot(repos, "slot-b", 3, "14:00", "15:00", "王伟", "")
	seedOccurrence(repos, "occ-a", instance.InstanceID, strptr("slot-a"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	seedOccurrence(repos, "occ-b", instance.InstanceID, strptr("slot-b"), 3, "14:00", "15:00", "王伟", date(2024, 6, 5))

	if err := svc.Swap(context.Background(), "occ-a", "occ-b", "user-admin"); err != nil {
		t.Fatalf("Swap 失败: %v", err)
	}

	a, _ := repos.occs.GetByID(context.Background(), "occ-a")
	b, _ := repos.occs.GetByID(context.Background(), "occ-b")
	if a.StudentName != "王伟" || b.StudentName != "李华" {
		t.Errorf("学生未交换: a=%s b=%s", a.StudentName, b.StudentName)
	}
	// 交换后两侧都偏离了各自模板
	if !a.IsModified || !b.IsModified {
		t.Error("交换后双方都应标记 is_modified")
	}
	// 时段字段原地不动
	if a.StartTime != "10:00" || b.StartTime != "14:00" {
		t.Error("交换不应改动时段")
	}

	t.Run("换回后标记清除", func(t *testing.T) {
		if err := svc.Swap(context.Background(), "occ-a", "occ-b", "user-admin"); err != nil {
			t.Fatalf("Swap 失败: %v", err)
		}
		a, _ := repos.occs.GetByID(context.Background(), "occ-a")
		if a.StudentName != "李华" || a.IsModified {
			t.Error("换回模板学生后 is_modified 应清除")
		}
	})
}

// ── 去重 ──

func TestDedupe(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)

	// 三条完全重复（同学生、同时段、同日期），两条各自独立
	seedOccurrence(repos, "occ-003", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	seedOccurrence(repos, "occ-001", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	seedOccurrence(repos, "occ-002", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	seedOccurrence(repos, "occ-other", instance.InstanceID, strptr("slot-2"), 1, "10:00", "11:00", "王伟", date(2024, 6, 3))
	seedOccurrence(repos, "occ-nextday", instance.InstanceID, strptr("slot-3"), 2, "10:00", "11:00", "李华", date(2024, 6, 4))

	result, err := svc.Dedupe(context.Background(), instance.InstanceID)
	if err != nil {
		t.Fatalf("Dedupe 失败: %v", err)
	}
	if result.Groups != 1 || result.Removed != 2 {
		t.Fatalf("结果 = %+v, want groups=1 removed=2", result)
	}

	// 保留 occurrence_id 字典序最小者
	if _, err := repos.occs.GetByID(context.Background(), "occ-001"); err != nil {
		t.Error("字典序最小的课程应保留")
	}
	for _, id := range []string{"occ-002", "occ-003"} {
		if _, err := repos.occs.GetByID(context.Background(), id); err == nil {
			t.Errorf("%s 应被删除", id)
		}
	}
	if _, err := repos.occs.GetByID(context.Background(), "occ-other"); err != nil {
		t.Error("不同学生的课程不应被去重")
	}
	if _, err := repos.occs.GetByID(context.Background(), "occ-nextday"); err != nil {
		t.Error("不同日期的课程不应被去重")
	}

	t.Run("幂等", func(t *testing.T) {
		again, err := svc.Dedupe(context.Background(), instance.InstanceID)
		if err != nil {
			t.Fatalf("二次 Dedupe 失败: %v", err)
		}
		if again.Removed != 0 {
			t.Errorf("二次去重应无删除, got %d", again.Removed)
		}
	})
}

func TestDeleteOccurrence(t *testing.T) {
	svc, repos := newOccurrenceTestService(t)
	_, instance := seedSyncWeek(repos)
	seedOccurrence(repos, "occ-1", instance.InstanceID, nil, 1, "10:00", "11:00", "李华", date(2024, 6, 3))

	if err := svc.Delete(context.Background(), "occ-1"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if _, err := repos.occs.GetByID(context.Background(), "occ-1"); err == nil {
		t.Error("课程应被删除")
	}

	if err := svc.Delete(context.Background(), "occ-1"); !errors.Is(err, ErrOccurrenceNotFound) {
		t.Errorf("err = %v, want ErrOccurrenceNotFound", err)
	}
}
