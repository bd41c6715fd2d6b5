package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"timetable/backend/internal/repository"
)

// ── 测试辅助 ──

func setupTestExportService(t *testing.T) (ExportService, *syncTestRepos) {
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
	svc := NewExportService(repoAgg, zap.NewNop())
	return svc, repos
}

// ── ExportInstance 测试 ──

func TestExportInstance_NotFound(t *testing.T) {
	svc, _ := setupTestExportService(t)

	_, _, err := svc.ExportInstance(context.Background(), "inst-nope")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("期望 ErrInstanceNotFound，实际: %v", err)
	}
}

func TestExportInstance_NoOccurrences(t *testing.T) {
	svc, repos := setupTestExportService(t)
	seedSyncWeek(repos)

	_, _, err := svc.ExportInstance(context.Background(), "inst-week23")
	if !errors.Is(err, ErrExportNoOccurrences) {
		t.Errorf("期望 ErrExportNoOccurrences，实际: %v", err)
	}
}

func TestExportInstance_Success(t *testing.T) {
	svc, repos := setupTestExportService(t)
	_, instance := seedSyncWeek(repos)

	occ := seedOccurrence(repos, "occ-1", instance.InstanceID, strptr("slot-1"), 1, "10:00", "11:00", "李华", date(2024, 6, 3))
	occ.Subject = "数学"
	leave := seedOccurrence(repos, "occ-2", instance.InstanceID, strptr("slot-2"), 3, "10:00", "11:00", "王伟", date(2024, 6, 5))
	leave.IsOnLeave = true

	buf, filename, err := svc.ExportInstance(context.Background(), instance.InstanceID)
	if err != nil {
		t.Fatalf("ExportInstance 失败: %v", err)
	}
	if !strings.Contains(filename, "2024-23") {
		t.Errorf("文件名应包含 year_week: %s", filename)
	}
	if buf.Len() == 0 {
		t.Fatal("导出内容为空")
	}

	// 回读校验单元格内容
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("回读 Excel 失败: %v", err)
	}
	defer f.Close()

	// 10:00-11:00 行：周一列 = B3，周三列 = D3
	monCell, _ := f.GetCellValue("课表", "B3")
	if monCell != "李华 (数学)" {
		t.Errorf("周一单元格 = %q, want 李华 (数学)", monCell)
	}
	wedCell, _ := f.GetCellValue("课表", "D3")
	if !strings.Contains(wedCell, "请假") {
		t.Errorf("请假课程应加注状态: %q", wedCell)
	}
}
