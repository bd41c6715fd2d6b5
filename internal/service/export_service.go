package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"timetable/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoOccurrences = errors.New("该周实例暂无课程")
	ErrExportGenerateFail  = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 将单个周实例导出为 Excel (.xlsx)：时间段为行、星期为列
//   - 请假 / 停课课程保留在格内并加注状态，而非隐藏
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportInstance 导出周实例为 Excel
	ExportInstance(ctx context.Context, instanceID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportInstance — 导出周实例为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单 Sheet，标题含课表名与 year_week
//   - 行头：时间段（按 start_time 排序去重）
//   - 列头：周一 ~ 周日
//   - 单元格：学生名 (科目)，请假 /【请假】、停课 /【停课】加注
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportInstance(ctx context.Context, instanceID string) (*bytes.Buffer, string, error) {
	// 1. 查询实例与所属课表
	instance, err := s.repo.WeeklyInstance.GetByID(ctx, instanceID)
	if err != nil {
		return nil, "", ErrInstanceNotFound
	}
	timetableName := instance.TimetableID
	if timetable, err := s.repo.Timetable.GetByID(ctx, instance.TimetableID); err == nil {
		timetableName = timetable.Name
	}

	// 2. 查询课程
	occs, err := s.repo.Occurrence.ListByInstance(ctx, instanceID)
	if err != nil {
		s.logger.Error("查询实例课程失败", zap.Error(err))
		return nil, "", err
	}
	if len(occs) == 0 {
		return nil, "", ErrExportNoOccurrences
	}

	// 3. 构建数据索引: "dow:start:end" → cellTexts，并收集唯一时间段
	type timeRow struct {
		startTime string
		endTime   string
	}
	cellIndex := make(map[string][]string)
	rowSeen := make(map[string]bool)
	var rows []timeRow

	for _, occ := range occs {
		start := normalizeClock(occ.StartTime)
		end := normalizeClock(occ.EndTime)

		cellText := occ.StudentName
		if occ.Subject != "" {
			cellText += " (" + occ.Subject + ")"
		}
		switch {
		case occ.IsCancelled:
			cellText += "【停课】"
		case occ.IsOnLeave:
			cellText += "【请假】"
		}

		key := fmt.Sprintf("%d:%s:%s", occ.DayOfWeek, start, end)
		cellIndex[key] = append(cellIndex[key], cellText)

		rowKey := start + ":" + end
		if !rowSeen[rowKey] {
			rowSeen[rowKey] = true
			rows = append(rows, timeRow{startTime: start, endTime: end})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].startTime != rows[j].startTime {
			return rows[i].startTime < rows[j].startTime
		}
		return rows[i].endTime < rows[j].endTime
	})

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "课表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	dayNames := []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

	// 列宽
	f.SetColWidth(sheetName, "A", "A", 14)
	for i := range dayNames {
		col, _ := excelize.ColumnNumberToName(2 + i)
		f.SetColWidth(sheetName, col, col, 18)
	}

	// 样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s — %s 周课表", timetableName, instance.YearWeek))
	f.MergeCell(sheetName, "A1", cell(colName(len(dayNames)), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头：时间段 + 星期（带具体日期）
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "时间段")
	for i, name := range dayNames {
		date := DateForDay(instance.WeekStartDate, i+1)
		f.SetCellValue(sheetName, cell(colName(1+i), row),
			fmt.Sprintf("%s %s", name, date.Format("01-02")))
	}

	// 数据行
	row = 3
	for _, tr := range rows {
		f.SetCellValue(sheetName, cell("A", row), fmt.Sprintf("%s-%s", tr.startTime, tr.endTime))
		for dow := 1; dow <= 7; dow++ {
			key := fmt.Sprintf("%d:%s:%s", dow, tr.startTime, tr.endTime)
			texts := cellIndex[key]
			if len(texts) == 0 {
				f.SetCellValue(sheetName, cell(colName(dow), row), "-")
				continue
			}
			joined := texts[0]
			for _, t := range texts[1:] {
				joined += "\n" + t
			}
			f.SetCellValue(sheetName, cell(colName(dow), row), joined)
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("课表_%s_%s.xlsx", timetableName, instance.YearWeek)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
