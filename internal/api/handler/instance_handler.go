package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"timetable/backend/internal/dto"
	"timetable/backend/internal/model"
	"timetable/backend/internal/service"
	"timetable/backend/pkg/response"
)

const excelMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// InstanceHandler 周实例模块 HTTP 处理器
// 覆盖实例生成、课程维护、同步与导出
type InstanceHandler struct {
	instanceSvc   service.InstanceService
	occurrenceSvc service.OccurrenceService
	syncSvc       service.SyncService
	exportSvc     service.ExportService
}

// NewInstanceHandler 创建 InstanceHandler
func NewInstanceHandler(
	instanceSvc service.InstanceService,
	occurrenceSvc service.OccurrenceService,
	syncSvc service.SyncService,
	exportSvc service.ExportService,
) *InstanceHandler {
	return &InstanceHandler{
		instanceSvc:   instanceSvc,
		occurrenceSvc: occurrenceSvc,
		syncSvc:       syncSvc,
		exportSvc:     exportSvc,
	}
}

// ── DTO 转换 ──

func toInstanceResponse(instance *model.WeeklyInstance) dto.WeeklyInstanceResponse {
	resp := dto.WeeklyInstanceResponse{
		ID:            instance.InstanceID,
		TimetableID:   instance.TimetableID,
		YearWeek:      instance.YearWeek,
		WeekStartDate: instance.WeekStartDate.Format("2006-01-02"),
		WeekEndDate:   instance.WeekEndDate.Format("2006-01-02"),
		IsCurrent:     instance.IsCurrent,
		GeneratedAt:   instance.GeneratedAt.Format(time.RFC3339),
	}
	if instance.LastSyncedAt != nil {
		resp.LastSyncedAt = instance.LastSyncedAt.Format(time.RFC3339)
	}
	return resp
}

func toOccurrenceResponse(occ *model.InstanceOccurrence) dto.OccurrenceResponse {
	resp := dto.OccurrenceResponse{
		ID:               occ.OccurrenceID,
		WeeklyInstanceID: occ.WeeklyInstanceID,
		StudentName:      occ.StudentName,
		Subject:          occ.Subject,
		DayOfWeek:        occ.DayOfWeek,
		StartTime:        occ.StartTime,
		EndTime:          occ.EndTime,
		ScheduleDate:     occ.ScheduleDate.Format("2006-01-02"),
		Note:             occ.Note,
		IsManualAdded:    occ.IsManualAdded,
		IsModified:       occ.IsModified,
		IsOnLeave:        occ.IsOnLeave,
		LeaveReason:      occ.LeaveReason,
		IsCancelled:      occ.IsCancelled,
		CancelReason:     occ.CancelReason,
	}
	if occ.TemplateSlotID != nil {
		resp.TemplateSlotID = *occ.TemplateSlotID
	}
	if occ.LeaveRequestedAt != nil {
		resp.LeaveRequestedAt = occ.LeaveRequestedAt.Format(time.RFC3339)
	}
	if occ.CancelledAt != nil {
		resp.CancelledAt = occ.CancelledAt.Format(time.RFC3339)
	}
	return resp
}

// handleInstanceError 统一错误码映射
func handleInstanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimetableNotFound):
		response.NotFound(c, 13001, "课表不存在")
	case errors.Is(err, service.ErrNotWeeklyTimetable):
		response.BadRequest(c, 14001, "课表不是周模板，无法生成或同步周实例")
	case errors.Is(err, service.ErrInstanceNotFound):
		response.NotFound(c, 14002, "周实例不存在")
	case errors.Is(err, service.ErrOccurrenceNotFound):
		response.NotFound(c, 14003, "课程不存在")
	case errors.Is(err, service.ErrAlreadyOnLeave):
		response.Conflict(c, 14004, "该课程已处于请假状态")
	case errors.Is(err, service.ErrInvalidDayToken):
		response.BadRequest(c, 13004, "无法识别的星期表示")
	case errors.Is(err, service.ErrInvalidClock):
		response.BadRequest(c, 13005, "时间格式应为 HH:MM")
	case errors.Is(err, service.ErrInvalidScheduleDate):
		response.BadRequest(c, 14005, "日期格式应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrExportNoOccurrences):
		response.NotFound(c, 14006, "该周实例暂无课程可导出")
	default:
		response.InternalError(c, 10000, "服务器内部错误")
	}
}

// ════════════════════════════════════════════════════════════
// 周实例生成 / 查询
// ════════════════════════════════════════════════════════════

// EnsureCurrentWeek 确保当前周实例存在并置为当前（幂等）
// POST /api/v1/timetables/:id/instances/current
func (h *InstanceHandler) EnsureCurrentWeek(c *gin.Context) {
	instance, err := h.instanceSvc.EnsureCurrentWeekInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toInstanceResponse(instance))
}

// EnsureNextWeek 确保下一周实例存在（幂等）
// POST /api/v1/timetables/:id/instances/next
func (h *InstanceHandler) EnsureNextWeek(c *gin.Context) {
	instance, err := h.instanceSvc.EnsureNextWeekInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toInstanceResponse(instance))
}

// List 列出课表的全部周实例
// GET /api/v1/timetables/:id/instances
func (h *InstanceHandler) List(c *gin.Context) {
	instances, err := h.instanceSvc.ListInstances(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	list := make([]dto.WeeklyInstanceResponse, 0, len(instances))
	for i := range instances {
		list = append(list, toInstanceResponse(&instances[i]))
	}
	response.OK(c, list)
}

// Get 查询单个周实例
// GET /api/v1/instances/:id
func (h *InstanceHandler) Get(c *gin.Context) {
	instance, err := h.instanceSvc.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toInstanceResponse(instance))
}

// SetCurrent 显式将实例置为其课表的当前周
// PUT /api/v1/instances/:id/current
func (h *InstanceHandler) SetCurrent(c *gin.Context) {
	instance, err := h.instanceSvc.SetCurrentInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toInstanceResponse(instance))
}

// ListOccurrences 读取实例课程
// GET /api/v1/instances/:id/occurrences?include_leaves=true
func (h *InstanceHandler) ListOccurrences(c *gin.Context) {
	includeLeaves := c.Query("include_leaves") == "true"
	occs, err := h.instanceSvc.ListOccurrences(c.Request.Context(), c.Param("id"), includeLeaves)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	list := make([]dto.OccurrenceResponse, 0, len(occs))
	for i := range occs {
		list = append(list, toOccurrenceResponse(&occs[i]))
	}
	response.OK(c, list)
}

// ════════════════════════════════════════════════════════════
// 同步 / 维护操作
// ════════════════════════════════════════════════════════════

// FullSync 全量覆盖同步单个实例
// POST /api/v1/instances/:id/sync
func (h *InstanceHandler) FullSync(c *gin.Context) {
	result, err := h.syncSvc.FullOverrideSync(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, result)
}

// SelectiveSync 对当前及未来实例做时间闸选择性同步
// POST /api/v1/timetables/:id/sync
func (h *InstanceHandler) SelectiveSync(c *gin.Context) {
	// 空请求体等价于同步全部时段
	var req dto.SelectiveSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.syncSvc.SelectiveFutureSync(c.Request.Context(), c.Param("id"), req.SlotIDs)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, result)
}

// RepairDuplicates 修复同周重复实例
// POST /api/v1/timetables/:id/instances/repair
func (h *InstanceHandler) RepairDuplicates(c *gin.Context) {
	result, err := h.instanceSvc.RepairDuplicateInstances(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, result)
}

// Dedupe 清除实例内完全重复的课程
// POST /api/v1/instances/:id/dedupe
func (h *InstanceHandler) Dedupe(c *gin.Context) {
	result, err := h.occurrenceSvc.Dedupe(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, result)
}

// Export 导出周实例为 Excel
// GET /api/v1/instances/:id/export
func (h *InstanceHandler) Export(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleInstanceError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", excelMIME)
	c.Data(http.StatusOK, excelMIME, buf.Bytes())
}

// ════════════════════════════════════════════════════════════
// 实例课程操作
// ════════════════════════════════════════════════════════════

// AddManualOccurrence 手动添加课程
// POST /api/v1/instances/:id/occurrences
func (h *InstanceHandler) AddManualOccurrence(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.AddManualOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	occ, err := h.occurrenceSvc.AddManual(c.Request.Context(), c.Param("id"), &req, userID)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.Created(c, toOccurrenceResponse(occ))
}

// UpdateOccurrence 部分更新课程字段
// PUT /api/v1/occurrences/:id
func (h *InstanceHandler) UpdateOccurrence(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	occ, err := h.occurrenceSvc.Update(c.Request.Context(), c.Param("id"), &req, userID)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toOccurrenceResponse(occ))
}

// RequestLeave 课程请假
// POST /api/v1/occurrences/:id/leave
func (h *InstanceHandler) RequestLeave(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RequestLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	occ, err := h.occurrenceSvc.RequestLeave(c.Request.Context(), c.Param("id"), req.Reason, userID)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toOccurrenceResponse(occ))
}

// CancelLeave 撤销请假
// DELETE /api/v1/occurrences/:id/leave
func (h *InstanceHandler) CancelLeave(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	occ, err := h.occurrenceSvc.CancelLeave(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toOccurrenceResponse(occ))
}

// CancelOccurrence 停课
// POST /api/v1/occurrences/:id/cancel
func (h *InstanceHandler) CancelOccurrence(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CancelOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	occ, err := h.occurrenceSvc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, userID)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toOccurrenceResponse(occ))
}

// RestoreOccurrence 恢复停课课程
// POST /api/v1/occurrences/:id/restore
func (h *InstanceHandler) RestoreOccurrence(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	occ, err := h.occurrenceSvc.Restore(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, toOccurrenceResponse(occ))
}

// SwapOccurrences 交换两节课的学生
// POST /api/v1/occurrences/swap
func (h *InstanceHandler) SwapOccurrences(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SwapOccurrencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.occurrenceSvc.Swap(c.Request.Context(), req.OccurrenceAID, req.OccurrenceBID, userID); err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, nil)
}

// DeleteOccurrence 删除课程
// DELETE /api/v1/occurrences/:id
func (h *InstanceHandler) DeleteOccurrence(c *gin.Context) {
	if err := h.occurrenceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleInstanceError(c, err)
		return
	}
	response.OK(c, nil)
}
