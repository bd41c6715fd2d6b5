package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"timetable/backend/internal/dto"
	"timetable/backend/internal/model"
	"timetable/backend/internal/service"
	pkgerrors "timetable/backend/pkg/errors"
	"timetable/backend/pkg/response"
)

// TimetableHandler 课表模板模块 HTTP 处理器
type TimetableHandler struct {
	timetableSvc service.TimetableService
}

// NewTimetableHandler 创建 TimetableHandler
func NewTimetableHandler(timetableSvc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetableSvc: timetableSvc}
}

// ── DTO 转换 ──

func toSlotResponse(slot *model.TemplateSlot) dto.TemplateSlotResponse {
	return dto.TemplateSlotResponse{
		ID:          slot.SlotID,
		TimetableID: slot.TimetableID,
		DayOfWeek:   slot.DayOfWeek,
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
		StudentName: slot.StudentName,
		Subject:     slot.Subject,
		Note:        slot.Note,
	}
}

func toTimetableResponse(timetable *model.Timetable, slots []model.TemplateSlot) dto.TimetableResponse {
	resp := dto.TimetableResponse{
		ID:             timetable.TimetableID,
		Name:           timetable.Name,
		IsWeekly:       timetable.IsWeekly,
		OrganizationID: timetable.OrganizationID,
		OwnerID:        timetable.OwnerID,
		IsActive:       timetable.IsActive,
		CreatedAt:      timetable.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      timetable.UpdatedAt.Format(time.RFC3339),
	}
	for i := range slots {
		resp.Slots = append(resp.Slots, toSlotResponse(&slots[i]))
	}
	return resp
}

// handleTimetableError 统一错误码映射
func handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimetableNotFound):
		response.NotFound(c, 13001, "课表不存在")
	case errors.Is(err, service.ErrSlotNotFound):
		response.NotFound(c, 13002, "模板时段不存在")
	case errors.Is(err, service.ErrSlotTimeConflict):
		response.Conflict(c, 13003, "该时段已存在相同时间的课程")
	case errors.Is(err, service.ErrInvalidDayToken):
		response.BadRequest(c, 13004, "无法识别的星期表示")
	case errors.Is(err, service.ErrInvalidClock):
		response.BadRequest(c, 13005, "时间格式应为 HH:MM")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10006, "数据已被他人修改，请刷新后重试")
	default:
		response.InternalError(c, 10000, "服务器内部错误")
	}
}

// ════════════════════════════════════════════════════════════
// 课表 CRUD
// ════════════════════════════════════════════════════════════

// Create 创建课表模板
// POST /api/v1/timetables
func (h *TimetableHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	timetable, err := h.timetableSvc.CreateTimetable(c.Request.Context(), &req, userID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, toTimetableResponse(timetable, nil))
}

// Get 查询课表（含模板时段）
// GET /api/v1/timetables/:id
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, slots, err := h.timetableSvc.GetTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, toTimetableResponse(timetable, slots))
}

// List 分页列出组织内课表
// GET /api/v1/timetables
func (h *TimetableHandler) List(c *gin.Context) {
	organizationID, ok := MustGetOrganizationID(c)
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	timetables, total, err := h.timetableSvc.ListTimetables(c.Request.Context(), organizationID, &page)
	if err != nil {
		handleTimetableError(c, err)
		return
	}

	list := make([]dto.TimetableResponse, 0, len(timetables))
	for i := range timetables {
		list = append(list, toTimetableResponse(&timetables[i], nil))
	}
	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// Update 更新课表元数据
// PUT /api/v1/timetables/:id
func (h *TimetableHandler) Update(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	timetable, err := h.timetableSvc.UpdateTimetable(c.Request.Context(), c.Param("id"), &req, userID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, toTimetableResponse(timetable, nil))
}

// Delete 软删除课表
// DELETE /api/v1/timetables/:id
func (h *TimetableHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.timetableSvc.DeleteTimetable(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, nil)
}

// ════════════════════════════════════════════════════════════
// 模板时段 CRUD
// ════════════════════════════════════════════════════════════

// CreateSlot 创建模板时段（周课表同步未来实例）
// POST /api/v1/timetables/:id/slots
func (h *TimetableHandler) CreateSlot(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateTemplateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	slot, err := h.timetableSvc.CreateSlot(c.Request.Context(), c.Param("id"), &req, userID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, toSlotResponse(slot))
}

// UpdateSlot 更新模板时段（周课表同步未来实例）
// PUT /api/v1/slots/:id
func (h *TimetableHandler) UpdateSlot(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateTemplateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	slot, err := h.timetableSvc.UpdateSlot(c.Request.Context(), c.Param("id"), &req, userID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, toSlotResponse(slot))
}

// DeleteSlot 删除模板时段（不触发同步）
// DELETE /api/v1/slots/:id
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.timetableSvc.DeleteSlot(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, nil)
}
