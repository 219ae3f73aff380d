package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"madrassa/backend/internal/api/middleware"
	"madrassa/backend/internal/dto"
	"madrassa/backend/internal/service"
	"madrassa/backend/internal/timetable"
	"madrassa/backend/pkg/response"
)

// TimetableHandler 课表模块 Handler
type TimetableHandler struct {
	svc       service.TimetableService
	importSvc service.ImportService
	audit     AuditReporter
}

// NewTimetableHandler 创建 TimetableHandler 实例
func NewTimetableHandler(svc service.TimetableService, importSvc service.ImportService, audit AuditReporter) *TimetableHandler {
	return &TimetableHandler{svc: svc, importSvc: importSvc, audit: audit}
}

// GetCatalog 目录：星期、课时、科目（含颜色）、班级
// GET /api/v1/timetable/catalog
func (h *TimetableHandler) GetCatalog(c *gin.Context) {
	response.OK(c, h.svc.Catalog())
}

// ListSlots 全部槽位（插入顺序）
// GET /api/v1/timetable/slots
func (h *TimetableHandler) ListSlots(c *gin.Context) {
	slots := h.svc.ListSlots()
	response.OKList(c, slots, len(slots))
}

// GetSlot 单个槽位
// GET /api/v1/timetable/slots/:id
func (h *TimetableHandler) GetSlot(c *gin.Context) {
	slot, err := h.svc.GetSlot(c.Param("id"))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, slot)
}

// CreateSlot 新建槽位
// POST /api/v1/timetable/slots
func (h *TimetableHandler) CreateSlot(c *gin.Context) {
	var req dto.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数格式错误")
		return
	}

	resp, err := h.svc.CreateSlot(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, resp)
}

// UpdateSlot 编辑槽位；ID 不存在时返回 updated=false
// PUT /api/v1/timetable/slots/:id
func (h *TimetableHandler) UpdateSlot(c *gin.Context) {
	var req dto.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数格式错误")
		return
	}

	resp, err := h.svc.UpdateSlot(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// DeleteSlot 删除槽位，需 ?confirm=true
// DELETE /api/v1/timetable/slots/:id
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))

	resp, err := h.svc.DeleteSlot(c.Request.Context(), c.Param("id"), confirmed)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// View 班级视图：网格、统计、全局冲突
// GET /api/v1/timetable/view?class=5A
func (h *TimetableHandler) View(c *gin.Context) {
	class := c.Query("class")
	if class == "" {
		response.BadRequest(c, 10001, "class 不能为空")
		return
	}

	resp, err := h.svc.View(class)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// ListConflicts 全部冲突
// GET /api/v1/timetable/conflicts
func (h *TimetableHandler) ListConflicts(c *gin.Context) {
	conflicts := h.svc.Conflicts()
	response.OK(c, dto.ConflictListResponse{Conflicts: conflicts, Count: len(conflicts)})
}

// GetAudit 最近一次冲突巡检报告；尚未执行过时立即执行一次
// GET /api/v1/timetable/audit
func (h *TimetableHandler) GetAudit(c *gin.Context) {
	report := h.audit.LastReport()
	if report == nil {
		report = h.audit.Run()
	}
	response.OK(c, report)
}

// Import 导入 XLSX 或 ICS（multipart, field="file"），按扩展名选择解析器
// POST /api/v1/timetable/import?replace=false
func (h *TimetableHandler) Import(c *gin.Context) {
	replace := false
	if v := c.Query("replace"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, 10001, "replace 必须为布尔值")
			return
		}
		replace = b
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return
		}
		response.BadRequest(c, 10001, "请上传 .xlsx 或 .ics 文件（字段 file）")
		return
	}
	defer file.Close()

	batch, err := h.importSvc.Parse(header.Filename, file)
	if err != nil {
		handleTimetableError(c, err)
		return
	}

	resp, err := h.svc.ImportSlots(c.Request.Context(), batch, replace)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// handleTimetableError 统一课表模块错误映射
func handleTimetableError(c *gin.Context, err error) {
	var verr *timetable.ValidationError
	var occupied *timetable.OccupiedError

	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20001, "课程信息校验失败", verr.Fields)
	case errors.As(err, &occupied):
		response.Conflict(c, 20002, "该班级在此时段已有课程", occupied.Occupant)
	case errors.Is(err, timetable.ErrCellOccupied):
		response.Conflict(c, 20002, "该班级在此时段已有课程", nil)
	case errors.Is(err, service.ErrDeleteNotConfirmed):
		response.BadRequest(c, 20003, "删除操作需要确认（confirm=true）")
	case errors.Is(err, service.ErrSlotNotFound):
		response.NotFound(c, 20004, "课程不存在")
	case errors.Is(err, service.ErrUnknownClass):
		response.BadRequest(c, 10001, err.Error())
	case errors.Is(err, service.ErrImportFailed),
		errors.Is(err, service.ErrImportEmpty),
		errors.Is(err, service.ErrImportUnsupported):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20005, "导入失败", err.Error())
	case middleware.IsBodyTooLarge(err):
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
