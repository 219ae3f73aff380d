package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"madrassa/backend/internal/service"
	"madrassa/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportTimetable 导出班级课表
// GET /api/v1/export/timetable?class=5A&format=xlsx|ics&week=2026-09-07
func (h *ExportHandler) ExportTimetable(c *gin.Context) {
	class := c.Query("class")
	if class == "" {
		response.BadRequest(c, 10001, "class 不能为空")
		return
	}

	var weekStart time.Time
	if w := c.Query("week"); w != "" {
		t, err := time.Parse("2006-01-02", w)
		if err != nil {
			response.BadRequest(c, 10001, "week 格式应为 YYYY-MM-DD")
			return
		}
		weekStart = t
	}

	file, err := h.exportSvc.Export(class, c.Query("format"), weekStart)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportUnknownClass):
		response.BadRequest(c, 21001, "班级不在目录中")
	case errors.Is(err, service.ErrExportFormat):
		response.BadRequest(c, 10001, "format 仅支持 xlsx 或 ics")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 21002, "生成导出文件失败")
	default:
		response.InternalError(c)
	}
}
