package handler

import (
	"github.com/gin-gonic/gin"

	"madrassa/backend/internal/dto"
	"madrassa/backend/pkg/response"
)

// slotCounter 健康检查只需要槽位数量
type slotCounter interface {
	Len() int
}

// HealthHandler 健康检查
type HealthHandler struct {
	slots       slotCounter
	persistence string
}

// NewHealthHandler 创建 HealthHandler
func NewHealthHandler(slots slotCounter, persistence string) *HealthHandler {
	return &HealthHandler{slots: slots, persistence: persistence}
}

// Health 存活检查
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response.OK(c, dto.HealthResponse{
		Status:      "ok",
		Persistence: h.persistence,
		Slots:       h.slots.Len(),
	})
}
