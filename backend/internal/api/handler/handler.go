package handler

import (
	"madrassa/backend/internal/dto"
	"madrassa/backend/internal/service"
)

// AuditReporter 冲突巡检报告来源，由 job.ConflictAudit 实现
type AuditReporter interface {
	LastReport() *dto.AuditReport
	Run() *dto.AuditReport
}

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	Timetable *TimetableHandler
	Export    *ExportHandler
	Health    *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, audit AuditReporter, persistence string) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth),
		Timetable: NewTimetableHandler(svc.Timetable, svc.Import, audit),
		Export:    NewExportHandler(svc.Export),
		Health:    NewHealthHandler(svc.Timetable, persistence),
	}
}
