package service

import (
	"go.uber.org/zap"

	"madrassa/backend/config"
	"madrassa/backend/internal/repository"
	"madrassa/backend/internal/timetable"
	"madrassa/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth      AuthService
	Timetable TimetableService
	Import    ImportService
	Export    ExportService
}

// NewService 创建 Service 聚合
//
// blacklist 可为 nil（未启用 Redis）。
func NewService(
	cfg *config.Config,
	catalog *timetable.Catalog,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) (*Service, error) {
	tt, err := NewTimetableService(&cfg.Timetable, catalog, repo, logger.Named("timetable"))
	if err != nil {
		return nil, err
	}
	return &Service{
		Auth:      NewAuthService(cfg, repo, jwtMgr, blacklist, logger.Named("auth")),
		Timetable: tt,
		Import:    NewImportService(catalog, logger.Named("import")),
		Export:    NewExportService(tt, logger.Named("export")),
	}, nil
}
