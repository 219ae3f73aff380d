package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"madrassa/backend/config"
	"madrassa/backend/internal/api/handler"
	"madrassa/backend/internal/api/middleware"
	"madrassa/backend/internal/model"
	"madrassa/backend/pkg/jwt"
)

// Deps 路由依赖；Blacklist 与 Limiter 在未启用 Redis 时为 nil
type Deps struct {
	Handler   *handler.Handler
	JWT       *jwt.Manager
	Blacklist middleware.TokenChecker
	Limiter   middleware.Limiter
	Logger    *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	h := d.Handler

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", h.Health.Health)

	writeLimit := middleware.RateLimit(d.Limiter, cfg.Server.RateLimit, time.Minute)
	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", writeLimit, h.Auth.Login)
			auth.POST("/refresh", writeLimit, h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(d.JWT, d.Blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 课表模块
			tt := authorized.Group("/timetable")
			{
				tt.GET("/catalog", h.Timetable.GetCatalog)
				tt.GET("/slots", h.Timetable.ListSlots)
				tt.GET("/slots/:id", h.Timetable.GetSlot)
				tt.GET("/view", h.Timetable.View)
				tt.GET("/conflicts", h.Timetable.ListConflicts)

				tt.POST("/slots", adminOnly, writeLimit, h.Timetable.CreateSlot)
				tt.PUT("/slots/:id", adminOnly, writeLimit, h.Timetable.UpdateSlot)
				tt.DELETE("/slots/:id", adminOnly, writeLimit, h.Timetable.DeleteSlot)
				tt.POST("/import", adminOnly, writeLimit, h.Timetable.Import)
				tt.GET("/audit", adminOnly, h.Timetable.GetAudit)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/timetable", h.Export.ExportTimetable)
			}
		}
	}

	return r
}
