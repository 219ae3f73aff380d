package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"madrassa/backend/config"
	"madrassa/backend/internal/api/handler"
	"madrassa/backend/internal/api/router"
	"madrassa/backend/internal/job"
	"madrassa/backend/internal/repository"
	"madrassa/backend/internal/service"
	"madrassa/backend/internal/timetable"
	"madrassa/backend/pkg/database"
	"madrassa/backend/pkg/jwt"
	applogger "madrassa/backend/pkg/logger"
	"madrassa/backend/pkg/redis"
)

func main() {
	// 0. .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("MADRASSA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("persistence", cfg.Timetable.Persistence),
		zap.String("occupancy_policy", cfg.Timetable.OccupancyPolicy),
	)

	// 3. 加载目录
	catalog, err := timetable.LoadCatalogFile(cfg.Timetable.CatalogFile)
	if err != nil {
		logger.Fatal("加载目录失败", zap.String("file", cfg.Timetable.CatalogFile), zap.Error(err))
	}

	// 4. 持久层：postgres 模式连接数据库并执行迁移
	var db *gorm.DB
	repo := repository.NewMemoryRepository()
	if cfg.Timetable.UsePostgres() {
		db, err = database.NewDB(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
		repo = repository.NewRepository(db)
		logger.Info("数据库连接成功")
	}

	// 5. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var (
		rdb       *redis.Client
		blacklist service.TokenBlacklist
		deps      = router.Deps{Logger: logger}
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，Token 黑名单与限流将不可用", zap.Error(err))
			rdb = nil
		} else {
			blacklist = rdb
			deps.Blacklist = rdb
			deps.Limiter = rdb
		}
	}

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	svc, err := service.NewService(cfg, catalog, repo, jwtMgr, blacklist, logger)
	if err != nil {
		logger.Fatal("初始化服务失败", zap.Error(err))
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.Timetable.Init(initCtx); err != nil {
		logger.Fatal("加载课表失败", zap.Error(err))
	}
	if err := svc.Auth.EnsureBootstrapAdmin(initCtx); err != nil {
		logger.Fatal("创建初始管理员失败", zap.Error(err))
	}
	initCancel()

	// 7. 冲突巡检（未启用调度时仍用于 /timetable/audit 按需执行）
	auditSpec := cfg.Job.AuditSpec
	if !cfg.Job.AuditEnabled && auditSpec == "" {
		auditSpec = "@every 1h"
	}
	audit, err := job.NewConflictAudit(svc.Timetable, auditSpec, logger.Named("audit"))
	if err != nil {
		logger.Fatal("初始化冲突巡检失败", zap.Error(err))
	}
	if cfg.Job.AuditEnabled {
		audit.Start()
	}

	// 8. 初始化路由
	deps.Handler = handler.NewHandler(svc, audit, cfg.Timetable.Persistence)
	deps.JWT = jwtMgr
	engine := router.Setup(cfg, deps)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	wait := cfg.Server.ShutdownWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if cfg.Job.AuditEnabled {
		audit.Stop(ctx)
	}

	if db != nil {
		if err := database.Close(db); err != nil {
			logger.Warn("关闭数据库连接失败", zap.Error(err))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("服务器已关闭")
}
