package job

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"madrassa/backend/internal/dto"
	"madrassa/backend/internal/timetable"
)

// ConflictSource 巡检读取的数据源，由 service.TimetableService 实现
type ConflictSource interface {
	Conflicts() []timetable.Conflict
	Len() int
}

// ConflictAudit 按 cron 表达式周期性执行全量冲突检测
//
// 检测结果只记录日志并保留最近一次报告，不修改课表。
type ConflictAudit struct {
	source ConflictSource
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last *dto.AuditReport
}

// NewConflictAudit 创建巡检任务；spec 支持标准 5 段表达式与 @every 描述符
func NewConflictAudit(source ConflictSource, spec string, logger *zap.Logger) (*ConflictAudit, error) {
	a := &ConflictAudit{
		source: source,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
	if _, err := a.cron.AddFunc(spec, func() { a.Run() }); err != nil {
		return nil, err
	}
	return a, nil
}

// Start 启动调度（非阻塞）
func (a *ConflictAudit) Start() {
	a.cron.Start()
	a.logger.Info("冲突巡检已启动")
}

// Stop 停止调度，等待正在执行的巡检结束或 ctx 超时
func (a *ConflictAudit) Stop(ctx context.Context) {
	done := a.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		a.logger.Warn("等待冲突巡检结束超时")
	}
}

// Run 立即执行一次巡检并返回报告
func (a *ConflictAudit) Run() *dto.AuditReport {
	conflicts := a.source.Conflicts()
	report := &dto.AuditReport{
		RanAt:      a.now(),
		TotalSlots: a.source.Len(),
		Conflicts:  conflicts,
	}
	for _, c := range conflicts {
		switch c.Kind {
		case timetable.ConflictTeacher:
			report.TeacherClashes++
		case timetable.ConflictRoom:
			report.RoomClashes++
		}
	}

	a.mu.Lock()
	a.last = report
	a.mu.Unlock()

	if len(conflicts) > 0 {
		a.logger.Warn("冲突巡检发现冲突",
			zap.Int("slots", report.TotalSlots),
			zap.Int("teacher_clashes", report.TeacherClashes),
			zap.Int("room_clashes", report.RoomClashes),
		)
	} else {
		a.logger.Info("冲突巡检完成，无冲突", zap.Int("slots", report.TotalSlots))
	}
	return report
}

// LastReport 最近一次报告，从未执行时为 nil
func (a *ConflictAudit) LastReport() *dto.AuditReport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}
