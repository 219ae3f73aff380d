package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"madrassa/backend/config"
	"madrassa/backend/internal/dto"
	"madrassa/backend/internal/model"
	"madrassa/backend/internal/repository"
	"madrassa/backend/internal/timetable"
)

// ── 课表模块业务错误 ──

var (
	ErrSlotNotFound       = errors.New("课程不存在")
	ErrDeleteNotConfirmed = errors.New("删除操作需要确认")
	ErrUnknownClass       = errors.New("班级不在目录中")
	ErrPersistFailed      = errors.New("课表持久化失败")
)

// ── TimetableService 接口 ──────────────────────────────────
//
// 设计说明：
//   - 内存中的 timetable.Store 是唯一权威数据，读写由 RWMutex 串行化。
//   - postgres 模式下每次写操作同步落库；落库失败时 Store 回滚到写前状态。
//   - 冲突检测不阻止保存，只在读取时计算并呈现。
// ─────────────────────────────────────────────────────────────

// TimetableService 课表模块业务接口
type TimetableService interface {
	// Init 从持久层加载槽位；库为空且开启 seed_demo 时写入演示数据
	Init(ctx context.Context) error
	Catalog() *timetable.Catalog
	ListSlots() []timetable.ScheduleSlot
	GetSlot(id string) (timetable.ScheduleSlot, error)
	CreateSlot(ctx context.Context, req *dto.SlotRequest) (*dto.SlotMutationResponse, error)
	// UpdateSlot 编辑已有槽位；ID 不存在时为空操作，返回 Updated=false
	UpdateSlot(ctx context.Context, id string, req *dto.SlotRequest) (*dto.SlotMutationResponse, error)
	// DeleteSlot 删除槽位；confirmed=false 时返回 ErrDeleteNotConfirmed，ID 不存在时为空操作
	DeleteSlot(ctx context.Context, id string, confirmed bool) (*dto.DeleteSlotResponse, error)
	View(class string) (*dto.ViewResponse, error)
	Conflicts() []timetable.Conflict
	// ImportSlots 批量导入；replace=true 时先清空
	ImportSlots(ctx context.Context, batch *ImportBatch, replace bool) (*dto.ImportResponse, error)
	Len() int
}

type timetableService struct {
	mu        sync.RWMutex
	store     *timetable.Store
	validator *timetable.FormValidator
	detector  timetable.Detector
	catalog   *timetable.Catalog

	repo      *repository.Repository
	positions map[string]int64
	nextPos   int64
	seedDemo  bool
	newID     func() string

	logger *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
//
// repo.Slot 为 nil 时为纯内存模式。
func NewTimetableService(
	cfg *config.TimetableConfig,
	catalog *timetable.Catalog,
	repo *repository.Repository,
	logger *zap.Logger,
) (TimetableService, error) {
	policy, err := timetable.ParseOccupancyPolicy(cfg.OccupancyPolicy)
	if err != nil {
		return nil, err
	}

	detector := timetable.Detector{}
	if cfg.NormalizeIdentity {
		detector.Identity = timetable.NormalizedIdentity
	}

	return &timetableService{
		store:     timetable.NewStore(policy),
		validator: timetable.NewFormValidator(catalog),
		detector:  detector,
		catalog:   catalog,
		repo:      repo,
		positions: make(map[string]int64),
		seedDemo:  cfg.SeedDemo,
		newID:     timetable.NewSlotID,
		logger:    logger,
	}, nil
}

func (s *timetableService) persistent() bool {
	return s.repo != nil && s.repo.Slot != nil
}

// ════════════════════════════════════════════════════════════
// Init 加载
// ════════════════════════════════════════════════════════════

func (s *timetableService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var slots []timetable.ScheduleSlot
	if s.persistent() {
		rows, err := s.repo.Slot.List(ctx)
		if err != nil {
			return fmt.Errorf("加载课表失败: %w", err)
		}
		slots = make([]timetable.ScheduleSlot, 0, len(rows))
		for i := range rows {
			slot := rows[i].ToDomain()
			// 颜色以当前目录为准，目录文件修改后库中的旧颜色需要回写
			if color := s.catalog.ColorOf(slot.Subject); color != slot.Color {
				slot.Color = color
				rows[i].Color = color
				if err := s.repo.Slot.Save(ctx, &rows[i], nil); err != nil {
					s.logger.Warn("回写课程颜色失败", zap.String("slot_id", slot.ID), zap.Error(err))
				}
			}
			slots = append(slots, slot)
			s.positions[rows[i].SlotID] = rows[i].Position
			if rows[i].Position > s.nextPos {
				s.nextPos = rows[i].Position
			}
		}
	}

	if len(slots) == 0 && s.seedDemo {
		slots = timetable.DemoSlots(s.catalog)
		s.store.Load(slots)
		if err := s.persistAll(ctx); err != nil {
			s.store.Reset(nil)
			return err
		}
		s.logger.Info("已写入演示课表", zap.Int("slots", s.store.Len()))
		return nil
	}

	if rejected := s.store.Load(slots); len(rejected) > 0 {
		for _, r := range rejected {
			s.logger.Warn("已持久化的课程违反占用策略，已跳过",
				zap.String("slot_id", r.Slot.ID),
				zap.String("class", r.Slot.Class),
				zap.Int("day", r.Slot.Day),
				zap.String("hour", r.Slot.Hour),
				zap.Error(r.Err),
			)
		}
	}

	s.logger.Info("课表加载完成",
		zap.Int("slots", s.store.Len()),
		zap.Bool("persistent", s.persistent()),
		zap.String("policy", string(s.store.Policy())),
	)
	return nil
}

// ════════════════════════════════════════════════════════════
// 读操作
// ════════════════════════════════════════════════════════════

func (s *timetableService) Catalog() *timetable.Catalog { return s.catalog }

func (s *timetableService) ListSlots() []timetable.ScheduleSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.All()
}

func (s *timetableService) GetSlot(id string) (timetable.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.store.Get(id)
	if !ok {
		return timetable.ScheduleSlot{}, ErrSlotNotFound
	}
	return slot, nil
}

func (s *timetableService) View(class string) (*dto.ViewResponse, error) {
	if !s.catalog.HasClass(class) {
		return nil, ErrUnknownClass
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	view := timetable.Project(s.catalog, s.detector, s.store.All(), class)
	return &dto.ViewResponse{
		View:          view,
		Days:          s.catalog.Days,
		Hours:         s.catalog.Hours,
		ConflictCount: view.ConflictCount(),
	}, nil
}

func (s *timetableService) Conflicts() []timetable.Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector.Detect(s.store.All())
}

func (s *timetableService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Len()
}

// ════════════════════════════════════════════════════════════
// 写操作
// ════════════════════════════════════════════════════════════

func (s *timetableService) newEditor() *timetable.Editor {
	return timetable.NewEditor(s.store, s.validator).WithIDGenerator(s.newID)
}

func (s *timetableService) CreateSlot(ctx context.Context, req *dto.SlotRequest) (*dto.SlotMutationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := -1
	if req.Day != nil {
		day = *req.Day
	}
	editor := s.newEditor()
	editor.OpenCreate(day, req.Hour, req.Class)

	return s.submit(ctx, editor, req.ToForm())
}

func (s *timetableService) UpdateSlot(ctx context.Context, id string, req *dto.SlotRequest) (*dto.SlotMutationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.store.Get(id)
	if !ok {
		s.logger.Info("更新不存在的课程，忽略", zap.String("slot_id", id))
		return &dto.SlotMutationResponse{Updated: false, Conflicts: len(s.detector.Detect(s.store.All()))}, nil
	}

	editor := s.newEditor()
	editor.OpenEdit(existing)
	return s.submit(ctx, editor, req.ToForm())
}

// submit 调用方需持有写锁
func (s *timetableService) submit(ctx context.Context, editor *timetable.Editor, form timetable.Form) (*dto.SlotMutationResponse, error) {
	before := s.store.All()

	slot, res, err := editor.Submit(form)
	if err != nil {
		return nil, err
	}

	if len(res.Evicted) > 0 {
		for _, e := range res.Evicted {
			s.logger.Info("占用策略 replace：移除原课程",
				zap.String("evicted_id", e.ID),
				zap.String("by_id", slot.ID),
				zap.String("class", slot.Class),
				zap.Int("day", slot.Day),
				zap.String("hour", slot.Hour),
			)
		}
	}

	if s.persistent() {
		pos, known := s.positions[slot.ID]
		if !known {
			pos = s.nextPos + 1
		}
		evictIDs := make([]string, 0, len(res.Evicted))
		for _, e := range res.Evicted {
			evictIDs = append(evictIDs, e.ID)
		}
		if err := s.repo.Slot.Save(ctx, model.ScheduleSlotFromDomain(slot, pos), evictIDs); err != nil {
			s.store.Reset(before)
			s.logger.Error("保存课程失败，已回滚", zap.String("slot_id", slot.ID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
		if !known {
			s.nextPos = pos
			s.positions[slot.ID] = pos
		}
		for _, id := range evictIDs {
			delete(s.positions, id)
		}
	}

	return &dto.SlotMutationResponse{
		Slot:      &slot,
		Updated:   res.Updated,
		Evicted:   res.Evicted,
		Conflicts: len(s.detector.Detect(s.store.All())),
	}, nil
}

func (s *timetableService) DeleteSlot(ctx context.Context, id string, confirmed bool) (*dto.DeleteSlotResponse, error) {
	if !confirmed {
		return nil, ErrDeleteNotConfirmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.store.Get(id)
	if !ok {
		return &dto.DeleteSlotResponse{ID: id, Deleted: false}, nil
	}

	before := s.store.All()
	editor := s.newEditor()
	editor.OpenEdit(existing)
	deleted, err := editor.Delete(func(timetable.ScheduleSlot) bool { return confirmed })
	if err != nil {
		return nil, err
	}

	if deleted && s.persistent() {
		if err := s.repo.Slot.Delete(ctx, id); err != nil {
			s.store.Reset(before)
			s.logger.Error("删除课程失败，已回滚", zap.String("slot_id", id), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
		delete(s.positions, id)
	}

	return &dto.DeleteSlotResponse{ID: id, Deleted: deleted}, nil
}

// ════════════════════════════════════════════════════════════
// ImportSlots 批量导入
// ════════════════════════════════════════════════════════════
//
// 逐行按占用策略写入；被拒绝的行与解析阶段的错误一并返回。
// 落库使用 ReplaceAll 在单个事务中写入导入后的完整课表。

func (s *timetableService) ImportSlots(ctx context.Context, batch *ImportBatch, replace bool) (*dto.ImportResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.store.All()
	if replace {
		s.store.Reset(nil)
	}

	slots := make([]timetable.ScheduleSlot, len(batch.Slots))
	for i, slot := range batch.Slots {
		slot.Color = s.catalog.ColorOf(slot.Subject)
		if slot.ID == "" {
			slot.ID = s.newID()
		}
		slots[i] = slot
	}

	rejected := append([]dto.ImportRowError{}, batch.Rejected...)
	for _, r := range s.store.Load(slots) {
		rejected = append(rejected, dto.ImportRowError{
			Row:    batch.lineOf(r.Index),
			Reason: r.Err.Error(),
		})
	}

	if err := s.persistAll(ctx); err != nil {
		s.store.Reset(before)
		return nil, err
	}

	imported := len(slots) - (len(rejected) - len(batch.Rejected))
	s.logger.Info("课表导入完成",
		zap.Int("imported", imported),
		zap.Int("rejected", len(rejected)),
		zap.Bool("replace", replace),
	)

	return &dto.ImportResponse{
		Imported:  imported,
		Rejected:  rejected,
		Replaced:  replace,
		Conflicts: len(s.detector.Detect(s.store.All())),
	}, nil
}

// persistAll 以 Store 当前顺序全量落库并重建 position；调用方需持有写锁
func (s *timetableService) persistAll(ctx context.Context) error {
	if !s.persistent() {
		return nil
	}

	all := s.store.All()
	rows := make([]model.ScheduleSlot, 0, len(all))
	positions := make(map[string]int64, len(all))
	for i, slot := range all {
		pos := int64(i + 1)
		rows = append(rows, *model.ScheduleSlotFromDomain(slot, pos))
		positions[slot.ID] = pos
	}

	if err := s.repo.Slot.ReplaceAll(ctx, rows); err != nil {
		s.logger.Error("全量写入课表失败", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	s.positions = positions
	s.nextPos = int64(len(all))
	return nil
}
