package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"madrassa/backend/internal/model"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "test-user-" + user.Username
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

// ── Mock ScheduleSlotRepository ──

var errMockDB = errors.New("mock: 数据库不可用")

type mockSlotRepo struct {
	rows map[string]model.ScheduleSlot
	fail bool // 为 true 时所有写操作返回 errMockDB

	saves    int
	replaces int
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{rows: make(map[string]model.ScheduleSlot)}
}

func (m *mockSlotRepo) List(_ context.Context) ([]model.ScheduleSlot, error) {
	out := make([]model.ScheduleSlot, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *mockSlotRepo) Save(_ context.Context, slot *model.ScheduleSlot, evictIDs []string) error {
	if m.fail {
		return errMockDB
	}
	m.saves++
	for _, id := range evictIDs {
		delete(m.rows, id)
	}
	m.rows[slot.SlotID] = *slot
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, slotID string) error {
	if m.fail {
		return errMockDB
	}
	delete(m.rows, slotID)
	return nil
}

func (m *mockSlotRepo) ReplaceAll(_ context.Context, slots []model.ScheduleSlot) error {
	if m.fail {
		return errMockDB
	}
	m.replaces++
	m.rows = make(map[string]model.ScheduleSlot, len(slots))
	for _, s := range slots {
		m.rows[s.SlotID] = s
	}
	return nil
}

func (m *mockSlotRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

// ── Fake TokenBlacklist ──

type fakeBlacklist struct {
	mu   sync.Mutex
	jtis map[string]time.Duration
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{jtis: make(map[string]time.Duration)}
}

func (f *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jtis[jti] = ttl
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jtis[jti]
	return ok, nil
}
