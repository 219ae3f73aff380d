package timetable

import (
	"errors"
	"fmt"
)

var (
	ErrCellOccupied  = errors.New("该班级在此时段已有课程")
	ErrUnknownPolicy = errors.New("未知的占用策略")
)

// OccupancyPolicy 同一班级同一 (day, hour) 已被其他槽位占用时的处理策略
type OccupancyPolicy string

const (
	// PolicyReject 拒绝写入，返回 ErrCellOccupied
	PolicyReject OccupancyPolicy = "reject"
	// PolicyReplace 移除原占用槽位后写入
	PolicyReplace OccupancyPolicy = "replace"
	// PolicyAllow 不检查，两个槽位并存
	PolicyAllow OccupancyPolicy = "allow"
)

// ParseOccupancyPolicy 解析配置中的策略名称，空串视为 reject
func ParseOccupancyPolicy(s string) (OccupancyPolicy, error) {
	switch OccupancyPolicy(s) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyReplace:
		return PolicyReplace, nil
	case PolicyAllow:
		return PolicyAllow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// OccupiedError 携带占用该格子的槽位
type OccupiedError struct {
	Slot     ScheduleSlot
	Occupant ScheduleSlot
}

func (e *OccupiedError) Error() string {
	return fmt.Sprintf("班级 %s 在 %d/%s 已被槽位 %s 占用", e.Slot.Class, e.Slot.Day, e.Slot.Hour, e.Occupant.ID)
}

func (e *OccupiedError) Unwrap() error { return ErrCellOccupied }

// UpsertResult Upsert 的执行结果
type UpsertResult struct {
	Updated bool           // true: 同 ID 原位替换；false: 追加
	Evicted []ScheduleSlot // replace 策略下被移除的槽位
}

// Store 有序的槽位集合，插入顺序即展示与冲突检测的遍历顺序
//
// Store 本身不加锁，由持有者串行化访问。
type Store struct {
	slots  []ScheduleSlot
	policy OccupancyPolicy
}

// NewStore 创建 Store
func NewStore(policy OccupancyPolicy) *Store {
	if policy == "" {
		policy = PolicyReject
	}
	return &Store{policy: policy}
}

// Policy 当前占用策略
func (s *Store) Policy() OccupancyPolicy { return s.policy }

// Upsert 同 ID 存在时原位替换，否则追加到末尾
func (s *Store) Upsert(slot ScheduleSlot) (UpsertResult, error) {
	var res UpsertResult

	if s.policy != PolicyAllow {
		occupants := s.occupants(slot)
		if len(occupants) > 0 {
			if s.policy == PolicyReject {
				return res, &OccupiedError{Slot: slot, Occupant: occupants[0]}
			}
			for _, o := range occupants {
				s.Remove(o.ID)
			}
			res.Evicted = occupants
		}
	}

	if i := s.indexOf(slot.ID); i >= 0 {
		s.slots[i] = slot
		res.Updated = true
		return res, nil
	}
	s.slots = append(s.slots, slot)
	return res, nil
}

// Remove 删除指定 ID 的槽位；不存在时为空操作，返回是否删除
func (s *Store) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.slots = append(s.slots[:i], s.slots[i+1:]...)
	return true
}

// All 返回全部槽位的副本，保持插入顺序
func (s *Store) All() []ScheduleSlot {
	out := make([]ScheduleSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Get 按 ID 查找
func (s *Store) Get(id string) (ScheduleSlot, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.slots[i], true
	}
	return ScheduleSlot{}, false
}

// Len 槽位数量
func (s *Store) Len() int { return len(s.slots) }

// Reset 以给定序列整体替换内容，不做占用检查
func (s *Store) Reset(slots []ScheduleSlot) {
	s.slots = make([]ScheduleSlot, len(slots))
	copy(s.slots, slots)
}

// Rejection 批量加载时被拒绝的槽位
type Rejection struct {
	Index int
	Slot  ScheduleSlot
	Err   error
}

// Load 依次 Upsert，返回被占用策略拒绝的槽位
func (s *Store) Load(slots []ScheduleSlot) []Rejection {
	var rejected []Rejection
	for i, slot := range slots {
		if _, err := s.Upsert(slot); err != nil {
			rejected = append(rejected, Rejection{Index: i, Slot: slot, Err: err})
		}
	}
	return rejected
}

func (s *Store) indexOf(id string) int {
	for i := range s.slots {
		if s.slots[i].ID == id {
			return i
		}
	}
	return -1
}

// occupants 同班级同 (day, hour) 且 ID 不同的槽位
func (s *Store) occupants(slot ScheduleSlot) []ScheduleSlot {
	var out []ScheduleSlot
	for _, o := range s.slots {
		if o.ID != slot.ID && o.Class == slot.Class && o.Day == slot.Day && o.Hour == slot.Hour {
			out = append(out, o)
		}
	}
	return out
}
