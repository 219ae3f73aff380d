package timetable

import "fmt"

// ConflictKind 冲突维度
type ConflictKind string

const (
	ConflictTeacher ConflictKind = "teacher"
	ConflictRoom    ConflictKind = "room"
)

// Conflict 同一 (day, hour) 下同一教师或同一教室被多次占用
type Conflict struct {
	Kind    ConflictKind `json:"kind"`
	Day     int          `json:"day"`
	Hour    string       `json:"hour"`
	Target  string       `json:"target"` // 教师名或教室名（取组内第一个槽位的原始写法）
	Message string       `json:"message"`
	SlotIDs []string     `json:"slot_ids"`
}

// Detector 冲突检测器
//
// Identity 决定教师/教室的比较键，nil 时按原始字符串比较。
type Detector struct {
	Identity IdentityFunc
}

// DetectConflicts 按原始字符串比较的冲突检测
func DetectConflicts(slots []ScheduleSlot) []Conflict {
	return Detector{}.Detect(slots)
}

// Detect 对全部槽位（不区分班级）做全量冲突检测
//
// 分组顺序按 (day, hour) 首次出现的顺序；组内先教师冲突、后教室冲突；
// 同一组既有教师冲突又有教室冲突时分别上报，不去重。
func (d Detector) Detect(slots []ScheduleSlot) []Conflict {
	identity := d.Identity
	if identity == nil {
		identity = ExactIdentity
	}

	var order []cellKey
	groups := make(map[cellKey][]ScheduleSlot)
	for _, s := range slots {
		k := s.cell()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	conflicts := make([]Conflict, 0)
	for _, k := range order {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		for _, sub := range subGroups(group, func(s ScheduleSlot) string { return identity(s.Teacher) }) {
			name := sub[0].Teacher
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictTeacher,
				Day:     k.day,
				Hour:    k.hour,
				Target:  name,
				Message: fmt.Sprintf("教师 %s 在同一时段有 %d 节课", name, len(sub)),
				SlotIDs: slotIDs(sub),
			})
		}
		for _, sub := range subGroups(group, func(s ScheduleSlot) string { return identity(s.Room) }) {
			name := sub[0].Room
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictRoom,
				Day:     k.day,
				Hour:    k.hour,
				Target:  name,
				Message: fmt.Sprintf("教室 %s 在同一时段被占用 %d 次", name, len(sub)),
				SlotIDs: slotIDs(sub),
			})
		}
	}
	return conflicts
}

// subGroups 按 key 分组，仅返回成员数 >1 的子组，保持首次出现顺序
func subGroups(group []ScheduleSlot, key func(ScheduleSlot) string) [][]ScheduleSlot {
	var order []string
	byKey := make(map[string][]ScheduleSlot)
	for _, s := range group {
		k := key(s)
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], s)
	}
	var out [][]ScheduleSlot
	for _, k := range order {
		if len(byKey[k]) > 1 {
			out = append(out, byKey[k])
		}
	}
	return out
}

func slotIDs(slots []ScheduleSlot) []string {
	ids := make([]string, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids
}
