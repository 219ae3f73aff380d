package timetable

// Stats 单个班级的统计
type Stats struct {
	TotalHours     int `json:"total_hours"`
	UniqueSubjects int `json:"unique_subjects"`
	UniqueTeachers int `json:"unique_teachers"`
}

// View 渲染一个班级课表所需的全部数据
type View struct {
	Class     string            `json:"class"`
	Slots     []ScheduleSlot    `json:"slots"`
	Grid      [][]*ScheduleSlot `json:"grid"` // [day][hourIndex]，空格子为 nil
	Stats     Stats             `json:"stats"`
	Conflicts []Conflict        `json:"conflicts"` // 全部班级范围
}

// ConflictCount 全局冲突数
func (v *View) ConflictCount() int { return len(v.Conflicts) }

// FilterByClass 返回属于指定班级的槽位，保持原顺序
func FilterByClass(all []ScheduleSlot, class string) []ScheduleSlot {
	out := make([]ScheduleSlot, 0)
	for _, s := range all {
		if s.Class == class {
			out = append(out, s)
		}
	}
	return out
}

// SlotAt 返回 (day, hour) 上的槽位
//
// 过滤后的集合中同一格子理论上至多一个槽位；若存在多个（allow 策略或历史数据），返回第一个。
func SlotAt(filtered []ScheduleSlot, day int, hour string) (ScheduleSlot, bool) {
	for _, s := range filtered {
		if s.Day == day && s.Hour == hour {
			return s, true
		}
	}
	return ScheduleSlot{}, false
}

// ComputeStats 统计课时数、科目数与教师数
func ComputeStats(filtered []ScheduleSlot, identity IdentityFunc) Stats {
	if identity == nil {
		identity = ExactIdentity
	}
	subjects := make(map[string]struct{})
	teachers := make(map[string]struct{})
	for _, s := range filtered {
		subjects[s.Subject] = struct{}{}
		teachers[identity(s.Teacher)] = struct{}{}
	}
	return Stats{
		TotalHours:     len(filtered),
		UniqueSubjects: len(subjects),
		UniqueTeachers: len(teachers),
	}
}

// BuildGrid 生成 [day][hourIndex] 矩阵
func BuildGrid(catalog *Catalog, filtered []ScheduleSlot) [][]*ScheduleSlot {
	grid := make([][]*ScheduleSlot, DaysPerWeek)
	for d := range grid {
		grid[d] = make([]*ScheduleSlot, len(catalog.Hours))
		for h, label := range catalog.Hours {
			if s, ok := SlotAt(filtered, d, label); ok {
				slot := s
				grid[d][h] = &slot
			}
		}
	}
	return grid
}

// Project 计算某班级的视图；冲突基于未过滤的全部槽位
func Project(catalog *Catalog, detector Detector, all []ScheduleSlot, class string) *View {
	filtered := FilterByClass(all, class)
	return &View{
		Class:     class,
		Slots:     filtered,
		Grid:      BuildGrid(catalog, filtered),
		Stats:     ComputeStats(filtered, detector.Identity),
		Conflicts: detector.Detect(all),
	}
}
