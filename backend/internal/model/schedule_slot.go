package model

import "madrassa/backend/internal/timetable"

// ScheduleSlot 课表槽位，对应 schedule_slots
//
// Position 记录插入顺序，读取时按其升序还原 Store 顺序；原位替换不改变 Position。
type ScheduleSlot struct {
	SlotID   string `gorm:"type:varchar(64);primaryKey"  json:"slot_id"`
	Position int64  `gorm:"not null;index"               json:"position"`
	Day      int    `gorm:"type:smallint;not null"       json:"day"`
	Hour     string `gorm:"type:varchar(5);not null"     json:"hour"`
	Subject  string `gorm:"type:varchar(100);not null"   json:"subject"`
	Teacher  string `gorm:"type:varchar(100);not null"   json:"teacher"`
	Room     string `gorm:"type:varchar(50);not null"    json:"room"`
	Class    string `gorm:"type:varchar(20);not null"    json:"class"`
	Color    string `gorm:"type:varchar(7);not null"     json:"color"`
	BaseModel
}

// TableName 指定表名
func (ScheduleSlot) TableName() string { return "schedule_slots" }

// ToDomain 转换为引擎使用的槽位
func (m *ScheduleSlot) ToDomain() timetable.ScheduleSlot {
	return timetable.ScheduleSlot{
		ID:      m.SlotID,
		Day:     m.Day,
		Hour:    m.Hour,
		Subject: m.Subject,
		Teacher: m.Teacher,
		Room:    m.Room,
		Class:   m.Class,
		Color:   m.Color,
	}
}

// ScheduleSlotFromDomain 由引擎槽位构造持久化模型
func ScheduleSlotFromDomain(s timetable.ScheduleSlot, position int64) *ScheduleSlot {
	return &ScheduleSlot{
		SlotID:   s.ID,
		Position: position,
		Day:      s.Day,
		Hour:     s.Hour,
		Subject:  s.Subject,
		Teacher:  s.Teacher,
		Room:     s.Room,
		Class:    s.Class,
		Color:    s.Color,
	}
}
