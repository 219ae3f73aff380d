package dto

import (
	"time"

	"madrassa/backend/internal/timetable"
)

// ── 课表模块 DTO ──

// SlotRequest 新建/编辑槽位请求，字段与编辑器表单一致；color 由科目决定，不接受输入
type SlotRequest struct {
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
	Class   string `json:"class"`
	Day     *int   `json:"day"`
	Hour    string `json:"hour"`
}

// ToForm 转换为编辑器表单
func (r *SlotRequest) ToForm() timetable.Form {
	return timetable.Form{
		Subject: r.Subject,
		Teacher: r.Teacher,
		Room:    r.Room,
		Class:   r.Class,
		Day:     r.Day,
		Hour:    r.Hour,
	}
}

// SlotMutationResponse 写操作结果
type SlotMutationResponse struct {
	Slot      *timetable.ScheduleSlot  `json:"slot,omitempty"`
	Updated   bool                     `json:"updated"`           // 同 ID 原位替换
	Evicted   []timetable.ScheduleSlot `json:"evicted,omitempty"` // replace 策略下被移除的槽位
	Conflicts int                      `json:"conflicts"`         // 写入后的全局冲突数
}

// DeleteSlotResponse 删除结果；ID 不存在时 Deleted=false
type DeleteSlotResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ConflictListResponse 冲突列表
type ConflictListResponse struct {
	Conflicts []timetable.Conflict `json:"conflicts"`
	Count     int                  `json:"count"`
}

// ViewResponse 班级视图
type ViewResponse struct {
	*timetable.View
	Days          []string `json:"days"`
	Hours         []string `json:"hours"`
	ConflictCount int      `json:"conflict_count"`
}

// ImportRowError 导入时被拒绝的行
type ImportRowError struct {
	Row    int    `json:"row"` // 源文件中的行号（XLSX）或事件序号（ICS），从 1 开始
	Reason string `json:"reason"`
}

// ImportResponse 导入结果
type ImportResponse struct {
	Imported  int              `json:"imported"`
	Rejected  []ImportRowError `json:"rejected"`
	Replaced  bool             `json:"replaced"`
	Conflicts int              `json:"conflicts"`
}

// AuditReport 冲突巡检报告
type AuditReport struct {
	RanAt          time.Time            `json:"ran_at"`
	TotalSlots     int                  `json:"total_slots"`
	TeacherClashes int                  `json:"teacher_clashes"`
	RoomClashes    int                  `json:"room_clashes"`
	Conflicts      []timetable.Conflict `json:"conflicts"`
}
