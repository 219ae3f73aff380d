package timetable

import (
	"strings"

	"github.com/google/uuid"
)

// ScheduleSlot 课表中的一个课时：某班级在某天某课时的一节课
type ScheduleSlot struct {
	ID      string `json:"id"`
	Day     int    `json:"day"`  // 0=周一 … 4=周五
	Hour    string `json:"hour"` // "08:00" … "17:00"
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
	Class   string `json:"class"`
	Color   string `json:"color"` // 由科目派生，不接受外部输入
}

// cellKey (day, hour) 组合键
type cellKey struct {
	day  int
	hour string
}

func (s ScheduleSlot) cell() cellKey {
	return cellKey{day: s.Day, hour: s.Hour}
}

// NewSlotID 生成基于时间的槽位 ID（UUIDv7）
func NewSlotID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IdentityFunc 将教师/教室的展示字符串映射为比较键
type IdentityFunc func(string) string

// ExactIdentity 原样比较
func ExactIdentity(s string) string { return s }

// NormalizedIdentity 去首尾空白、折叠内部空白并转小写
// "  Sophie   LAURENT " 与 "sophie laurent" 视为同一人
func NormalizedIdentity(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
