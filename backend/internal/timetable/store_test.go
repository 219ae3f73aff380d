package timetable

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func slot(id string, day int, hour, teacher, room, class string) ScheduleSlot {
	return ScheduleSlot{ID: id, Day: day, Hour: hour, Subject: "Mathématiques", Teacher: teacher, Room: room, Class: class}
}

func TestStore_Upsert_AppendsNew(t *testing.T) {
	s := NewStore(PolicyReject)
	a := slot("a", 0, "08:00", "X", "R1", "5A")
	b := slot("b", 0, "09:00", "Y", "R2", "5A")

	if _, err := s.Upsert(a); err != nil {
		t.Fatalf("Upsert 应成功: %v", err)
	}
	res, err := s.Upsert(b)
	if err != nil {
		t.Fatalf("Upsert 应成功: %v", err)
	}
	if res.Updated {
		t.Error("新 ID 应为追加而非替换")
	}
	if diff := cmp.Diff([]ScheduleSlot{a, b}, s.All()); diff != "" {
		t.Errorf("顺序不符 (-want +got):\n%s", diff)
	}
}

// 同 ID 第二次 Upsert：只保留一个，内容为新值，位置不变
func TestStore_Upsert_ReplacesInPlace(t *testing.T) {
	s := NewStore(PolicyReject)
	a := slot("a", 0, "08:00", "X", "R1", "5A")
	b := slot("b", 0, "09:00", "Y", "R2", "5A")
	c := slot("c", 1, "09:00", "Z", "R3", "5A")
	s.Load([]ScheduleSlot{a, b, c})

	b2 := b
	b2.Teacher = "Y2"
	b2.Hour = "11:00"
	res, err := s.Upsert(b2)
	if err != nil {
		t.Fatalf("Upsert 应成功: %v", err)
	}
	if !res.Updated {
		t.Error("期望 Updated=true")
	}
	if diff := cmp.Diff([]ScheduleSlot{a, b2, c}, s.All()); diff != "" {
		t.Errorf("原位替换失败 (-want +got):\n%s", diff)
	}
}

func TestStore_Remove_Idempotent(t *testing.T) {
	s := NewStore(PolicyReject)
	a := slot("a", 0, "08:00", "X", "R1", "5A")
	b := slot("b", 0, "09:00", "Y", "R2", "5A")
	s.Load([]ScheduleSlot{a, b})

	if s.Remove("missing") {
		t.Error("删除不存在的 ID 应返回 false")
	}
	if s.Len() != 2 {
		t.Fatalf("删除不存在的 ID 不应改变 Store，实际 Len=%d", s.Len())
	}

	if !s.Remove("a") {
		t.Error("首次删除应返回 true")
	}
	once := s.All()
	s.Remove("a")
	if diff := cmp.Diff(once, s.All()); diff != "" {
		t.Errorf("重复删除应与一次删除效果相同:\n%s", diff)
	}
	if diff := cmp.Diff([]ScheduleSlot{b}, once); diff != "" {
		t.Errorf("删除结果不符:\n%s", diff)
	}
}

func TestStore_All_ReturnsCopy(t *testing.T) {
	s := NewStore(PolicyReject)
	s.Load([]ScheduleSlot{slot("a", 0, "08:00", "X", "R1", "5A")})

	all := s.All()
	all[0].Teacher = "changed"

	got, _ := s.Get("a")
	if got.Teacher != "X" {
		t.Error("All 返回值被修改不应影响 Store")
	}
}

func TestStore_OccupancyPolicies(t *testing.T) {
	first := slot("a", 2, "10:00", "X", "R1", "5A")
	second := slot("b", 2, "10:00", "Y", "R2", "5A")
	otherClass := slot("c", 2, "10:00", "Z", "R3", "4A")

	t.Run("reject", func(t *testing.T) {
		s := NewStore(PolicyReject)
		s.Load([]ScheduleSlot{first, otherClass})
		_, err := s.Upsert(second)
		if !errors.Is(err, ErrCellOccupied) {
			t.Fatalf("期望 ErrCellOccupied，实际: %v", err)
		}
		var occ *OccupiedError
		if !errors.As(err, &occ) || occ.Occupant.ID != "a" {
			t.Errorf("期望占用者为 a，实际: %+v", occ)
		}
		if s.Len() != 2 {
			t.Errorf("拒绝后 Store 不应变化，实际 Len=%d", s.Len())
		}
	})

	t.Run("replace", func(t *testing.T) {
		s := NewStore(PolicyReplace)
		s.Load([]ScheduleSlot{first, otherClass})
		res, err := s.Upsert(second)
		if err != nil {
			t.Fatalf("replace 策略应成功: %v", err)
		}
		if len(res.Evicted) != 1 || res.Evicted[0].ID != "a" {
			t.Errorf("期望移除 a，实际: %+v", res.Evicted)
		}
		if diff := cmp.Diff([]ScheduleSlot{otherClass, second}, s.All()); diff != "" {
			t.Errorf("replace 结果不符:\n%s", diff)
		}
	})

	t.Run("allow", func(t *testing.T) {
		s := NewStore(PolicyAllow)
		s.Load([]ScheduleSlot{first})
		if _, err := s.Upsert(second); err != nil {
			t.Fatalf("allow 策略应成功: %v", err)
		}
		if s.Len() != 2 {
			t.Errorf("期望两个槽位并存，实际 Len=%d", s.Len())
		}
	})

	t.Run("moving own slot is not occupancy", func(t *testing.T) {
		s := NewStore(PolicyReject)
		s.Load([]ScheduleSlot{first})
		moved := first
		moved.Teacher = "W"
		if _, err := s.Upsert(moved); err != nil {
			t.Fatalf("同 ID 更新不应视为占用: %v", err)
		}
	})
}

func TestStore_Load_ReportsRejections(t *testing.T) {
	s := NewStore(PolicyReject)
	rejected := s.Load([]ScheduleSlot{
		slot("a", 0, "08:00", "X", "R1", "5A"),
		slot("b", 0, "08:00", "Y", "R2", "5A"),
		slot("c", 0, "09:00", "Y", "R2", "5A"),
	})
	if len(rejected) != 1 || rejected[0].Index != 1 {
		t.Fatalf("期望第 2 行被拒绝，实际: %+v", rejected)
	}
	if s.Len() != 2 {
		t.Errorf("期望加载 2 个槽位，实际 %d", s.Len())
	}
}

func TestParseOccupancyPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OccupancyPolicy
		wantErr bool
	}{
		{"", PolicyReject, false},
		{"reject", PolicyReject, false},
		{"replace", PolicyReplace, false},
		{"allow", PolicyAllow, false},
		{"last-write-wins", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOccupancyPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOccupancyPolicy(%q) err=%v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOccupancyPolicy(%q)=%q，期望 %q", tt.in, got, tt.want)
		}
	}
}
