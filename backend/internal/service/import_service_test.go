package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"madrassa/backend/internal/timetable"
)

func newTestImportService() ImportService {
	return NewImportService(timetable.DefaultCatalog(), zap.NewNop())
}

// buildXLSX 生成第一个工作表为 rows 的 XLSX
func buildXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		ref, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", ref, &row); err != nil {
			t.Fatalf("写入测试行失败: %v", err)
		}
	}
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		t.Fatalf("生成测试 XLSX 失败: %v", err)
	}
	return buf
}

// ════════════════════════════════════════════════════════════
// XLSX
// ════════════════════════════════════════════════════════════

func TestParseXLSX_FrenchHeaders(t *testing.T) {
	buf := buildXLSX(t, [][]interface{}{
		{"Jour", "Heure", "Matière", "Enseignant", "Salle", "Classe"},
		{"Lundi", "8h", "Mathématiques", "Sophie Laurent", "Salle 12", "5A"},
		{"2", "10:00", "Anglais", "Emma Wilson", "Salle 8", "5B"},
		{"samedi", "10:00", "Anglais", "Emma Wilson", "Salle 8", "5B"},
		{},
		{"ven", "11:30", "EPS", "Julien Roux", "Gymnase", "4A"},
		{"Mardi", "09:00", "Latin", "Jean Valjean", "Salle 1", "4A"},
	})

	batch, err := newTestImportService().Parse("cours.xlsx", buf)
	if err != nil {
		t.Fatalf("Parse 失败: %v", err)
	}
	if len(batch.Slots) != 2 {
		t.Fatalf("期望 2 个有效槽位, 实际 %d", len(batch.Slots))
	}

	first := batch.Slots[0]
	if first.Day != 0 || first.Hour != "08:00" || first.Color != "#3B82F6" {
		t.Errorf("第一行解析不符: %+v", first)
	}
	if batch.Slots[1].Day != 2 || batch.Lines[1] != 3 {
		t.Errorf("第二行解析不符: day=%d line=%d", batch.Slots[1].Day, batch.Lines[1])
	}

	wantRows := []int{4, 6, 7} // 空行 5 被跳过
	if len(batch.Rejected) != len(wantRows) {
		t.Fatalf("期望 %d 个拒绝行, 实际 %+v", len(wantRows), batch.Rejected)
	}
	for i, r := range batch.Rejected {
		if r.Row != wantRows[i] {
			t.Errorf("Rejected[%d].Row 期望 %d, 实际 %d", i, wantRows[i], r.Row)
		}
	}
}

func TestParseXLSX_MissingColumn(t *testing.T) {
	buf := buildXLSX(t, [][]interface{}{
		{"day", "hour", "subject", "teacher", "class"},
		{"0", "08:00", "EPS", "Julien Roux", "5A"},
	})

	_, err := newTestImportService().ParseXLSX(buf)
	if !errors.Is(err, ErrImportFailed) || !strings.Contains(err.Error(), "room") {
		t.Errorf("缺少 room 列应返回 ErrImportFailed, 实际 %v", err)
	}
}

func TestParseXLSX_HeaderOnly(t *testing.T) {
	buf := buildXLSX(t, [][]interface{}{
		{"day", "hour", "subject", "teacher", "room", "class"},
	})
	if _, err := newTestImportService().ParseXLSX(buf); !errors.Is(err, ErrImportEmpty) {
		t.Errorf("期望 ErrImportEmpty, 实际 %v", err)
	}
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := newTestImportService().ParseXLSX(strings.NewReader("not a zip"))
	if !errors.Is(err, ErrImportFailed) {
		t.Errorf("期望 ErrImportFailed, 实际 %v", err)
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := newTestImportService().Parse("cours.csv", strings.NewReader("day,hour"))
	if !errors.Is(err, ErrImportUnsupported) {
		t.Errorf("期望 ErrImportUnsupported, 实际 %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// ICS
// ════════════════════════════════════════════════════════════

// 第 1 个事件使用 DESCRIPTION 回退，第 2 个为周六，第 3 个不是整点
const testICSContent = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//FR
BEGIN:VEVENT
UID:a@test
DTSTART:20260908T080000
DTEND:20260908T090000
SUMMARY:Français
LOCATION:Salle 5
DESCRIPTION:Enseignant: Thomas Dubois\nClasse: 4B
END:VEVENT
BEGIN:VEVENT
UID:b@test
DTSTART:20260912T100000
SUMMARY:EPS
LOCATION:Gymnase
X-MADRASSA-TEACHER:Julien Roux
X-MADRASSA-CLASS:5A
END:VEVENT
BEGIN:VEVENT
UID:c@test
DTSTART:20260909T103000
SUMMARY:SVT
LOCATION:Labo 2
X-MADRASSA-TEACHER:Claire Bernard
X-MADRASSA-CLASS:5A
END:VEVENT
END:VCALENDAR
`

func TestParseICS_DescriptionFallbackAndRejections(t *testing.T) {
	batch, err := newTestImportService().Parse("agenda.ics", strings.NewReader(testICSContent))
	if err != nil {
		t.Fatalf("ParseICS 失败: %v", err)
	}
	if len(batch.Slots) != 1 {
		t.Fatalf("期望 1 个有效槽位, 实际 %d", len(batch.Slots))
	}

	s := batch.Slots[0]
	if s.Day != 1 || s.Hour != "08:00" {
		t.Errorf("期望周二 08:00, 实际 %d %s", s.Day, s.Hour)
	}
	if s.Teacher != "Thomas Dubois" || s.Class != "4B" || s.Room != "Salle 5" {
		t.Errorf("DESCRIPTION 回退解析不符: %+v", s)
	}

	if len(batch.Rejected) != 2 || batch.Rejected[0].Row != 2 || batch.Rejected[1].Row != 3 {
		t.Errorf("期望事件 2、3 被拒绝, 实际 %+v", batch.Rejected)
	}
}

func TestParseICS_EmptyCalendar(t *testing.T) {
	content := "BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//Test//Test//FR\nEND:VCALENDAR\n"
	if _, err := newTestImportService().ParseICS(strings.NewReader(content)); !errors.Is(err, ErrImportEmpty) {
		t.Errorf("期望 ErrImportEmpty, 实际 %v", err)
	}
}

// ── 辅助函数 ──

func TestParseDay(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{"4", 4, true},
		{"5", 5, false},
		{"Mercredi", 2, true},
		{" THURSDAY ", 3, true},
		{"ven", 4, true},
		{"dimanche", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDay(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseDay(%q) = %d,%v, 期望 %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeHour(t *testing.T) {
	tests := map[string]string{
		"8:00":  "08:00",
		"8h":    "08:00",
		"08h00": "08:00",
		"14":    "14:00",
		"10:30": "10:30",
		"abc":   "abc",
	}
	for in, want := range tests {
		if got := NormalizeHour(in); got != want {
			t.Errorf("NormalizeHour(%q) = %q, 期望 %q", in, got, want)
		}
	}
}
