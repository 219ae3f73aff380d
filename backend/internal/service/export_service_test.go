package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"madrassa/backend/internal/timetable"
)

// ── 测试辅助 ──

func setupTestExportService(t *testing.T) (ExportService, *timetableService) {
	t.Helper()
	tt, _ := setupTestTimetableService(t, ttOptions{seedDemo: true})
	svc := NewExportService(tt, zap.NewNop()).(*exportService)
	svc.now = func() time.Time { return time.Date(2026, 9, 9, 12, 0, 0, 0, time.UTC) }
	return svc, tt
}

// ── ExportRows ──

func TestExportService_ExportRows_SortedByDayAndHour(t *testing.T) {
	svc, tt := setupTestExportService(t)
	// 插入顺序在末尾，导出时按 (day, hour) 排序
	_, _ = tt.CreateSlot(context.Background(), slotReq("5A", 0, "11:00", "EPS", "Julien Roux", "Gymnase"))

	rows, err := svc.ExportRows("5A")
	if err != nil {
		t.Fatalf("ExportRows 失败: %v", err)
	}
	if len(rows) != 9 {
		t.Fatalf("期望 9 行, 实际 %d", len(rows))
	}
	if rows[2].Day != 0 || rows[2].Hour != "11:00" {
		t.Errorf("第 3 行期望周一 11:00, 实际 %d %s", rows[2].Day, rows[2].Hour)
	}
	if rows[0].DayName != "Lundi" {
		t.Errorf("DayName 期望 Lundi, 实际 %s", rows[0].DayName)
	}
}

func TestExportService_UnknownClass(t *testing.T) {
	svc, _ := setupTestExportService(t)

	if _, err := svc.ExportXLSX("9Z"); !errors.Is(err, ErrExportUnknownClass) {
		t.Errorf("XLSX 期望 ErrExportUnknownClass, 实际 %v", err)
	}
	if _, err := svc.ExportICS("9Z", time.Time{}); !errors.Is(err, ErrExportUnknownClass) {
		t.Errorf("ICS 期望 ErrExportUnknownClass, 实际 %v", err)
	}
}

func TestExportService_UnsupportedFormat(t *testing.T) {
	svc, _ := setupTestExportService(t)
	if _, err := svc.Export("5A", "pdf", time.Time{}); !errors.Is(err, ErrExportFormat) {
		t.Errorf("期望 ErrExportFormat, 实际 %v", err)
	}
}

// ── ExportXLSX ──

func TestExportService_ExportXLSX(t *testing.T) {
	svc, tt := setupTestExportService(t)
	// 制造一个教师冲突
	_, _ = tt.CreateSlot(context.Background(), slotReq("4A", 0, "08:00", "Mathématiques", "Sophie Laurent", "Salle 3"))

	file, err := svc.Export("5A", FormatXLSX, time.Time{})
	if err != nil {
		t.Fatalf("ExportXLSX 失败: %v", err)
	}
	if file.Filename != "emploi-du-temps-5A.xlsx" {
		t.Errorf("文件名不符: %s", file.Filename)
	}

	// 校验 PK 头 (ZIP)
	if !bytes.HasPrefix(file.Content.Bytes(), []byte("PK")) {
		t.Fatal("XLSX 应为 ZIP 格式")
	}

	f, err := excelize.OpenReader(bytes.NewReader(file.Content.Bytes()))
	if err != nil {
		t.Fatalf("打开导出文件失败: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Emploi du temps 5A" || sheets[1] != "Conflits" {
		t.Fatalf("工作表不符: %v", sheets)
	}

	if v, _ := f.GetCellValue(sheets[0], "A1"); v != "Heure" {
		t.Errorf("A1 期望 Heure, 实际 %q", v)
	}
	if v, _ := f.GetCellValue(sheets[0], "B1"); v != "Lundi" {
		t.Errorf("B1 期望 Lundi, 实际 %q", v)
	}
	if v, _ := f.GetCellValue(sheets[0], "B2"); !strings.HasPrefix(v, "Mathématiques") {
		t.Errorf("B2 期望 Mathématiques 开头, 实际 %q", v)
	}
	if v, _ := f.GetCellValue(sheets[0], "C2"); v != "" {
		t.Errorf("C2 应为空, 实际 %q", v)
	}

	if v, _ := f.GetCellValue("Conflits", "A2"); v != string(timetable.ConflictTeacher) {
		t.Errorf("Conflits!A2 期望 teacher, 实际 %q", v)
	}
}

// ── ExportICS ──

func TestExportService_ExportICS_RoundTrip(t *testing.T) {
	svc, _ := setupTestExportService(t)

	file, err := svc.ExportICS("5A", time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExportICS 失败: %v", err)
	}
	content := file.Content.String()
	if !strings.Contains(content, "BEGIN:VCALENDAR") || strings.Count(content, "BEGIN:VEVENT") != 8 {
		t.Fatalf("ICS 内容不符:\n%s", content)
	}
	if !strings.Contains(content, "RRULE:FREQ=WEEKLY;BYDAY=MO") {
		t.Error("应包含每周重复规则")
	}
	if !strings.Contains(content, "BEGIN:VTIMEZONE") || !strings.Contains(content, "TZID:Europe/Paris") {
		t.Error("应包含 Europe/Paris 的 VTIMEZONE")
	}
	if !strings.Contains(content, "DTSTART;TZID=Europe/Paris:20260907T080000") {
		t.Errorf("demo-1 应以本地时间 08:00 带 TZID 导出:\n%s", content)
	}

	imp := NewImportService(timetable.DefaultCatalog(), zap.NewNop())
	batch, err := imp.ParseICS(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseICS 失败: %v", err)
	}
	if len(batch.Rejected) != 0 {
		t.Fatalf("往返解析不应有拒绝行: %+v", batch.Rejected)
	}
	if len(batch.Slots) != 8 {
		t.Fatalf("期望 8 个槽位, 实际 %d", len(batch.Slots))
	}

	want := make(map[string]bool)
	for _, s := range timetable.DemoSlots(timetable.DefaultCatalog()) {
		want[slotKey(s)] = true
	}
	for _, s := range batch.Slots {
		if !want[slotKey(s)] {
			t.Errorf("往返后槽位不一致: %+v", s)
		}
	}
}

func TestExportService_ExportICS_WeeklyOccurrenceKeepsLocalHourAcrossDST(t *testing.T) {
	svc, _ := setupTestExportService(t)

	file, err := svc.ExportICS("5A", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ExportICS 失败: %v", err)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(file.Content.String()))
	if err != nil {
		t.Fatalf("ParseCalendar 失败: %v", err)
	}

	var start time.Time
	for _, evt := range cal.Events() {
		if evt.Id() == "demo-1@madrassa" {
			if start, err = evt.GetStartAt(); err != nil {
				t.Fatalf("GetStartAt 失败: %v", err)
			}
		}
	}
	if start.IsZero() {
		t.Fatal("未找到 demo-1 事件")
	}
	if start.Location().String() != "Europe/Paris" || start.Hour() != 8 {
		t.Fatalf("DTSTART 应为巴黎时间 08:00, 实际 %s", start)
	}

	// 第 9 周（2026-11-02）已过十月底的夏令时切换：本地仍为 08:00，UTC 从 06:00 变为 07:00
	occurrence := start.AddDate(0, 0, 8*7)
	if occurrence.Hour() != 8 {
		t.Errorf("夏令时切换后本地课时应保持 08:00, 实际 %s", occurrence)
	}
	if start.UTC().Hour() != 6 || occurrence.UTC().Hour() != 7 {
		t.Errorf("UTC 偏移应随夏令时变化: %s → %s", start.UTC(), occurrence.UTC())
	}
}

func slotKey(s timetable.ScheduleSlot) string {
	return strings.Join([]string{string(rune('0' + s.Day)), s.Hour, s.Subject, s.Teacher, s.Room, s.Class}, "|")
}
