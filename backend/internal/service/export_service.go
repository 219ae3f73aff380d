package service

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"madrassa/backend/internal/timetable"
)

// ── 导出模块业务错误 ──

var (
	ErrExportUnknownClass = errors.New("导出的班级不在目录中")
	ErrExportFormat       = errors.New("不支持的导出格式")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// 导出格式
const (
	FormatXLSX = "xlsx"
	FormatICS  = "ics"
)

// ExportRow 导出用的扁平行
type ExportRow struct {
	ID      string `json:"id"`
	Day     int    `json:"day"`
	DayName string `json:"day_name"`
	Hour    string `json:"hour"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
	Class   string `json:"class"`
	Color   string `json:"color"`
}

// ExportFile 导出结果
type ExportFile struct {
	Content     *bytes.Buffer
	Filename    string
	ContentType string
}

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - XLSX：工作表 "Emploi du temps <班级>" 以课时为行、星期为列；工作表 "Conflits" 列出全局冲突
//   - ICS：每个槽位一个每周重复的 VEVENT，首周从 weekStart 所在周的周一开始
type ExportService interface {
	// Export 按格式导出
	Export(class, format string, weekStart time.Time) (*ExportFile, error)
	ExportXLSX(class string) (*ExportFile, error)
	ExportICS(class string, weekStart time.Time) (*ExportFile, error)
	// ExportRows 班级课程按 (day, hour) 排序的扁平行
	ExportRows(class string) ([]ExportRow, error)
}

type exportService struct {
	timetable TimetableService
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(tt TimetableService, logger *zap.Logger) ExportService {
	return &exportService{timetable: tt, logger: logger, now: time.Now}
}

func (s *exportService) Export(class, format string, weekStart time.Time) (*ExportFile, error) {
	switch strings.ToLower(format) {
	case "", FormatXLSX:
		return s.ExportXLSX(class)
	case FormatICS:
		return s.ExportICS(class, weekStart)
	}
	return nil, ErrExportFormat
}

func (s *exportService) ExportRows(class string) ([]ExportRow, error) {
	catalog := s.timetable.Catalog()
	if !catalog.HasClass(class) {
		return nil, ErrExportUnknownClass
	}

	slots := timetable.FilterByClass(s.timetable.ListSlots(), class)
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Day != slots[j].Day {
			return slots[i].Day < slots[j].Day
		}
		return catalog.HourIndex(slots[i].Hour) < catalog.HourIndex(slots[j].Hour)
	})

	rows := make([]ExportRow, 0, len(slots))
	for _, sl := range slots {
		rows = append(rows, ExportRow{
			ID:      sl.ID,
			Day:     sl.Day,
			DayName: catalog.DayName(sl.Day),
			Hour:    sl.Hour,
			Subject: sl.Subject,
			Teacher: sl.Teacher,
			Room:    sl.Room,
			Class:   sl.Class,
			Color:   sl.Color,
		})
	}
	return rows, nil
}

// ════════════════════════════════════════════════════════════
// ExportXLSX
// ════════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Emploi du temps <班级>"
//   - 行头：课时标签；列头：Lundi ~ Vendredi
//   - 单元格：科目 / 教师 / 教室 三行，背景色为科目颜色
//   - Sheet "Conflits"：类型 | 星期 | 课时 | 对象 | 说明 | 槽位

func (s *exportService) ExportXLSX(class string) (*ExportFile, error) {
	catalog := s.timetable.Catalog()
	if !catalog.HasClass(class) {
		return nil, ErrExportUnknownClass
	}
	view, err := s.timetable.View(class)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Emploi du temps " + class
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, s.generateFailed(err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	slotStyles := make(map[string]int)
	slotStyle := func(color string) int {
		if id, ok := slotStyles[color]; ok {
			return id
		}
		id, _ := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Font:      &excelize.Font{Color: "#FFFFFF"},
		})
		slotStyles[color] = id
		return id
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", colName(len(catalog.Days)), 24)

	_ = f.SetCellValue(sheet, "A1", "Heure")
	for d, name := range catalog.Days {
		_ = f.SetCellValue(sheet, cell(colName(d+1), 1), name)
	}
	_ = f.SetCellStyle(sheet, "A1", cell(colName(len(catalog.Days)), 1), headerStyle)

	for h, hour := range catalog.Hours {
		row := h + 2
		_ = f.SetCellValue(sheet, cell("A", row), hour)
		_ = f.SetRowHeight(sheet, row, 48)
		for d := range catalog.Days {
			slot := view.Grid[d][h]
			if slot == nil {
				continue
			}
			ref := cell(colName(d+1), row)
			_ = f.SetCellValue(sheet, ref, fmt.Sprintf("%s\n%s\n%s", slot.Subject, slot.Teacher, slot.Room))
			_ = f.SetCellStyle(sheet, ref, ref, slotStyle(slot.Color))
		}
	}

	if err := s.writeConflictSheet(f, catalog, view.Conflicts, headerStyle); err != nil {
		return nil, s.generateFailed(err)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, s.generateFailed(err)
	}

	return &ExportFile{
		Content:     buf,
		Filename:    fmt.Sprintf("emploi-du-temps-%s.xlsx", class),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

func (s *exportService) writeConflictSheet(f *excelize.File, catalog *timetable.Catalog, conflicts []timetable.Conflict, headerStyle int) error {
	const sheet = "Conflits"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Type", "Jour", "Heure", "Cible", "Message", "Créneaux"}
	for i, h := range headers {
		_ = f.SetCellValue(sheet, cell(colName(i), 1), h)
	}
	_ = f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)
	_ = f.SetColWidth(sheet, "E", "E", 40)

	for i, c := range conflicts {
		row := i + 2
		values := []interface{}{
			string(c.Kind), catalog.DayName(c.Day), c.Hour, c.Target, c.Message, strings.Join(c.SlotIDs, ", "),
		}
		for j, v := range values {
			_ = f.SetCellValue(sheet, cell(colName(j), row), v)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// ExportICS
// ════════════════════════════════════════════════════════════

func (s *exportService) ExportICS(class string, weekStart time.Time) (*ExportFile, error) {
	rows, err := s.ExportRows(class)
	if err != nil {
		return nil, err
	}

	loc := icsLocation()
	monday := mondayOf(weekStart, loc)
	if weekStart.IsZero() {
		monday = mondayOf(s.now(), loc)
	}
	stamp := s.now().UTC()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//madrassa//emploi du temps//FR")
	cal.SetXWRCalName("Emploi du temps " + class)
	tzid := addTimezone(cal, loc)

	for _, r := range rows {
		hour, _ := time.Parse("15:04", r.Hour)
		start := time.Date(monday.Year(), monday.Month(), monday.Day()+r.Day, hour.Hour(), 0, 0, 0, loc)

		evt := cal.AddEvent(r.ID + "@madrassa")
		evt.SetDtStampTime(stamp)
		setLocalTime(&evt.ComponentBase, ics.ComponentPropertyDtStart, start, tzid)
		setLocalTime(&evt.ComponentBase, ics.ComponentPropertyDtEnd, start.Add(time.Hour), tzid)
		evt.SetSummary(r.Subject)
		evt.SetLocation(r.Room)
		evt.SetDescription(fmt.Sprintf("%s %s\n%s %s", icsLabelTeacher, r.Teacher, icsLabelClass, r.Class))
		evt.AddProperty(icsPropTeacher, r.Teacher)
		evt.AddProperty(icsPropClass, r.Class)
		evt.AddProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY;BYDAY="+icsWeekday(r.Day))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return &ExportFile{
		Content:     buf,
		Filename:    fmt.Sprintf("emploi-du-temps-%s.ics", class),
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

// addTimezone 写入 VTIMEZONE 并返回 TZID；时区不可用（UTC 兜底）时返回空串
//
// 每周重复的事件必须带 TZID，否则 RRULE 按 UTC 展开，夏令时切换后课时整体偏移一小时。
func addTimezone(cal *ics.Calendar, loc *time.Location) string {
	if loc.String() != icsTimezone {
		return ""
	}
	tz := cal.AddTimezone(icsTimezone)

	// 欧盟规则：三月最后一个周日 02:00 进入夏令时，十月最后一个周日 03:00 退出
	daylight := &ics.Daylight{}
	daylight.AddProperty(ics.ComponentPropertyDtStart, "19700329T020000")
	daylight.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), "+0100")
	daylight.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), "+0200")
	daylight.AddProperty(ics.ComponentProperty(ics.PropertyTzname), "CEST")
	daylight.AddProperty(ics.ComponentPropertyRrule, "FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU")

	standard := &ics.Standard{}
	standard.AddProperty(ics.ComponentPropertyDtStart, "19701025T030000")
	standard.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), "+0200")
	standard.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), "+0100")
	standard.AddProperty(ics.ComponentProperty(ics.PropertyTzname), "CET")
	standard.AddProperty(ics.ComponentPropertyRrule, "FREQ=YEARLY;BYMONTH=10;BYDAY=-1SU")

	tz.Components = append(tz.Components, daylight, standard)
	return icsTimezone
}

// setLocalTime 以 "TZID=...:本地时间" 写入时间属性；tzid 为空时写 UTC
func setLocalTime(cb *ics.ComponentBase, prop ics.ComponentProperty, t time.Time, tzid string) {
	if tzid == "" {
		cb.SetProperty(prop, t.UTC().Format("20060102T150405Z"))
		return
	}
	cb.SetProperty(prop, t.Format("20060102T150405"),
		&ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{tzid}})
}

func (s *exportService) generateFailed(err error) error {
	s.logger.Error("生成导出文件失败", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// mondayOf t 所在周的周一 00:00
func mondayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
}

func icsWeekday(day int) string {
	return [...]string{"MO", "TU", "WE", "TH", "FR"}[day]
}
