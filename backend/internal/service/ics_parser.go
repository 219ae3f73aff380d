package service

import (
	"fmt"
	"io"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"madrassa/backend/internal/timetable"
)

// ── ICS 编解码 ──────────────────────────────────────────────
//
// 导出与导入共用同一组属性：
//   - DTSTART 的星期与整点决定 (day, hour)
//   - SUMMARY 为科目，LOCATION 为教室
//   - X-MADRASSA-TEACHER / X-MADRASSA-CLASS 保存教师与班级；
//     缺失时回退到 DESCRIPTION 中的 "Enseignant:" / "Classe:" 行
// ─────────────────────────────────────────────────────────────

const (
	icsTimezone = "Europe/Paris"

	icsPropTeacher ics.ComponentProperty = "X-MADRASSA-TEACHER"
	icsPropClass   ics.ComponentProperty = "X-MADRASSA-CLASS"

	icsLabelTeacher = "Enseignant:"
	icsLabelClass   = "Classe:"
)

// icsLocation 课表所在时区；tzdata 已内嵌，加载失败时退化为 UTC
func icsLocation() *time.Location {
	if loc, err := time.LoadLocation(icsTimezone); err == nil {
		return loc
	}
	return time.UTC
}

func (s *importService) ParseICS(r io.Reader) (*ImportBatch, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	loc := icsLocation()
	batch := &ImportBatch{}
	for i, evt := range cal.Events() {
		line := i + 1
		start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			batch.reject(line, err.Error())
			continue
		}

		wd := start.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			batch.reject(line, fmt.Sprintf("周末事件不能导入: %s", start.Format("2006-01-02")))
			continue
		}
		if start.Minute() != 0 {
			batch.reject(line, fmt.Sprintf("开始时间 %s 不是整点", start.Format("15:04")))
			continue
		}
		day := int(wd) - 1

		desc := icsText(evt, ics.ComponentPropertyDescription)
		teacher := icsText(evt, icsPropTeacher)
		if teacher == "" {
			teacher = descriptionField(desc, icsLabelTeacher)
		}
		class := icsText(evt, icsPropClass)
		if class == "" {
			class = descriptionField(desc, icsLabelClass)
		}

		form := timetable.Form{
			Subject: icsText(evt, ics.ComponentPropertySummary),
			Teacher: teacher,
			Room:    icsText(evt, ics.ComponentPropertyLocation),
			Class:   class,
			Day:     &day,
			Hour:    start.Format("15:04"),
		}
		slot, err := s.toSlot(form)
		if err != nil {
			batch.reject(line, err.Error())
			continue
		}
		batch.add(line, slot)
	}

	if len(batch.Slots) == 0 && len(batch.Rejected) == 0 {
		return nil, ErrImportEmpty
	}
	s.logger.Debug("ICS 解析完成", zap.Int("slots", len(batch.Slots)), zap.Int("rejected", len(batch.Rejected)))
	return batch, nil
}

// icsText 读取文本属性并还原 RFC 5545 转义
func icsText(evt *ics.VEvent, prop ics.ComponentProperty) string {
	p := evt.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(unescapeICSText(p.Value))
}

func unescapeICSText(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}

// descriptionField 从多行描述中取 "label value" 行的值
func descriptionField(desc, label string) string {
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label))
		}
	}
	return ""
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("缺少属性 %s", propName)
	}
	val := prop.Value

	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range formats {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
