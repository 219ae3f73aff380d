package service

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"madrassa/backend/internal/dto"
	"madrassa/backend/internal/timetable"
)

// ── 导入模块业务错误 ──

var (
	ErrImportFailed      = errors.New("导入文件解析失败")
	ErrImportEmpty       = errors.New("导入文件中没有课程")
	ErrImportUnsupported = errors.New("仅支持 .xlsx 与 .ics 文件")
)

// ImportBatch 解析结果：可导入的槽位及其源行号，以及解析阶段被拒绝的行
type ImportBatch struct {
	Slots    []timetable.ScheduleSlot
	Lines    []int // 与 Slots 一一对应
	Rejected []dto.ImportRowError
}

func (b *ImportBatch) add(line int, slot timetable.ScheduleSlot) {
	b.Slots = append(b.Slots, slot)
	b.Lines = append(b.Lines, line)
}

func (b *ImportBatch) reject(line int, reason string) {
	b.Rejected = append(b.Rejected, dto.ImportRowError{Row: line, Reason: reason})
}

func (b *ImportBatch) lineOf(index int) int {
	if index >= 0 && index < len(b.Lines) {
		return b.Lines[index]
	}
	return index + 1
}

// ImportService 导入业务接口
//
// 每一行都经过与编辑器相同的表单校验；颜色在写入时由科目重新计算。
type ImportService interface {
	// Parse 按文件扩展名选择解析器
	Parse(filename string, r io.Reader) (*ImportBatch, error)
	// ParseXLSX 读取第一个工作表，表头为 day|hour|subject|teacher|room|class
	ParseXLSX(r io.Reader) (*ImportBatch, error)
	// ParseICS 读取 VEVENT：DTSTART 决定星期与课时
	ParseICS(r io.Reader) (*ImportBatch, error)
}

type importService struct {
	validator *timetable.FormValidator
	logger    *zap.Logger
}

// NewImportService 创建 ImportService 实例
func NewImportService(catalog *timetable.Catalog, logger *zap.Logger) ImportService {
	return &importService{validator: timetable.NewFormValidator(catalog), logger: logger}
}

func (s *importService) Parse(filename string, r io.Reader) (*ImportBatch, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return s.ParseXLSX(r)
	case ".ics":
		return s.ParseICS(r)
	}
	return nil, ErrImportUnsupported
}

// ════════════════════════════════════════════════════════════
// ParseXLSX
// ════════════════════════════════════════════════════════════

// headerAliases 表头别名（英文 / 法文）
var headerAliases = map[string]string{
	"day": "day", "jour": "day",
	"hour": "hour", "heure": "hour",
	"subject": "subject", "matière": "subject", "matiere": "subject",
	"teacher": "teacher", "enseignant": "teacher", "professeur": "teacher",
	"room": "room", "salle": "room",
	"class": "class", "classe": "class",
}

var requiredColumns = []string{"day", "hour", "subject", "teacher", "room", "class"}

func (s *importService) ParseXLSX(r io.Reader) (*ImportBatch, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrImportEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	if len(rows) < 2 {
		return nil, ErrImportEmpty
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: 缺少列 %s", ErrImportFailed, c)
		}
	}

	batch := &ImportBatch{}
	for i, row := range rows[1:] {
		line := i + 2
		raw := func(col string) string {
			if idx := cols[col]; idx < len(row) {
				return row[idx]
			}
			return ""
		}
		get := func(col string) string { return strings.TrimSpace(raw(col)) }
		if isBlankRow(row) {
			continue
		}

		day, ok := ParseDay(get("day"))
		if !ok {
			batch.reject(line, fmt.Sprintf("无法识别的星期 %q", get("day")))
			continue
		}
		form := timetable.Form{
			Subject: get("subject"),
			Teacher: raw("teacher"),
			Room:    raw("room"),
			Class:   get("class"),
			Day:     &day,
			Hour:    NormalizeHour(get("hour")),
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
	s.logger.Debug("XLSX 解析完成", zap.Int("slots", len(batch.Slots)), zap.Int("rejected", len(batch.Rejected)))
	return batch, nil
}

// toSlot 校验表单并构造槽位（ID 留空，由写入方生成）
func (s *importService) toSlot(form timetable.Form) (timetable.ScheduleSlot, error) {
	if err := s.validator.Validate(form); err != nil {
		return timetable.ScheduleSlot{}, err
	}
	return timetable.ScheduleSlot{
		Day:     *form.Day,
		Hour:    form.Hour,
		Subject: form.Subject,
		Teacher: form.Teacher,
		Room:    form.Room,
		Class:   form.Class,
		Color:   s.validator.Catalog().ColorOf(form.Subject),
	}, nil
}

// ── 辅助函数 ──

// dayNames 星期名称（法文 / 英文，小写）
var dayNames = map[string]int{
	"lundi": 0, "mardi": 1, "mercredi": 2, "jeudi": 3, "vendredi": 4,
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3, "friday": 4,
	"lun": 0, "mar": 1, "mer": 2, "jeu": 3, "ven": 4,
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4,
}

// ParseDay 解析星期：0-4 或星期名称
func ParseDay(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n, timetable.ValidDay(n)
	}
	d, ok := dayNames[s]
	return d, ok
}

// NormalizeHour 将 "8:00"、"8h"、"08h00" 统一为 "08:00"；无法识别时原样返回
func NormalizeHour(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Replace(s, "h", ":", 1)
	parts := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return s
	}
	if len(parts) == 2 && parts[1] != "" && parts[1] != "00" {
		return s
	}
	return fmt.Sprintf("%02d:00", h)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
