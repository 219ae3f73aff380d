package timetable

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DaysPerWeek 周一至周五
const DaysPerWeek = 5

// DefaultColor 未知科目的兜底颜色
const DefaultColor = "#9CA3AF"

var (
	ErrCatalogInvalid = errors.New("目录配置无效")
)

// Subject 科目及其展示颜色
type Subject struct {
	Name  string `yaml:"name"  json:"name"`
	Color string `yaml:"color" json:"color"`
}

// Catalog 固定枚举：星期、课时标签、科目、班级
type Catalog struct {
	Days         []string  `yaml:"days"          json:"days"`
	Hours        []string  `yaml:"hours"         json:"hours"`
	Subjects     []Subject `yaml:"subjects"      json:"subjects"`
	Classes      []string  `yaml:"classes"       json:"classes"`
	DefaultColor string    `yaml:"default_color" json:"default_color"`
}

// DefaultCatalog 内置目录
func DefaultCatalog() *Catalog {
	return &Catalog{
		Days: []string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi"},
		Hours: []string{
			"08:00", "09:00", "10:00", "11:00", "12:00",
			"13:00", "14:00", "15:00", "16:00", "17:00",
		},
		Subjects: []Subject{
			{Name: "Mathématiques", Color: "#3B82F6"},
			{Name: "Français", Color: "#EF4444"},
			{Name: "Anglais", Color: "#10B981"},
			{Name: "Histoire-Géographie", Color: "#F59E0B"},
			{Name: "SVT", Color: "#22C55E"},
			{Name: "Physique-Chimie", Color: "#8B5CF6"},
			{Name: "EPS", Color: "#F97316"},
			{Name: "Arts Plastiques", Color: "#EC4899"},
		},
		Classes:      []string{"5A", "5B", "4A", "4B", "3A"},
		DefaultColor: DefaultColor,
	}
}

// LoadCatalogFile 从 YAML 文件加载目录，path 为空时返回内置目录
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开目录文件失败: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// ParseCatalog 解析 YAML 目录并校验
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}
	if len(c.Days) == 0 {
		c.Days = DefaultCatalog().Days
	}
	if c.DefaultColor == "" {
		c.DefaultColor = DefaultColor
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 校验目录的完整性
func (c *Catalog) Validate() error {
	if len(c.Days) != DaysPerWeek {
		return fmt.Errorf("%w: days 必须为 %d 项", ErrCatalogInvalid, DaysPerWeek)
	}
	if len(c.Hours) == 0 || len(c.Subjects) == 0 || len(c.Classes) == 0 {
		return fmt.Errorf("%w: hours/subjects/classes 不能为空", ErrCatalogInvalid)
	}
	seen := make(map[string]bool, len(c.Hours))
	for _, h := range c.Hours {
		if !isHourLabel(h) {
			return fmt.Errorf("%w: 课时标签 %q 格式应为 HH:00", ErrCatalogInvalid, h)
		}
		if seen[h] {
			return fmt.Errorf("%w: 课时标签 %q 重复", ErrCatalogInvalid, h)
		}
		seen[h] = true
	}
	names := make(map[string]bool, len(c.Subjects))
	for _, s := range c.Subjects {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Color) == "" {
			return fmt.Errorf("%w: 科目名称与颜色不能为空", ErrCatalogInvalid)
		}
		if names[s.Name] {
			return fmt.Errorf("%w: 科目 %q 重复", ErrCatalogInvalid, s.Name)
		}
		names[s.Name] = true
	}
	classes := make(map[string]bool, len(c.Classes))
	for _, cl := range c.Classes {
		if strings.TrimSpace(cl) == "" || classes[cl] {
			return fmt.Errorf("%w: 班级 %q 为空或重复", ErrCatalogInvalid, cl)
		}
		classes[cl] = true
	}
	return nil
}

// ColorOf 返回科目颜色；科目不在目录中时返回默认颜色
func (c *Catalog) ColorOf(subject string) string {
	for _, s := range c.Subjects {
		if s.Name == subject {
			return s.Color
		}
	}
	if c.DefaultColor != "" {
		return c.DefaultColor
	}
	return DefaultColor
}

func (c *Catalog) HasSubject(name string) bool {
	for _, s := range c.Subjects {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (c *Catalog) HasClass(class string) bool {
	return contains(c.Classes, class)
}

func (c *Catalog) HasHour(hour string) bool {
	return contains(c.Hours, hour)
}

// HourIndex 课时标签在目录中的下标，不存在时返回 -1
func (c *Catalog) HourIndex(hour string) int {
	for i, h := range c.Hours {
		if h == hour {
			return i
		}
	}
	return -1
}

// ValidDay day 是否在 [0, DaysPerWeek) 区间内
func ValidDay(day int) bool {
	return day >= 0 && day < DaysPerWeek
}

// DayName 返回星期名称，越界时返回空串
func (c *Catalog) DayName(day int) string {
	if !ValidDay(day) || day >= len(c.Days) {
		return ""
	}
	return c.Days[day]
}

func isHourLabel(s string) bool {
	if len(s) != 5 || s[2] != ':' || s[3:] != "00" {
		return false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	return s[0] >= '0' && s[0] <= '2' && s[1] >= '0' && s[1] <= '9' && h < 24
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
