package timetable

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCatalog(t *testing.T) {
	const doc = `
hours: ["08:00", "09:00", "10:00"]
subjects:
  - name: Mathématiques
    color: "#3B82F6"
  - name: Latin
    color: "#111111"
classes: [6A, 6B]
`
	c, err := ParseCatalog(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseCatalog 应成功: %v", err)
	}
	if len(c.Days) != DaysPerWeek || c.Days[0] != "Lundi" {
		t.Errorf("未配置 days 时应使用默认星期，实际 %v", c.Days)
	}
	if c.DefaultColor != DefaultColor {
		t.Errorf("未配置 default_color 时应使用 %s，实际 %s", DefaultColor, c.DefaultColor)
	}
	if c.ColorOf("Latin") != "#111111" || !c.HasClass("6B") || c.HasClass("5A") {
		t.Errorf("目录内容解析不符: %+v", c)
	}
	if c.HourIndex("10:00") != 2 || c.HourIndex("11:00") != -1 {
		t.Errorf("HourIndex 不符")
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "hours: [08:00"},
		{"empty hours", "subjects: [{name: A, color: '#fff'}]\nclasses: [5A]"},
		{"bad hour label", "hours: ['8h']\nsubjects: [{name: A, color: '#fff'}]\nclasses: [5A]"},
		{"duplicate hour", "hours: ['08:00', '08:00']\nsubjects: [{name: A, color: '#fff'}]\nclasses: [5A]"},
		{"subject without color", "hours: ['08:00']\nsubjects: [{name: A}]\nclasses: [5A]"},
		{"duplicate class", "hours: ['08:00']\nsubjects: [{name: A, color: '#fff'}]\nclasses: [5A, 5A]"},
		{"six days", "days: [a, b, c, d, e, f]\nhours: ['08:00']\nsubjects: [{name: A, color: '#fff'}]\nclasses: [5A]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCatalog(strings.NewReader(tt.doc)); !errors.Is(err, ErrCatalogInvalid) {
				t.Errorf("期望 ErrCatalogInvalid，实际: %v", err)
			}
		})
	}
}

func TestDefaultCatalog_Valid(t *testing.T) {
	if err := DefaultCatalog().Validate(); err != nil {
		t.Fatalf("内置目录应合法: %v", err)
	}
	c := DefaultCatalog()
	if c.DayName(0) != "Lundi" || c.DayName(5) != "" || c.DayName(-1) != "" {
		t.Errorf("DayName 不符")
	}
}

func TestNormalizedIdentity(t *testing.T) {
	if NormalizedIdentity("  Sophie   LAURENT ") != NormalizedIdentity("sophie laurent") {
		t.Error("规范化后应相等")
	}
	if ExactIdentity("A") == ExactIdentity("a") {
		t.Error("原样比较应区分大小写")
	}
}
