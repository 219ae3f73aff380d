package timetable

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation        = errors.New("表单校验失败")
	ErrEditorClosed      = errors.New("编辑器未打开")
	ErrDeleteUnavailable = errors.New("仅编辑已有课程时可删除")
)

// Form 编辑器表单
type Form struct {
	Subject string `json:"subject" validate:"required,subject"`
	Teacher string `json:"teacher" validate:"required,notblank,max=100"`
	Room    string `json:"room"    validate:"required,notblank,max=50"`
	Class   string `json:"class"   validate:"required,class"`
	Day     *int   `json:"day"     validate:"required,min=0,max=4"`
	Hour    string `json:"hour"    validate:"required,hour"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError 表单校验错误，errors.Is(err, ErrValidation) 为真
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ":" + f.Rule
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FormValidator 基于目录的表单校验器
type FormValidator struct {
	v       *validator.Validate
	catalog *Catalog
}

// NewFormValidator 注册 subject/class/hour 三个依赖目录的规则，以及 notblank
func NewFormValidator(catalog *Catalog) *FormValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		return catalog.HasSubject(fl.Field().String())
	})
	_ = v.RegisterValidation("class", func(fl validator.FieldLevel) bool {
		return catalog.HasClass(fl.Field().String())
	})
	_ = v.RegisterValidation("hour", func(fl validator.FieldLevel) bool {
		return catalog.HasHour(fl.Field().String())
	})
	return &FormValidator{v: v, catalog: catalog}
}

// Catalog 校验器绑定的目录
func (fv *FormValidator) Catalog() *Catalog { return fv.catalog }

// Validate 校验表单，失败时返回 *ValidationError
func (fv *FormValidator) Validate(f Form) error {
	err := fv.v.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return ve
}

// EditorMode 编辑器入口模式
type EditorMode int

const (
	ModeCreate EditorMode = iota
	ModeEdit
)

func (m EditorMode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// Editor 单个槽位的新建/编辑表单
//
// 状态只有 open / closed：取消、保存、删除都会关闭编辑器；
// 校验失败或占用冲突时保持打开。
type Editor struct {
	store     *Store
	validator *FormValidator
	newID     func() string

	mode     EditorMode
	original ScheduleSlot
	form     Form
	open     bool
}

// NewEditor 创建编辑器，初始为关闭状态
func NewEditor(store *Store, fv *FormValidator) *Editor {
	return &Editor{store: store, validator: fv, newID: NewSlotID}
}

// WithIDGenerator 替换 ID 生成函数
func (e *Editor) WithIDGenerator(gen func() string) *Editor {
	e.newID = gen
	return e
}

// OpenCreate 从空格子打开：day/hour/class 取自被点击的格子
func (e *Editor) OpenCreate(day int, hour, class string) {
	d := day
	e.mode = ModeCreate
	e.original = ScheduleSlot{}
	e.form = Form{Day: &d, Hour: hour, Class: class}
	e.open = true
}

// OpenEdit 以已有槽位预填表单
func (e *Editor) OpenEdit(slot ScheduleSlot) {
	d := slot.Day
	e.mode = ModeEdit
	e.original = slot
	e.form = Form{
		Subject: slot.Subject,
		Teacher: slot.Teacher,
		Room:    slot.Room,
		Class:   slot.Class,
		Day:     &d,
		Hour:    slot.Hour,
	}
	e.open = true
}

func (e *Editor) Mode() EditorMode { return e.mode }
func (e *Editor) IsOpen() bool     { return e.open }
func (e *Editor) Form() Form       { return e.form }

// Cancel 关闭编辑器，不修改 Store
func (e *Editor) Cancel() {
	e.open = false
}

// Submit 校验表单并写入 Store
//
// 颜色始终由科目重新计算；新建时生成新 ID，编辑时沿用原 ID。
// 保存时不做教师/教室冲突校验，冲突由 Detector 事后呈现。
func (e *Editor) Submit(f Form) (ScheduleSlot, UpsertResult, error) {
	if !e.open {
		return ScheduleSlot{}, UpsertResult{}, ErrEditorClosed
	}

	// 教师与教室保留原始写法，比较时由 IdentityFunc 规范化
	f.Subject = strings.TrimSpace(f.Subject)
	f.Class = strings.TrimSpace(f.Class)
	f.Hour = strings.TrimSpace(f.Hour)
	e.form = f

	if err := e.validator.Validate(f); err != nil {
		return ScheduleSlot{}, UpsertResult{}, err
	}

	id := e.original.ID
	if e.mode == ModeCreate || id == "" {
		id = e.newID()
	}

	slot := ScheduleSlot{
		ID:      id,
		Day:     *f.Day,
		Hour:    f.Hour,
		Subject: f.Subject,
		Teacher: f.Teacher,
		Room:    f.Room,
		Class:   f.Class,
		Color:   e.validator.catalog.ColorOf(f.Subject),
	}

	res, err := e.store.Upsert(slot)
	if err != nil {
		return ScheduleSlot{}, UpsertResult{}, err
	}
	e.open = false
	return slot, res, nil
}

// Delete 删除正在编辑的槽位
//
// confirm 为 nil 或返回 false 时放弃删除，Store 不变，编辑器保持打开。
func (e *Editor) Delete(confirm func(ScheduleSlot) bool) (bool, error) {
	if !e.open {
		return false, ErrEditorClosed
	}
	if e.mode != ModeEdit {
		return false, ErrDeleteUnavailable
	}
	if confirm == nil || !confirm(e.original) {
		return false, nil
	}
	e.store.Remove(e.original.ID)
	e.open = false
	return true, nil
}
