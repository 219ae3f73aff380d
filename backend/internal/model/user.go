package model

// 角色
const (
	RoleAdmin   = "admin"   // 可编辑课表、导入、查看审计
	RoleTeacher = "teacher" // 可编辑课表
	RoleViewer  = "viewer"  // 只读
)

// ValidRole 是否为已知角色
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleViewer:
		return true
	}
	return false
}

// User 用户表，对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey"                       json:"user_id"`
	Username     string `gorm:"type:varchar(64);not null"                  json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null"                 json:"-"`
	Role         string `gorm:"type:varchar(16);not null;default:'viewer'" json:"role"`
	SoftDeleteModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
