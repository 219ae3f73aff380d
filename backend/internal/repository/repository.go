package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
//
// 内存模式下 Slot 为 nil：槽位只保存在引擎的 Store 中。
type Repository struct {
	User UserRepository
	Slot ScheduleSlotRepository
}

// NewRepository 创建基于 PostgreSQL 的 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User: NewUserRepo(db),
		Slot: NewScheduleSlotRepo(db),
	}
}

// NewMemoryRepository 创建内存模式的 Repository 聚合
func NewMemoryRepository() *Repository {
	return &Repository{
		User: NewMemoryUserRepo(),
	}
}
