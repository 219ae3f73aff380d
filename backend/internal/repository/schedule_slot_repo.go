package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"madrassa/backend/internal/model"
)

// ScheduleSlotRepository 课表槽位数据访问接口
type ScheduleSlotRepository interface {
	// List 按 position 升序返回全部槽位
	List(ctx context.Context) ([]model.ScheduleSlot, error)
	// Save 在事务中删除 evictIDs 并写入 slot；slot_id 已存在时只更新内容，不改变 position
	Save(ctx context.Context, slot *model.ScheduleSlot, evictIDs []string) error
	Delete(ctx context.Context, slotID string) error
	// ReplaceAll 在事务中全量替换全部槽位
	ReplaceAll(ctx context.Context, slots []model.ScheduleSlot) error
	Count(ctx context.Context) (int64, error)
}

type scheduleSlotRepo struct {
	db *gorm.DB
}

// NewScheduleSlotRepo 创建 ScheduleSlotRepository 实例
func NewScheduleSlotRepo(db *gorm.DB) ScheduleSlotRepository {
	return &scheduleSlotRepo{db: db}
}

func (r *scheduleSlotRepo) List(ctx context.Context) ([]model.ScheduleSlot, error) {
	var slots []model.ScheduleSlot
	err := r.db.WithContext(ctx).
		Order("position ASC").
		Find(&slots).Error
	return slots, err
}

func (r *scheduleSlotRepo) Save(ctx context.Context, slot *model.ScheduleSlot, evictIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(evictIDs) > 0 {
			if err := tx.Where("slot_id IN ?", evictIDs).Delete(&model.ScheduleSlot{}).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"day", "hour", "subject", "teacher", "room", "class", "color", "updated_at",
			}),
		}).Create(slot).Error
	})
}

func (r *scheduleSlotRepo) Delete(ctx context.Context, slotID string) error {
	// 删除不存在的 ID 不视为错误
	return r.db.WithContext(ctx).
		Where("slot_id = ?", slotID).
		Delete(&model.ScheduleSlot{}).Error
}

func (r *scheduleSlotRepo) ReplaceAll(ctx context.Context, slots []model.ScheduleSlot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.ScheduleSlot{}).Error; err != nil {
			return err
		}
		if len(slots) > 0 {
			if err := tx.CreateInBatches(&slots, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *scheduleSlotRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ScheduleSlot{}).Count(&n).Error
	return n, err
}
