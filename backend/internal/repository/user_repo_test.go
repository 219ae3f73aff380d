package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"madrassa/backend/internal/model"
)

func TestMemoryUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	u := &model.User{UserID: "u1", Username: "admin", PasswordHash: "x", Role: model.RoleAdmin}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if err := repo.Create(ctx, &model.User{UserID: "u2", Username: "admin"}); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("重复用户名应返回 ErrDuplicatedKey，实际: %v", err)
	}

	got, err := repo.GetByUsername(ctx, "admin")
	if err != nil || got.UserID != "u1" {
		t.Fatalf("GetByUsername 不符: %+v, %v", got, err)
	}
	got.Role = "viewer"
	again, _ := repo.GetByID(ctx, "u1")
	if again.Role != model.RoleAdmin {
		t.Error("返回值被修改不应影响存储")
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("期望 1 个用户，实际 %d", n)
	}
}
