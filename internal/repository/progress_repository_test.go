package repository

import (
	"context"
	"testing"

	"quiz_portal_backend/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 内存sqlite，限制为单连接保证所有操作落在同一个库上
func newTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestProgressDeleteThenSaveIsVisible(t *testing.T) {
	db := newTestDB(t, &model.AttemptProgress{})
	repo := NewProgressRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &model.AttemptProgress{
		QuizID: 7, StudentID: "s1",
		Answers: model.AnswerMap{"q1": "A"},
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	if err := repo.Delete(ctx, 7, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, err := repo.Get(ctx, 7, "s1"); err != nil || got != nil {
		t.Fatalf("after delete: got %v, err %v, want (nil, nil)", got, err)
	}

	// 重置后的首次自动保存要重新建档，且必须能读回来。
	// 软删会让这里的 upsert 打在墓碑行上，Get 永远查不到。
	if err := repo.Upsert(ctx, &model.AttemptProgress{
		QuizID: 7, StudentID: "s1",
		Answers: model.AnswerMap{"q2": "B"},
	}); err != nil {
		t.Fatalf("upsert after delete: %v", err)
	}

	got, err := repo.Get(ctx, 7, "s1")
	if err != nil {
		t.Fatalf("get after re-save: %v", err)
	}
	if got == nil {
		t.Fatal("re-saved progress invisible")
	}
	if got.Answers["q2"] != "B" {
		t.Errorf("answers = %v, want q2=B", got.Answers)
	}

	var count int64
	if err := db.Unscoped().Model(&model.AttemptProgress{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("physical rows = %d, want 1 (no tombstones)", count)
	}
}

func TestProgressUpsertUpdatesInPlace(t *testing.T) {
	db := newTestDB(t, &model.AttemptProgress{})
	repo := NewProgressRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &model.AttemptProgress{
		QuizID: 7, StudentID: "s1",
		Answers:        model.AnswerMap{"q1": "A"},
		TabSwitchCount: 1,
	}); err != nil {
		t.Fatal(err)
	}
	first, err := repo.Get(ctx, 7, "s1")
	if err != nil || first == nil {
		t.Fatalf("get: %v %v", first, err)
	}

	if err := repo.Upsert(ctx, &model.AttemptProgress{
		QuizID: 7, StudentID: "s1",
		Answers:        model.AnswerMap{"q1": "A", "q2": "B"},
		TabSwitchCount: 3,
	}); err != nil {
		t.Fatal(err)
	}

	second, err := repo.Get(ctx, 7, "s1")
	if err != nil || second == nil {
		t.Fatalf("get: %v %v", second, err)
	}
	if second.ID != first.ID {
		t.Errorf("row id changed %d -> %d, want update in place", first.ID, second.ID)
	}
	if second.TabSwitchCount != 3 || len(second.Answers) != 2 {
		t.Errorf("row = %+v, want second payload", second)
	}

	var count int64
	if err := db.Model(&model.AttemptProgress{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestProgressDeleteMissingRowSucceeds(t *testing.T) {
	db := newTestDB(t, &model.AttemptProgress{})
	repo := NewProgressRepository(db)
	ctx := context.Background()

	if err := repo.Delete(ctx, 99, "nobody"); err != nil {
		t.Fatalf("delete on absent row: %v", err)
	}
	if err := repo.Delete(ctx, 99, "nobody"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}
