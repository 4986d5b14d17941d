package repository

import (
	"context"
	"errors"

	"quiz_portal_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Get 取当前自动保存快照。没有记录返回 (nil, nil)——
// 首次保存前没有行是正常情况，不算错误。
func (r *ProgressRepository) Get(ctx context.Context, quizID uint, studentID string) (*model.AttemptProgress, error) {
	var progress model.AttemptProgress
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Upsert 按 (quiz_id, student_id) 写入合并后的完整快照
func (r *ProgressRepository) Upsert(ctx context.Context, progress *model.AttemptProgress) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "quiz_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"answers",
			"flagged",
			"bookmarked",
			"marked_for_review",
			"question_time_spent",
			"tab_switch_count",
			"last_tab_switch_time",
			"tab_switch_history",
			"start_time",
			"submitted_due_to_violation",
			"violation_timestamp",
			"updated_at",
		}),
	}).Create(progress).Error
}

// Delete 幂等删除，目标行不存在也返回成功。
// 必须物理删除：软删墓碑会占住 (quiz_id, student_id) 唯一键，
// 之后的 Upsert 命中墓碑行但 deleted_at 不会清掉，进度就再也读不出来了。
func (r *ProgressRepository) Delete(ctx context.Context, quizID uint, studentID string) error {
	return r.DB.WithContext(ctx).Unscoped().
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Delete(&model.AttemptProgress{}).Error
}
