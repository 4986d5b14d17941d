package repository

import (
	"quiz_portal_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// ClearViolationBlock 裁决通过后放开成绩可见性
func (r *AttemptRepository) ClearViolationBlock(quizID uint, studentID string) error {
	return r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Update("violation_blocked", false).Error
}
