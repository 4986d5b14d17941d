package model

import "time"

// Attempt 最终提交的答卷记录。评分本身不在本服务范围内，
// 这里只保留违规审核会触碰的字段。
// swagger:model Attempt
type Attempt struct {
	BaseModel
	QuizID      uint      `gorm:"index:idx_attempt_quiz_student,priority:1;not null" json:"quizId"`
	StudentID   string    `gorm:"size:64;index:idx_attempt_quiz_student,priority:2;not null" json:"studentId"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
	// 因违规自动交卷
	SubmittedDueToViolation bool `gorm:"default:false" json:"submittedDueToViolation"`
	// 违规未裁决前成绩对学生不可见，approve 时清除
	ViolationBlocked bool `gorm:"default:false" json:"violationBlocked"`
}

func (Attempt) TableName() string {
	return "attempts"
}
