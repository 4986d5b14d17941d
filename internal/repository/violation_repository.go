package repository

import (
	"context"
	"errors"
	"time"

	"quiz_portal_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ViolationRepository struct {
	DB *gorm.DB
}

func NewViolationRepository(db *gorm.DB) *ViolationRepository {
	return &ViolationRepository{DB: db}
}

// Find* 查不到时返回 (nil, nil)，真正的存储错误才报 error
func (r *ViolationRepository) FindNotificationByID(ctx context.Context, id string) (*model.ViolationNotification, error) {
	var n model.ViolationNotification
	err := r.DB.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *ViolationRepository) FindNotificationByEpisode(ctx context.Context, quizID uint, studentID string) (*model.ViolationNotification, error) {
	var n model.ViolationNotification
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpsertNotification 同一 (quiz, student) 的再次违规覆盖原记录而不是另起一条。
// 旧裁决的 teacher_response/teacher_action 一并覆盖，重新打开的事件不能带着上一轮的结论。
func (r *ViolationRepository) UpsertNotification(ctx context.Context, n *model.ViolationNotification) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "quiz_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"student_name",
			"teacher_id",
			"teacher_email",
			"violation_type",
			"violation_count",
			"violation_timestamp",
			"quiz_title",
			"student_query",
			"status",
			"teacher_response",
			"teacher_action",
			"updated_at",
		}),
	}).Create(n).Error
}

func (r *ViolationRepository) ListByTeacher(ctx context.Context, teacherID string) ([]model.ViolationNotification, error) {
	var list []model.ViolationNotification
	err := r.DB.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

// ResolveNotification 教师裁决，落终态
func (r *ViolationRepository) ResolveNotification(ctx context.Context, id string, status model.ViolationStatus, response string, action model.ViolationAction) error {
	return r.DB.WithContext(ctx).Model(&model.ViolationNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           status,
			"teacher_response": response,
			"teacher_action":   action,
			"updated_at":       time.Now(),
		}).Error
}

func (r *ViolationRepository) SetEvidenceURL(ctx context.Context, quizID uint, studentID, url string) error {
	return r.DB.WithContext(ctx).Model(&model.ViolationNotification{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Update("evidence_url", url).Error
}

// UpsertQuery 教师端申诉镜像，同样按 (quiz, student) 去重
func (r *ViolationRepository) UpsertQuery(ctx context.Context, q *model.ViolationQuery) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "quiz_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"student_name",
			"teacher_id",
			"teacher_email",
			"violation_type",
			"violation_count",
			"violation_timestamp",
			"quiz_title",
			"student_query",
			"status",
			"updated_at",
		}),
	}).Create(q).Error
}

func (r *ViolationRepository) FindQueryByEpisode(ctx context.Context, quizID uint, studentID string) (*model.ViolationQuery, error) {
	var q model.ViolationQuery
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *ViolationRepository) UpdateQueryStatus(ctx context.Context, quizID uint, studentID string, status model.QueryStatus) error {
	return r.DB.WithContext(ctx).Model(&model.ViolationQuery{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *ViolationRepository) CreateRetake(ctx context.Context, grant *model.RetakeGrant) error {
	return r.DB.WithContext(ctx).Create(grant).Error
}

func (r *ViolationRepository) CreateSuspension(ctx context.Context, s *model.Suspension) error {
	return r.DB.WithContext(ctx).Create(s).Error
}
