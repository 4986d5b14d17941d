package service

import (
	"context"
	"fmt"
	"time"

	"quiz_portal_backend/internal/model"
	"quiz_portal_backend/internal/util"
)

// ProgressStore 自动保存快照的持久层。Get 查不到时返回 (nil, nil)。
type ProgressStore interface {
	Get(ctx context.Context, quizID uint, studentID string) (*model.AttemptProgress, error)
	Upsert(ctx context.Context, progress *model.AttemptProgress) error
	Delete(ctx context.Context, quizID uint, studentID string) error
}

// ProgressSnapshot 客户端上报的部分快照。指针/nil 区分"字段未上报"和"上报了零值"。
type ProgressSnapshot struct {
	QuizID    uint   `json:"quizId" binding:"required"`
	StudentID string `json:"studentId" binding:"required"`

	Answers           model.AnswerMap  `json:"answers"`
	Flagged           model.MarkMap    `json:"flagged"`
	Bookmarked        model.MarkMap    `json:"bookmarked"`
	MarkedForReview   model.MarkMap    `json:"markedForReview"`
	QuestionTimeSpent model.SecondsMap `json:"questionTimeSpent"`

	TabSwitchCount    *int               `json:"tabSwitchCount"`
	LastTabSwitchTime *time.Time         `json:"lastTabSwitchTime"`
	TabSwitchHistory  model.TabSwitchLog `json:"tabSwitchHistory"`

	StartTime *time.Time `json:"startTime"`

	SubmittedDueToViolation *bool      `json:"submittedDueToViolation"`
	ViolationTimestamp      *time.Time `json:"violationTimestamp"`
}

// ProgressService 把乱序、不完整的客户端快照合并成一份稳定的存储记录。
// 答案只增不减；其余字段组按"上报即整体替换"处理，作答用时逐题合并。
type ProgressService struct {
	Store ProgressStore
}

func NewProgressService(store ProgressStore) *ProgressService {
	return &ProgressService{Store: store}
}

// Save 自动保存。没有已存行时等价于首次创建。
func (s *ProgressService) Save(ctx context.Context, snap *ProgressSnapshot) (*model.AttemptProgress, error) {
	if snap.QuizID == 0 || snap.StudentID == "" {
		return nil, fmt.Errorf("%w: quizId and studentId are required", util.ErrValidation)
	}

	existing, err := s.Store.Get(ctx, snap.QuizID, snap.StudentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load progress: %v", util.ErrStorage, err)
	}

	merged := mergeSnapshot(existing, snap)
	if err := s.Store.Upsert(ctx, merged); err != nil {
		return nil, fmt.Errorf("%w: save progress: %v", util.ErrStorage, err)
	}
	return merged, nil
}

// Read 取快照。尚无记录返回 (nil, nil)，不按错误处理。
func (s *ProgressService) Read(ctx context.Context, quizID uint, studentID string) (*model.AttemptProgress, error) {
	if quizID == 0 || studentID == "" {
		return nil, fmt.Errorf("%w: quizId and studentId are required", util.ErrValidation)
	}
	progress, err := s.Store.Get(ctx, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load progress: %v", util.ErrStorage, err)
	}
	return progress, nil
}

// Patch 只允许修改已有记录；合并规则与 Save 一致。
func (s *ProgressService) Patch(ctx context.Context, snap *ProgressSnapshot) (*model.AttemptProgress, error) {
	if snap.QuizID == 0 || snap.StudentID == "" {
		return nil, fmt.Errorf("%w: quizId and studentId are required", util.ErrValidation)
	}

	existing, err := s.Store.Get(ctx, snap.QuizID, snap.StudentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load progress: %v", util.ErrStorage, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: no progress for quiz %d student %s", util.ErrNotFound, snap.QuizID, snap.StudentID)
	}

	merged := mergeSnapshot(existing, snap)
	if err := s.Store.Upsert(ctx, merged); err != nil {
		return nil, fmt.Errorf("%w: patch progress: %v", util.ErrStorage, err)
	}
	return merged, nil
}

// Delete 幂等：不存在也算成功
func (s *ProgressService) Delete(ctx context.Context, quizID uint, studentID string) error {
	if quizID == 0 || studentID == "" {
		return fmt.Errorf("%w: quizId and studentId are required", util.ErrValidation)
	}
	if err := s.Store.Delete(ctx, quizID, studentID); err != nil {
		return fmt.Errorf("%w: delete progress: %v", util.ErrStorage, err)
	}
	return nil
}

// mergeSnapshot 字段组级别 last-writer-wins：
//   - answers: 浅合并，同题号来者覆盖，键集合只增不减
//   - flagged/bookmarked/markedForReview/切屏字段: 上报即整体替换
//   - questionTimeSpent: 逐题合并（旧版嵌套结构在反序列化时已摊平）
//   - startTime: 上报缺失时保留已存值
func mergeSnapshot(existing *model.AttemptProgress, snap *ProgressSnapshot) *model.AttemptProgress {
	merged := &model.AttemptProgress{
		QuizID:    snap.QuizID,
		StudentID: snap.StudentID,
	}
	if existing != nil {
		*merged = *existing
	}

	if snap.Answers != nil {
		answers := make(model.AnswerMap, len(merged.Answers)+len(snap.Answers))
		for k, v := range merged.Answers {
			answers[k] = v
		}
		for k, v := range snap.Answers {
			answers[k] = v
		}
		merged.Answers = answers
	}

	if snap.Flagged != nil {
		merged.Flagged = snap.Flagged
	}
	if snap.Bookmarked != nil {
		merged.Bookmarked = snap.Bookmarked
	}
	if snap.MarkedForReview != nil {
		merged.MarkedForReview = snap.MarkedForReview
	}

	if snap.QuestionTimeSpent != nil {
		spent := make(model.SecondsMap, len(merged.QuestionTimeSpent)+len(snap.QuestionTimeSpent))
		for k, v := range merged.QuestionTimeSpent {
			spent[k] = v
		}
		for k, v := range snap.QuestionTimeSpent {
			spent[k] = v
		}
		merged.QuestionTimeSpent = spent
	}

	if snap.TabSwitchCount != nil {
		merged.TabSwitchCount = *snap.TabSwitchCount
	}
	if snap.LastTabSwitchTime != nil {
		merged.LastTabSwitchTime = snap.LastTabSwitchTime
	}
	if snap.TabSwitchHistory != nil {
		merged.TabSwitchHistory = snap.TabSwitchHistory
	}

	if snap.StartTime != nil {
		merged.StartTime = snap.StartTime
	}

	if snap.SubmittedDueToViolation != nil {
		merged.SubmittedDueToViolation = *snap.SubmittedDueToViolation
	}
	if snap.ViolationTimestamp != nil {
		merged.ViolationTimestamp = snap.ViolationTimestamp
	}

	merged.UpdatedAt = time.Now()
	return merged
}
