package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz_portal_backend/internal/model"
	"quiz_portal_backend/internal/util"
	"quiz_portal_backend/pkg/logger"
	"quiz_portal_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ViolationStore 违规记录持久层。Find* 查不到时返回 (nil, nil)。
type ViolationStore interface {
	FindNotificationByID(ctx context.Context, id string) (*model.ViolationNotification, error)
	FindNotificationByEpisode(ctx context.Context, quizID uint, studentID string) (*model.ViolationNotification, error)
	UpsertNotification(ctx context.Context, n *model.ViolationNotification) error
	ListByTeacher(ctx context.Context, teacherID string) ([]model.ViolationNotification, error)
	ResolveNotification(ctx context.Context, id string, status model.ViolationStatus, response string, action model.ViolationAction) error
	SetEvidenceURL(ctx context.Context, quizID uint, studentID, url string) error

	UpsertQuery(ctx context.Context, q *model.ViolationQuery) error
	FindQueryByEpisode(ctx context.Context, quizID uint, studentID string) (*model.ViolationQuery, error)
	UpdateQueryStatus(ctx context.Context, quizID uint, studentID string, status model.QueryStatus) error

	CreateRetake(ctx context.Context, grant *model.RetakeGrant) error
	CreateSuspension(ctx context.Context, s *model.Suspension) error
}

// QuizFinder 违规流程只需要标题和归属教师。查不到时返回 (nil, nil)。
type QuizFinder interface {
	FindByID(id uint) (*model.Quiz, error)
}

// AttemptStore approve 时解除成绩屏蔽用
type AttemptStore interface {
	ClearViolationBlock(quizID uint, studentID string) error
}

// Notifier 教师提醒入队，异步投递
type Notifier interface {
	Enqueue(alert ViolationAlert)
}

type RaiseViolationRequest struct {
	QuizID             uint       `json:"quizId" binding:"required"`
	StudentID          string     `json:"studentId" binding:"required"`
	StudentName        string     `json:"studentName" binding:"required"`
	ViolationType      string     `json:"violationType" binding:"required"`
	ViolationCount     int        `json:"violationCount"`
	ViolationTimestamp *time.Time `json:"violationTimestamp"`
	QuizTitle          string     `json:"quizTitle"`
}

type SubmitQueryRequest struct {
	QuizID             uint       `json:"quizId" binding:"required"`
	StudentID          string     `json:"studentId" binding:"required"`
	StudentName        string     `json:"studentName"`
	ViolationType      string     `json:"violationType"`
	ViolationCount     int        `json:"violationCount"`
	ViolationTimestamp *time.Time `json:"violationTimestamp"`
	QuizTitle          string     `json:"quizTitle"`
	StudentQuery       string     `json:"studentQuery" binding:"required"`
}

type TeacherActionRequest struct {
	ViolationID     string                `json:"violationId" binding:"required"`
	Action          model.ViolationAction `json:"action" binding:"required"`
	TeacherResponse string                `json:"teacherResponse"`
	TeacherID       string                `json:"teacherId" binding:"required"`
}

// ViolationService 违规事件状态机：
// pending -> query_submitted -> approved / retake_allowed / debarred。
// 主效果失败向上抛，镜像记录/审计流水/邮件等副作用失败只记日志。
type ViolationService struct {
	Store     ViolationStore
	Quizzes   QuizFinder
	Attempts  AttemptStore
	Resolvers []TeacherResolver
	Notifier  Notifier

	// 申诉写库的兜底时限
	QueryTimeout time.Duration
	// 教师审核页深链接前缀
	ReviewBaseURL string
}

func NewViolationService(store ViolationStore, quizzes QuizFinder, attempts AttemptStore, resolvers []TeacherResolver, notifier Notifier, reviewBaseURL string) *ViolationService {
	return &ViolationService{
		Store:         store,
		Quizzes:       quizzes,
		Attempts:      attempts,
		Resolvers:     resolvers,
		Notifier:      notifier,
		QueryTimeout:  util.ViolationQueryTimeoutSeconds * time.Second,
		ReviewBaseURL: reviewBaseURL,
	}
}

// Raise 客户端监考脚本越线时触发。教师解析失败不阻塞创建——
// 事件必须落库，占位教师之后可通过申诉路径自愈。
func (s *ViolationService) Raise(ctx context.Context, req *RaiseViolationRequest) (*model.ViolationNotification, error) {
	if req.QuizID == 0 || req.StudentID == "" || req.StudentName == "" || req.ViolationType == "" {
		return nil, fmt.Errorf("%w: quizId, studentId, studentName and violationType are required", util.ErrValidation)
	}

	quizTitle := req.QuizTitle
	quiz, err := s.Quizzes.FindByID(req.QuizID)
	if err != nil {
		// 查询故障不是 404，别把存储挂了伪装成测验不存在
		return nil, fmt.Errorf("%w: load quiz %d: %v", util.ErrStorage, req.QuizID, err)
	}
	if quiz == nil {
		return nil, fmt.Errorf("%w: quiz %d", util.ErrNotFound, req.QuizID)
	}
	ownerID := quiz.OwnerID
	if quizTitle == "" {
		quizTitle = quiz.Title
	}

	teacher := resolveTeacher(ctx, s.Resolvers, ownerID)

	ts := time.Now()
	if req.ViolationTimestamp != nil {
		ts = *req.ViolationTimestamp
	}

	n := &model.ViolationNotification{
		QuizID:             req.QuizID,
		StudentID:          req.StudentID,
		StudentName:        req.StudentName,
		TeacherID:          teacher.ID,
		TeacherEmail:       teacher.Email,
		ViolationType:      req.ViolationType,
		ViolationCount:     req.ViolationCount,
		ViolationTimestamp: ts,
		QuizTitle:          quizTitle,
		Status:             model.ViolationPending,
	}

	if err := s.Store.UpsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: upsert violation notification: %v", util.ErrStorage, err)
	}

	// 再次违规会命中已有行，取回库里的权威记录(含原id)
	stored, err := s.Store.FindNotificationByEpisode(ctx, req.QuizID, req.StudentID)
	if err != nil || stored == nil {
		logger.Log.Warn("violation stored but reload failed",
			zap.Uint("quizId", req.QuizID),
			zap.String("studentId", req.StudentID),
			zap.Error(err))
		stored = n
	}

	monitoring.ViolationCounter.WithLabelValues(req.ViolationType).Inc()

	s.Notifier.Enqueue(ViolationAlert{
		TeacherName:    teacher.Name,
		TeacherEmail:   teacher.Email,
		StudentName:    req.StudentName,
		QuizTitle:      quizTitle,
		ViolationType:  req.ViolationType,
		ViolationCount: req.ViolationCount,
		Timestamp:      ts,
		ReviewURL:      s.reviewURL(stored.ID),
	})

	return stored, nil
}

// SubmitQuery 学生申诉。主效果是教师端申诉记录；通知侧状态同步失败只记日志。
func (s *ViolationService) SubmitQuery(ctx context.Context, req *SubmitQueryRequest) (string, error) {
	if req.QuizID == 0 || req.StudentID == "" || strings.TrimSpace(req.StudentQuery) == "" {
		return "", fmt.Errorf("%w: quizId, studentId and studentQuery are required", util.ErrValidation)
	}

	// 独立于 Raise 再解析一次教师，占位身份在这里自愈
	ownerID := ""
	quizTitle := req.QuizTitle
	if quiz, err := s.Quizzes.FindByID(req.QuizID); err == nil && quiz != nil {
		ownerID = quiz.OwnerID
		if quizTitle == "" {
			quizTitle = quiz.Title
		}
	}
	teacher := resolveTeacher(ctx, s.Resolvers, ownerID)

	ts := time.Now()
	if req.ViolationTimestamp != nil {
		ts = *req.ViolationTimestamp
	}

	q := &model.ViolationQuery{
		QuizID:             req.QuizID,
		StudentID:          req.StudentID,
		StudentName:        req.StudentName,
		TeacherID:          teacher.ID,
		TeacherEmail:       teacher.Email,
		ViolationType:      req.ViolationType,
		ViolationCount:     req.ViolationCount,
		ViolationTimestamp: ts,
		QuizTitle:          quizTitle,
		StudentQuery:       req.StudentQuery,
		Status:             model.QueryPendingReview,
	}

	// 申诉写库有墙钟预算，超时和普通存储错误分开上报
	boundedCtx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()
	if err := s.Store.UpsertQuery(boundedCtx, q); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: submit query exceeded %s", util.ErrTimeout, s.QueryTimeout)
		}
		return "", fmt.Errorf("%w: upsert violation query: %v", util.ErrStorage, err)
	}

	queryID := q.ID
	if stored, err := s.Store.FindQueryByEpisode(ctx, req.QuizID, req.StudentID); err == nil && stored != nil {
		queryID = stored.ID
	}

	// 通知侧镜像：同payload、状态 query_submitted。失败不影响申诉本身。
	n := &model.ViolationNotification{
		QuizID:             req.QuizID,
		StudentID:          req.StudentID,
		StudentName:        req.StudentName,
		TeacherID:          teacher.ID,
		TeacherEmail:       teacher.Email,
		ViolationType:      req.ViolationType,
		ViolationCount:     req.ViolationCount,
		ViolationTimestamp: ts,
		QuizTitle:          quizTitle,
		StudentQuery:       req.StudentQuery,
		Status:             model.ViolationQuerySubmitted,
	}
	if err := s.Store.UpsertNotification(ctx, n); err != nil {
		logger.Log.Error("violation query saved but notification mirror update failed",
			zap.Uint("quizId", req.QuizID),
			zap.String("studentId", req.StudentID),
			zap.Error(err))
	}

	return queryID, nil
}

// TeacherAct 教师裁决。非法动作在入口就拒绝，不会落成悬空的 pending。
func (s *ViolationService) TeacherAct(ctx context.Context, req *TeacherActionRequest) (*model.ViolationNotification, error) {
	if req.ViolationID == "" || req.TeacherID == "" {
		return nil, fmt.Errorf("%w: violationId and teacherId are required", util.ErrValidation)
	}
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidAction, req.Action)
	}

	n, err := s.Store.FindNotificationByID(ctx, req.ViolationID)
	if err != nil {
		return nil, fmt.Errorf("%w: load violation: %v", util.ErrStorage, err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: violation %s", util.ErrNotFound, req.ViolationID)
	}
	if n.Status.Terminal() {
		return nil, fmt.Errorf("%w: violation %s is %s", util.ErrViolationResolved, n.ID, n.Status)
	}

	status, queryStatus := req.Action.TargetStatus()

	// 主效果：通知记录落终态
	if err := s.Store.ResolveNotification(ctx, n.ID, status, req.TeacherResponse, req.Action); err != nil {
		return nil, fmt.Errorf("%w: resolve violation: %v", util.ErrStorage, err)
	}

	// 镜像记录同步。没有共享事务，失败即分歧，记日志等人工对账。
	if err := s.Store.UpdateQueryStatus(ctx, n.QuizID, n.StudentID, queryStatus); err != nil {
		logger.Log.Error("violation resolved but query mirror update failed",
			zap.String("violationId", n.ID),
			zap.String("status", status.String()),
			zap.Error(err))
	}

	switch req.Action {
	case model.ActionApprove:
		// 放开成绩可见性
		if err := s.Attempts.ClearViolationBlock(n.QuizID, n.StudentID); err != nil {
			logger.Log.Error("violation approved but attempt unblock failed",
				zap.String("violationId", n.ID),
				zap.Error(err))
		}
	case model.ActionRetake:
		grant := &model.RetakeGrant{
			ViolationID: n.ID,
			QuizID:      n.QuizID,
			StudentID:   n.StudentID,
			GrantedBy:   req.TeacherID,
			Status:      "approved",
		}
		if err := s.Store.CreateRetake(ctx, grant); err != nil {
			logger.Log.Error("retake allowed but audit insert failed",
				zap.String("violationId", n.ID),
				zap.Error(err))
		}
	case model.ActionDebar:
		// expiresAt 为空：永久停考
		suspension := &model.Suspension{
			ViolationID: n.ID,
			QuizID:      n.QuizID,
			StudentID:   n.StudentID,
			SuspendedBy: req.TeacherID,
			Reason:      req.TeacherResponse,
			ExpiresAt:   nil,
		}
		if err := s.Store.CreateSuspension(ctx, suspension); err != nil {
			logger.Log.Error("student debarred but suspension insert failed",
				zap.String("violationId", n.ID),
				zap.Error(err))
		}
	}

	n.Status = status
	n.TeacherResponse = req.TeacherResponse
	n.TeacherAction = req.Action
	return n, nil
}

func (s *ViolationService) ListByTeacher(ctx context.Context, teacherID string) ([]model.ViolationNotification, error) {
	if teacherID == "" {
		return nil, fmt.Errorf("%w: teacherId is required", util.ErrValidation)
	}
	list, err := s.Store.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("%w: list violations: %v", util.ErrStorage, err)
	}
	return list, nil
}

// AttachEvidence 记录监考脚本上传的截图地址
func (s *ViolationService) AttachEvidence(ctx context.Context, quizID uint, studentID, url string) error {
	if quizID == 0 || studentID == "" || url == "" {
		return fmt.Errorf("%w: quizId, studentId and evidence url are required", util.ErrValidation)
	}
	if err := s.Store.SetEvidenceURL(ctx, quizID, studentID, url); err != nil {
		return fmt.Errorf("%w: attach evidence: %v", util.ErrStorage, err)
	}
	return nil
}

func (s *ViolationService) reviewURL(violationID string) string {
	base := strings.TrimRight(s.ReviewBaseURL, "/")
	return base + "/" + violationID
}
