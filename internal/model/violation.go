package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ViolationStatus 违规事件生命周期:
// pending -> query_submitted -> approved / retake_allowed / debarred
type ViolationStatus string

const (
	ViolationPending        ViolationStatus = "pending"
	ViolationQuerySubmitted ViolationStatus = "query_submitted"
	ViolationApproved       ViolationStatus = "approved"
	ViolationRetakeAllowed  ViolationStatus = "retake_allowed"
	ViolationDebarred       ViolationStatus = "debarred"
)

func (s ViolationStatus) String() string { return string(s) }

func (s ViolationStatus) Valid() bool {
	switch s {
	case ViolationPending, ViolationQuerySubmitted, ViolationApproved, ViolationRetakeAllowed, ViolationDebarred:
		return true
	default:
		return false
	}
}

// Terminal 裁决后不再流转
func (s ViolationStatus) Terminal() bool {
	switch s {
	case ViolationApproved, ViolationRetakeAllowed, ViolationDebarred:
		return true
	default:
		return false
	}
}

func (s *ViolationStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = ViolationStatus(v)
	case []byte:
		*s = ViolationStatus(string(v))
	default:
		return fmt.Errorf("unsupported type for ViolationStatus: %T", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid ViolationStatus: %q", *s)
	}
	return nil
}

func (s ViolationStatus) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ViolationStatus: %q", s)
	}
	return string(s), nil
}

// QueryStatus 教师端申诉镜像记录的状态，与通知侧保持一致
type QueryStatus string

const (
	QueryPendingReview QueryStatus = "pending_review"
	QueryApproved      QueryStatus = "approved"
	QueryRetakeAllowed QueryStatus = "retake_allowed"
	QueryDebarred      QueryStatus = "debarred"
)

func (s QueryStatus) String() string { return string(s) }

func (s QueryStatus) Valid() bool {
	switch s {
	case QueryPendingReview, QueryApproved, QueryRetakeAllowed, QueryDebarred:
		return true
	default:
		return false
	}
}

func (s *QueryStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = QueryStatus(v)
	case []byte:
		*s = QueryStatus(string(v))
	default:
		return fmt.Errorf("unsupported type for QueryStatus: %T", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid QueryStatus: %q", *s)
	}
	return nil
}

func (s QueryStatus) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("invalid QueryStatus: %q", s)
	}
	return string(s), nil
}

// ViolationAction 教师裁决动作，封闭枚举，入口处校验
type ViolationAction string

const (
	ActionApprove ViolationAction = "approve"
	ActionRetake  ViolationAction = "retake"
	ActionDebar   ViolationAction = "debar"
)

func (a ViolationAction) Valid() bool {
	switch a {
	case ActionApprove, ActionRetake, ActionDebar:
		return true
	default:
		return false
	}
}

// TargetStatus 动作对应的终态
func (a ViolationAction) TargetStatus() (ViolationStatus, QueryStatus) {
	switch a {
	case ActionApprove:
		return ViolationApproved, QueryApproved
	case ActionRetake:
		return ViolationRetakeAllowed, QueryRetakeAllowed
	case ActionDebar:
		return ViolationDebarred, QueryDebarred
	default:
		return ViolationPending, QueryPendingReview
	}
}

// ViolationNotification 面向教师的违规事件记录，(quiz, student) 最多一条未决。
// 教师身份在创建时解析并冻结。
// swagger:model ViolationNotification
type ViolationNotification struct {
	UUIDBase
	QuizID    uint   `gorm:"uniqueIndex:idx_violation_quiz_student,priority:1;not null" json:"quizId"`
	StudentID string `gorm:"size:64;uniqueIndex:idx_violation_quiz_student,priority:2;not null" json:"studentId"`

	StudentName  string `gorm:"size:100" json:"studentName"`
	TeacherID    string `gorm:"size:64;index" json:"teacherId"`
	TeacherEmail string `gorm:"size:100" json:"teacherEmail"`

	ViolationType      string    `gorm:"size:50" json:"violationType"`
	ViolationCount     int       `json:"violationCount"`
	ViolationTimestamp time.Time `json:"violationTimestamp"`
	QuizTitle          string    `gorm:"size:255" json:"quizTitle"`

	StudentQuery string          `gorm:"type:text" json:"studentQuery"`
	Status       ViolationStatus `gorm:"type:varchar(20);index;default:'pending'" json:"status"`

	TeacherResponse string          `gorm:"type:text" json:"teacherResponse"`
	TeacherAction   ViolationAction `gorm:"type:varchar(20)" json:"teacherAction"`

	EvidenceURL string `gorm:"size:512" json:"evidenceUrl,omitempty"`
}

func (ViolationNotification) TableName() string {
	return "violation_notifications"
}

// ViolationQuery 学生申诉的教师端镜像，与通知记录同键、状态同步。
// 两边不在一个事务里，出现分歧按数据完整性问题记日志处理。
// swagger:model ViolationQuery
type ViolationQuery struct {
	UUIDBase
	QuizID    uint   `gorm:"uniqueIndex:idx_vquery_quiz_student,priority:1;not null" json:"quizId"`
	StudentID string `gorm:"size:64;uniqueIndex:idx_vquery_quiz_student,priority:2;not null" json:"studentId"`

	StudentName  string `gorm:"size:100" json:"studentName"`
	TeacherID    string `gorm:"size:64;index" json:"teacherId"`
	TeacherEmail string `gorm:"size:100" json:"teacherEmail"`

	ViolationType      string    `gorm:"size:50" json:"violationType"`
	ViolationCount     int       `json:"violationCount"`
	ViolationTimestamp time.Time `json:"violationTimestamp"`
	QuizTitle          string    `gorm:"size:255" json:"quizTitle"`

	StudentQuery string      `gorm:"type:text;not null" json:"studentQuery"`
	Status       QueryStatus `gorm:"type:varchar(20);index;default:'pending_review'" json:"status"`
}

func (ViolationQuery) TableName() string {
	return "violation_queries"
}

// RetakeGrant 重考授权审计流水，只增不改
// swagger:model RetakeGrant
type RetakeGrant struct {
	UUIDBase
	ViolationID string `gorm:"size:36;index" json:"violationId"`
	QuizID      uint   `gorm:"index" json:"quizId"`
	StudentID   string `gorm:"size:64;index" json:"studentId"`
	GrantedBy   string `gorm:"size:64" json:"grantedBy"`
	Status      string `gorm:"size:20;default:'approved'" json:"status"`
}

func (RetakeGrant) TableName() string {
	return "retake_grants"
}

// Suspension 停考处分审计流水，只增不改。expires_at 为空表示永久。
// swagger:model Suspension
type Suspension struct {
	UUIDBase
	ViolationID string     `gorm:"size:36;index" json:"violationId"`
	QuizID      uint       `gorm:"index" json:"quizId"`
	StudentID   string     `gorm:"size:64;index" json:"studentId"`
	SuspendedBy string     `gorm:"size:64" json:"suspendedBy"`
	Reason      string     `gorm:"type:text" json:"reason"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func (Suspension) TableName() string {
	return "suspensions"
}
