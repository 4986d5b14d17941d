package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnswerMap 题目id -> 已作答内容(单选为字符串，多选为数组)
type AnswerMap map[string]interface{}

func (m *AnswerMap) Scan(value interface{}) error {
	return scanJSON(value, m, "AnswerMap")
}

func (m AnswerMap) Value() (driver.Value, error) {
	return jsonValue(m)
}

// MarkMap 题目id -> 标记位(旗标/收藏/待复查)
type MarkMap map[string]bool

func (m *MarkMap) Scan(value interface{}) error {
	return scanJSON(value, m, "MarkMap")
}

func (m MarkMap) Value() (driver.Value, error) {
	return jsonValue(m)
}

// SecondsMap 题目id -> 累计作答秒数。
// 旧版客户端会把整个map包在 {"questions": {...}} 里，
// 反序列化时统一摊平，保证库里只存扁平结构。
type SecondsMap map[string]float64

func (m *SecondsMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(SecondsMap, len(raw))
	for k, v := range raw {
		if k == "questions" && len(v) > 0 && v[0] == '{' {
			var nested map[string]float64
			if err := json.Unmarshal(v, &nested); err != nil {
				return err
			}
			for nk, nv := range nested {
				out[nk] = nv
			}
			continue
		}
		var sec float64
		if err := json.Unmarshal(v, &sec); err != nil {
			return err
		}
		out[k] = sec
	}
	*m = out
	return nil
}

func (m *SecondsMap) Scan(value interface{}) error {
	return scanJSON(value, m, "SecondsMap")
}

func (m SecondsMap) Value() (driver.Value, error) {
	return jsonValue(m)
}

// TabSwitchEvent 客户端监考脚本记录的一次切屏
type TabSwitchEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"`
}

// TabSwitchLog 按时间顺序追加的切屏日志
type TabSwitchLog []TabSwitchEvent

func (l *TabSwitchLog) Scan(value interface{}) error {
	return scanJSON(value, l, "TabSwitchLog")
}

func (l TabSwitchLog) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func scanJSON(value, dest interface{}, typeName string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for %s: %T", typeName, value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func jsonValue(m interface{}) (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// AttemptProgress 进行中答卷的自动保存快照，(quiz_id, student_id) 唯一。
// 最终提交后由 Attempt 取代，本行按需显式删除。
// swagger:model AttemptProgress
type AttemptProgress struct {
	BaseModel
	QuizID    uint   `gorm:"uniqueIndex:idx_progress_quiz_student,priority:1;not null" json:"quizId"`
	StudentID string `gorm:"size:64;uniqueIndex:idx_progress_quiz_student,priority:2;not null" json:"studentId"`

	Answers           AnswerMap  `gorm:"type:json" json:"answers"`
	Flagged           MarkMap    `gorm:"type:json" json:"flagged"`
	Bookmarked        MarkMap    `gorm:"type:json" json:"bookmarked"`
	MarkedForReview   MarkMap    `gorm:"type:json" json:"markedForReview"`
	QuestionTimeSpent SecondsMap `gorm:"type:json" json:"questionTimeSpent"`

	TabSwitchCount    int          `gorm:"default:0" json:"tabSwitchCount"`
	LastTabSwitchTime *time.Time   `json:"lastTabSwitchTime,omitempty"`
	TabSwitchHistory  TabSwitchLog `gorm:"type:json" json:"tabSwitchHistory"`

	StartTime *time.Time `json:"startTime,omitempty"`

	SubmittedDueToViolation bool       `gorm:"default:false" json:"submittedDueToViolation"`
	ViolationTimestamp      *time.Time `json:"violationTimestamp,omitempty"`
}

func (AttemptProgress) TableName() string {
	return "attempt_progresses"
}
