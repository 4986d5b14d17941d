package model

// swagger:model Quiz
type Quiz struct {
	BaseModel
	Title           string `gorm:"size:255;not null" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	DurationMinutes int    `gorm:"default:30" json:"durationMinutes"`
	Published       bool   `gorm:"default:false" json:"published"`
	// 出题教师在身份提供方的id，违规通知据此解析归属教师
	OwnerID string `gorm:"size:64;index;not null" json:"ownerId"`
	// 连续切屏多少次视为违规并自动交卷
	TabSwitchLimit int `gorm:"default:5" json:"tabSwitchLimit"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
