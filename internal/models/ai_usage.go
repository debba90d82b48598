package models

import (
	"time"
)

// AIUsageLog records one vision model call for cost accounting. Every call
// is metered regardless of success.
type AIUsageLog struct {
	ID string `json:"id" gorm:"primaryKey;type:uuid"`

	Model        string  `json:"model" gorm:"type:varchar(100);not null;index"`
	Purpose      string  `json:"purpose" gorm:"type:varchar(50);index"` // e.g. "ui_decision"
	PromptTokens int     `json:"prompt_tokens" gorm:"default:0"`
	OutputTokens int     `json:"output_tokens" gorm:"default:0"`
	CostUSD      float64 `json:"cost_usd" gorm:"type:decimal(10,6);default:0"`
	Success      bool    `json:"success" gorm:"default:false"`
	CacheHit     bool    `json:"cache_hit" gorm:"default:false"`
	Error        string  `json:"error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the AIUsageLog model
func (AIUsageLog) TableName() string {
	return "ai_usage_logs"
}
