package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type AIUsageRepository struct {
	db *gorm.DB
}

func NewAIUsageRepository(db *gorm.DB) *AIUsageRepository {
	return &AIUsageRepository{db: db}
}

// Create appends one usage row
func (r *AIUsageRepository) Create(usage *models.AIUsageLog) error {
	return r.db.Create(usage).Error
}

// UsageSummary aggregates model spend over a window.
type UsageSummary struct {
	Model        string  `json:"model"`
	Calls        int64   `json:"calls"`
	PromptTokens int64   `json:"prompt_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// SummarizeSince aggregates usage per model since a point in time
func (r *AIUsageRepository) SummarizeSince(since time.Time) ([]*UsageSummary, error) {
	var rows []*UsageSummary
	err := r.db.Model(&models.AIUsageLog{}).
		Select("model, count(*) as calls, sum(prompt_tokens) as prompt_tokens, sum(output_tokens) as output_tokens, sum(cost_usd) as cost_usd").
		Where("created_at >= ?", since).
		Group("model").
		Scan(&rows).Error
	return rows, err
}
