package models

import (
	"time"
)

// ExecutionRun terminal and in-flight status values
const (
	RunStatusStarting  = "starting"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusStopped   = "stopped"
	RunStatusFailed    = "failed"
)

// ExecutionLog status values
const (
	LogStatusRunning = "running"
	LogStatusSuccess = "success"
	LogStatusError   = "error"
	LogStatusSkipped = "skipped"
	LogStatusInfo    = "info"
)

// ExecutionRun is one invocation of the workflow engine against a lead set.
type ExecutionRun struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	WorkflowID string `json:"workflow_id" gorm:"not null;index;type:uuid"`
	AccountID  string `json:"account_id" gorm:"not null;index;type:uuid"`

	Status     string `json:"status" gorm:"type:varchar(20);index;default:'starting'"` // starting, running, completed, stopped, failed
	TotalLeads int    `json:"total_leads" gorm:"default:0"`
	Completed  int    `json:"completed" gorm:"default:0"`
	Failed     int    `json:"failed" gorm:"default:0"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Workflow *Workflow `json:"workflow,omitempty" gorm:"foreignKey:WorkflowID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the ExecutionRun model
func (ExecutionRun) TableName() string {
	return "execution_runs"
}

// ExecutionLog is an append-only ordered event tied to a run. Write-once;
// never mutated.
type ExecutionLog struct {
	ID     string  `json:"id" gorm:"primaryKey;type:uuid"`
	RunID  string  `json:"run_id" gorm:"not null;index;type:uuid"`
	LeadID *string `json:"lead_id,omitempty" gorm:"index;type:uuid"`
	NodeID string  `json:"node_id" gorm:"type:varchar(255)"`

	Status  string `json:"status" gorm:"type:varchar(20);not null;index"` // running, success, error, skipped, info
	Message string `json:"message" gorm:"type:text;not null"`
	Result  JSON   `json:"result,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the ExecutionLog model
func (ExecutionLog) TableName() string {
	return "execution_logs"
}

// ExecutionLogRequest represents a log entry submitted by execution engines
type ExecutionLogRequest struct {
	RunID   string                 `json:"run_id" binding:"required"`
	LeadID  string                 `json:"lead_id,omitempty"`
	NodeID  string                 `json:"node_id,omitempty"`
	Status  string                 `json:"status" binding:"required"`
	Message string                 `json:"message" binding:"required"`
	Result  map[string]interface{} `json:"result,omitempty"`
}
