package models

import (
	"time"
)

// Campaign status values
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusArchived  = "archived"
)

// Campaign step types (fixed outreach sequence)
const (
	StepTypeVisit   = "visit"
	StepTypeConnect = "connect"
	StepTypeMessage = "message"
	StepTypeFollow  = "follow"
	StepTypeWait    = "wait_days"
	StepTypeCheck   = "check_connection"
)

// Campaign is a named, ordered step sequence fed from a lead folder and
// executed by the attached operator accounts.
type Campaign struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`
	FolderID string `json:"folder_id" gorm:"not null;index;type:uuid"`

	Status        string `json:"status" gorm:"type:varchar(20);index;default:'draft'"` // draft, active, paused, completed, archived
	DailyNewLeads int    `json:"daily_new_leads" gorm:"default:20"`
	TotalLeads    int    `json:"total_leads" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Folder   *LeadFolder       `json:"folder,omitempty" gorm:"foreignKey:FolderID;references:ID;constraint:OnDelete:CASCADE"`
	Steps    []CampaignStep    `json:"steps,omitempty" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
	Accounts []CampaignAccount `json:"accounts,omitempty" gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Campaign model
func (Campaign) TableName() string {
	return "campaigns"
}

// CampaignStep is one ordered step of a campaign sequence. Config carries
// step settings: message template, wait min/max days, branch target index.
type CampaignStep struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	CampaignID string `json:"campaign_id" gorm:"not null;index;type:uuid"`
	StepOrder  int    `json:"step_order" gorm:"not null;index"`
	Type       string `json:"type" gorm:"type:varchar(30);not null"`
	Config     JSON   `json:"config,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the CampaignStep model
func (CampaignStep) TableName() string {
	return "campaign_steps"
}

// CampaignAccount attaches an operator account to a campaign.
type CampaignAccount struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	CampaignID string `json:"campaign_id" gorm:"not null;index:idx_campaign_account,unique;type:uuid"`
	AccountID  string `json:"account_id" gorm:"not null;index:idx_campaign_account,unique;type:uuid"`

	CreatedAt time.Time `json:"created_at"`

	Account *Account `json:"account,omitempty" gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the CampaignAccount model
func (CampaignAccount) TableName() string {
	return "campaign_accounts"
}

// CampaignLeadProgress status values
const (
	ProgressStatusPending   = "pending"
	ProgressStatusActive    = "active"
	ProgressStatusWaiting   = "waiting"
	ProgressStatusFailed    = "failed"
	ProgressStatusCompleted = "completed"
)

// CampaignLeadProgress is the persisted step cursor for one (campaign, lead)
// pair and the single source of truth for scheduling resumption. Seeding is
// idempotent via the unique (campaign_id, lead_id) index.
type CampaignLeadProgress struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	CampaignID string `json:"campaign_id" gorm:"not null;index:idx_campaign_lead,unique;type:uuid"`
	LeadID     string `json:"lead_id" gorm:"not null;index:idx_campaign_lead,unique;type:uuid"`
	AccountID  string `json:"account_id" gorm:"not null;index;type:uuid"`

	CurrentStep  int        `json:"current_step" gorm:"default:0"`
	Status       string     `json:"status" gorm:"type:varchar(20);index;default:'pending'"` // pending, active, waiting, failed, completed
	NextActionAt *time.Time `json:"next_action_at" gorm:"index"`
	LastError    string     `json:"last_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lead *Lead `json:"lead,omitempty" gorm:"foreignKey:LeadID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the CampaignLeadProgress model
func (CampaignLeadProgress) TableName() string {
	return "campaign_lead_progress"
}
