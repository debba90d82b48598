package models

import (
	"time"
)

// Lead lifecycle status values
const (
	LeadStatusPending   = "pending"
	LeadStatusRunning   = "running"
	LeadStatusCompleted = "completed"
	LeadStatusFailed    = "failed"
	LeadStatusSkipped   = "skipped"
)

// Connection degree values as detected on the target profile
const (
	DegreeFirst        = "1st"
	DegreeSecond       = "2nd"
	DegreeThird        = "3rd"
	DegreeOutOfNetwork = "out_of_network"
	DegreeUnknown      = "unknown"
)

// LeadFolder groups leads; folders are managed by the admin layer and only
// read here as campaign sources.
type LeadFolder struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the LeadFolder model
func (LeadFolder) TableName() string {
	return "lead_folders"
}

// Lead is a target profile to be acted upon. Created by the admin layer;
// mutated exclusively by the execution engines during a run.
type Lead struct {
	ID        string  `json:"id" gorm:"primaryKey;type:uuid"`
	AccountID string  `json:"account_id" gorm:"index;type:uuid"`
	FolderID  *string `json:"folder_id" gorm:"index;type:uuid"`

	ProfileURL string `json:"profile_url" gorm:"type:text;not null"`
	Name       string `json:"name" gorm:"type:varchar(255)"`
	FirstName  string `json:"first_name" gorm:"type:varchar(255)"`
	Company    string `json:"company" gorm:"type:varchar(255)"`
	Title      string `json:"title" gorm:"type:varchar(255)"`
	Extra      JSON   `json:"extra,omitempty" gorm:"type:jsonb"`

	Status           string `json:"status" gorm:"type:varchar(20);index;default:'pending'"` // pending, running, completed, failed, skipped
	ConnectionDegree string `json:"connection_degree" gorm:"type:varchar(20);default:'unknown'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Folder *LeadFolder `json:"folder,omitempty" gorm:"foreignKey:FolderID;references:ID;constraint:OnDelete:SET NULL"`
}

// TableName specifies the table name for the Lead model
func (Lead) TableName() string {
	return "leads"
}

// TemplateFields returns the fields available to message templates for this
// lead. Extra fields are merged in without overriding the named ones.
func (l *Lead) TemplateFields() map[string]string {
	fields := map[string]string{
		"name":       l.Name,
		"first_name": l.FirstName,
		"company":    l.Company,
		"title":      l.Title,
	}
	if fields["first_name"] == "" && l.Name != "" {
		fields["first_name"] = firstWord(l.Name)
	}
	for k, v := range l.Extra {
		if _, taken := fields[k]; taken {
			continue
		}
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}
