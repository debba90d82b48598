package models

import (
	"time"
)

// Login status values for an operator account
const (
	LoginStatusUnknown     = "unknown"
	LoginStatusHealthy     = "healthy"
	LoginStatusAwaiting2FA = "awaiting_2fa"
	LoginStatusFailed      = "failed"
)

// Account represents one outreach identity with its own remote browser
// profile and stored credentials. Credentials are encrypted at rest and only
// decrypted inside the login healer.
type Account struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string `json:"name" gorm:"type:varchar(255);not null"`
	ProfileID string `json:"profile_id" gorm:"type:varchar(255);not null;uniqueIndex"` // remote browser profile (vendor user_id)

	EmailEncrypted    string `json:"-" gorm:"type:text"`
	PasswordEncrypted string `json:"-" gorm:"type:text"`

	LoginStatus   string     `json:"login_status" gorm:"type:varchar(20);index;default:'unknown'"` // unknown, healthy, awaiting_2fa, failed
	LastCheckedAt *time.Time `json:"last_checked_at"`
	LastError     string     `json:"last_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// Auth event names emitted during login healing
const (
	AuthEventLoginWall            = "login_wall_detected"
	AuthEventCredentialsSubmitted = "credentials_submitted"
	AuthEventTwoFARequired        = "two_fa_required"
	AuthEventTwoFASubmitted       = "two_fa_submitted"
	AuthEventSecurityWall         = "security_checkpoint"
	AuthEventLoginSuccess         = "login_success"
	AuthEventLoginFailed          = "login_failed"
)

// AuthEvent is an append-only record of a login healing transition, used
// for audit and for UI polling of healing progress.
type AuthEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	AccountID string    `json:"account_id" gorm:"not null;index;type:uuid"`
	Event     string    `json:"event" gorm:"type:varchar(40);not null"`
	Detail    string    `json:"detail" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the AuthEvent model
func (AuthEvent) TableName() string {
	return "auth_events"
}

// TwoFACode is the persisted side-channel for verification codes submitted
// out-of-band while an account is awaiting_2fa.
type TwoFACode struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	AccountID string    `json:"account_id" gorm:"not null;index;type:uuid"`
	Code      string    `json:"code" gorm:"type:varchar(16);not null"`
	Consumed  bool      `json:"consumed" gorm:"default:false;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the TwoFACode model
func (TwoFACode) TableName() string {
	return "two_fa_codes"
}

// SubmitTwoFARequest represents the request to submit a 2FA code for an account
type SubmitTwoFARequest struct {
	Code string `json:"code" binding:"required" example:"123456"`
}
