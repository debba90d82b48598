package repository

import (
	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type AuthEventRepository struct {
	db *gorm.DB
}

func NewAuthEventRepository(db *gorm.DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Create appends one auth event
func (r *AuthEventRepository) Create(event *models.AuthEvent) error {
	return r.db.Create(event).Error
}

// GetByAccount retrieves an account's auth events, newest first
func (r *AuthEventRepository) GetByAccount(accountID string, limit int) ([]*models.AuthEvent, error) {
	var events []*models.AuthEvent
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
