package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account
func (r *AccountRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(id string) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByProfileID retrieves an account by its browser profile id
func (r *AccountRepository) GetByProfileID(profileID string) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, "profile_id = ?", profileID).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAll retrieves all accounts
func (r *AccountRepository) GetAll() ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

// UpdateLoginStatus updates the login status and check timestamp
func (r *AccountRepository) UpdateLoginStatus(id, status string) error {
	now := time.Now()
	return r.db.Model(&models.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"login_status":    status,
		"last_checked_at": &now,
	}).Error
}

// UpdateLastError records the most recent failure for an account
func (r *AccountRepository) UpdateLastError(id, lastError string) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).
		Update("last_error", lastError).Error
}

// Update saves account changes
func (r *AccountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

// Delete removes an account
func (r *AccountRepository) Delete(id string) error {
	return r.db.Delete(&models.Account{}, "id = ?", id).Error
}
