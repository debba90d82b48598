package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type TwoFARepository struct {
	db *gorm.DB
}

func NewTwoFARepository(db *gorm.DB) *TwoFARepository {
	return &TwoFARepository{db: db}
}

// Create stores a submitted verification code
func (r *TwoFARepository) Create(code *models.TwoFACode) error {
	return r.db.Create(code).Error
}

// TakeCode consumes the newest unexpired code for an account. Returns false
// when none is available. Consumption is atomic so two waiters can never
// spend the same code.
func (r *TwoFARepository) TakeCode(accountID string) (string, bool) {
	var code models.TwoFACode
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("account_id = ? AND consumed = ? AND expires_at > ?", accountID, false, time.Now()).
			Order("created_at DESC").
			First(&code).Error
		if err != nil {
			return err
		}
		return tx.Model(&code).Update("consumed", true).Error
	})
	if err != nil {
		return "", false
	}
	return code.Code, true
}
