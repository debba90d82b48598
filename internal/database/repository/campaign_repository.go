package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a campaign with its steps and account attachments
func (r *CampaignRepository) Create(campaign *models.Campaign) error {
	return r.db.Create(campaign).Error
}

// GetByID retrieves a campaign with its ordered steps and accounts
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Accounts").
		Preload("Accounts.Account").
		First(&campaign, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetAll retrieves all campaigns without associations
func (r *CampaignRepository) GetAll() ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	err := r.db.Order("created_at DESC").Find(&campaigns).Error
	return campaigns, err
}

// GetActive retrieves campaigns eligible for scheduling
func (r *CampaignRepository) GetActive() ([]*models.Campaign, error) {
	var campaigns []*models.Campaign
	err := r.db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Accounts").
		Preload("Accounts.Account").
		Where("status = ?", models.CampaignStatusActive).
		Find(&campaigns).Error
	return campaigns, err
}

// UpdateStatus transitions a campaign's status
func (r *CampaignRepository) UpdateStatus(id, status string) error {
	return r.db.Model(&models.Campaign{}).Where("id = ?", id).
		Update("status", status).Error
}

// UpdateTotalLeads sets the campaign's seeded lead count
func (r *CampaignRepository) UpdateTotalLeads(id string, total int) error {
	return r.db.Model(&models.Campaign{}).Where("id = ?", id).
		Update("total_leads", total).Error
}

// SeedProgress inserts progress cursors for leads not yet in the campaign.
// Existing (campaign, lead) pairs are left untouched, so re-seeding after a
// crash or folder growth never resets a cursor.
func (r *CampaignRepository) SeedProgress(rows []*models.CampaignLeadProgress) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "lead_id"}},
		DoNothing: true,
	}).Create(&rows)
	return int(res.RowsAffected), res.Error
}

// GetSeededLeadIDs returns the lead ids already holding a cursor
func (r *CampaignRepository) GetSeededLeadIDs(campaignID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.CampaignLeadProgress{}).
		Where("campaign_id = ?", campaignID).
		Pluck("lead_id", &ids).Error
	return ids, err
}

// CountSeededSince counts cursors created at or after a point in time
func (r *CampaignRepository) CountSeededSince(campaignID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.CampaignLeadProgress{}).
		Where("campaign_id = ? AND created_at >= ?", campaignID, since).
		Count(&count).Error
	return count, err
}

// GetDueProgress retrieves cursors ready for work: anything not terminal
// whose next action time has arrived (or was never set).
func (r *CampaignRepository) GetDueProgress(campaignID string, now time.Time, limit int) ([]*models.CampaignLeadProgress, error) {
	var rows []*models.CampaignLeadProgress
	err := r.db.
		Preload("Lead").
		Where("campaign_id = ?", campaignID).
		Where("status IN ?", []string{
			models.ProgressStatusPending,
			models.ProgressStatusActive,
			models.ProgressStatusWaiting,
		}).
		Where("next_action_at IS NULL OR next_action_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UpdateProgress saves a progress cursor
func (r *CampaignRepository) UpdateProgress(progress *models.CampaignLeadProgress) error {
	return r.db.Save(progress).Error
}

// CountProgressByStatus returns how many cursors sit in each status
func (r *CampaignRepository) CountProgressByStatus(campaignID string) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&models.CampaignLeadProgress{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// CountProgress returns the number of seeded cursors for a campaign
func (r *CampaignRepository) CountProgress(campaignID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.CampaignLeadProgress{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}
