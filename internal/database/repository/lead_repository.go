package repository

import (
	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create creates a new lead
func (r *LeadRepository) Create(lead *models.Lead) error {
	return r.db.Create(lead).Error
}

// GetByID retrieves a lead by ID
func (r *LeadRepository) GetByID(id string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.First(&lead, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetByIDs retrieves leads by a list of IDs, preserving only existing ones
func (r *LeadRepository) GetByIDs(ids []string) ([]*models.Lead, error) {
	var leads []*models.Lead
	err := r.db.Where("id IN ?", ids).Find(&leads).Error
	return leads, err
}

// GetByFolder retrieves all leads in a folder
func (r *LeadRepository) GetByFolder(folderID string) ([]*models.Lead, error) {
	var leads []*models.Lead
	err := r.db.Where("folder_id = ?", folderID).Order("created_at ASC").Find(&leads).Error
	return leads, err
}

// UpdateStatus updates a lead's lifecycle status
func (r *LeadRepository) UpdateStatus(id, status string) error {
	return r.db.Model(&models.Lead{}).Where("id = ?", id).
		Update("status", status).Error
}

// UpdateObserved persists the fields the engines learn from the live page:
// connection degree plus profile card fields filled in during a visit.
func (r *LeadRepository) UpdateObserved(lead *models.Lead) error {
	updates := map[string]interface{}{}
	if lead.ConnectionDegree != "" {
		updates["connection_degree"] = lead.ConnectionDegree
	}
	if lead.Name != "" {
		updates["name"] = lead.Name
	}
	if lead.FirstName != "" {
		updates["first_name"] = lead.FirstName
	}
	if lead.Company != "" {
		updates["company"] = lead.Company
	}
	if lead.Title != "" {
		updates["title"] = lead.Title
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Lead{}).Where("id = ?", lead.ID).
		Updates(updates).Error
}

// Update saves lead changes
func (r *LeadRepository) Update(lead *models.Lead) error {
	return r.db.Save(lead).Error
}
