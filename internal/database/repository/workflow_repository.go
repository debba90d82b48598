package repository

import (
	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create creates a workflow with its nodes and edges
func (r *WorkflowRepository) Create(workflow *models.Workflow) error {
	return r.db.Create(workflow).Error
}

// GetByID retrieves a workflow with its full graph
func (r *WorkflowRepository) GetByID(id string) (*models.Workflow, error) {
	var workflow models.Workflow
	err := r.db.Preload("Nodes").Preload("Edges").First(&workflow, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &workflow, nil
}

// GetAll retrieves all workflows without their graphs
func (r *WorkflowRepository) GetAll() ([]*models.Workflow, error) {
	var workflows []*models.Workflow
	err := r.db.Order("created_at DESC").Find(&workflows).Error
	return workflows, err
}

// Delete removes a workflow and its graph
func (r *WorkflowRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.WorkflowEdge{}, "workflow_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.WorkflowNode{}, "workflow_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Workflow{}, "id = ?", id).Error
	})
}
