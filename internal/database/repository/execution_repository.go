package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// CreateRun creates a new execution run
func (r *ExecutionRepository) CreateRun(run *models.ExecutionRun) error {
	return r.db.Create(run).Error
}

// GetRun retrieves a run by ID
func (r *ExecutionRepository) GetRun(id string) (*models.ExecutionRun, error) {
	var run models.ExecutionRun
	err := r.db.First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRuns retrieves runs, newest first
func (r *ExecutionRepository) GetRuns(limit, offset int) ([]*models.ExecutionRun, error) {
	var runs []*models.ExecutionRun
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&runs).Error
	return runs, err
}

// UpdateRunStatus transitions a run's lifecycle status
func (r *ExecutionRepository) UpdateRunStatus(id, status string) error {
	return r.db.Model(&models.ExecutionRun{}).Where("id = ?", id).
		Update("status", status).Error
}

// FinishRun sets the run's terminal status and finish timestamp
func (r *ExecutionRepository) FinishRun(id, status string) error {
	now := time.Now()
	return r.db.Model(&models.ExecutionRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"finished_at": &now,
	}).Error
}

// IncrementRunCounters adds to the run's completed/failed lead counters
func (r *ExecutionRepository) IncrementRunCounters(id string, completed, failed int) error {
	return r.db.Model(&models.ExecutionRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"completed": gorm.Expr("completed + ?", completed),
		"failed":    gorm.Expr("failed + ?", failed),
	}).Error
}

// CreateLog appends one execution log row
func (r *ExecutionRepository) CreateLog(log *models.ExecutionLog) error {
	return r.db.Create(log).Error
}

// GetLogsByRun retrieves a run's logs in order
func (r *ExecutionRepository) GetLogsByRun(runID string, limit, offset int) ([]*models.ExecutionLog, error) {
	var logs []*models.ExecutionLog
	err := r.db.Where("run_id = ?", runID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

// GetLogsByLead retrieves every log touching one lead, newest first
func (r *ExecutionRepository) GetLogsByLead(leadID string, limit int) ([]*models.ExecutionLog, error) {
	var logs []*models.ExecutionLog
	err := r.db.Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
