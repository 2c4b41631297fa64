package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/subalert/subalert/app/models"
)

// reminderLogRepository implements the ReminderLogRepository interface
type reminderLogRepository struct {
	db *gorm.DB
}

// NewReminderLogRepository creates a new reminder log repository instance
func NewReminderLogRepository(db *gorm.DB) ReminderLogRepository {
	return &reminderLogRepository{db: db}
}

// Create creates a new delivery log entry
func (r *reminderLogRepository) Create(log *models.ReminderLog) error {
	return r.db.Create(log).Error
}

// GetByID retrieves a log entry by its ID
func (r *reminderLogRepository) GetByID(id uint) (*models.ReminderLog, error) {
	var log models.ReminderLog
	err := r.db.First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetByReminderID retrieves log entries of a reminder with pagination, newest first
func (r *reminderLogRepository) GetByReminderID(reminderID uint, offset, limit int) ([]models.ReminderLog, error) {
	var logs []models.ReminderLog
	err := r.db.Where("reminder_id = ?", reminderID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Update updates an existing log entry
func (r *reminderLogRepository) Update(log *models.ReminderLog) error {
	return r.db.Save(log).Error
}

// Count returns the total number of log entries
func (r *reminderLogRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ReminderLog{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of log entries with the given status
func (r *reminderLogRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ReminderLog{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// ListDueForRetry returns failed entries eligible for another attempt, oldest
// retry deadline first.
func (r *reminderLogRepository) ListDueForRetry(now time.Time, maxRetries int, limit int) ([]models.ReminderLog, error) {
	var logs []models.ReminderLog
	err := r.db.
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ? AND retry_count < ?",
			models.ReminderLogStatusFailed, now, maxRetries).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
