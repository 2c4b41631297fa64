package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/subalert/subalert/app/models"
)

// reminderRepository implements the ReminderRepository interface
type reminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository creates a new reminder repository instance
func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

// Create creates a new reminder in the database
func (r *reminderRepository) Create(reminder *models.Reminder) error {
	return r.db.Create(reminder).Error
}

// GetByID retrieves a reminder by its ID
func (r *reminderRepository) GetByID(id uint) (*models.Reminder, error) {
	var reminder models.Reminder
	err := r.db.Preload("Subscription").Preload("Subscription.User").First(&reminder, id).Error
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// GetByUUID retrieves a reminder by its UUID
func (r *reminderRepository) GetByUUID(uuid string) (*models.Reminder, error) {
	var reminder models.Reminder
	err := r.db.Preload("Subscription").Preload("Subscription.User").
		Where("uuid = ?", uuid).First(&reminder).Error
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// GetBySubscriptionID retrieves all reminders of a subscription
func (r *reminderRepository) GetBySubscriptionID(subscriptionID uint) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.Where("subscription_id = ?", subscriptionID).Find(&reminders).Error
	return reminders, err
}

// Update updates an existing reminder
func (r *reminderRepository) Update(reminder *models.Reminder) error {
	return r.db.Save(reminder).Error
}

// Delete removes a reminder by ID
func (r *reminderRepository) Delete(id uint) error {
	return r.db.Delete(&models.Reminder{}, id).Error
}

// Count returns the total number of reminders
func (r *reminderRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Reminder{}).Count(&count).Error
	return count, err
}

// ListDue returns enabled reminders whose next_send_at has passed, oldest-due
// first so backlog is drained in order after an outage.
func (r *reminderRepository) ListDue(now time.Time, limit int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.
		Preload("Subscription").Preload("Subscription.User").
		Where("status = ? AND next_send_at IS NOT NULL AND next_send_at <= ?", models.ReminderStatusEnabled, now).
		Order("next_send_at ASC").
		Limit(limit).
		Find(&reminders).Error
	return reminders, err
}

// ListEnabledBySubscriptionAndType returns a subscription's enabled reminders of one type
func (r *reminderRepository) ListEnabledBySubscriptionAndType(subscriptionID uint, reminderType string) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.
		Where("subscription_id = ? AND type = ? AND status = ?",
			subscriptionID, reminderType, models.ReminderStatusEnabled).
		Find(&reminders).Error
	return reminders, err
}

// IncrementCounters applies aggregated sent/failed deltas to a reminder row
func (r *reminderRepository) IncrementCounters(id uint, sent, failed int64) error {
	updates := map[string]interface{}{}
	if sent != 0 {
		updates["sent_count"] = gorm.Expr("sent_count + ?", sent)
	}
	if failed != 0 {
		updates["failed_count"] = gorm.Expr("failed_count + ?", failed)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Reminder{}).Where("id = ?", id).Updates(updates).Error
}
