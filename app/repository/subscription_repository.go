package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/subalert/subalert/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription in the database
func (r *subscriptionRepository) Create(subscription *models.Subscription) error {
	return r.db.Create(subscription).Error
}

// GetByID retrieves a subscription by its ID
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.Preload("User").First(&subscription, id).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetByUUID retrieves a subscription by its UUID
func (r *subscriptionRepository) GetByUUID(uuid string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.Preload("User").Where("uuid = ?", uuid).First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetByUserID retrieves subscriptions for a user with pagination
func (r *subscriptionRepository) GetByUserID(userID uint, offset, limit int) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("next_billing_date ASC").
		Offset(offset).Limit(limit).
		Find(&subscriptions).Error
	return subscriptions, err
}

// Update updates an existing subscription
func (r *subscriptionRepository) Update(subscription *models.Subscription) error {
	return r.db.Save(subscription).Error
}

// Delete removes a subscription and cascades to its reminders
func (r *subscriptionRepository) Delete(id uint) error {
	return r.db.Select("Reminders").Delete(&models.Subscription{ID: id}).Error
}

// Count returns the total number of subscriptions
func (r *subscriptionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Count(&count).Error
	return count, err
}

// ListActive returns all active subscriptions
func (r *subscriptionRepository) ListActive() ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := r.db.Where("status = ?", models.SubscriptionStatusActive).Find(&subscriptions).Error
	return subscriptions, err
}

// ListExpiring returns active subscriptions whose next billing date falls within the window
func (r *subscriptionRepository) ListExpiring(now time.Time, days int) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	until := now.AddDate(0, 0, days)
	err := r.db.
		Where("status = ? AND next_billing_date > ? AND next_billing_date <= ?",
			models.SubscriptionStatusActive, now, until).
		Order("next_billing_date ASC").
		Find(&subscriptions).Error
	return subscriptions, err
}

// ListPastDue returns active subscriptions whose next billing date is before the start of today
func (r *subscriptionRepository) ListPastDue(now time.Time) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err := r.db.
		Where("status = ? AND next_billing_date < ?", models.SubscriptionStatusActive, startOfDay).
		Order("next_billing_date ASC").
		Find(&subscriptions).Error
	return subscriptions, err
}
