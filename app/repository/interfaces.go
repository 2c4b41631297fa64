package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/subalert/subalert/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for subscription-related database operations
type SubscriptionRepository interface {
	Create(subscription *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByUUID(uuid string) (*models.Subscription, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Subscription, error)
	Update(subscription *models.Subscription) error
	Delete(id uint) error
	Count() (int64, error)
	ListActive() ([]models.Subscription, error)
	ListExpiring(now time.Time, days int) ([]models.Subscription, error)
	ListPastDue(now time.Time) ([]models.Subscription, error)
}

// ReminderRepository defines the interface for reminder-related database operations
type ReminderRepository interface {
	Create(reminder *models.Reminder) error
	GetByID(id uint) (*models.Reminder, error)
	GetByUUID(uuid string) (*models.Reminder, error)
	GetBySubscriptionID(subscriptionID uint) ([]models.Reminder, error)
	Update(reminder *models.Reminder) error
	Delete(id uint) error
	Count() (int64, error)
	// ListDue returns enabled reminders whose next_send_at has passed, oldest
	// first, with the linked subscription and owner preloaded.
	ListDue(now time.Time, limit int) ([]models.Reminder, error)
	ListEnabledBySubscriptionAndType(subscriptionID uint, reminderType string) ([]models.Reminder, error)
	IncrementCounters(id uint, sent, failed int64) error
}

// ReminderLogRepository defines the interface for delivery log database operations
type ReminderLogRepository interface {
	Create(log *models.ReminderLog) error
	GetByID(id uint) (*models.ReminderLog, error)
	GetByReminderID(reminderID uint, offset, limit int) ([]models.ReminderLog, error)
	Update(log *models.ReminderLog) error
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
	// ListDueForRetry returns failed entries whose next_retry_at has passed and
	// whose retry budget is not exhausted, oldest retry first.
	ListDueForRetry(now time.Time, maxRetries int, limit int) ([]models.ReminderLog, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Reminder     ReminderRepository
	ReminderLog  ReminderLogRepository
	Setting      SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Reminder:     NewReminderRepository(db),
		ReminderLog:  NewReminderLogRepository(db),
		Setting:      NewSettingRepository(db),
	}
}
