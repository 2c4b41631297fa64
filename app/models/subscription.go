package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusSuspended = "suspended"
)

const (
	BillingCycleMonthly      = "monthly"
	BillingCycleQuarterly    = "quarterly"
	BillingCycleSemiAnnually = "semi_annually"
	BillingCycleAnnually     = "annually"
	BillingCycleLifetime     = "lifetime"
)

// Subscription is a tracked paid service whose billing/expiry dates drive reminders.
// NextBillingDate is set unless the cycle is lifetime or the subscription is not active.
type Subscription struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	ServiceName     string     `gorm:"type:varchar(191);not null" json:"service_name" validate:"required,max=191"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	Price           float64    `gorm:"type:decimal(10,2);not null;default:0" json:"price" validate:"gte=0"`
	Currency        string     `gorm:"type:varchar(3);not null;default:'USD'" json:"currency" validate:"len=3"`
	BillingCycle    string     `gorm:"type:varchar(20);not null;index" json:"billing_cycle" validate:"oneof=monthly quarterly semi_annually annually lifetime"`
	StartDate       time.Time  `gorm:"type:date;not null" json:"start_date"`
	NextBillingDate *time.Time `gorm:"type:date;index" json:"next_billing_date,omitempty"`
	EndDate         *time.Time `gorm:"type:date" json:"end_date,omitempty"`
	Status          string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status" validate:"oneof=active expired cancelled suspended"`
	AutoRenew       bool       `gorm:"default:true" json:"auto_renew"`
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reminders []Reminder `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE" json:"reminders,omitempty"`
}

// BeforeCreate assigns a UUID when none was provided.
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.New().String()
	}
	return nil
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

func (s *Subscription) IsCancelled() bool {
	return s.Status == SubscriptionStatusCancelled
}

// IsExpiring reports whether the next billing date falls within the given window.
func (s *Subscription) IsExpiring(now time.Time, days int) bool {
	if !s.IsActive() || s.NextBillingDate == nil {
		return false
	}
	return !s.NextBillingDate.After(now.AddDate(0, 0, days))
}

// IsPastDue reports whether the next billing date is before the start of today.
func (s *Subscription) IsPastDue(now time.Time) bool {
	if s.NextBillingDate == nil {
		return false
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.NextBillingDate.Before(startOfDay)
}

// AnnualCost normalizes the price to a yearly figure.
func (s *Subscription) AnnualCost() float64 {
	switch s.BillingCycle {
	case BillingCycleMonthly:
		return s.Price * 12
	case BillingCycleQuarterly:
		return s.Price * 4
	case BillingCycleSemiAnnually:
		return s.Price * 2
	default:
		return s.Price
	}
}
