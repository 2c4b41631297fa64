package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReminderTypeBilling = "billing"
	ReminderTypeExpiry  = "expiry"
	ReminderTypeCustom  = "custom"
)

const (
	ReminderStatusEnabled  = "enabled"
	ReminderStatusDisabled = "disabled"
)

const (
	RepeatIntervalHourly  = "hourly"
	RepeatIntervalDaily   = "daily"
	RepeatIntervalWeekly  = "weekly"
	RepeatIntervalMonthly = "monthly"
)

// RepeatConfig controls how a repeating reminder advances after each send.
type RepeatConfig struct {
	Interval string `json:"interval" validate:"oneof=hourly daily weekly monthly"`
	Count    int    `json:"count" validate:"gte=1"`
}

// RecipientConfig overrides the subscription owner's contact data per channel.
type RecipientConfig struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Webhook string `json:"webhook,omitempty"`
}

// TemplateConfig customizes message content; TargetDate (YYYY-MM-DD) is the
// anchor date for custom-type reminders.
type TemplateConfig struct {
	TargetDate string `json:"target_date,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
}

// Reminder schedules notifications ahead of a subscription's billing or expiry
// date (or a custom target date). NextSendAt is nil whenever the reminder is
// disabled or no target date resolves.
type Reminder struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	UUID            string           `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	SubscriptionID  uint             `gorm:"not null;index" json:"subscription_id"`
	Type            string           `gorm:"type:varchar(20);not null;index" json:"type" validate:"oneof=billing expiry custom"`
	Name            string           `gorm:"type:varchar(191);not null" json:"name" validate:"required,max=191"`
	AdvanceDays     int              `gorm:"not null;default:0" json:"advance_days" validate:"gte=0"`
	Channels        []string         `gorm:"serializer:json;type:text" json:"channels" validate:"min=1,dive,oneof=email sms feishu wechat"`
	ReminderTime    string           `gorm:"type:varchar(8);not null;default:'09:00:00'" json:"reminder_time" validate:"required"`
	RecipientConfig *RecipientConfig `gorm:"serializer:json;type:text" json:"recipient_config,omitempty"`
	TemplateConfig  *TemplateConfig  `gorm:"serializer:json;type:text" json:"template_config,omitempty"`
	Status          string           `gorm:"type:varchar(20);not null;default:'enabled';index:idx_reminders_status_next_send,priority:1" json:"status" validate:"oneof=enabled disabled"`
	RepeatEnabled   bool             `gorm:"default:false" json:"repeat_enabled"`
	RepeatConfig    *RepeatConfig    `gorm:"serializer:json;type:text" json:"repeat_config,omitempty"`
	LastSentAt      *time.Time       `gorm:"type:timestamp;default:null" json:"last_sent_at,omitempty"`
	NextSendAt      *time.Time       `gorm:"type:timestamp;default:null;index:idx_reminders_status_next_send,priority:2" json:"next_send_at,omitempty"`
	SentCount       int64            `gorm:"not null;default:0" json:"sent_count"`
	FailedCount     int64            `gorm:"not null;default:0" json:"failed_count"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	Subscription *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
}

// BeforeCreate assigns a UUID when none was provided.
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.New().String()
	}
	return nil
}

func (r *Reminder) IsEnabled() bool {
	return r.Status == ReminderStatusEnabled
}

// ShouldSend reports whether the reminder is due at the given time.
func (r *Reminder) ShouldSend(now time.Time) bool {
	if !r.IsEnabled() || r.NextSendAt == nil {
		return false
	}
	return !r.NextSendAt.After(now)
}

// Recipient resolves the delivery target for a channel, preferring the
// reminder's own recipient config over the subscription owner's contact data.
func (r *Reminder) Recipient(channel string) string {
	if r.RecipientConfig != nil {
		switch channel {
		case "email":
			if r.RecipientConfig.Email != "" {
				return r.RecipientConfig.Email
			}
		case "sms":
			if r.RecipientConfig.Phone != "" {
				return r.RecipientConfig.Phone
			}
		case "feishu", "wechat":
			if r.RecipientConfig.Webhook != "" {
				return r.RecipientConfig.Webhook
			}
		}
	}
	if r.Subscription == nil || r.Subscription.User == nil {
		return ""
	}
	switch channel {
	case "email":
		return r.Subscription.User.Email
	case "sms":
		return r.Subscription.User.Phone
	default:
		return ""
	}
}
