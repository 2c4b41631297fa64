package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subalert/subalert/internal/pkg/retry"
)

const (
	ReminderLogStatusSuccess = "success"
	ReminderLogStatusFailed  = "failed"
	ReminderLogStatusPending = "pending"
)

// ReminderLog records one delivery attempt of a reminder over one channel.
// NextRetryAt is non-nil only while the entry is failed and retriable; log
// rows are never deleted by the dispatcher so they outlive disabled reminders.
type ReminderLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UUID           string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	ReminderID     uint       `gorm:"not null;index" json:"reminder_id"`
	SubscriptionID uint       `gorm:"not null;index" json:"subscription_id"`
	Channel        string     `gorm:"type:varchar(20);not null;index" json:"channel"`
	Recipient      string     `gorm:"type:varchar(191);not null" json:"recipient"`
	Subject        string     `gorm:"type:varchar(255)" json:"subject,omitempty"`
	Content        string     `gorm:"type:text" json:"content,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_reminder_logs_retry,priority:1" json:"status"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	ResponseData   string     `gorm:"type:text" json:"response_data,omitempty"`
	SentAt         *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	RetryCount     int        `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt    *time.Time `gorm:"type:timestamp;default:null;index:idx_reminder_logs_retry,priority:2" json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided.
func (l *ReminderLog) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == "" {
		l.UUID = uuid.New().String()
	}
	return nil
}

func (l *ReminderLog) IsSuccess() bool {
	return l.Status == ReminderLogStatusSuccess
}

func (l *ReminderLog) IsFailed() bool {
	return l.Status == ReminderLogStatusFailed
}

func (l *ReminderLog) IsPending() bool {
	return l.Status == ReminderLogStatusPending
}

// MarkAsSuccess finalizes the entry after a delivered attempt. Terminal.
func (l *ReminderLog) MarkAsSuccess(responseData string, now time.Time) {
	l.Status = ReminderLogStatusSuccess
	l.ResponseData = responseData
	l.ErrorMessage = ""
	l.SentAt = &now
	l.NextRetryAt = nil
}

// MarkAsFailed records a failed attempt. While the policy allows it the entry
// stays retriable with a backoff-scheduled NextRetryAt; afterwards it is
// terminal. retriable=false forces a terminal failure regardless of policy.
func (l *ReminderLog) MarkAsFailed(errorMessage string, now time.Time, policy retry.Policy, retriable bool) {
	l.Status = ReminderLogStatusFailed
	l.ErrorMessage = errorMessage

	if retriable && policy.ShouldRetry(l.RetryCount) {
		delay := policy.NextDelay(l.RetryCount)
		l.RetryCount++
		if policy.ShouldRetry(l.RetryCount) {
			next := now.Add(delay)
			l.NextRetryAt = &next
		} else {
			// Budget exhausted with this attempt; entry is terminal.
			l.NextRetryAt = nil
		}
	} else {
		l.NextRetryAt = nil
	}
}

// ShouldRetry reports whether the entry is due for another delivery attempt.
func (l *ReminderLog) ShouldRetry(now time.Time, policy retry.Policy) bool {
	return l.IsFailed() &&
		l.NextRetryAt != nil &&
		!l.NextRetryAt.After(now) &&
		policy.ShouldRetry(l.RetryCount)
}
