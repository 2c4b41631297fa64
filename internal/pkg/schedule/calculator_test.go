package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subalert/subalert/app/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestComputeNextSendBillingReminder(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		AdvanceDays:  7,
		ReminderTime: "09:00:00",
	}
	sub := &models.Subscription{NextBillingDate: date(2024, time.June, 20)}
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	got, err := ComputeNextSend(reminder, sub, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, time.June, 13, 9, 0, 0, 0, time.UTC), *got)
}

func TestComputeNextSendExpiryReminderUsesEndDate(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeExpiry,
		Status:       models.ReminderStatusEnabled,
		AdvanceDays:  3,
		ReminderTime: "18:30",
	}
	sub := &models.Subscription{
		NextBillingDate: date(2024, time.June, 5),
		EndDate:         date(2024, time.June, 30),
	}
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	got, err := ComputeNextSend(reminder, sub, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, time.June, 27, 18, 30, 0, 0, time.UTC), *got)
}

func TestComputeNextSendDisabledReminder(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusDisabled,
		ReminderTime: "09:00:00",
	}
	sub := &models.Subscription{NextBillingDate: date(2024, time.June, 20)}

	got, err := ComputeNextSend(reminder, sub, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestComputeNextSendLapsedSingleShot(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		AdvanceDays:  7,
		ReminderTime: "09:00:00",
	}
	sub := &models.Subscription{NextBillingDate: date(2024, time.June, 20)}
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	got, err := ComputeNextSend(reminder, sub, now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestComputeNextSendLapsedRepeatKeepsPastInstant(t *testing.T) {
	reminder := &models.Reminder{
		Type:          models.ReminderTypeBilling,
		Status:        models.ReminderStatusEnabled,
		AdvanceDays:   7,
		ReminderTime:  "09:00:00",
		RepeatEnabled: true,
	}
	sub := &models.Subscription{NextBillingDate: date(2024, time.June, 20)}
	now := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	got, err := ComputeNextSend(reminder, sub, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, time.June, 13, 9, 0, 0, 0, time.UTC), *got)
}

func TestComputeNextSendNoTargetDate(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		ReminderTime: "09:00:00",
	}
	sub := &models.Subscription{} // lifetime, no billing date

	got, err := ComputeNextSend(reminder, sub, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestComputeNextSendCustomReminder(t *testing.T) {
	reminder := &models.Reminder{
		Type:           models.ReminderTypeCustom,
		Status:         models.ReminderStatusEnabled,
		AdvanceDays:    1,
		ReminderTime:   "08:00:00",
		TemplateConfig: &models.TemplateConfig{TargetDate: "2024-12-25"},
	}
	now := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)

	got, err := ComputeNextSend(reminder, nil, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, time.December, 24, 8, 0, 0, 0, time.UTC), *got)
}

func TestComputeNextSendCustomWithoutTargetDate(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeCustom,
		Status:       models.ReminderStatusEnabled,
		ReminderTime: "09:00:00",
	}

	_, err := ComputeNextSend(reminder, nil, time.Now())
	assert.ErrorIs(t, err, ErrMissingTargetDate)
}

func TestComputeNextSendInvalidReminderTime(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		ReminderTime: "morning",
	}
	sub := &models.Subscription{NextBillingDate: date(2024, time.June, 20)}

	_, err := ComputeNextSend(reminder, sub, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestComputeNextSendNegativeAdvanceDays(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		AdvanceDays:  -1,
		ReminderTime: "09:00:00",
	}

	_, err := ComputeNextSend(reminder, &models.Subscription{}, time.Now())
	assert.ErrorIs(t, err, ErrNegativeAdvanceDays)
}

func TestComputeNextSendIsPure(t *testing.T) {
	reminder := &models.Reminder{
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		AdvanceDays:  7,
		ReminderTime: "09:00:00",
	}
	sub := &models.Subscription{NextBillingDate: date(2024, time.June, 20)}
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	first, err := ComputeNextSend(reminder, sub, now)
	require.NoError(t, err)
	second, err := ComputeNextSend(reminder, sub, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Nil(t, reminder.NextSendAt, "calculator must not mutate the reminder")
}

func TestNextRepeat(t *testing.T) {
	prev := time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  models.RepeatConfig
		want time.Time
	}{
		{
			name: "hourly",
			cfg:  models.RepeatConfig{Interval: models.RepeatIntervalHourly, Count: 2},
			want: time.Date(2024, time.January, 31, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "daily",
			cfg:  models.RepeatConfig{Interval: models.RepeatIntervalDaily, Count: 1},
			want: time.Date(2024, time.February, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly",
			cfg:  models.RepeatConfig{Interval: models.RepeatIntervalWeekly, Count: 1},
			want: time.Date(2024, time.February, 7, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly clamps to end of february",
			cfg:  models.RepeatConfig{Interval: models.RepeatIntervalMonthly, Count: 1},
			want: time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "zero count treated as one",
			cfg:  models.RepeatConfig{Interval: models.RepeatIntervalDaily, Count: 0},
			want: time.Date(2024, time.February, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "unknown interval falls back to daily",
			cfg:  models.RepeatConfig{Interval: "fortnightly", Count: 1},
			want: time.Date(2024, time.February, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRepeat(prev, tt.cfg))
		})
	}
}
