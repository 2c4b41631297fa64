package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/subalert/subalert/app/models"
)

// ErrMissingTargetDate is returned for custom reminders without a configured
// target date. Callers skip and log; the condition is not retriable.
var ErrMissingTargetDate = errors.New("schedule: custom reminder has no target date configured")

// ErrNegativeAdvanceDays indicates corrupt reminder data that validation
// should have rejected.
var ErrNegativeAdvanceDays = errors.New("schedule: advance_days must not be negative")

// ComputeNextSend derives when a reminder should next fire from its own config
// and the linked subscription's dates. It is a pure function; callers persist
// the result.
//
// A nil time with nil error means no send is scheduled: the reminder is
// disabled, has no resolvable target date, or is a lapsed single-shot. An
// instant in the past is still returned for repeat-enabled reminders so the
// dispatcher can catch up on the next cycle.
func ComputeNextSend(reminder *models.Reminder, subscription *models.Subscription, now time.Time) (*time.Time, error) {
	if reminder.AdvanceDays < 0 {
		return nil, ErrNegativeAdvanceDays
	}
	if !reminder.IsEnabled() {
		return nil, nil
	}

	target, err := resolveTargetDate(reminder, subscription)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}

	hour, minute, sec, err := parseReminderTime(reminder.ReminderTime)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid reminder_time %q: %w", reminder.ReminderTime, err)
	}

	day := target.AddDate(0, 0, -reminder.AdvanceDays)
	instant := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, sec, 0, day.Location())

	// A single-shot reminder that already lapsed is not rescheduled for the past.
	if instant.Before(now) && !reminder.RepeatEnabled {
		return nil, nil
	}
	return &instant, nil
}

func resolveTargetDate(reminder *models.Reminder, subscription *models.Subscription) (*time.Time, error) {
	switch reminder.Type {
	case models.ReminderTypeBilling:
		if subscription == nil {
			return nil, nil
		}
		return subscription.NextBillingDate, nil
	case models.ReminderTypeExpiry:
		if subscription == nil {
			return nil, nil
		}
		return subscription.EndDate, nil
	case models.ReminderTypeCustom:
		if reminder.TemplateConfig == nil || reminder.TemplateConfig.TargetDate == "" {
			return nil, ErrMissingTargetDate
		}
		t, err := parseTargetDate(reminder.TemplateConfig.TargetDate)
		if err != nil {
			return nil, fmt.Errorf("schedule: invalid target_date %q: %w", reminder.TemplateConfig.TargetDate, err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("schedule: unknown reminder type %q", reminder.Type)
	}
}

func parseTargetDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unsupported date format")
}

func parseReminderTime(value string) (hour, minute, sec int, err error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, perr := time.Parse(layout, value); perr == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, errors.New("expected HH:MM or HH:MM:SS")
}

// NextRepeat advances a repeating reminder from its previous scheduled instant
// per the repeat config. Advancing from the previous instant rather than from
// the send time keeps the cadence drift-free.
func NextRepeat(prev time.Time, cfg models.RepeatConfig) time.Time {
	count := cfg.Count
	if count < 1 {
		count = 1
	}
	switch cfg.Interval {
	case models.RepeatIntervalHourly:
		return prev.Add(time.Duration(count) * time.Hour)
	case models.RepeatIntervalWeekly:
		return prev.AddDate(0, 0, 7*count)
	case models.RepeatIntervalMonthly:
		return addMonthsClamped(prev, count)
	default:
		// Daily is the original default for unknown intervals.
		return prev.AddDate(0, 0, count)
	}
}
