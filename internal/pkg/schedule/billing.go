package schedule

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/subalert/subalert/app/models"
	"github.com/subalert/subalert/app/repository"
)

// AdvanceBillingDate rolls a billing date forward by one cycle. Lifetime
// subscriptions are returned unchanged. Month and year arithmetic clamps to
// the last valid day of the target month (Jan 31 + 1 month = Feb 28/29).
func AdvanceBillingDate(cycle string, date time.Time) time.Time {
	switch cycle {
	case models.BillingCycleMonthly:
		return addMonthsClamped(date, 1)
	case models.BillingCycleQuarterly:
		return addMonthsClamped(date, 3)
	case models.BillingCycleSemiAnnually:
		return addMonthsClamped(date, 6)
	case models.BillingCycleAnnually:
		return addMonthsClamped(date, 12)
	default:
		return date
	}
}

// addMonthsClamped adds months with day-of-month clamping instead of the
// overflow normalization time.AddDate does.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	m = (m-1)%12 + 1

	if last := lastDayOfMonth(year, time.Month(m)); day > last {
		day = last
	}
	return time.Date(year, time.Month(m), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Advancer rolls subscriptions to their next billing cycle and keeps the
// affected billing reminders' schedules in sync. Recomputation is explicit
// here rather than hidden in persistence hooks.
type Advancer struct {
	subscriptions repository.SubscriptionRepository
	reminders     repository.ReminderRepository
}

// NewAdvancer creates a billing advancer from injected repositories.
func NewAdvancer(subscriptions repository.SubscriptionRepository, reminders repository.ReminderRepository) *Advancer {
	return &Advancer{subscriptions: subscriptions, reminders: reminders}
}

// Advance moves the subscription's next billing date one cycle forward and
// recomputes next_send_at for its enabled billing reminders. Lifetime cycles
// and subscriptions without a billing date are a no-op.
func (a *Advancer) Advance(subscription *models.Subscription, now time.Time) error {
	if subscription.BillingCycle == models.BillingCycleLifetime || subscription.NextBillingDate == nil {
		return nil
	}

	next := AdvanceBillingDate(subscription.BillingCycle, *subscription.NextBillingDate)
	subscription.NextBillingDate = &next
	if err := a.subscriptions.Update(subscription); err != nil {
		return fmt.Errorf("schedule: advancing subscription %d: %w", subscription.ID, err)
	}

	reminders, err := a.reminders.ListEnabledBySubscriptionAndType(subscription.ID, models.ReminderTypeBilling)
	if err != nil {
		return fmt.Errorf("schedule: loading billing reminders for subscription %d: %w", subscription.ID, err)
	}

	for i := range reminders {
		reminder := &reminders[i]
		nextSend, err := ComputeNextSend(reminder, subscription, now)
		if err != nil {
			log.Errorf("[Schedule] Skipping reminder %d recompute: %v", reminder.ID, err)
			continue
		}
		reminder.NextSendAt = nextSend
		if err := a.reminders.Update(reminder); err != nil {
			return fmt.Errorf("schedule: updating reminder %d: %w", reminder.ID, err)
		}
	}
	return nil
}
