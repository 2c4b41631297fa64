package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionIsExpiring(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	soon := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)
	far := time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)

	sub := Subscription{Status: SubscriptionStatusActive, NextBillingDate: &soon}
	assert.True(t, sub.IsExpiring(now, 7))

	sub.NextBillingDate = &far
	assert.False(t, sub.IsExpiring(now, 7))

	sub.Status = SubscriptionStatusCancelled
	assert.False(t, sub.IsExpiring(now, 7))
}

func TestSubscriptionIsPastDue(t *testing.T) {
	now := time.Date(2024, time.June, 10, 15, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, time.June, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

	sub := Subscription{NextBillingDate: &yesterday}
	assert.True(t, sub.IsPastDue(now))

	// Due today is not yet past due.
	sub.NextBillingDate = &today
	assert.False(t, sub.IsPastDue(now))

	sub.NextBillingDate = nil
	assert.False(t, sub.IsPastDue(now))
}

func TestSubscriptionAnnualCost(t *testing.T) {
	tests := []struct {
		cycle string
		price float64
		want  float64
	}{
		{BillingCycleMonthly, 10, 120},
		{BillingCycleQuarterly, 30, 120},
		{BillingCycleSemiAnnually, 60, 120},
		{BillingCycleAnnually, 120, 120},
		{BillingCycleLifetime, 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.cycle, func(t *testing.T) {
			sub := Subscription{BillingCycle: tt.cycle, Price: tt.price}
			assert.Equal(t, tt.want, sub.AnnualCost())
		})
	}
}
