package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subalert/subalert/app/models"
	"github.com/subalert/subalert/app/repository"
	"github.com/subalert/subalert/internal/pkg/notify"
	"github.com/subalert/subalert/internal/pkg/retry"
)

type fakeReminderRepo struct {
	mu      sync.Mutex
	due     []models.Reminder
	updated []models.Reminder
}

func (f *fakeReminderRepo) Create(*models.Reminder) error              { return nil }
func (f *fakeReminderRepo) GetByID(uint) (*models.Reminder, error)     { return nil, nil }
func (f *fakeReminderRepo) GetByUUID(string) (*models.Reminder, error) { return nil, nil }
func (f *fakeReminderRepo) GetBySubscriptionID(uint) ([]models.Reminder, error) {
	return nil, nil
}
func (f *fakeReminderRepo) Update(r *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, *r)
	return nil
}
func (f *fakeReminderRepo) Delete(uint) error     { return nil }
func (f *fakeReminderRepo) Count() (int64, error) { return 0, nil }
func (f *fakeReminderRepo) ListDue(now time.Time, limit int) ([]models.Reminder, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}
func (f *fakeReminderRepo) ListEnabledBySubscriptionAndType(uint, string) ([]models.Reminder, error) {
	return nil, nil
}
func (f *fakeReminderRepo) IncrementCounters(uint, int64, int64) error { return nil }

func (f *fakeReminderRepo) lastUpdate(t *testing.T) models.Reminder {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.updated)
	return f.updated[len(f.updated)-1]
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*models.ReminderLog
	retry   []models.ReminderLog
}

func (f *fakeLogRepo) Create(entry *models.ReminderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeLogRepo) GetByID(uint) (*models.ReminderLog, error) { return nil, nil }
func (f *fakeLogRepo) GetByReminderID(uint, int, int) ([]models.ReminderLog, error) {
	return nil, nil
}
func (f *fakeLogRepo) Update(*models.ReminderLog) error      { return nil }
func (f *fakeLogRepo) Count() (int64, error)                 { return 0, nil }
func (f *fakeLogRepo) CountByStatus(string) (int64, error)   { return 0, nil }
func (f *fakeLogRepo) ListDueForRetry(now time.Time, maxRetries int, limit int) ([]models.ReminderLog, error) {
	return f.retry, nil
}

func (f *fakeLogRepo) byStatus(status string) []*models.ReminderLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ReminderLog
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type fakeLocker struct {
	mu       sync.Mutex
	denied   map[string]bool
	acquired []string
	released []string
}

func (f *fakeLocker) Acquire(key string, lease time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied[key] {
		return false, nil
	}
	f.acquired = append(f.acquired, key)
	return true, nil
}

func (f *fakeLocker) Release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
}

type fakeSender struct {
	name     string
	err      error
	mu       sync.Mutex
	messages []notify.Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(ctx context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	if f.err != nil {
		return "", f.err
	}
	return "ok", nil
}

func newTestDispatcher(reminders *fakeReminderRepo, logs *fakeLogRepo, locker *fakeLocker, senders ...notify.Sender) *Dispatcher {
	registry := notify.Registry{}
	for _, s := range senders {
		registry.Register(s)
	}
	repos := &repository.Repositories{Reminder: reminders, ReminderLog: logs}
	return New(repos, registry, locker, Config{Workers: 2, Policy: retry.DefaultPolicy()})
}

func dueReminder(id uint, channels ...string) models.Reminder {
	due := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	return models.Reminder{
		ID:           id,
		Type:         models.ReminderTypeBilling,
		Status:       models.ReminderStatusEnabled,
		Channels:     channels,
		ReminderTime: "09:00:00",
		NextSendAt:   &due,
		RecipientConfig: &models.RecipientConfig{
			Email: "owner@example.com",
			Phone: "+123456",
		},
	}
}

func TestRunCycleDeliversDueReminder(t *testing.T) {
	reminders := &fakeReminderRepo{due: []models.Reminder{dueReminder(1, "email")}}
	logs := &fakeLogRepo{}
	locker := &fakeLocker{}
	email := &fakeSender{name: notify.ChannelEmail}

	d := newTestDispatcher(reminders, logs, locker, email)
	now := time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC)

	report, err := d.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Sent: 1}, report)

	require.Len(t, email.messages, 1)
	assert.Equal(t, "owner@example.com", email.messages[0].Recipient)

	success := logs.byStatus(models.ReminderLogStatusSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, "ok", success[0].ResponseData)

	updated := reminders.lastUpdate(t)
	require.NotNil(t, updated.LastSentAt)
	assert.Equal(t, now, *updated.LastSentAt)
	assert.Nil(t, updated.NextSendAt, "single-shot reminder is unscheduled after sending")

	assert.Len(t, locker.acquired, 1)
	assert.Len(t, locker.released, 1)
}

func TestRunCycleIsolatesChannelFailure(t *testing.T) {
	reminders := &fakeReminderRepo{due: []models.Reminder{dueReminder(1, "email", "sms")}}
	logs := &fakeLogRepo{}
	email := &fakeSender{name: notify.ChannelEmail}
	sms := &fakeSender{name: notify.ChannelSMS, err: errors.New("gateway unavailable")}

	d := newTestDispatcher(reminders, logs, &fakeLocker{}, email, sms)
	now := time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC)

	report, err := d.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Sent: 1, Failed: 1}, report)

	failed := logs.byStatus(models.ReminderLogStatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "gateway unavailable", failed[0].ErrorMessage)
	assert.Equal(t, 1, failed[0].RetryCount)
	require.NotNil(t, failed[0].NextRetryAt, "transient failure stays retriable")
	assert.Equal(t, now.Add(300*time.Second), *failed[0].NextRetryAt)

	// The reminder itself still advances; recovery happens via the retry sweep.
	updated := reminders.lastUpdate(t)
	require.NotNil(t, updated.LastSentAt)
}

func TestRunCycleUnknownChannelIsTerminal(t *testing.T) {
	reminders := &fakeReminderRepo{due: []models.Reminder{dueReminder(1, "wechat")}}
	logs := &fakeLogRepo{}

	d := newTestDispatcher(reminders, logs, &fakeLocker{})
	now := time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC)

	report, err := d.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Failed: 1}, report)

	failed := logs.byStatus(models.ReminderLogStatusFailed)
	require.Len(t, failed, 1)
	assert.Zero(t, failed[0].RetryCount)
	assert.Nil(t, failed[0].NextRetryAt, "misconfigured channel is not retried")
}

func TestRunCycleSkipsClaimedReminder(t *testing.T) {
	reminders := &fakeReminderRepo{due: []models.Reminder{dueReminder(7, "email")}}
	logs := &fakeLogRepo{}
	locker := &fakeLocker{denied: map[string]bool{"reminder:claim:7": true}}
	email := &fakeSender{name: notify.ChannelEmail}

	d := newTestDispatcher(reminders, logs, locker, email)

	report, err := d.RunCycle(context.Background(), time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Skipped: 1}, report)
	assert.Empty(t, email.messages)
	assert.Empty(t, logs.entries)
}

func TestRunCycleSkipsNotYetDueReminder(t *testing.T) {
	reminder := dueReminder(1, "email")
	future := time.Date(2024, time.June, 2, 9, 0, 0, 0, time.UTC)
	reminder.NextSendAt = &future
	reminders := &fakeReminderRepo{due: []models.Reminder{reminder}}
	email := &fakeSender{name: notify.ChannelEmail}

	d := newTestDispatcher(reminders, &fakeLogRepo{}, &fakeLocker{}, email)

	report, err := d.RunCycle(context.Background(), time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Skipped: 1}, report)
	assert.Empty(t, email.messages)
}

func TestRunCycleReschedulesRepeatReminder(t *testing.T) {
	reminder := dueReminder(1, "email")
	reminder.RepeatEnabled = true
	reminder.RepeatConfig = &models.RepeatConfig{Interval: models.RepeatIntervalDaily, Count: 1}
	reminders := &fakeReminderRepo{due: []models.Reminder{reminder}}
	email := &fakeSender{name: notify.ChannelEmail}

	d := newTestDispatcher(reminders, &fakeLogRepo{}, &fakeLocker{}, email)

	_, err := d.RunCycle(context.Background(), time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)

	updated := reminders.lastUpdate(t)
	require.NotNil(t, updated.NextSendAt)
	// Advances from the previous scheduled instant, not from the send time.
	assert.Equal(t, time.Date(2024, time.June, 2, 9, 0, 0, 0, time.UTC), *updated.NextSendAt)
}

func TestRunCycleEmptyBatch(t *testing.T) {
	d := newTestDispatcher(&fakeReminderRepo{}, &fakeLogRepo{}, &fakeLocker{})

	report, err := d.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, CycleReport{}, report)
}

func TestRunRetrySweepRecoversEntry(t *testing.T) {
	due := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	logs := &fakeLogRepo{retry: []models.ReminderLog{{
		ID:          1,
		Channel:     notify.ChannelEmail,
		Recipient:   "owner@example.com",
		Subject:     "Upcoming payment for Netflix",
		Content:     "Netflix renews on 2024-06-20 for USD 9.99.",
		Status:      models.ReminderLogStatusFailed,
		RetryCount:  1,
		NextRetryAt: &due,
	}}}
	email := &fakeSender{name: notify.ChannelEmail}

	d := newTestDispatcher(&fakeReminderRepo{}, logs, &fakeLocker{}, email)
	now := time.Date(2024, time.June, 1, 9, 10, 0, 0, time.UTC)

	report, err := d.RunRetrySweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Sent: 1}, report)

	// The stored message is resent as logged.
	require.Len(t, email.messages, 1)
	assert.Equal(t, "Upcoming payment for Netflix", email.messages[0].Subject)
	assert.Equal(t, "Netflix renews on 2024-06-20 for USD 9.99.", email.messages[0].Content)
}

func TestRunRetrySweepExhaustsBudget(t *testing.T) {
	due := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	entry := models.ReminderLog{
		ID:          1,
		Channel:     notify.ChannelSMS,
		Recipient:   "+123456",
		Status:      models.ReminderLogStatusFailed,
		RetryCount:  2,
		NextRetryAt: &due,
	}
	logs := &fakeLogRepo{retry: []models.ReminderLog{entry}}
	sms := &fakeSender{name: notify.ChannelSMS, err: errors.New("gateway unavailable")}

	d := newTestDispatcher(&fakeReminderRepo{}, logs, &fakeLocker{}, sms)

	report, err := d.RunRetrySweep(context.Background(), time.Date(2024, time.June, 1, 9, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Failed: 1}, report)

	got := logs.retry[0]
	assert.Equal(t, 3, got.RetryCount)
	assert.Nil(t, got.NextRetryAt, "final attempt leaves the entry terminal")
}

func TestRunCycleStopsPickupAfterCancel(t *testing.T) {
	reminders := &fakeReminderRepo{due: []models.Reminder{
		dueReminder(1, "email"),
		dueReminder(2, "email"),
	}}
	email := &fakeSender{name: notify.ChannelEmail}
	d := newTestDispatcher(reminders, &fakeLogRepo{}, &fakeLocker{}, email)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.RunCycle(ctx, time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, CycleReport{}, report)
	assert.Empty(t, email.messages)
}
