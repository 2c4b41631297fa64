package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/subalert/subalert/app/models"
	"github.com/subalert/subalert/app/repository"
	"github.com/subalert/subalert/internal/pkg/metrics/counter"
	"github.com/subalert/subalert/internal/pkg/notify"
	"github.com/subalert/subalert/internal/pkg/retry"
	"github.com/subalert/subalert/internal/pkg/schedule"
)

const (
	// DefaultClaimLease bounds how long a crashed worker can hold a reminder claim.
	DefaultClaimLease = 2 * time.Minute

	claimKeyPrefix = "reminder:claim:"
)

// Config holds the dispatch tuning knobs. Zero values fall back to defaults.
type Config struct {
	Workers     int
	BatchSize   int
	SendTimeout time.Duration
	ClaimLease  time.Duration
	Policy      retry.Policy
}

// CycleReport summarizes one dispatch cycle or retry sweep.
type CycleReport struct {
	Sent    int
	Failed  int
	Skipped int
}

// Dispatcher finds due reminders, fans sends out over a bounded worker pool,
// records every delivery attempt and reschedules repeat reminders. Failed
// deliveries are picked up later by the retry sweep, independently of the
// reminder's own schedule.
type Dispatcher struct {
	repos       *repository.Repositories
	senders     notify.Registry
	locker      Locker
	policy      retry.Policy
	workers     int
	batchSize   int
	sendTimeout time.Duration
	claimLease  time.Duration
}

// New creates a dispatcher from injected collaborators.
func New(repos *repository.Repositories, senders notify.Registry, locker Locker, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = DefaultClaimLease
	}
	if cfg.Policy.MaxRetries == 0 && cfg.Policy.BaseDelay == 0 {
		cfg.Policy = retry.DefaultPolicy()
	}

	return &Dispatcher{
		repos:       repos,
		senders:     senders,
		locker:      locker,
		policy:      cfg.Policy,
		workers:     cfg.Workers,
		batchSize:   cfg.BatchSize,
		sendTimeout: cfg.SendTimeout,
		claimLease:  cfg.ClaimLease,
	}
}

// RunCycle processes all reminders due at the given time. Errors from single
// reminders or channels are isolated; only the initial due-query can fail the
// cycle as a whole. After a shutdown signal no new reminders are picked up,
// but in-flight sends finish.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	reminders, err := d.repos.Reminder.ListDue(now, d.batchSize)
	if err != nil {
		return CycleReport{}, fmt.Errorf("dispatcher: querying due reminders: %w", err)
	}
	if len(reminders) == 0 {
		return CycleReport{}, nil
	}
	log.Infof("[Dispatcher] Cycle at %s: %d due reminders", now.Format(time.RFC3339), len(reminders))

	var (
		mu     sync.Mutex
		report CycleReport
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, d.workers)

	for i := range reminders {
		if ctx.Err() != nil {
			log.Warn("[Dispatcher] Shutdown signalled, not picking up further reminders this cycle")
			break
		}
		reminder := reminders[i]

		sem <- struct{}{}
		wg.Add(1)
		go func(reminder models.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()

			partial := d.processReminder(ctx, now, &reminder)
			mu.Lock()
			report.Sent += partial.Sent
			report.Failed += partial.Failed
			report.Skipped += partial.Skipped
			mu.Unlock()
		}(reminder)
	}
	wg.Wait()

	return report, nil
}

// processReminder delivers one due reminder over all its channels and updates
// its schedule. The per-reminder claim guarantees at most one in-flight send
// even when cycles overlap.
func (d *Dispatcher) processReminder(ctx context.Context, now time.Time, reminder *models.Reminder) CycleReport {
	var report CycleReport

	if !reminder.ShouldSend(now) {
		report.Skipped++
		return report
	}

	claimKey := fmt.Sprintf("%s%d", claimKeyPrefix, reminder.ID)
	claimed, err := d.locker.Acquire(claimKey, d.claimLease)
	if err != nil {
		log.Errorf("[Dispatcher] Claim for reminder %d failed: %v", reminder.ID, err)
		report.Skipped++
		return report
	}
	if !claimed {
		report.Skipped++
		return report
	}
	defer d.locker.Release(claimKey)

	var sent, failed int64
	for _, channel := range reminder.Channels {
		if err := d.sendChannel(ctx, now, reminder, channel); err != nil {
			log.Errorf("[Dispatcher] Reminder %d channel %s: %v", reminder.ID, channel, err)
			failed++
			report.Failed++
		} else {
			sent++
			report.Sent++
		}
	}
	if err := counter.AddSent(reminder.ID, sent); err != nil {
		log.Warnf("[Dispatcher] Counter update for reminder %d failed: %v", reminder.ID, err)
	}
	if err := counter.AddFailed(reminder.ID, failed); err != nil {
		log.Warnf("[Dispatcher] Counter update for reminder %d failed: %v", reminder.ID, err)
	}

	// The reminder is marked sent regardless of per-channel outcomes; failed
	// channels continue through the delivery log's retry state machine.
	reminder.LastSentAt = &now
	if reminder.RepeatEnabled && reminder.NextSendAt != nil {
		cfg := models.RepeatConfig{}
		if reminder.RepeatConfig != nil {
			cfg = *reminder.RepeatConfig
		}
		next := schedule.NextRepeat(*reminder.NextSendAt, cfg)
		reminder.NextSendAt = &next
	} else {
		reminder.NextSendAt = nil
	}
	if err := d.repos.Reminder.Update(reminder); err != nil {
		// Fatal for this reminder in this cycle; recomputation is deterministic
		// so the next cycle repeats the attempt.
		log.Errorf("[Dispatcher] Persisting schedule for reminder %d failed, will reprocess next cycle: %v", reminder.ID, err)
	}

	return report
}

// sendChannel performs one delivery attempt and records it as a ReminderLog row.
func (d *Dispatcher) sendChannel(ctx context.Context, now time.Time, reminder *models.Reminder, channel string) error {
	subject, content := RenderMessage(reminder)
	entry := &models.ReminderLog{
		ReminderID:     reminder.ID,
		SubscriptionID: reminder.SubscriptionID,
		Channel:        channel,
		Recipient:      reminder.Recipient(channel),
		Subject:        subject,
		Content:        content,
		Status:         models.ReminderLogStatusPending,
	}
	if err := d.repos.ReminderLog.Create(entry); err != nil {
		return fmt.Errorf("creating delivery log: %w", err)
	}

	sender, ok := d.senders.Get(channel)
	if !ok {
		// Misconfiguration, retrying cannot help.
		entry.MarkAsFailed(notify.ErrUnknownChannel{Channel: channel}.Error(), now, d.policy, false)
		d.updateLog(entry)
		return notify.ErrUnknownChannel{Channel: channel}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	response, err := sender.Send(sendCtx, notify.Message{
		Channel:   channel,
		Recipient: entry.Recipient,
		Subject:   subject,
		Content:   content,
	})
	if err != nil {
		entry.MarkAsFailed(err.Error(), now, d.policy, true)
		d.updateLog(entry)
		return err
	}

	entry.MarkAsSuccess(response, now)
	d.updateLog(entry)
	return nil
}

// RunRetrySweep re-attempts failed deliveries whose backoff deadline has
// passed. Retries resend the stored message as logged, so a reminder edit
// does not alter attempts already in flight.
func (d *Dispatcher) RunRetrySweep(ctx context.Context, now time.Time) (CycleReport, error) {
	entries, err := d.repos.ReminderLog.ListDueForRetry(now, d.policy.MaxRetries, d.batchSize)
	if err != nil {
		return CycleReport{}, fmt.Errorf("dispatcher: querying due retries: %w", err)
	}
	if len(entries) == 0 {
		return CycleReport{}, nil
	}
	log.Infof("[Dispatcher] Retry sweep at %s: %d due entries", now.Format(time.RFC3339), len(entries))

	var report CycleReport
	for i := range entries {
		if ctx.Err() != nil {
			log.Warn("[Dispatcher] Shutdown signalled, stopping retry sweep")
			break
		}
		entry := &entries[i]

		sender, ok := d.senders.Get(entry.Channel)
		if !ok {
			entry.MarkAsFailed(notify.ErrUnknownChannel{Channel: entry.Channel}.Error(), now, d.policy, false)
			d.updateLog(entry)
			report.Failed++
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		response, err := sender.Send(sendCtx, notify.Message{
			Channel:   entry.Channel,
			Recipient: entry.Recipient,
			Subject:   entry.Subject,
			Content:   entry.Content,
		})
		cancel()

		if err != nil {
			entry.MarkAsFailed(err.Error(), now, d.policy, true)
			d.updateLog(entry)
			if entry.NextRetryAt == nil {
				log.Errorf("[Dispatcher] Delivery %d exhausted retries (channel %s, recipient %s): %v",
					entry.ID, entry.Channel, entry.Recipient, err)
			}
			report.Failed++
			continue
		}

		entry.MarkAsSuccess(response, now)
		d.updateLog(entry)
		report.Sent++
	}

	return report, nil
}

func (d *Dispatcher) updateLog(entry *models.ReminderLog) {
	if err := d.repos.ReminderLog.Update(entry); err != nil {
		log.Errorf("[Dispatcher] Updating delivery log %d failed: %v", entry.ID, err)
	}
}
