package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/subalert/subalert/app/models"
	"github.com/subalert/subalert/app/repository"
	"github.com/subalert/subalert/internal/pkg/clock"
	"github.com/subalert/subalert/internal/pkg/metrics/counter"
	"github.com/subalert/subalert/internal/pkg/notify"
	"github.com/subalert/subalert/internal/pkg/retry"
	"github.com/subalert/subalert/internal/pkg/schedule"
)

// billingSweepInterval is how often past-due auto-renew subscriptions are
// rolled to their next billing cycle.
const billingSweepInterval = time.Hour

// Manager drives the dispatcher from periodic tickers: the dispatch cycle,
// the retry sweep and the counter flush.
type Manager struct {
	dispatcher         *Dispatcher
	advancer           *schedule.Advancer
	subscriptions      repository.SubscriptionRepository
	clock              clock.Clock
	cycleTicker        *time.Ticker
	retryTicker        *time.Ticker
	billingTicker      *time.Ticker
	counterFlushTicker *time.Ticker
	cancel             context.CancelFunc
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global dispatch manager (singleton). The dispatcher
// is assembled from the shared repositories, the env-configured sender
// registry and the settings-driven tuning knobs.
func GetManager(repos *repository.Repositories) *Manager {
	managerOnce.Do(func() {
		cfg := Config{}
		if settings := models.GetAppSettings(); settings != nil {
			cfg.Workers = settings.GetDispatchWorkerCount()
			cfg.BatchSize = settings.GetDispatchBatchSize()
			cfg.SendTimeout = settings.GetSendTimeout()
			cfg.Policy = retry.Policy{
				MaxRetries: settings.GetMaxRetries(),
				BaseDelay:  settings.GetRetryDelay(),
			}
		}

		globalManager = &Manager{
			dispatcher:    New(repos, notify.NewRegistryFromEnv(), NewRedisLocker(), cfg),
			advancer:      schedule.NewAdvancer(repos.Subscription, repos.Reminder),
			subscriptions: repos.Subscription,
			clock:         clock.System(),
			stopCh:        make(chan struct{}),
		}
	})
	return globalManager
}

// GetDispatcher returns the managed dispatcher
func (m *Manager) GetDispatcher() *Dispatcher {
	return m.dispatcher
}

// Start starts the periodic dispatch and retry workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	cycleInterval := time.Minute
	retryInterval := time.Minute
	if settings := models.GetAppSettings(); settings != nil {
		cycleInterval = settings.GetCycleInterval()
		retryInterval = settings.GetRetrySweepInterval()
	}

	log.Infof("[Dispatch Manager] Starting (cycle: %s, retry sweep: %s)", cycleInterval, retryInterval)

	m.cycleTicker = time.NewTicker(cycleInterval)
	m.wg.Add(1)
	go m.cycleWorker(ctx)

	m.retryTicker = time.NewTicker(retryInterval)
	m.wg.Add(1)
	go m.retryWorker(ctx)

	m.billingTicker = time.NewTicker(billingSweepInterval)
	m.wg.Add(1)
	go m.billingWorker()

	// Counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[Dispatch Manager] Started successfully")
}

// Stop stops the periodic workers. In-flight sends are allowed to finish;
// no new work is picked up after the shutdown signal.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Dispatch Manager] Stopping...")

	if m.cycleTicker != nil {
		m.cycleTicker.Stop()
	}
	if m.retryTicker != nil {
		m.retryTicker.Stop()
	}
	if m.billingTicker != nil {
		m.billingTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers: stop picking up new work.
	m.cancel()
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	log.Info("[Dispatch Manager] Stopped successfully")
}

// cycleWorker runs the dispatch cycle on every tick
func (m *Manager) cycleWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Dispatch Manager] Cycle worker stopping")
			return
		case <-m.cycleTicker.C:
			report, err := m.dispatcher.RunCycle(ctx, m.clock.Now())
			if err != nil {
				log.Errorf("[Dispatch Manager] Cycle failed: %v", err)
				continue
			}
			if report.Sent > 0 || report.Failed > 0 || report.Skipped > 0 {
				log.Infof("[Dispatch Manager] Cycle done: sent=%d failed=%d skipped=%d",
					report.Sent, report.Failed, report.Skipped)
			}
		}
	}
}

// retryWorker runs the retry sweep on every tick
func (m *Manager) retryWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Dispatch Manager] Retry worker stopping")
			return
		case <-m.retryTicker.C:
			report, err := m.dispatcher.RunRetrySweep(ctx, m.clock.Now())
			if err != nil {
				log.Errorf("[Dispatch Manager] Retry sweep failed: %v", err)
				continue
			}
			if report.Sent > 0 || report.Failed > 0 {
				log.Infof("[Dispatch Manager] Retry sweep done: recovered=%d failed=%d",
					report.Sent, report.Failed)
			}
		}
	}
}

// billingWorker rolls past-due auto-renew subscriptions to their next billing
// cycle; the advancer recomputes the affected billing reminders' schedules.
func (m *Manager) billingWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Dispatch Manager] Billing worker stopping")
			return
		case <-m.billingTicker.C:
			now := m.clock.Now()
			subs, err := m.subscriptions.ListPastDue(now)
			if err != nil {
				log.Errorf("[Dispatch Manager] Billing sweep query failed: %v", err)
				continue
			}
			advanced := 0
			for i := range subs {
				sub := &subs[i]
				if !sub.AutoRenew || !sub.IsActive() {
					continue
				}
				if err := m.advancer.Advance(sub, now); err != nil {
					log.Errorf("[Dispatch Manager] Advancing subscription %d failed: %v", sub.ID, err)
					continue
				}
				advanced++
			}
			if advanced > 0 {
				log.Infof("[Dispatch Manager] Billing sweep done: advanced=%d", advanced)
			}
		}
	}
}

// counterFlushWorker periodically flushes delivery counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Dispatch Manager] Counter flush worker stopping")
			// Final flush so counters survive a restart
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Dispatch Manager] Final counter flush failed: %v", err)
			}
			return
		case <-m.counterFlushTicker.C:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Dispatch Manager] Counter flush failed: %v", err)
			}
		}
	}
}
