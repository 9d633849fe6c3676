package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/subscription"
	"stock-chatbot/src/utils"

	"golang.org/x/sync/semaphore"
)

// Decorator appends per-user extras (portfolio P/L) to a monitor tick
type Decorator interface {
	DecorateQuote(userID int64, query string, q models.MQuote) string
}

// SweepStats summarizes one sweep
type SweepStats struct {
	Entries   int
	Delivered int
	Failed    int
	Skipped   int
}

// Scheduler owns the periodic sweeps: alerts, monitors, result cache purge
// and journal retention. Each sweep runs on its own ticker.
type Scheduler struct {
	Config    *models.MConfig
	Quotes    interfaces.IQuoteProvider
	Alerts    *subscription.AlertRegistry
	Monitors  *subscription.MonitorRegistry
	Cache     interfaces.IResultCache
	Portfolio Decorator
	Notifier  interfaces.INotifier
	Journal   interfaces.IJournal
	Market    *utils.MarketScheduler
	Logger    *logger.Logger

	now          utils.Clock
	tz           *time.Location
	sem          *semaphore.Weighted
	entryTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	alertSweeps   atomic.Int64
	monitorSweeps atomic.Int64
	failures      atomic.Int64
}

// -----------------------------------------------------------------------------

func NewScheduler(cfg *models.MConfig, quotes interfaces.IQuoteProvider, alerts *subscription.AlertRegistry,
	monitors *subscription.MonitorRegistry, notifier interfaces.INotifier, log *logger.Logger) *Scheduler {

	concurrency := cfg.Scheduler.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	fetch := time.Duration(cfg.Quote.FetchTimeoutSeconds) * time.Second
	if fetch <= 0 {
		fetch = 5 * time.Second
	}

	return &Scheduler{
		Config:       cfg,
		Quotes:       quotes,
		Alerts:       alerts,
		Monitors:     monitors,
		Notifier:     notifier,
		Logger:       log,
		now:          utils.SystemClock,
		tz:           seoul(),
		sem:          semaphore.NewWeighted(int64(concurrency)),
		entryTimeout: 2*fetch + 10*time.Second,
	}
}

// -----------------------------------------------------------------------------

// Start launches the ticker loops. They stop when ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.loop(ctx, "alert", seconds(s.Config.Alert.IntervalSeconds, 10), func(ctx context.Context) { s.RunAlertSweep(ctx) })
	s.loop(ctx, "monitor", seconds(s.Config.Monitor.IntervalSeconds, 10), func(ctx context.Context) { s.RunMonitorSweep(ctx) })
	if s.Cache != nil {
		s.loop(ctx, "cache-purge", seconds(s.Config.Cache.PurgeIntervalSeconds, 60), func(context.Context) { s.RunCachePurge() })
	}
	if s.Journal != nil && s.Config.Scheduler.JournalCleanupMinutes > 0 {
		interval := time.Duration(s.Config.Scheduler.JournalCleanupMinutes) * time.Minute
		s.loop(ctx, "journal-cleanup", interval, func(ctx context.Context) { s.RunJournalCleanup(ctx) })
	}

	s.Logger.Info("Scheduler started (alert %ds, monitor %ds)", s.Config.Alert.IntervalSeconds, s.Config.Monitor.IntervalSeconds)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the loops and waits for in-flight sweeps
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.Logger.Info("Scheduler stopped")
}

// -----------------------------------------------------------------------------

func seoul() *time.Location {
	if tz := utils.GetCalendar(utils.MICKorea).Timezone; tz != nil {
		return tz
	}
	return time.Local
}

func seconds(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

// -----------------------------------------------------------------------------

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Logger.Debug("%s loop exiting", name)
				return
			case <-ticker.C:
				s.safeRun(ctx, name, run)
			}
		}
	}()
}

// safeRun keeps a panicking sweep from killing its loop
func (s *Scheduler) safeRun(ctx context.Context, name string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("%s sweep panicked: %v", name, r)
		}
	}()
	run(ctx)
}

// -----------------------------------------------------------------------------

// Counters returns sweep and failure totals since start
func (s *Scheduler) Counters() (alertSweeps, monitorSweeps, failures int64) {
	return s.alertSweeps.Load(), s.monitorSweeps.Load(), s.failures.Load()
}

// -----------------------------------------------------------------------------

// marketClosed reports whether a tick for symbol should be skipped
func (s *Scheduler) marketClosed(symbol string) bool {
	return s.Config.Scheduler.PauseWhenMarketClosed && s.Market != nil && !s.Market.IsSymbolOpen(symbol)
}

// allClosed reports whether no exchange behind symbols is open, so a whole
// sweep can be skipped without touching its entries
func (s *Scheduler) allClosed(symbols []string) bool {
	return s.Config.Scheduler.PauseWhenMarketClosed && s.Market != nil && !s.Market.AnyMarketOpen(symbols)
}

func alertSymbols(subs []models.MAlertSubscription) []string {
	symbols := make([]string, len(subs))
	for i, sub := range subs {
		symbols[i] = sub.Symbol
	}
	return symbols
}

func monitorSymbols(subs []models.MMonitorSubscription) []string {
	symbols := make([]string, len(subs))
	for i, sub := range subs {
		symbols[i] = sub.Symbol
	}
	return symbols
}

// -----------------------------------------------------------------------------

// fanOut runs fn for each of n entries, bounded by the semaphore, and waits.
// Each call gets its own timeout and panics are contained to that entry.
func (s *Scheduler) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer s.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					s.failures.Add(1)
					s.Logger.Error("Sweep entry %d panicked: %v", i, r)
				}
			}()

			entryCtx, cancel := context.WithTimeout(ctx, s.entryTimeout)
			defer cancel()
			fn(entryCtx, i)
		}(i)
	}
	wg.Wait()
}

// -----------------------------------------------------------------------------

// journal collects entries from concurrent workers
type journal struct {
	mu      sync.Mutex
	entries []models.MJournalEntry
}

func (j *journal) add(e models.MJournalEntry) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (s *Scheduler) flush(ctx context.Context, j *journal) {
	if s.Journal == nil || len(j.entries) == 0 {
		return
	}
	if err := s.Journal.Record(ctx, j.entries); err != nil {
		s.Logger.Error("Journal record failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

// deliver sends text and reports whether the channel accepted it
func (s *Scheduler) deliver(ctx context.Context, userID int64, text string) bool {
	if err := s.Notifier.Deliver(ctx, userID, text); err != nil {
		s.Logger.Warning("Delivery to %d failed: %v", userID, err)
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// RunAlertSweep checks every alert once. A changed quote text, or one seen
// for the first time, is delivered and becomes the new snapshot.
func (s *Scheduler) RunAlertSweep(ctx context.Context) SweepStats {
	subs := s.Alerts.Snapshot()
	s.alertSweeps.Add(1)
	if len(subs) == 0 {
		return SweepStats{}
	}
	if s.allClosed(alertSymbols(subs)) {
		return SweepStats{Entries: len(subs), Skipped: len(subs)}
	}

	var delivered, failed, skipped atomic.Int64
	j := &journal{}

	s.fanOut(ctx, len(subs), func(ctx context.Context, i int) {
		sub := subs[i]
		if s.marketClosed(sub.Symbol) {
			skipped.Add(1)
			return
		}

		quote, err := s.Quotes.FetchQuote(ctx, sub.Symbol)
		if err != nil {
			failed.Add(1)
			s.failures.Add(1)
			s.Logger.Warning("Alert fetch %s for %d failed: %v", sub.Symbol, sub.UserID, err)
			text := fmt.Sprintf("⚠️ 알림 조회 중 오류 발생\n종목: %s\n오류: %s", sub.Symbol, helpers.UserMessage(err))
			ok := s.deliver(ctx, sub.UserID, text)
			j.add(s.entry(sub.UserID, models.JournalFailure, sub.Symbol, text, ok))
			return
		}

		if !s.Alerts.Observe(sub.UserID, sub.Symbol, quote.Text) {
			return
		}

		text := fmt.Sprintf("🔔 %s 가격 변동\n\n%s", sub.Symbol, quote.Text)
		ok := s.deliver(ctx, sub.UserID, text)
		if ok {
			delivered.Add(1)
		}
		j.add(s.entry(sub.UserID, models.JournalAlert, sub.Symbol, text, ok))
	})

	s.flush(ctx, j)

	stats := SweepStats{Entries: len(subs), Delivered: int(delivered.Load()), Failed: int(failed.Load()), Skipped: int(skipped.Load())}
	s.Logger.Debug("Alert sweep: %+v", stats)
	return stats
}

// -----------------------------------------------------------------------------

// RunMonitorSweep sends a numbered update to every monitor. The counter moves
// on every tick, including failed fetches.
func (s *Scheduler) RunMonitorSweep(ctx context.Context) SweepStats {
	subs := s.Monitors.Snapshot()
	s.monitorSweeps.Add(1)
	if len(subs) == 0 {
		return SweepStats{}
	}
	if s.allClosed(monitorSymbols(subs)) {
		s.Logger.Debug("Monitor sweep paused, markets closed")
		return SweepStats{Entries: len(subs), Skipped: len(subs)}
	}

	clock := s.now().In(s.tz).Format("15:04:05")
	s.Logger.Info("🔄 [%s] Monitor sweep - %d active", clock, len(subs))

	var delivered, failed, skipped atomic.Int64
	j := &journal{}

	s.fanOut(ctx, len(subs), func(ctx context.Context, i int) {
		sub := subs[i]
		if s.marketClosed(sub.Symbol) {
			skipped.Add(1)
			return
		}

		quote, err := s.Quotes.FetchQuote(ctx, sub.Symbol)

		count, active := s.Monitors.Increment(sub.UserID, sub.Symbol)
		if !active {
			// Stopped or replaced while this sweep was running
			skipped.Add(1)
			return
		}

		if err != nil {
			failed.Add(1)
			s.failures.Add(1)
			s.Logger.Warning("Monitor fetch %s for %d failed: %v", sub.Symbol, sub.UserID, err)
			text := fmt.Sprintf("⚠️ 모니터링 중 오류 발생\n종목: %s\n오류: %s\n\n중지하려면 /stop 입력", sub.Symbol, helpers.UserMessage(err))
			ok := s.deliver(ctx, sub.UserID, text)
			j.add(s.entry(sub.UserID, models.JournalFailure, sub.Symbol, text, ok))
			return
		}

		body := quote.Text
		if s.Portfolio != nil {
			body += s.Portfolio.DecorateQuote(sub.UserID, sub.Symbol, quote)
		}

		text := fmt.Sprintf("🔄 실시간 모니터링 #%d\n⏰ %s\n\n%s\n\n중지하려면 /stop 입력", count, clock, body)
		ok := s.deliver(ctx, sub.UserID, text)
		if ok {
			delivered.Add(1)
		}
		j.add(s.entry(sub.UserID, models.JournalMonitor, sub.Symbol, text, ok))
	})

	s.flush(ctx, j)

	return SweepStats{Entries: len(subs), Delivered: int(delivered.Load()), Failed: int(failed.Load()), Skipped: int(skipped.Load())}
}

// -----------------------------------------------------------------------------

// RunCachePurge drops expired search results
func (s *Scheduler) RunCachePurge() int {
	n := s.Cache.PurgeExpired()
	if n > 0 {
		s.Logger.Debug("Purged %d expired result lists", n)
	}
	return n
}

// -----------------------------------------------------------------------------

// RunJournalCleanup prunes journal rows past the retention window
func (s *Scheduler) RunJournalCleanup(ctx context.Context) {
	retention := time.Duration(s.Config.Storage.RetentionDays) * 24 * time.Hour
	n, err := s.Journal.CleanupOldData(ctx, retention)
	if err != nil {
		s.Logger.Error("Journal cleanup failed: %v", err)
		return
	}
	if n > 0 {
		s.Logger.Info("Journal cleanup removed %d rows", n)
	}
}

// -----------------------------------------------------------------------------

func (s *Scheduler) entry(userID int64, kind, symbol, text string, delivered bool) models.MJournalEntry {
	return models.MJournalEntry{
		UserID:    userID,
		Kind:      kind,
		Symbol:    symbol,
		Text:      text,
		Delivered: delivered,
		CreatedAt: s.now(),
	}
}
