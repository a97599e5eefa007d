package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamashdown/launchwatch/internal/alerts"
	"github.com/liamashdown/launchwatch/internal/dedup"
	"github.com/liamashdown/launchwatch/internal/metrics"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/ratelimit"
	"github.com/liamashdown/launchwatch/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrClosed is returned by Enqueue once the service has shut down
var ErrClosed = errors.New("dispatcher closed")

const (
	maxRecordBackoff = 30 * time.Second
	summaryTimeout   = 10 * time.Second
)

// Config tunes the dispatcher
type Config struct {
	Environment          string
	MaxAttempts          int
	DeliveryRPS          float64
	HousekeepingInterval time.Duration
	RetryBackoff         time.Duration
	BreakerTimeout       time.Duration
	ResetSchedule        string // cron spec in the quota time zone
	DailySummary         bool   // post the closing day's totals on reset
}

// AlertLogger stores the delivery history
type AlertLogger interface {
	InsertAlertLog(ctx context.Context, entry *storage.AlertLog) error
}

// Service is the single consumer of the candidate queue. It gates every
// candidate through dedup and the quota scheduler before delivery.
type Service struct {
	cfg      Config
	sched    *quota.Scheduler
	store    dedup.Store
	sender   alerts.Sender
	queue    *queue.Priority
	holding  *queue.Holding
	limiter  *ratelimit.Limiter
	breaker  *gobreaker.CircuitBreaker
	cron     *cron.Cron
	alertLog AlertLogger
	queues   QueueStore
	log      *logrus.Logger
	now      func() time.Time

	wake chan struct{}

	mu     sync.RWMutex
	closed bool
	ready  bool

	// owned by the Run goroutine
	day       string
	hour      int
	nextRetry time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithAlertLog records every delivery attempt
func WithAlertLog(l AlertLogger) Option {
	return func(s *Service) { s.alertLog = l }
}

// WithQueueStore persists the queues on shutdown and restores them on start
func WithQueueStore(qs QueueStore) Option {
	return func(s *Service) { s.queues = qs }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a dispatcher
func New(cfg Config, sched *quota.Scheduler, store dedup.Store, sender alerts.Sender, main *queue.Priority, holding *queue.Holding, log *logrus.Logger, opts ...Option) (*Service, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.HousekeepingInterval <= 0 {
		cfg.HousekeepingInterval = 15 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}
	if cfg.ResetSchedule == "" {
		cfg.ResetSchedule = "@midnight"
	}

	s := &Service{
		cfg:     cfg,
		sched:   sched,
		store:   store,
		sender:  sender,
		queue:   main,
		holding: holding,
		limiter: ratelimit.New(cfg.DeliveryRPS),
		log:     log,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		hour:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "delivery",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			s.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Delivery circuit breaker changed state")
		},
	})

	s.cron = cron.New(cron.WithLocation(sched.Location()))
	if _, err := s.cron.AddFunc(cfg.ResetSchedule, s.poke); err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", cfg.ResetSchedule, err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.poke); err != nil {
		return nil, fmt.Errorf("schedule hourly review: %w", err)
	}

	return s, nil
}

// poke wakes the Run loop for housekeeping
func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start restores the day's counters and persisted queues, then arms the
// day and hour timers
func (s *Service) Start(ctx context.Context) error {
	now := s.now()
	today := s.sched.DayOf(now)

	day, records, err := s.store.Load(ctx)
	metrics.RecordDedup("load", err)
	if err != nil {
		return fmt.Errorf("load dedup store: %w", err)
	}

	staleDay := day != "" && day != today
	if day == today {
		slots := make([]quota.Slot, 0, len(records))
		for _, rec := range records {
			slots = append(slots, quota.Slot{Chain: rec.Chain, Hour: rec.Hour})
		}
		s.sched.Restore(today, slots)
		s.log.WithFields(logrus.Fields{
			"day":      today,
			"restored": len(slots),
		}).Info("Restored today's alert counters")
	} else {
		err := s.store.Reset(ctx, today)
		metrics.RecordDedup("reset", err)
		if err != nil {
			return fmt.Errorf("reset dedup store: %w", err)
		}
		s.sched.Rollover(now)
		if day != "" {
			s.log.WithFields(logrus.Fields{
				"previous_day": day,
				"day":          today,
			}).Info("Started new alert day")
		}
	}
	s.day = today
	s.hour = now.In(s.sched.Location()).Hour()

	if s.queues != nil {
		main, holding, err := s.queues.Load(ctx)
		if err != nil {
			s.log.WithError(err).Warn("Failed to restore queued candidates")
		}
		for _, c := range main {
			s.push(c)
		}
		for _, c := range holding {
			if staleDay {
				// the daily flush happened while we were down
				c.HeldFor = ""
				c.Replay = false
				s.push(c)
				continue
			}
			reason := c.HeldFor
			if reason == "" {
				reason = queue.HoldQuota
			}
			if reason == queue.HoldDelivery {
				s.nextRetry = now
			}
			s.hold(c, reason)
		}
		if len(main)+len(holding) > 0 {
			s.log.WithFields(logrus.Fields{
				"main":    len(main),
				"holding": len(holding),
			}).Info("Restored queued candidates")
		}
	}

	s.cron.Start()

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// Enqueue adds a scored candidate. It never blocks.
func (s *Service) Enqueue(c *queue.Candidate) error {
	// shutdown drains under the write lock, so a push made here is either
	// persisted or refused
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.push(c)
	return nil
}

// Ready reports whether Start completed and the service is still running
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && !s.closed
}

func (s *Service) push(c *queue.Candidate) {
	if evicted := s.queue.Push(c); evicted != nil {
		metrics.RecordDrop("queue_full")
		s.log.WithFields(logrus.Fields{
			"token_id": evicted.ID,
			"score":    evicted.Score.Total,
		}).Debug("Queue full, dropped lowest-ranked candidate")
	}
}

func (s *Service) hold(c *queue.Candidate, reason queue.HoldReason) {
	if evicted := s.holding.Hold(c, reason); evicted != nil {
		metrics.RecordDrop("holding_full")
		s.log.WithFields(logrus.Fields{
			"token_id": evicted.ID,
			"score":    evicted.Score.Total,
		}).Debug("Holding queue full, dropped lowest-ranked candidate")
	}
}

// Run consumes the queue until ctx is cancelled, then persists what is
// left and flushes the dedup store
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HousekeepingInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}

		s.housekeeping(ctx)

		if c, ok := s.queue.TryPop(); ok {
			s.process(ctx, c)
			continue
		}

		select {
		case <-ctx.Done():
		case <-s.queue.Ready():
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// process runs one candidate through dedup, admission and delivery
func (s *Service) process(ctx context.Context, c *queue.Candidate) {
	now := s.now()
	log := s.log.WithFields(logrus.Fields{
		"token_id": c.ID,
		"score":    c.Score.Total,
		"tier":     c.Tier,
	})

	if s.day != s.sched.DayOf(now) {
		// dedup store has not moved to the new day yet
		s.holdForRetry(c, now)
		return
	}

	seen, err := s.store.Seen(ctx, c.ID)
	metrics.RecordDedup("seen", err)
	if err != nil {
		log.WithError(err).Warn("Dedup lookup failed, holding candidate")
		s.holdForRetry(c, now)
		return
	}
	if seen {
		metrics.RecordDrop("duplicate")
		log.Debug("Token already alerted today")
		return
	}

	chain := c.Metrics.Chain
	d := s.sched.Admit(chain, c.Score.Total, now)
	metrics.RecordAdmission(string(chain), string(d.Reason))

	if !d.Accepted {
		if d.QuotaLimited() || c.Replay {
			s.hold(c, queue.HoldQuota)
			log.WithFields(logrus.Fields{
				"threshold":     d.Threshold,
				"reason":        d.Reason,
				"chain_penalty": d.ChainPenalty,
				"replay":        c.Replay,
			}).Debug("Quota spent, holding candidate")
			return
		}
		metrics.RecordDrop(string(d.Reason))
		log.WithField("threshold", d.Threshold).Debug("Below dynamic threshold")
		return
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.sched.Release(chain, d.Day, d.Hour)
		s.push(c)
		return
	}

	payload := BuildPayload(c, d, s.cfg.Environment, now)
	start := time.Now()
	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.sender.Send(ctx, payload)
	})
	metrics.RecordAlert(string(c.Tier), time.Since(start), err)
	s.logAttempt(ctx, c, d, payload, err)

	if err != nil {
		s.sched.Release(chain, d.Day, d.Hour)
		s.handleFailure(ctx, c, now, err, log)
		return
	}

	log.WithFields(logrus.Fields{
		"alert_id":  payload.AlertID,
		"threshold": d.Threshold,
		"action":    c.Action,
	}).Info("Alert sent")

	s.recordWithRetry(ctx, dedup.Record{
		Day:     d.Day,
		TokenID: c.ID,
		Chain:   chain,
		Hour:    d.Hour,
		Score:   c.Score.Total,
		SentAt:  now,
	})
}

func (s *Service) handleFailure(ctx context.Context, c *queue.Candidate, now time.Time, err error, log *logrus.Entry) {
	switch {
	case ctx.Err() != nil:
		s.push(c)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.holdForRetry(c, now)
	default:
		c.Attempts++
		if c.Attempts >= s.cfg.MaxAttempts {
			metrics.RecordDrop("delivery_failed")
			log.WithError(err).WithField("attempts", c.Attempts).Error("Alert delivery failed, giving up")
			return
		}
		log.WithError(err).WithField("attempts", c.Attempts).Warn("Alert delivery failed, will retry")
		s.holdForRetry(c, now)
	}
}

func (s *Service) holdForRetry(c *queue.Candidate, now time.Time) {
	s.hold(c, queue.HoldDelivery)
	if s.nextRetry.Before(now) {
		s.nextRetry = now.Add(s.cfg.RetryBackoff)
	}
}

func (s *Service) logAttempt(ctx context.Context, c *queue.Candidate, d quota.Decision, p *alerts.AlertPayload, sendErr error) {
	if s.alertLog == nil {
		return
	}
	entry := &storage.AlertLog{
		ID:        p.AlertID,
		TokenID:   p.TokenID,
		Chain:     p.Chain,
		Symbol:    p.Symbol,
		Tier:      p.Tier,
		Action:    p.Action,
		Score:     p.Score,
		Threshold: d.Threshold,
		Attempt:   c.Attempts + 1,
		Status:    "sent",
		CreatedTS: p.Timestamp.Unix(),
	}
	if sendErr != nil {
		entry.Status = "failed"
		entry.Error = sendErr.Error()
	}
	if err := s.alertLog.InsertAlertLog(context.WithoutCancel(ctx), entry); err != nil {
		metrics.RecordPersistenceError("alert_log")
		s.log.WithError(err).WithField("token_id", c.ID).Warn("Failed to store alert log")
	}
}

// recordWithRetry persists a sent alert. The alert already left, so the
// write is retried with backoff and survives shutdown cancellation.
func (s *Service) recordWithRetry(ctx context.Context, rec dedup.Record) {
	wctx := context.WithoutCancel(ctx)
	backoff := 100 * time.Millisecond
	gaveUp := false

	for {
		err := s.store.Record(wctx, rec)
		metrics.RecordDedup("record", err)
		if err == nil {
			return
		}

		if errors.Is(err, dedup.ErrDayMismatch) {
			if rec.Day < s.sched.DayOf(s.now()) {
				s.log.WithField("token_id", rec.TokenID).Debug("Dropping dedup record of a finished day")
				return
			}
			rerr := s.store.Reset(wctx, rec.Day)
			metrics.RecordDedup("reset", rerr)
			if rerr == nil {
				continue
			}
			err = rerr
		}

		if gaveUp {
			s.log.WithError(err).WithField("token_id", rec.TokenID).Error("Failed to persist sent alert, it may be repeated after restart")
			return
		}
		s.log.WithError(err).WithField("token_id", rec.TokenID).Warn("Failed to persist sent alert, retrying")

		select {
		case <-ctx.Done():
			// one last attempt on the way out
			gaveUp = true
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRecordBackoff {
			backoff = maxRecordBackoff
		}
	}
}

// housekeeping handles day rollover, re-offers held candidates and
// publishes gauges
func (s *Service) housekeeping(ctx context.Context) {
	now := s.now()
	loc := s.sched.Location()
	hour := now.In(loc).Hour()

	if day := s.sched.DayOf(now); day != s.day {
		err := s.store.Reset(ctx, day)
		metrics.RecordDedup("reset", err)
		if err != nil {
			s.log.WithError(err).WithField("day", day).Error("Failed to start new dedup day")
		} else {
			carried := s.holding.Drain()
			for _, c := range carried {
				c.HeldFor = ""
				c.Replay = false
				s.push(c)
			}
			if s.cfg.DailySummary {
				s.sendSummary(ctx, len(carried))
			}
			s.sched.Rollover(now)
			s.log.WithFields(logrus.Fields{
				"previous_day": s.day,
				"day":          day,
				"carried_over": len(carried),
			}).Info("Daily reset")
			s.day = day
			s.hour = hour
		}
	}

	if hour != s.hour {
		s.hour = hour
		for _, c := range s.holding.DrainWhere(func(c *queue.Candidate) bool { return c.HeldFor == queue.HoldQuota }) {
			c.HeldFor = ""
			c.Replay = true
			s.push(c)
		}
	}

	if !s.nextRetry.IsZero() && !now.Before(s.nextRetry) && s.breaker.State() != gobreaker.StateOpen {
		s.nextRetry = time.Time{}
		for _, c := range s.holding.DrainWhere(func(c *queue.Candidate) bool { return c.HeldFor == queue.HoldDelivery }) {
			c.HeldFor = ""
			s.push(c)
		}
	}

	metrics.RecordQueueDepth(s.queue.Len(), s.holding.Len())
	st := s.sched.Snapshot(now)
	budget := make([]int, len(st.PerHour))
	sent := make([]int, len(st.PerHour))
	for i, h := range st.PerHour {
		budget[i] = h.Quota
		sent[i] = h.Sent
	}
	metrics.RecordPlan(budget, sent)
}

// sendSummary reports the day that is about to close. Failures are logged
// and not retried.
func (s *Service) sendSummary(ctx context.Context, carried int) {
	ss, ok := s.sender.(alerts.SummarySender)
	if !ok {
		return
	}

	st := s.sched.ActiveStatus()
	summary := &alerts.DailySummary{
		Day:         st.Day,
		Target:      st.DailyTarget,
		Sent:        st.TotalSentToday,
		CarriedOver: carried,
		Environment: s.cfg.Environment,
	}
	for chain, cs := range st.PerChain {
		summary.Chains = append(summary.Chains, alerts.ChainCount{
			Chain:    string(chain),
			Sent:     cs.Sent,
			Expected: cs.Expected,
		})
	}
	sort.Slice(summary.Chains, func(i, j int) bool { return summary.Chains[i].Chain < summary.Chains[j].Chain })

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
	defer cancel()
	if err := ss.SendSummary(ctx, summary); err != nil {
		s.log.WithError(err).WithField("day", summary.Day).Warn("Failed to send daily summary")
	}
}

func (s *Service) shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	ctx := context.Background()
	var errs []error

	if s.queues != nil {
		main := s.queue.Drain()
		holding := s.holding.Snapshot()
		if err := s.queues.Save(ctx, main, holding); err != nil {
			metrics.RecordPersistenceError("queue")
			errs = append(errs, fmt.Errorf("persist queues: %w", err))
		} else {
			s.log.WithFields(logrus.Fields{
				"main":    len(main),
				"holding": len(holding),
			}).Info("Persisted queued candidates")
		}
	}

	err := s.store.Flush(ctx)
	metrics.RecordDedup("flush", err)
	if err != nil {
		errs = append(errs, fmt.Errorf("flush dedup store: %w", err))
	}

	return errors.Join(errs...)
}
