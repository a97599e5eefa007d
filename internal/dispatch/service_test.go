package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/liamashdown/launchwatch/internal/alerts"
	"github.com/liamashdown/launchwatch/internal/dedup"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/storage"
	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSender struct {
	mu        sync.Mutex
	sent      []*alerts.AlertPayload
	summaries []*alerts.DailySummary
	err       error
}

func (s *fakeSender) Send(_ context.Context, p *alerts.AlertPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p)
	return nil
}

func (s *fakeSender) SendSummary(_ context.Context, summary *alerts.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeAlertLog struct {
	entries []*storage.AlertLog
}

func (f *fakeAlertLog) InsertAlertLog(_ context.Context, e *storage.AlertLog) error {
	f.entries = append(f.entries, e)
	return nil
}

// flakyStore fails the first n Record calls
type flakyStore struct {
	*dedup.Memory
	failures int
}

func (f *flakyStore) Record(ctx context.Context, rec dedup.Record) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	return f.Memory.Record(ctx, rec)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// testQuota gives every UTC hour a budget of perHour
func testQuota(perHour int, split map[token.Chain]float64) quota.Config {
	cfg := quota.DefaultConfig()
	cfg.DailyTarget = perHour * quota.HoursPerDay
	cfg.Windows = nil
	cfg.BaselineWeight = 1
	cfg.ChainSplit = split
	cfg.Location = time.UTC
	return cfg
}

type harness struct {
	svc    *Service
	sender *fakeSender
	store  dedup.Store
	clock  *fakeClock
	log    *fakeAlertLog
}

func newHarness(t *testing.T, qcfg quota.Config, store dedup.Store, opts ...Option) *harness {
	t.Helper()
	sched, err := quota.New(qcfg)
	require.NoError(t, err)

	h := &harness{
		sender: &fakeSender{},
		store:  store,
		clock:  &fakeClock{t: noon},
		log:    &fakeAlertLog{},
	}
	opts = append([]Option{WithClock(h.clock.Now), WithAlertLog(h.log)}, opts...)

	h.svc, err = New(Config{
		Environment:  "test",
		MaxAttempts:  2,
		DeliveryRPS:  1000,
		RetryBackoff: time.Minute,
	}, sched, store, h.sender, queue.NewPriority(100), queue.NewHolding(100), quietLogger(), opts...)
	require.NoError(t, err)
	require.NoError(t, h.svc.Start(context.Background()))
	t.Cleanup(func() { h.svc.cron.Stop() })
	return h
}

// drain runs housekeeping and processes everything in the main queue
func (h *harness) drain(ctx context.Context) {
	h.svc.housekeeping(ctx)
	for {
		c, ok := h.svc.queue.TryPop()
		if !ok {
			return
		}
		h.svc.process(ctx, c)
	}
}

func candidate(chain token.Chain, addr string, score float64) *queue.Candidate {
	return &queue.Candidate{
		ID:         token.NewID(chain, addr),
		Metrics:    token.Metrics{Chain: chain, Address: addr, Symbol: "TKN"},
		Score:      scoring.Result{Total: score, Components: map[scoring.Category]float64{scoring.CategoryLiquidity: score}},
		Tier:       queue.TierFor(score, 80, 65),
		EnqueuedAt: noon,
	}
}

var solanaOnly = map[token.Chain]float64{token.ChainSolana: 100}

func TestProcessSendsAndRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(5, solanaOnly), dedup.NewMemory(0))

	require.NoError(t, h.svc.Enqueue(candidate(token.ChainSolana, "Mint1", 90)))
	h.drain(ctx)

	require.Equal(t, 1, h.sender.count())
	p := h.sender.sent[0]
	assert.Equal(t, "solana:Mint1", p.TokenID)
	assert.Equal(t, "test", p.Environment)
	assert.Equal(t, 70.0, p.Threshold)
	assert.NotEmpty(t, p.AlertID)

	seen, err := h.store.Seen(ctx, "solana:Mint1")
	require.NoError(t, err)
	assert.True(t, seen)

	st := h.svc.Status()
	assert.Equal(t, 1, st.TotalSentToday)
	assert.Equal(t, 1, st.PerHour[12].Sent)

	require.Len(t, h.log.entries, 1)
	assert.Equal(t, "sent", h.log.entries[0].Status)
	assert.Equal(t, p.AlertID, h.log.entries[0].ID)
}

func TestDuplicateIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(5, solanaOnly), dedup.NewMemory(0))

	h.svc.Enqueue(candidate(token.ChainSolana, "Mint1", 90))
	h.drain(ctx)
	h.svc.Enqueue(candidate(token.ChainSolana, "Mint1", 95))
	h.drain(ctx)

	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, 0, h.svc.holding.Len())
}

func TestBelowThresholdIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(5, solanaOnly), dedup.NewMemory(0))

	h.svc.Enqueue(candidate(token.ChainSolana, "Weak", 55))
	h.drain(ctx)

	assert.Equal(t, 0, h.sender.count())
	assert.Equal(t, 0, h.svc.holding.Len())
}

func TestExhaustedHourHoldsUntilNextHour(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(1, solanaOnly), dedup.NewMemory(0))

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 95))
	h.svc.Enqueue(candidate(token.ChainSolana, "B", 90))
	h.drain(ctx)

	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, "solana:A", h.sender.sent[0].TokenID)
	require.Equal(t, 1, h.svc.holding.Len())
	assert.Equal(t, queue.HoldQuota, h.svc.holding.Snapshot()[0].HeldFor)

	// nothing changes within the hour
	h.clock.Advance(30 * time.Minute)
	h.drain(ctx)
	assert.Equal(t, 1, h.sender.count())

	h.clock.Advance(30 * time.Minute)
	h.drain(ctx)
	assert.Equal(t, 2, h.sender.count())
	assert.Equal(t, 0, h.svc.holding.Len())
}

func TestReplayedQuotaHoldStaysHeldUntilNextDay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(1, solanaOnly), dedup.NewMemory(0))

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 95))
	h.svc.Enqueue(candidate(token.ChainSolana, "B", 62))
	h.drain(ctx)
	require.Equal(t, 1, h.sender.count())
	require.Equal(t, 1, h.svc.holding.Len())

	// 13:00 replay is below the relaxed threshold of 70
	h.clock.Advance(time.Hour)
	h.drain(ctx)
	assert.Equal(t, 1, h.sender.count())
	require.Equal(t, 1, h.svc.holding.Len(), "rejected replay must stay held")
	held := h.svc.holding.Snapshot()[0]
	assert.Equal(t, queue.HoldQuota, held.HeldFor)
	assert.True(t, held.Replay)

	// 00:59 next day: one slot left with one minute to go lowers the bar to 60
	h.clock.Advance(11*time.Hour + 59*time.Minute)
	h.drain(ctx)
	require.Equal(t, 2, h.sender.count())
	assert.Equal(t, "solana:B", h.sender.sent[1].TokenID)
	assert.Equal(t, 0, h.svc.holding.Len())
}

func TestChainShareRaisesThreshold(t *testing.T) {
	ctx := context.Background()
	split := map[token.Chain]float64{token.ChainSolana: 50, token.ChainEthereum: 50}
	h := newHarness(t, testQuota(2, split), dedup.NewMemory(0))

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 92))
	h.drain(ctx)
	h.svc.Enqueue(candidate(token.ChainSolana, "B", 85))
	h.drain(ctx)

	// solana's share is spent: 85 < 70+20, held rather than dropped
	assert.Equal(t, 1, h.sender.count())
	require.Equal(t, 1, h.svc.holding.Len())

	h.svc.Enqueue(candidate(token.ChainEthereum, "0xc", 75))
	h.drain(ctx)
	assert.Equal(t, 2, h.sender.count())
}

func TestDeliveryFailureRetriesThenDrops(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(5, solanaOnly), dedup.NewMemory(0))
	h.sender.err = errors.New("webhook down")

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 90))
	h.drain(ctx)

	require.Equal(t, 1, h.svc.holding.Len())
	held := h.svc.holding.Snapshot()[0]
	assert.Equal(t, queue.HoldDelivery, held.HeldFor)
	assert.Equal(t, 1, held.Attempts)
	assert.Equal(t, 0, h.svc.Status().TotalSentToday, "failed delivery must release its slot")

	// not yet due
	h.clock.Advance(30 * time.Second)
	h.drain(ctx)
	assert.Equal(t, 1, h.svc.holding.Len())

	h.clock.Advance(time.Minute)
	h.drain(ctx)
	assert.Equal(t, 0, h.svc.holding.Len())
	assert.Equal(t, 0, h.sender.count())

	require.Len(t, h.log.entries, 2)
	assert.Equal(t, "failed", h.log.entries[1].Status)
	assert.Equal(t, 2, h.log.entries[1].Attempt)
}

func TestOpenBreakerHoldsWithoutAttempt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(20, solanaOnly), dedup.NewMemory(0))
	h.svc.cfg.MaxAttempts = 10
	h.sender.err = errors.New("webhook down")

	for _, addr := range []string{"A", "B", "C", "D"} {
		h.svc.Enqueue(candidate(token.ChainSolana, addr, 90))
	}
	h.drain(ctx)

	require.Equal(t, 4, h.svc.holding.Len())
	attempts := map[int]int{}
	for _, c := range h.svc.holding.Snapshot() {
		attempts[c.Attempts]++
	}
	assert.Equal(t, map[int]int{1: 3, 0: 1}, attempts)
	assert.Equal(t, "open", h.svc.Status().Breaker)
}

func TestDayRolloverCarriesHeldCandidates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(1, solanaOnly), dedup.NewMemory(0))
	h.clock.Advance(11*time.Hour + 30*time.Minute) // 23:30

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 95))
	h.svc.Enqueue(candidate(token.ChainSolana, "B", 90))
	h.drain(ctx)
	require.Equal(t, 1, h.svc.holding.Len())

	h.clock.Advance(time.Hour) // 00:30 next day
	h.drain(ctx)

	assert.Equal(t, "2026-07-02", h.svc.day)
	assert.Equal(t, 2, h.sender.count())
	st := h.svc.Status()
	assert.Equal(t, "2026-07-02", st.Day)
	assert.Equal(t, 1, st.TotalSentToday)

	seen, err := h.store.Seen(ctx, "solana:A")
	require.NoError(t, err)
	assert.False(t, seen, "yesterday's alerts do not block today")
}

// resetFailStore refuses to start a new day
type resetFailStore struct {
	*dedup.Memory
	fail bool
}

func (f *resetFailStore) Reset(ctx context.Context, day string) error {
	if f.fail {
		return errors.New("store offline")
	}
	return f.Memory.Reset(ctx, day)
}

func TestFailedResetKeepsQuotaCounters(t *testing.T) {
	ctx := context.Background()
	store := &resetFailStore{Memory: dedup.NewMemory(0)}
	h := newHarness(t, testQuota(1, solanaOnly), store)
	h.clock.Advance(11*time.Hour + 30*time.Minute) // 23:30

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 95))
	h.svc.Enqueue(candidate(token.ChainSolana, "B", 90))
	h.drain(ctx)
	require.Equal(t, 1, h.svc.holding.Len())

	store.fail = true
	h.clock.Advance(time.Hour)
	h.drain(ctx)
	assert.Equal(t, "2026-07-01", h.svc.day)
	assert.Equal(t, "2026-07-01", h.svc.sched.Day(), "status and gauges must not clear the counters")
	h.svc.Status()
	assert.Equal(t, "2026-07-01", h.svc.sched.Day())
	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, 1, h.svc.holding.Len())

	store.fail = false
	h.drain(ctx)
	assert.Equal(t, "2026-07-02", h.svc.day)
	assert.Equal(t, 2, h.sender.count())
}

func TestDayRolloverSendsSummary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testQuota(1, solanaOnly), dedup.NewMemory(0))
	h.svc.cfg.DailySummary = true
	h.clock.Advance(11*time.Hour + 30*time.Minute) // 23:30

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 95))
	h.svc.Enqueue(candidate(token.ChainSolana, "B", 90))
	h.drain(ctx)

	h.clock.Advance(time.Hour)
	h.drain(ctx)

	require.Len(t, h.sender.summaries, 1)
	sum := h.sender.summaries[0]
	assert.Equal(t, "2026-07-01", sum.Day)
	assert.Equal(t, 24, sum.Target)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.CarriedOver)
	assert.Equal(t, []alerts.ChainCount{{Chain: "solana", Sent: 1, Expected: 24}}, sum.Chains)
}

func TestStartRestoresTodaysCounters(t *testing.T) {
	ctx := context.Background()
	store := dedup.NewMemory(0)
	for i, addr := range []string{"A", "B", "C"} {
		require.NoError(t, store.Record(ctx, dedup.Record{
			Day:     "2026-07-01",
			TokenID: token.NewID(token.ChainSolana, addr),
			Chain:   token.ChainSolana,
			Hour:    9 + i,
			Score:   90,
		}))
	}

	h := newHarness(t, testQuota(5, solanaOnly), store)
	st := h.svc.Status()
	assert.Equal(t, 3, st.TotalSentToday)
	assert.Equal(t, 1, st.PerHour[10].Sent)

	h.svc.Enqueue(candidate(token.ChainSolana, "B", 99))
	h.drain(ctx)
	assert.Equal(t, 0, h.sender.count())
}

func TestStartResetsStaleDay(t *testing.T) {
	ctx := context.Background()
	store := dedup.NewMemory(0)
	require.NoError(t, store.Record(ctx, dedup.Record{Day: "2026-06-30", TokenID: "solana:A", Chain: token.ChainSolana, Hour: 23}))

	h := newHarness(t, testQuota(5, solanaOnly), store)
	day, records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01", day)
	assert.Empty(t, records)
	assert.Equal(t, 0, h.svc.Status().TotalSentToday)
}

func TestRecordIsRetried(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: dedup.NewMemory(0), failures: 2}
	h := newHarness(t, testQuota(5, solanaOnly), store)

	h.svc.Enqueue(candidate(token.ChainSolana, "A", 90))
	h.drain(ctx)

	assert.Equal(t, 1, h.sender.count())
	seen, err := store.Seen(ctx, "solana:A")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRunPersistsQueuesOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queues.json")
	qcfg := testQuota(1, solanaOnly)

	h := newHarness(t, qcfg, dedup.NewMemory(0), WithQueueStore(NewFileQueueStore(path)))
	h.sender.err = errors.New("down")
	h.svc.Enqueue(candidate(token.ChainSolana, "A", 95))
	h.drain(context.Background())
	require.Equal(t, 1, h.svc.holding.Len())

	h.svc.Enqueue(candidate(token.ChainSolana, "B", 90))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.svc.Run(ctx))
	assert.False(t, h.svc.Ready())
	assert.ErrorIs(t, h.svc.Enqueue(candidate(token.ChainSolana, "C", 90)), ErrClosed)

	restarted := newHarness(t, qcfg, dedup.NewMemory(0), WithQueueStore(NewFileQueueStore(path)))
	assert.Equal(t, 1, restarted.svc.queue.Len())
	require.Equal(t, 1, restarted.svc.holding.Len())
	held := restarted.svc.holding.Snapshot()[0]
	assert.Equal(t, token.ID("solana:A"), held.ID)
	assert.Equal(t, queue.HoldDelivery, held.HeldFor)
	assert.Equal(t, 1, held.Attempts)
}

func TestEnqueueDuringShutdownIsPersistedOrRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queues.json")
	h := newHarness(t, testQuota(1, solanaOnly), dedup.NewMemory(0), WithQueueStore(NewFileQueueStore(path)))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	start := make(chan struct{})
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-start
			for i := 0; i < 20; i++ {
				c := candidate(token.ChainSolana, fmt.Sprintf("M%d-%d", g, i), 90)
				if err := h.svc.Enqueue(c); err != nil {
					return
				}
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(g)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	close(start)
	require.NoError(t, h.svc.Run(ctx))
	wg.Wait()

	main, _, err := NewFileQueueStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, main, accepted)
	assert.Equal(t, 0, h.svc.queue.Len())
}

func TestStartOnNewDayFlushesRestoredHolds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queues.json")
	held := candidate(token.ChainSolana, "B", 62)
	held.HeldFor = queue.HoldQuota
	held.Replay = true
	require.NoError(t, NewFileQueueStore(path).Save(ctx, nil, []*queue.Candidate{held}))

	store := dedup.NewMemory(0)
	require.NoError(t, store.Record(ctx, dedup.Record{Day: "2026-06-30", TokenID: "solana:A", Chain: token.ChainSolana, Hour: 23}))

	h := newHarness(t, testQuota(1, solanaOnly), store, WithQueueStore(NewFileQueueStore(path)))
	assert.Equal(t, 0, h.svc.holding.Len())
	require.Equal(t, 1, h.svc.queue.Len())
	c, _ := h.svc.queue.TryPop()
	assert.False(t, c.Replay)
	assert.Empty(t, c.HeldFor)
}

type fakeHeld struct {
	rows []storage.HeldCandidate
}

func (f *fakeHeld) ReplaceHeldCandidates(_ context.Context, items []storage.HeldCandidate) error {
	f.rows = append([]storage.HeldCandidate(nil), items...)
	return nil
}

func (f *fakeHeld) LoadHeldCandidates(context.Context) ([]storage.HeldCandidate, error) {
	return f.rows, nil
}

func TestSQLQueueStore(t *testing.T) {
	ctx := context.Background()
	backend := &fakeHeld{}
	qs := NewSQLQueueStore(backend)

	held := candidate(token.ChainBase, "0xb", 70)
	held.HeldFor = queue.HoldQuota
	require.NoError(t, qs.Save(ctx, []*queue.Candidate{candidate(token.ChainBase, "0xa", 80)}, []*queue.Candidate{held}))
	require.Len(t, backend.rows, 2)
	assert.Equal(t, queueMain, backend.rows[0].Queue)
	assert.Equal(t, queueHolding, backend.rows[1].Queue)

	backend.rows = append(backend.rows, storage.HeldCandidate{Queue: queueMain, Payload: "{broken"})
	main, holding, err := qs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, main, 1)
	require.Len(t, holding, 1)
	assert.Equal(t, token.ID("base:0xa"), main[0].ID)
	assert.Equal(t, 80.0, main[0].Score.Total)
	assert.Equal(t, queue.HoldQuota, holding[0].HeldFor)
}

func TestFileQueueStoreMissingFile(t *testing.T) {
	main, holding, err := NewFileQueueStore(filepath.Join(t.TempDir(), "none.json")).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, main)
	assert.Empty(t, holding)
}

func TestBuildPayload(t *testing.T) {
	c := candidate(token.ChainEthereum, "0x1234567890abcdef", 82)
	c.Score.Components[scoring.CategorySecurity] = 95
	c.Confidence.WeakPoints = []scoring.Category{scoring.CategorySocial}

	p := BuildPayload(c, quota.Decision{Threshold: 60}, "prod", noon)
	assert.Equal(t, "ethereum", p.Chain)
	assert.Equal(t, "0x1234…cdef", p.AddressShort)
	assert.Equal(t, "HIGH", p.Tier)
	assert.Equal(t, 60.0, p.Threshold)
	assert.Equal(t, []string{"social"}, p.WeakPoints)
	require.Len(t, p.Components, 2)
	assert.Equal(t, "security", p.Components[0].Name)
}
