package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/liamashdown/launchwatch/internal/metrics"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/sirupsen/logrus"
)

const recentCapacity = 4096

// Source yields launches on one chain created after since
type Source interface {
	Discover(ctx context.Context, chain token.Chain, since time.Time) ([]token.DiscoveryEvent, error)
}

// Sink accepts scored candidates; it must not block
type Sink interface {
	Enqueue(c *queue.Candidate) error
}

// Checkpoints persists each chain's feed cursor across restarts
type Checkpoints interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Producer polls the feed of every enabled chain and pushes candidates
// to the sink. Each chain runs in its own goroutine.
type Producer struct {
	source      Source
	evaluator   *Evaluator
	sink        Sink
	checkpoints Checkpoints
	interval    time.Duration
	workers     int
	now         func() time.Time
	log         *logrus.Logger
}

// NewProducer creates a producer. checkpoints may be nil.
func NewProducer(source Source, evaluator *Evaluator, sink Sink, checkpoints Checkpoints, interval time.Duration, workers int, log *logrus.Logger) *Producer {
	if workers < 1 {
		workers = 1
	}
	return &Producer{
		source:      source,
		evaluator:   evaluator,
		sink:        sink,
		checkpoints: checkpoints,
		interval:    interval,
		workers:     workers,
		now:         time.Now,
		log:         log,
	}
}

// Run polls every chain until ctx is cancelled
func (p *Producer) Run(ctx context.Context, chains []token.Chain) {
	var wg sync.WaitGroup
	for _, chain := range chains {
		wg.Add(1)
		go func(chain token.Chain) {
			defer wg.Done()
			p.runChain(ctx, chain)
		}(chain)
	}
	wg.Wait()
}

func (p *Producer) runChain(ctx context.Context, chain token.Chain) {
	log := p.log.WithField("chain", chain)
	cursor := p.loadCursor(ctx, chain)
	recent := newRecentSet(recentCapacity)

	log.WithField("cursor", cursor).Info("Starting chain producer")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		next, err := p.Poll(ctx, chain, cursor, recent)
		if err != nil {
			log.WithError(err).Warn("Feed poll failed")
		}
		if next.After(cursor) {
			cursor = next
			p.saveCursor(ctx, chain, cursor)
		}

		select {
		case <-ctx.Done():
			log.Info("Chain producer stopped")
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches one batch, evaluates it on a bounded worker pool and
// returns the advanced cursor
func (p *Producer) Poll(ctx context.Context, chain token.Chain, cursor time.Time, recent *recentSet) (time.Time, error) {
	events, err := p.source.Discover(ctx, chain, cursor)
	if err != nil {
		return cursor, err
	}

	next := cursor
	workerPool := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for _, ev := range events {
		if ev.LaunchTime.After(next) {
			next = ev.LaunchTime
		}
		if recent != nil && !recent.add(ev.ID()) {
			continue
		}
		metrics.TokensDiscovered.WithLabelValues(string(chain)).Inc()

		wg.Add(1)
		workerPool <- struct{}{}
		go func(ev token.DiscoveryEvent) {
			defer wg.Done()
			defer func() { <-workerPool }()
			p.handle(ctx, ev)
		}(ev)
	}

	wg.Wait()
	return next, nil
}

func (p *Producer) handle(ctx context.Context, ev token.DiscoveryEvent) {
	c, ok := p.evaluator.Evaluate(ctx, ev, p.now())
	if !ok {
		return
	}
	if err := p.sink.Enqueue(c); err != nil {
		p.log.WithError(err).WithField("token_id", c.ID).Warn("Failed to enqueue candidate")
	}
}

func cursorKey(chain token.Chain) string {
	return "feed_cursor:" + string(chain)
}

func (p *Producer) loadCursor(ctx context.Context, chain token.Chain) time.Time {
	if p.checkpoints == nil {
		return time.Time{}
	}
	v, err := p.checkpoints.GetState(ctx, cursorKey(chain))
	if err != nil {
		p.log.WithError(err).WithField("chain", chain).Warn("Failed to load feed cursor")
		return time.Time{}
	}
	if v == "" {
		return time.Time{}
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func (p *Producer) saveCursor(ctx context.Context, chain token.Chain, cursor time.Time) {
	if p.checkpoints == nil {
		return
	}
	if err := p.checkpoints.SetState(ctx, cursorKey(chain), strconv.FormatInt(cursor.Unix(), 10)); err != nil {
		p.log.WithError(err).WithField("chain", chain).Error("Failed to update feed cursor")
	}
}

// recentSet remembers the last n token IDs handed to the evaluator so
// overlapping feed pages are not scored twice
type recentSet struct {
	mu    sync.Mutex
	ids   map[token.ID]struct{}
	order []token.ID
	next  int
}

func newRecentSet(n int) *recentSet {
	return &recentSet{ids: make(map[token.ID]struct{}, n), order: make([]token.ID, 0, n)}
}

// add returns false if id was already present
func (r *recentSet) add(id token.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false
	}
	if len(r.order) < cap(r.order) {
		r.order = append(r.order, id)
	} else {
		delete(r.ids, r.order[r.next])
		r.order[r.next] = id
		r.next = (r.next + 1) % len(r.order)
	}
	r.ids[id] = struct{}{}
	return true
}
