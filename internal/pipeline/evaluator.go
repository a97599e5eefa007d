package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/liamashdown/launchwatch/internal/confidence"
	"github.com/liamashdown/launchwatch/internal/metrics"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/sirupsen/logrus"
)

// Enricher fetches the metrics document of a discovered token
type Enricher interface {
	Enrich(ctx context.Context, ev token.DiscoveryEvent) (token.Partial, error)
}

// Thresholds select and classify candidates
type Thresholds struct {
	MinimumScore float64
	HighTier     float64
	MediumTier   float64
}

// Evaluator turns a discovery event into a scored candidate
type Evaluator struct {
	enricher      Enricher
	scorer        *scoring.Engine
	confidence    *confidence.Engine
	estimator     confidence.SuccessEstimator
	thresholds    Thresholds
	enrichTimeout time.Duration
	log           *logrus.Logger
}

// NewEvaluator creates an evaluator. A nil enricher scores every token on
// its documented defaults; a nil estimator uses the step fallback.
func NewEvaluator(
	enricher Enricher,
	scorer *scoring.Engine,
	conf *confidence.Engine,
	estimator confidence.SuccessEstimator,
	thresholds Thresholds,
	enrichTimeout time.Duration,
	log *logrus.Logger,
) *Evaluator {
	if estimator == nil {
		estimator = confidence.StepEstimator{}
	}
	return &Evaluator{
		enricher:      enricher,
		scorer:        scorer,
		confidence:    conf,
		estimator:     estimator,
		thresholds:    thresholds,
		enrichTimeout: enrichTimeout,
		log:           log,
	}
}

// Metrics builds the metrics snapshot of ev: defaults, overlaid with the
// enrichment document when it arrives within the timeout
func (e *Evaluator) Metrics(ctx context.Context, ev token.DiscoveryEvent, now time.Time) token.Metrics {
	if ev.LaunchTime.IsZero() {
		ev.LaunchTime = now
	}
	m := token.DefaultMetrics(ev)
	if e.enricher == nil {
		return m
	}

	enrichCtx := ctx
	if e.enrichTimeout > 0 {
		var cancel context.CancelFunc
		enrichCtx, cancel = context.WithTimeout(ctx, e.enrichTimeout)
		defer cancel()
	}

	partial, err := e.enricher.Enrich(enrichCtx, ev)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.EnrichmentFallbacks.WithLabelValues(string(ev.Chain), reason).Inc()
		e.log.WithError(err).WithFields(logrus.Fields{
			"token_id": ev.ID(),
			"reason":   reason,
		}).Warn("Enrichment failed, scoring on defaults")
		return m
	}

	return partial.Apply(m)
}

// Assess scores m and derives its confidence report
func (e *Evaluator) Assess(m token.Metrics, now time.Time) (scoring.Result, confidence.Report, confidence.Action) {
	res := e.scorer.Score(m, now)
	p := e.estimator.Estimate(m, res.Total)
	report := e.confidence.Evaluate(res.Total, res.Components, p)
	return res, report, confidence.Recommend(res.Total, report)
}

// Evaluate runs enrichment and scoring for ev. It returns false when the
// score is below the minimum alert score.
func (e *Evaluator) Evaluate(ctx context.Context, ev token.DiscoveryEvent, now time.Time) (*queue.Candidate, bool) {
	start := time.Now()

	m := e.Metrics(ctx, ev, now)
	res, report, action := e.Assess(m, now)

	keep := res.Total >= e.thresholds.MinimumScore
	metrics.RecordScore(string(ev.Chain), res.Total, keep, time.Since(start))

	fields := logrus.Fields{
		"token_id": m.ID(),
		"score":    res.Total,
		"risk":     report.Risk,
		"action":   action,
	}
	if !keep {
		e.log.WithFields(fields).Debug("Token below minimum alert score")
		return nil, false
	}
	e.log.WithFields(fields).Debug("Token scored")

	return &queue.Candidate{
		ID:         m.ID(),
		Metrics:    m,
		Score:      res,
		Confidence: report,
		Action:     action,
		Tier:       queue.TierFor(res.Total, e.thresholds.HighTier, e.thresholds.MediumTier),
		EnqueuedAt: now,
	}, true
}
