package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Discovery and scoring metrics
	TokensDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_tokens_discovered_total",
			Help: "Total number of discovery events received",
		},
		[]string{"chain"},
	)

	CandidatesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_candidates_scored_total",
			Help: "Total number of tokens scored",
		},
		[]string{"chain", "outcome"}, // enqueued, below_minimum
	)

	ScoreDistribution = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchwatch_scores",
			Help:    "Distribution of composite scores (0-100 scale)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 65, 70, 75, 80, 85, 90, 95, 100},
		},
		[]string{"chain"},
	)

	EnrichmentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_enrichment_fallbacks_total",
			Help: "Total number of enrichments that fell back to defaults",
		},
		[]string{"chain", "reason"}, // error, timeout
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launchwatch_scoring_duration_seconds",
			Help:    "Duration of enrich + score + confidence for one token",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Admission metrics
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_admission_decisions_total",
			Help: "Total number of quota admission decisions",
		},
		[]string{"chain", "reason"}, // admitted, hour_quota_exhausted, below_threshold
	)

	HourlyBudget = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchwatch_hourly_budget",
			Help: "Planned alerts for each local hour",
		},
		[]string{"hour"},
	)

	HourlySent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchwatch_hourly_sent",
			Help: "Alerts sent so far in each local hour of the active day",
		},
		[]string{"hour"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchwatch_queue_depth",
			Help: "Number of candidates waiting",
		},
		[]string{"queue"}, // main, holding
	)

	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_candidates_dropped_total",
			Help: "Total number of candidates dropped without an alert",
		},
		[]string{"reason"}, // duplicate, rejected, queue_full, holding_full, delivery_failed
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_alerts_sent_total",
			Help: "Total number of alert deliveries",
		},
		[]string{"status", "tier"}, // success/error, HIGH/MEDIUM/LOW
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launchwatch_delivery_duration_seconds",
			Help:    "Duration of alert delivery",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "launchwatch_delivery_breaker_state",
			Help: "Delivery circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// Dedup and persistence metrics
	DedupOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_dedup_operations_total",
			Help: "Total number of dedup store operations",
		},
		[]string{"operation", "status"}, // seen/record/reset/flush, success/error
	)

	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_persistence_errors_total",
			Help: "Total number of persistence failures",
		},
		[]string{"component"}, // dedup, alert_log, held_candidates
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"api", "endpoint", "status"}, // feed/enrich, /launches, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchwatch_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchwatch_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordScore records a scored candidate and whether it reached the queue
func RecordScore(chain string, score float64, enqueued bool, duration time.Duration) {
	outcome := "enqueued"
	if !enqueued {
		outcome = "below_minimum"
	}
	CandidatesScored.WithLabelValues(chain, outcome).Inc()
	ScoreDistribution.WithLabelValues(chain).Observe(score)
	ScoringDuration.Observe(duration.Seconds())
}

// RecordAdmission records a quota decision
func RecordAdmission(chain, reason string) {
	AdmissionDecisions.WithLabelValues(chain, reason).Inc()
}

// RecordDrop records a candidate that left the system without an alert
func RecordDrop(reason string) {
	CandidatesDropped.WithLabelValues(reason).Inc()
}

// RecordAlert records one delivery attempt
func RecordAlert(tier string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AlertsSent.WithLabelValues(status, tier).Inc()
	DeliveryDuration.Observe(duration.Seconds())
}

// RecordQueueDepth records the size of the main and holding queues
func RecordQueueDepth(main, holding int) {
	QueueDepth.WithLabelValues("main").Set(float64(main))
	QueueDepth.WithLabelValues("holding").Set(float64(holding))
}

// RecordPlan publishes the hourly budgets and sends
func RecordPlan(budget, sent []int) {
	for h := range budget {
		HourlyBudget.WithLabelValues(strconv.Itoa(h)).Set(float64(budget[h]))
	}
	for h := range sent {
		HourlySent.WithLabelValues(strconv.Itoa(h)).Set(float64(sent[h]))
	}
}

// RecordDedup records a dedup store operation
func RecordDedup(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
		PersistenceErrors.WithLabelValues("dedup").Inc()
	}
	DedupOperations.WithLabelValues(operation, status).Inc()
}

// RecordPersistenceError records a failed write outside the dedup store
func RecordPersistenceError(component string) {
	PersistenceErrors.WithLabelValues(component).Inc()
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequests.WithLabelValues(api, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
