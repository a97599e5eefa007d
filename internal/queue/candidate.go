package queue

import (
	"time"

	"github.com/liamashdown/launchwatch/internal/confidence"
	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/token"
)

// Tier is the dispatch priority class of a candidate
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// Rank orders tiers, lower dispatches first
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	default:
		return 2
	}
}

// TierFor classifies a score against the tier thresholds
func TierFor(score, high, medium float64) Tier {
	switch {
	case score >= high:
		return TierHigh
	case score >= medium:
		return TierMedium
	default:
		return TierLow
	}
}

// HoldReason records why a candidate is parked in the holding queue
type HoldReason string

const (
	HoldQuota    HoldReason = "quota"
	HoldDelivery HoldReason = "delivery"
)

// Candidate is a scored token waiting for dispatch
type Candidate struct {
	ID         token.ID          `json:"id"`
	Metrics    token.Metrics     `json:"metrics"`
	Score      scoring.Result    `json:"score"`
	Confidence confidence.Report `json:"confidence"`
	Action     confidence.Action `json:"action"`
	Tier       Tier              `json:"tier"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Seq        uint64            `json:"seq"`
	Attempts   int               `json:"attempts"`
	HeldFor    HoldReason        `json:"held_for,omitempty"`

	// Replay is set while a quota-held candidate is re-offered within the
	// same day. A rejected replay goes back to holding instead of dropping.
	Replay bool `json:"replay,omitempty"`
}

// Before reports whether c should dispatch ahead of other:
// higher tier, then higher score, then earlier arrival.
func (c *Candidate) Before(other *Candidate) bool {
	if c.Tier.Rank() != other.Tier.Rank() {
		return c.Tier.Rank() < other.Tier.Rank()
	}
	if c.Score.Total != other.Score.Total {
		return c.Score.Total > other.Score.Total
	}
	if !c.EnqueuedAt.Equal(other.EnqueuedAt) {
		return c.EnqueuedAt.Before(other.EnqueuedAt)
	}
	return c.Seq < other.Seq
}
