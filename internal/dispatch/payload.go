package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/liamashdown/launchwatch/internal/alerts"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/scoring"
)

// BuildPayload renders an admitted candidate for the alert senders
func BuildPayload(c *queue.Candidate, d quota.Decision, environment string, now time.Time) *alerts.AlertPayload {
	components := make(map[string]float64, len(c.Score.Components))
	for cat, v := range c.Score.Components {
		components[string(cat)] = v
	}

	return &alerts.AlertPayload{
		AlertID:      uuid.NewString(),
		TokenID:      string(c.ID),
		Chain:        string(c.Metrics.Chain),
		Address:      c.Metrics.Address,
		AddressShort: alerts.ShortAddress(c.Metrics.Address),
		Name:         c.Metrics.Name,
		Symbol:       c.Metrics.Symbol,
		Score:        c.Score.Total,
		Components:   alerts.SortedComponents(components),
		Confidence:   c.Confidence.CombinedConfidence,
		Level:        string(c.Confidence.Level),
		Risk:         string(c.Confidence.Risk),
		Timeframe:    string(c.Confidence.Timeframe),
		WeakPoints:   categoryNames(c.Confidence.WeakPoints),
		StrongPoints: categoryNames(c.Confidence.StrongPoints),
		Tier:         string(c.Tier),
		Action:       string(c.Action),
		ActionText:   c.Action.Describe(),
		Threshold:    d.Threshold,
		LaunchTime:   c.Metrics.LaunchTime,
		Timestamp:    now,
		Environment:  environment,
	}
}

func categoryNames(cs []scoring.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
