package dispatch

import (
	"github.com/liamashdown/launchwatch/internal/quota"
)

// Status extends the quota counters with queue and delivery state
type Status struct {
	quota.Status
	QueueDepth   int    `json:"queue_depth"`
	HoldingDepth int    `json:"holding_depth"`
	Breaker      string `json:"delivery_breaker"`
	Ready        bool   `json:"ready"`
}

// Status is safe to call from any goroutine
func (s *Service) Status() Status {
	return Status{
		Status:       s.sched.Snapshot(s.now()),
		QueueDepth:   s.queue.Len(),
		HoldingDepth: s.holding.Len(),
		Breaker:      s.breaker.State().String(),
		Ready:        s.Ready(),
	}
}
