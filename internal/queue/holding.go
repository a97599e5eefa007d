package queue

import (
	"sort"
	"sync"
)

// Holding parks candidates that could not be sent yet. It is bounded:
// when full, the lowest-ranked candidate is evicted.
type Holding struct {
	mu       sync.Mutex
	items    []*Candidate
	capacity int
}

// NewHolding creates a holding queue (capacity 0 = unbounded)
func NewHolding(capacity int) *Holding {
	return &Holding{capacity: capacity}
}

// Hold parks c with a reason and returns the candidate evicted to make
// room, if any
func (h *Holding) Hold(c *Candidate, reason HoldReason) (evicted *Candidate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.HeldFor = reason
	h.items = append(h.items, c)
	if h.capacity > 0 && len(h.items) > h.capacity {
		idx := 0
		for i := 1; i < len(h.items); i++ {
			if h.items[idx].Before(h.items[i]) {
				idx = i
			}
		}
		evicted = h.items[idx]
		h.items = append(h.items[:idx], h.items[idx+1:]...)
	}
	return evicted
}

// Len returns the number of held candidates
func (h *Holding) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Drain removes and returns every held candidate in dispatch order
func (h *Holding) Drain() []*Candidate {
	return h.DrainWhere(func(*Candidate) bool { return true })
}

// DrainWhere removes and returns the held candidates for which match is true
func (h *Holding) DrainWhere(match func(*Candidate) bool) []*Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Candidate
	rest := h.items[:0]
	for _, c := range h.items {
		if match(c) {
			out = append(out, c)
		} else {
			rest = append(rest, c)
		}
	}
	for i := len(rest); i < len(h.items); i++ {
		h.items[i] = nil
	}
	h.items = rest

	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Snapshot returns a copy of the held candidates without removing them
func (h *Holding) Snapshot() []*Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Candidate(nil), h.items...)
}
