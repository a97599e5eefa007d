package queue

import (
	"container/heap"
	"sync"
)

type candidateHeap []*Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(*Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// worst returns the index of the lowest-ranked item
func (h candidateHeap) worst() int {
	idx := 0
	for i := 1; i < len(h); i++ {
		if h[idx].Before(h[i]) {
			idx = i
		}
	}
	return idx
}

// Priority is a bounded, concurrency-safe priority queue. Push never
// blocks; Ready signals consumers that an item may be available.
type Priority struct {
	mu       sync.Mutex
	items    candidateHeap
	capacity int
	seq      uint64
	ready    chan struct{}
}

// NewPriority creates a queue holding at most capacity items (0 = unbounded)
func NewPriority(capacity int) *Priority {
	return &Priority{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push adds c, assigning an arrival sequence if it has none. When the queue
// is full the lowest-ranked item (possibly c itself) is evicted and returned.
func (q *Priority) Push(c *Candidate) (evicted *Candidate) {
	q.mu.Lock()
	if c.Seq == 0 {
		q.seq++
		c.Seq = q.seq
	} else if c.Seq > q.seq {
		q.seq = c.Seq
	}

	heap.Push(&q.items, c)
	if q.capacity > 0 && len(q.items) > q.capacity {
		evicted = heap.Remove(&q.items, q.items.worst()).(*Candidate)
	}
	q.mu.Unlock()

	q.signal()
	return evicted
}

// TryPop removes the highest-priority item, if any
func (q *Priority) TryPop() (*Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	c := heap.Pop(&q.items).(*Candidate)
	if len(q.items) > 0 {
		q.signal()
	}
	return c, true
}

// Ready is signalled after every push
func (q *Priority) Ready() <-chan struct{} {
	return q.ready
}

func (q *Priority) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Len returns the number of queued items
func (q *Priority) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every item in dispatch order
func (q *Priority) Drain() []*Candidate {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Candidate, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(*Candidate))
	}
	return out
}
