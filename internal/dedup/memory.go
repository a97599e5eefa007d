package dedup

import (
	"context"
	"sync"

	"github.com/liamashdown/launchwatch/internal/token"
)

// Memory is a non-durable store for development and tests. It keeps at
// most capacity tokens; the oldest entry is forgotten first.
type Memory struct {
	mu       sync.Mutex
	day      string
	index    map[token.ID]Record
	ring     []token.ID
	next     int
	capacity int
	closed   bool
}

// NewMemory creates a memory store (capacity <= 0 means 10000)
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Memory{
		index:    make(map[token.ID]Record, capacity),
		ring:     make([]token.ID, 0, capacity),
		capacity: capacity,
	}
}

func (m *Memory) Load(ctx context.Context) (string, []Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", nil, ErrClosed
	}

	out := make([]Record, 0, len(m.index))
	for i := range m.ring {
		id := m.ring[(m.next+i)%len(m.ring)]
		if rec, ok := m.index[id]; ok {
			out = append(out, rec)
		}
	}
	return m.day, out, nil
}

func (m *Memory) Seen(ctx context.Context, id token.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.index[id]
	return ok, nil
}

func (m *Memory) Record(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := checkDay(&m.day, rec); err != nil {
		return err
	}
	if _, ok := m.index[rec.TokenID]; ok {
		return nil
	}

	if len(m.ring) < m.capacity {
		m.ring = append(m.ring, rec.TokenID)
	} else {
		delete(m.index, m.ring[m.next])
		m.ring[m.next] = rec.TokenID
		m.next = (m.next + 1) % m.capacity
	}
	m.index[rec.TokenID] = rec
	return nil
}

func (m *Memory) Reset(ctx context.Context, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.day = day
	m.index = make(map[token.ID]Record, m.capacity)
	m.ring = m.ring[:0]
	m.next = 0
	return nil
}

func (m *Memory) Flush(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
