package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/token"
)

var base = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func cand(addr string, score float64, offset time.Duration) *Candidate {
	return &Candidate{
		ID:         token.NewID(token.ChainEthereum, addr),
		Score:      scoring.Result{Total: score},
		Tier:       TierFor(score, 75, 60),
		EnqueuedAt: base.Add(offset),
	}
}

func ids(cs []*Candidate) []token.ID {
	out := make([]token.ID, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		tier  Tier
	}{
		{100, TierHigh},
		{75, TierHigh},
		{74.99, TierMedium},
		{60, TierMedium},
		{59.99, TierLow},
		{0, TierLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, TierFor(tt.score, 75, 60), "score %v", tt.score)
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := NewPriority(0)

	q.Push(cand("a", 62, 0))
	q.Push(cand("b", 90, 2*time.Second))
	q.Push(cand("c", 70, time.Second))
	q.Push(cand("d", 90, time.Second))
	q.Push(cand("e", 40, 0))

	got := ids(q.Drain())
	assert.Equal(t, []token.ID{"ethereum:d", "ethereum:b", "ethereum:c", "ethereum:a", "ethereum:e"}, got)
}

func TestPriorityFIFOWithinEqualRank(t *testing.T) {
	q := NewPriority(0)
	for _, addr := range []string{"first", "second", "third"} {
		q.Push(cand(addr, 80, 0))
	}

	var got []token.ID
	for {
		c, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, c.ID)
	}
	assert.Equal(t, []token.ID{"ethereum:first", "ethereum:second", "ethereum:third"}, got)
}

func TestPriorityCapacityEvictsLowestRanked(t *testing.T) {
	q := NewPriority(2)

	assert.Nil(t, q.Push(cand("a", 80, 0)))
	assert.Nil(t, q.Push(cand("b", 65, 0)))

	evicted := q.Push(cand("c", 90, 0))
	require.NotNil(t, evicted)
	assert.Equal(t, token.ID("ethereum:b"), evicted.ID)

	evicted = q.Push(cand("d", 10, 0))
	require.NotNil(t, evicted)
	assert.Equal(t, token.ID("ethereum:d"), evicted.ID, "a new item ranked below everything is rejected")
	assert.Equal(t, 2, q.Len())
}

func TestPriorityReadySignal(t *testing.T) {
	q := NewPriority(0)

	select {
	case <-q.Ready():
		t.Fatal("ready signalled on empty queue")
	default:
	}

	q.Push(cand("a", 70, 0))
	q.Push(cand("b", 70, 0))

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not signalled after push")
	}

	_, ok := q.TryPop()
	require.True(t, ok)

	// one item remains, so the pop re-arms the signal
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not re-armed while items remain")
	}
}

func TestPriorityKeepsPersistedSequence(t *testing.T) {
	q := NewPriority(0)
	restored := cand("old", 70, 0)
	restored.Seq = 41
	q.Push(restored)

	fresh := cand("new", 70, 0)
	q.Push(fresh)
	assert.Equal(t, uint64(42), fresh.Seq)
}

func TestHolding(t *testing.T) {
	h := NewHolding(3)

	assert.Nil(t, h.Hold(cand("a", 70, 0), HoldQuota))
	assert.Nil(t, h.Hold(cand("b", 95, 0), HoldDelivery))
	assert.Nil(t, h.Hold(cand("c", 61, 0), HoldQuota))

	evicted := h.Hold(cand("d", 80, 0), HoldQuota)
	require.NotNil(t, evicted)
	assert.Equal(t, token.ID("ethereum:c"), evicted.ID)
	assert.Equal(t, 3, h.Len())

	quota := h.DrainWhere(func(c *Candidate) bool { return c.HeldFor == HoldQuota })
	assert.Equal(t, []token.ID{"ethereum:d", "ethereum:a"}, ids(quota))
	assert.Equal(t, 1, h.Len())

	rest := h.Drain()
	require.Len(t, rest, 1)
	assert.Equal(t, HoldDelivery, rest[0].HeldFor)
	assert.Equal(t, 0, h.Len())
}
