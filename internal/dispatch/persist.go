package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/storage"
)

const (
	queueMain    = "main"
	queueHolding = "holding"
)

// QueueStore keeps the main and holding queues across restarts
type QueueStore interface {
	Save(ctx context.Context, main, holding []*queue.Candidate) error
	Load(ctx context.Context) (main, holding []*queue.Candidate, err error)
}

type queueSnapshot struct {
	Main    []*queue.Candidate `json:"main"`
	Holding []*queue.Candidate `json:"holding"`
}

// FileQueueStore writes both queues to one JSON document
type FileQueueStore struct {
	path string
}

// NewFileQueueStore creates a file-backed queue store
func NewFileQueueStore(path string) *FileQueueStore {
	return &FileQueueStore{path: path}
}

// Save replaces the document atomically
func (f *FileQueueStore) Save(_ context.Context, main, holding []*queue.Candidate) error {
	data, err := json.Marshal(queueSnapshot{Main: main, Holding: holding})
	if err != nil {
		return fmt.Errorf("encode queues: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write queues: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace queues: %w", err)
	}
	return nil
}

// Load returns empty queues when the file does not exist
func (f *FileQueueStore) Load(_ context.Context) ([]*queue.Candidate, []*queue.Candidate, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read queues: %w", err)
	}

	var snap queueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode queues: %w", err)
	}
	return snap.Main, snap.Holding, nil
}

// HeldBackend is the part of storage.DB the SQL queue store needs
type HeldBackend interface {
	ReplaceHeldCandidates(ctx context.Context, items []storage.HeldCandidate) error
	LoadHeldCandidates(ctx context.Context) ([]storage.HeldCandidate, error)
}

// SQLQueueStore keeps the queues in the held_candidates table
type SQLQueueStore struct {
	db HeldBackend
}

// NewSQLQueueStore creates a database-backed queue store
func NewSQLQueueStore(db HeldBackend) *SQLQueueStore {
	return &SQLQueueStore{db: db}
}

// Save replaces every persisted row in one transaction
func (s *SQLQueueStore) Save(ctx context.Context, main, holding []*queue.Candidate) error {
	rows := make([]storage.HeldCandidate, 0, len(main)+len(holding))
	for _, set := range []struct {
		name  string
		items []*queue.Candidate
	}{{queueMain, main}, {queueHolding, holding}} {
		for _, c := range set.items {
			payload, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode candidate %s: %w", c.ID, err)
			}
			rows = append(rows, storage.HeldCandidate{
				Queue:     set.name,
				TokenID:   string(c.ID),
				Payload:   string(payload),
				CreatedTS: c.EnqueuedAt.Unix(),
			})
		}
	}
	return s.db.ReplaceHeldCandidates(ctx, rows)
}

// Load skips rows that no longer decode
func (s *SQLQueueStore) Load(ctx context.Context) ([]*queue.Candidate, []*queue.Candidate, error) {
	rows, err := s.db.LoadHeldCandidates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load held candidates: %w", err)
	}

	var main, holding []*queue.Candidate
	for _, row := range rows {
		var c queue.Candidate
		if err := json.Unmarshal([]byte(row.Payload), &c); err != nil {
			continue
		}
		if row.Queue == queueHolding {
			holding = append(holding, &c)
		} else {
			main = append(main, &c)
		}
	}
	return main, holding, nil
}
