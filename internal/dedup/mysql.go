package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/liamashdown/launchwatch/internal/storage"
	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/sirupsen/logrus"
)

// SQLBackend is the subset of storage.DB the MySQL store relies on
type SQLBackend interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	InsertAlertedToken(ctx context.Context, rec *storage.AlertedToken) error
	ListAlertedTokens(ctx context.Context, day string) ([]storage.AlertedToken, error)
	PruneAlertedTokens(ctx context.Context, beforeDay string) (int64, error)
}

// MySQL keeps dedup records in the alerted_tokens table. Today's IDs are
// cached in memory; the table is the source of truth on Load.
type MySQL struct {
	db            SQLBackend
	log           *logrus.Logger
	retentionDays int

	mu     sync.Mutex
	day    string
	seen   map[token.ID]struct{}
	closed bool
}

// NewMySQL creates a store on top of db. Records older than retentionDays
// are pruned at every reset.
func NewMySQL(db SQLBackend, retentionDays int, log *logrus.Logger) *MySQL {
	if retentionDays < 1 {
		retentionDays = 1
	}
	return &MySQL{
		db:            db,
		log:           log,
		retentionDays: retentionDays,
		seen:          make(map[token.ID]struct{}),
	}
}

func (s *MySQL) Load(ctx context.Context) (string, []Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", nil, ErrClosed
	}

	day, err := s.db.GetState(ctx, storage.StateLastProcessedDay)
	if err != nil {
		return "", nil, fmt.Errorf("get last processed day: %w", err)
	}
	s.day = day
	s.seen = make(map[token.ID]struct{})
	if day == "" {
		return "", nil, nil
	}

	rows, err := s.db.ListAlertedTokens(ctx, day)
	if err != nil {
		return "", nil, fmt.Errorf("list alerted tokens: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{
			Day:     row.Day,
			TokenID: token.ID(row.TokenID),
			Chain:   token.Chain(row.Chain),
			Hour:    row.Hour,
			Score:   row.Score,
			SentAt:  time.Unix(row.SentTS, 0).UTC(),
		}
		s.seen[rec.TokenID] = struct{}{}
		out = append(out, rec)
	}
	return day, out, nil
}

func (s *MySQL) Seen(ctx context.Context, id token.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.seen[id]
	return ok, nil
}

func (s *MySQL) Record(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	adopting := s.day == ""
	if err := checkDay(&s.day, rec); err != nil {
		return err
	}
	if adopting {
		if err := s.db.SetState(ctx, storage.StateLastProcessedDay, rec.Day); err != nil {
			s.day = ""
			return fmt.Errorf("set last processed day: %w", err)
		}
	}
	if _, ok := s.seen[rec.TokenID]; ok {
		return nil
	}

	row := &storage.AlertedToken{
		Day:     rec.Day,
		TokenID: string(rec.TokenID),
		Chain:   string(rec.Chain),
		Hour:    rec.Hour,
		Score:   rec.Score,
		SentTS:  rec.SentAt.Unix(),
	}
	if err := s.db.InsertAlertedToken(ctx, row); err != nil {
		return fmt.Errorf("insert alerted token: %w", err)
	}
	s.seen[rec.TokenID] = struct{}{}
	return nil
}

func (s *MySQL) Reset(ctx context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.db.SetState(ctx, storage.StateLastProcessedDay, day); err != nil {
		return fmt.Errorf("set last processed day: %w", err)
	}
	s.day = day
	s.seen = make(map[token.ID]struct{})

	cutoff, err := retentionCutoff(day, s.retentionDays)
	if err != nil {
		return err
	}
	pruned, err := s.db.PruneAlertedTokens(ctx, cutoff)
	if err != nil {
		// old rows are never read by Seen
		s.log.WithError(err).Warn("Failed to prune alerted tokens")
		return nil
	}
	if pruned > 0 {
		s.log.WithFields(logrus.Fields{
			"cutoff": cutoff,
			"pruned": pruned,
		}).Info("Pruned old dedup records")
	}
	return nil
}

func (s *MySQL) Flush(ctx context.Context) error {
	return nil
}

// Close marks the store closed. The underlying connection belongs to the
// caller.
func (s *MySQL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// retentionCutoff returns the oldest day still kept when day is active
func retentionCutoff(day string, retentionDays int) (string, error) {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t.AddDate(0, 0, -(retentionDays - 1)).Format("2006-01-02"), nil
}
