package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liamashdown/launchwatch/internal/token"
)

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("dedup store closed")

	// ErrDayMismatch is returned when a record belongs to a day other than
	// the active one. Callers must Reset to the new day first.
	ErrDayMismatch = errors.New("record day does not match active day")
)

// Record is one alerted token. Chain and Hour allow the quota counters of
// the day to be rebuilt after a restart.
type Record struct {
	Day     string      `json:"day"`
	TokenID token.ID    `json:"token_id"`
	Chain   token.Chain `json:"chain"`
	Hour    int         `json:"hour"`
	Score   float64     `json:"score"`
	SentAt  time.Time   `json:"sent_at"`
}

// Store remembers which tokens were already alerted during the active day.
//
// A Record call that returned nil survives a crash. A crash between the
// transport accepting an alert and Record returning can lead to one
// duplicate alert for that token after restart.
type Store interface {
	// Load returns the active day and its records as persisted
	Load(ctx context.Context) (day string, records []Record, err error)
	// Seen reports whether id was recorded during the active day
	Seen(ctx context.Context, id token.ID) (bool, error)
	// Record durably stores rec. Recording the same token twice is a no-op.
	Record(ctx context.Context, rec Record) error
	// Reset makes day the active day and discards records of earlier days
	// beyond the retention window
	Reset(ctx context.Context, day string) error
	// Flush forces buffered state to durable storage
	Flush(ctx context.Context) error
	Close() error
}

// checkDay adopts rec's day when no day is active yet
func checkDay(active *string, rec Record) error {
	if rec.Day == "" {
		return fmt.Errorf("record for %s has no day", rec.TokenID)
	}
	if *active == "" {
		*active = rec.Day
		return nil
	}
	if *active != rec.Day {
		return fmt.Errorf("%w: active %s, record %s", ErrDayMismatch, *active, rec.Day)
	}
	return nil
}
