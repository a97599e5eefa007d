package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "launchwatch:"

// Redis keeps one hash per day (launchwatch:sent:<day>, token -> record)
// that expires after the retention window, plus the active day under
// launchwatch:last_day.
type Redis struct {
	client *redis.Client
	log    *logrus.Logger
	ttl    time.Duration

	mu     sync.Mutex
	day    string
	closed bool
}

// NewRedis creates a store on client. Day hashes live for retentionDays.
func NewRedis(client *redis.Client, retentionDays int, log *logrus.Logger) *Redis {
	if retentionDays < 1 {
		retentionDays = 1
	}
	return &Redis{
		client: client,
		log:    log,
		ttl:    time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func sentKey(day string) string {
	return redisKeyPrefix + "sent:" + day
}

func lastDayKey() string {
	return redisKeyPrefix + "last_day"
}

func (s *Redis) Load(ctx context.Context) (string, []Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", nil, ErrClosed
	}

	day, err := s.client.Get(ctx, lastDayKey()).Result()
	if errors.Is(err, redis.Nil) {
		s.day = ""
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("get last day: %w", err)
	}
	s.day = day

	raw, err := s.client.HGetAll(ctx, sentKey(day)).Result()
	if err != nil {
		return "", nil, fmt.Errorf("load sent set: %w", err)
	}

	out := make([]Record, 0, len(raw))
	for field, value := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			s.log.WithError(err).WithField("token_id", field).Warn("Skipping unreadable dedup record")
			continue
		}
		out = append(out, rec)
	}
	return day, out, nil
}

func (s *Redis) Seen(ctx context.Context, id token.ID) (bool, error) {
	s.mu.Lock()
	day, closed := s.day, s.closed
	s.mu.Unlock()
	if closed {
		return false, ErrClosed
	}
	if day == "" {
		return false, nil
	}

	ok, err := s.client.HExists(ctx, sentKey(day), string(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check sent set: %w", err)
	}
	return ok, nil
}

func (s *Redis) Record(ctx context.Context, rec Record) error {
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
		if err := s.client.Set(ctx, lastDayKey(), rec.Day, 0).Err(); err != nil {
			s.day = ""
			return fmt.Errorf("set last day: %w", err)
		}
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dedup record: %w", err)
	}

	key := sentKey(rec.Day)
	if err := s.client.HSetNX(ctx, key, string(rec.TokenID), string(value)).Err(); err != nil {
		return fmt.Errorf("add to sent set: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("expire sent set: %w", err)
	}
	return nil
}

func (s *Redis) Reset(ctx context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	// earlier days expire on their own TTL
	if err := s.client.Set(ctx, lastDayKey(), day, 0).Err(); err != nil {
		return fmt.Errorf("set last day: %w", err)
	}
	s.day = day
	return nil
}

func (s *Redis) Flush(ctx context.Context) error {
	return nil
}

func (s *Redis) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
