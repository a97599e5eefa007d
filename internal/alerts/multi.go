package alerts

import (
	"context"
	"errors"
	"fmt"
)

// Named is implemented by senders that report a label for metrics
type Named interface {
	Name() string
}

// MultiSender sends alerts to multiple destinations
type MultiSender struct {
	senders []Sender
}

// NewMultiSender creates a new multi-sender
func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
	}
}

// Send sends the alert to all configured senders. It fails only when every
// destination failed.
func (s *MultiSender) Send(ctx context.Context, payload *AlertPayload) error {
	var errs []error
	for i, sender := range s.senders {
		if err := sender.Send(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("sender %d (%s): %w", i, SenderName(sender), err))
		}
	}

	if len(errs) > 0 && len(errs) == len(s.senders) {
		return fmt.Errorf("multi-sender: %w", errors.Join(errs...))
	}

	return nil
}

func (s *MultiSender) Name() string {
	return "multi"
}

// SenderName returns the sender's label, "unknown" when it has none
func SenderName(s Sender) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

func (s *LogSender) Name() string {
	return "log"
}
