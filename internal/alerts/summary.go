package alerts

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ChainCount is one chain's line in a daily summary
type ChainCount struct {
	Chain    string
	Sent     int
	Expected int
}

// DailySummary reports a finished day
type DailySummary struct {
	Day         string
	Target      int
	Sent        int
	Chains      []ChainCount
	CarriedOver int
	Environment string
}

// SummarySender is implemented by senders that can post a daily summary
type SummarySender interface {
	SendSummary(ctx context.Context, summary *DailySummary) error
}

// SendSummary logs the summary
func (s *LogSender) SendSummary(ctx context.Context, summary *DailySummary) error {
	fields := logrus.Fields{
		"day":          summary.Day,
		"target":       summary.Target,
		"sent":         summary.Sent,
		"carried_over": summary.CarriedOver,
	}
	for _, c := range summary.Chains {
		fields["sent_"+c.Chain] = c.Sent
	}
	s.log.WithFields(fields).Info("Daily summary")
	return nil
}

// SendSummary posts the summary to every chat
func (s *TelegramSender) SendSummary(ctx context.Context, summary *DailySummary) error {
	if len(s.chatIDs) == 0 {
		return fmt.Errorf("no telegram chats configured")
	}

	text := buildSummaryText(summary)
	for _, chatID := range s.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("send summary to chat %d: %w", chatID, err)
		}
	}
	return nil
}

// SendSummary forwards the summary to the senders that support it. It fails
// only when every one of them failed.
func (s *MultiSender) SendSummary(ctx context.Context, summary *DailySummary) error {
	var (
		errs     []error
		attempts int
	)
	for i, sender := range s.senders {
		ss, ok := sender.(SummarySender)
		if !ok {
			continue
		}
		attempts++
		if err := ss.SendSummary(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("sender %d (%s): %w", i, SenderName(sender), err))
		}
	}

	if len(errs) > 0 && len(errs) == attempts {
		return fmt.Errorf("multi-sender summary: %w", errors.Join(errs...))
	}
	return nil
}

func buildSummaryText(summary *DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Daily summary %s</b>", html.EscapeString(summary.Day))
	if summary.Environment != "" {
		fmt.Fprintf(&b, " (%s)", html.EscapeString(summary.Environment))
	}
	b.WriteString("\n\n")

	pct := 0.0
	if summary.Target > 0 {
		pct = float64(summary.Sent) / float64(summary.Target) * 100
	}
	fmt.Fprintf(&b, "Alerts sent: <b>%d</b>/%d (%.0f%%)\n", summary.Sent, summary.Target, pct)
	for _, c := range summary.Chains {
		fmt.Fprintf(&b, "• %s %d/%d\n", html.EscapeString(c.Chain), c.Sent, c.Expected)
	}
	if summary.CarriedOver > 0 {
		fmt.Fprintf(&b, "\nCarried into the new day: %d\n", summary.CarriedOver)
	}
	return b.String()
}
