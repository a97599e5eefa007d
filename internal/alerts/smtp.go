package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

func (s *SMTPSender) Name() string {
	return "smtp"
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	if len(s.to) == 0 {
		return fmt.Errorf("no SMTP recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := s.buildMessage(payload)

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func (s *SMTPSender) buildMessage(payload *AlertPayload) string {
	subject := fmt.Sprintf("[%s] %s on %s scored %.1f", payload.Tier, displayName(payload), payload.Chain, payload.Score)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(buildEmailBody(payload))
	return b.String()
}

func buildEmailBody(payload *AlertPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LAUNCHWATCH ALERT - %s\n", payload.Tier)
	b.WriteString("═══════════════════════════════════════\n\n")
	b.WriteString("TOKEN\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Name:           %s\n", displayName(payload))
	fmt.Fprintf(&b, "Chain:          %s\n", payload.Chain)
	fmt.Fprintf(&b, "Address:        %s\n", payload.Address)
	if !payload.LaunchTime.IsZero() {
		fmt.Fprintf(&b, "Launched:       %s\n", payload.LaunchTime.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")

	b.WriteString("ASSESSMENT\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Score:          %.1f / 100 (threshold %.0f)\n", payload.Score, payload.Threshold)
	fmt.Fprintf(&b, "Action:         %s - %s\n", payload.Action, payload.ActionText)
	fmt.Fprintf(&b, "Confidence:     %s (%.0f%%)\n", payload.Level, payload.Confidence*100)
	fmt.Fprintf(&b, "Risk:           %s\n", payload.Risk)
	fmt.Fprintf(&b, "Timeframe:      %s\n\n", payload.Timeframe)

	if len(payload.Components) > 0 {
		b.WriteString("SCORE BREAKDOWN\n")
		b.WriteString("─────────────────────────────────────\n")
		for _, c := range payload.Components {
			fmt.Fprintf(&b, "%-15s %.0f\n", c.Name+":", c.Score)
		}
		b.WriteString("\n")
	}
	if len(payload.StrongPoints) > 0 {
		fmt.Fprintf(&b, "Strong points:  %s\n", strings.Join(payload.StrongPoints, ", "))
	}
	if len(payload.WeakPoints) > 0 {
		fmt.Fprintf(&b, "Weak points:    %s\n", strings.Join(payload.WeakPoints, ", "))
	}

	b.WriteString("═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Alert ID: %s\n", payload.AlertID)
	fmt.Fprintf(&b, "Environment: %s\n", payload.Environment)
	fmt.Fprintf(&b, "Generated: %s\n", payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("\nNote: scores are heuristics, not investment advice.\n")
	return b.String()
}
