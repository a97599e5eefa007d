package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	s.log.WithFields(logrus.Fields{
		"alert_id":   payload.AlertID,
		"token_id":   payload.TokenID,
		"chain":      payload.Chain,
		"symbol":     payload.Symbol,
		"score":      payload.Score,
		"tier":       payload.Tier,
		"action":     payload.Action,
		"confidence": payload.Confidence,
		"risk":       payload.Risk,
		"threshold":  payload.Threshold,
	}).Info("Alert generated")
	return nil
}
