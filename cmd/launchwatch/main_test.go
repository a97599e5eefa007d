package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/liamashdown/launchwatch/internal/alerts"
	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePlan(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePlan(&buf, quota.DefaultConfig()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 26)
	assert.True(t, strings.HasPrefix(lines[0], "HOUR"))
	assert.Contains(t, lines[0], "solana")
	assert.True(t, strings.HasPrefix(lines[25], "TOTAL"))
	assert.Contains(t, lines[25], "500")
}

func TestCreateAlertSender(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"log only", config.Config{AlertMode: "log"}, "log"},
		{"single discord", config.Config{AlertMode: "discord", DiscordWebhookURLs: []string{"https://d/1"}}, "discord"},
		{"fan out", config.Config{AlertMode: "log,discord", DiscordWebhookURLs: []string{"https://d/1", "https://d/2"}}, "multi"},
		{"missing discord urls", config.Config{AlertMode: "discord"}, "log"},
		{"smtp", config.Config{AlertMode: "smtp", SMTPHost: "mail", SMTPTo: []string{"a@b"}}, "smtp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createAlertSender(&tt.cfg, log)
			assert.Equal(t, tt.want, alerts.SenderName(s))
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, newLogger("debug").Level)
	assert.Equal(t, logrus.InfoLevel, newLogger("chatty").Level)
}
