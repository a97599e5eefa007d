package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() *AlertPayload {
	return &AlertPayload{
		AlertID:      "7b1c3c1e-2f7e-4a43-9d41-0d4c1f0b8a11",
		TokenID:      "ethereum:0xabcdef0123456789abcdef0123456789abcdef01",
		Chain:        "ethereum",
		Address:      "0xabcdef0123456789abcdef0123456789abcdef01",
		AddressShort: ShortAddress("0xabcdef0123456789abcdef0123456789abcdef01"),
		Name:         "Pepe <Two>",
		Symbol:       "PEPE2",
		Score:        81.25,
		Components: SortedComponents(map[string]float64{
			"liquidity": 90,
			"security":  70,
			"social":    30,
		}),
		Confidence:   0.79,
		Level:        "HIGH",
		Risk:         "LOW",
		Timeframe:    "4-8h",
		WeakPoints:   []string{"social"},
		StrongPoints: []string{"liquidity", "security"},
		Tier:         "HIGH",
		Action:       "STRONG_BUY",
		ActionText:   "Strong fundamentals with low risk",
		Threshold:    60,
		Timestamp:    time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		Environment:  "test",
	}
}

type fakeSender struct {
	name  string
	err   error
	calls int
}

func (f *fakeSender) Send(ctx context.Context, payload *AlertPayload) error {
	f.calls++
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestShortAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xabcdef0123456789", "0xabcd…6789"},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortAddress(tt.in); got != tt.want {
			t.Errorf("ShortAddress(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestSortedComponents(t *testing.T) {
	got := SortedComponents(map[string]float64{"b": 50, "a": 50, "c": 90})
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, "a", got[1].Name)
	assert.Equal(t, "b", got[2].Name)
}

func TestLogSender(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	assert.NoError(t, NewLogSender(log).Send(context.Background(), testPayload()))
}

func TestMultiSender(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failure still delivers", func(t *testing.T) {
		ok := &fakeSender{name: "log"}
		bad := &fakeSender{name: "discord", err: errors.New("boom")}
		assert.NoError(t, NewMultiSender(bad, ok).Send(ctx, testPayload()))
		assert.Equal(t, 1, ok.calls)
		assert.Equal(t, 1, bad.calls)
	})

	t.Run("all failing returns error", func(t *testing.T) {
		bad1 := &fakeSender{name: "discord", err: errors.New("boom")}
		bad2 := &fakeSender{name: "smtp", err: errors.New("refused")}
		err := NewMultiSender(bad1, bad2).Send(ctx, testPayload())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "discord")
		assert.Contains(t, err.Error(), "refused")
	})
}

func TestDiscordSender(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), testPayload()))

	embeds := body["embeds"].([]interface{})
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]interface{})
	assert.Contains(t, embed["title"], "High-potential")
	assert.Contains(t, embed["description"], "PEPE2")
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTelegramSender(t *testing.T) {
	bot := &fakeBot{}
	s := NewTelegramSenderWithBot(bot, []int64{100, 200})

	require.NoError(t, s.Send(context.Background(), testPayload()))
	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(100), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	assert.Contains(t, bot.sent[0].Text, "Pepe &lt;Two&gt;")
	assert.NotContains(t, bot.sent[0].Text, "<Two>")
}

func TestTelegramSenderErrors(t *testing.T) {
	err := NewTelegramSenderWithBot(&fakeBot{}, nil).Send(context.Background(), testPayload())
	assert.Error(t, err)

	err = NewTelegramSenderWithBot(&fakeBot{err: errors.New("forbidden")}, []int64{1}).
		Send(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestEmailBody(t *testing.T) {
	body := buildEmailBody(testPayload())
	assert.True(t, strings.HasPrefix(body, "LAUNCHWATCH ALERT - HIGH"))
	assert.Contains(t, body, "liquidity:")
	assert.Contains(t, body, "Weak points:    social")
}

func TestSMTPSenderWithoutRecipients(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "a@example.com", nil)
	assert.Error(t, s.Send(context.Background(), testPayload()))
}
