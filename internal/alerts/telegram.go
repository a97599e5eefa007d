package alerts

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot is the subset of tgbotapi.BotAPI used for delivery
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts alerts to one or more Telegram chats
type TelegramSender struct {
	bot     TelegramBot
	chatIDs []int64
}

// NewTelegramSender authorizes the bot token and creates a sender
func NewTelegramSender(botToken string, chatIDs []int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramSenderWithBot(bot, chatIDs), nil
}

// NewTelegramSenderWithBot creates a sender around an existing bot client
func NewTelegramSenderWithBot(bot TelegramBot, chatIDs []int64) *TelegramSender {
	return &TelegramSender{bot: bot, chatIDs: chatIDs}
}

func (s *TelegramSender) Name() string {
	return "telegram"
}

// Send delivers the alert to every chat
func (s *TelegramSender) Send(ctx context.Context, payload *AlertPayload) error {
	if len(s.chatIDs) == 0 {
		return fmt.Errorf("no telegram chats configured")
	}

	text := buildTelegramText(payload)
	for _, chatID := range s.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := s.bot.Send(msg); err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
	}
	return nil
}

func buildTelegramText(payload *AlertPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> on <b>%s</b>\n",
		html.EscapeString(displayName(payload)), html.EscapeString(payload.Chain))
	fmt.Fprintf(&b, "<code>%s</code>\n\n", html.EscapeString(payload.Address))
	fmt.Fprintf(&b, "Score: <b>%.1f</b>/100 (%s tier)\n", payload.Score, payload.Tier)
	fmt.Fprintf(&b, "Action: <b>%s</b> - %s\n", payload.Action, html.EscapeString(payload.ActionText))
	fmt.Fprintf(&b, "Confidence: %s (%.0f%%), risk %s, %s\n",
		payload.Level, payload.Confidence*100, payload.Risk, payload.Timeframe)

	if len(payload.Components) > 0 {
		b.WriteString("\n")
		for _, c := range payload.Components {
			fmt.Fprintf(&b, "• %s %.0f\n", html.EscapeString(c.Name), c.Score)
		}
	}
	if len(payload.WeakPoints) > 0 {
		fmt.Fprintf(&b, "\n⚠️ Weak: %s\n", html.EscapeString(strings.Join(payload.WeakPoints, ", ")))
	}
	return truncate(b.String(), 4000)
}
