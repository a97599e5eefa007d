package main

import (
	"github.com/liamashdown/launchwatch/internal/alerts"
	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/sirupsen/logrus"
)

// createAlertSender builds one sender per configured mode and fans out
// when more than one is active
func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	senders := []alerts.Sender{}

	for _, mode := range cfg.AlertModes() {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if len(cfg.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url))
			}
		case "telegram":
			tg, err := alerts.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatIDs)
			if err != nil {
				log.WithError(err).Warn("Telegram bot unavailable, skipping")
				continue
			}
			senders = append(senders, tg)
		case "smtp":
			if cfg.SMTPHost == "" {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
				continue
			}
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	switch len(senders) {
	case 0:
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	case 1:
		return senders[0]
	}
	return alerts.NewMultiSender(senders...)
}
