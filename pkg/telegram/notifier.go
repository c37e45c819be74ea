package telegram

import (
	"context"

	"tradepulse/pkg/config"
	"tradepulse/pkg/exchange"

	"github.com/go-telegram/bot"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("telegram",
	fx.Provide(New),
)

// New returns the Telegram notifier, or a log-only notifier when no bot
// token is configured (local development, tests).
func New(cfg *config.Config) exchange.Notifier {
	if cfg.Telegram.BotToken == "" {
		zap.L().Warn("[Telegram] No bot token configured, notifications are log-only")
		return &logNotifier{}
	}

	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		zap.L().Error("[Telegram] Failed to create bot, notifications are log-only", zap.Error(err))
		return &logNotifier{}
	}

	return &Notifier{bot: b}
}

// Notifier sends owner-facing messages over Telegram. Owner IDs are chat IDs.
type Notifier struct {
	bot *bot.Bot
}

func (n *Notifier) Notify(ctx context.Context, ownerID int64, message string) {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: ownerID,
		Text:   message,
	})
	if err != nil {
		zap.L().Error("failed to deliver notification",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
	}
}

type logNotifier struct{}

func (n *logNotifier) Notify(ctx context.Context, ownerID int64, message string) {
	zap.L().Info("notification", zap.Int64("owner_id", ownerID), zap.String("message", message))
}
