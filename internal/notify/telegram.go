package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"leihlokal/internal/config"
	"leihlokal/internal/domain"
	"leihlokal/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends operator alerts to a fixed set of chats.
type TelegramNotifier struct {
	bot     Sender
	chatIDs []int64
	logger  *zerolog.Logger
}

var _ domain.Notifier = (*TelegramNotifier)(nil)

// NewTelegram connects to the Bot API. It returns nil without error when no token is configured.
func NewTelegram(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = cfg.Debug
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.ChatIDs)).Msg("Telegram notifier ready")
	return NewTelegramNotifier(bot, cfg.ChatIDs, logger), nil
}

func NewTelegramNotifier(bot Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

// Notify sends text to every chat. Failed chats do not stop the others.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, "⚠️ "+html.EscapeString(text))
		msg.ParseMode = models.ParseModeHTML
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send telegram alert")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
