// Package providers implements the channel senders the engine dispatches
// through. Each sender satisfies engine.SendFunc via its Send method.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"escalation-service/internal/logging"
	"escalation-service/internal/utils"
)

// TelegramSender delivers tier-0 notifications via the Telegram bot API.
type TelegramSender struct {
	token   string
	chatID  int64
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewTelegramSender creates a sender. perSecond throttles outgoing messages
// to stay under the bot API limits.
func NewTelegramSender(token string, chatID int64, perSecond int, logger *logging.Logger) (*TelegramSender, error) {
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("missing telegram chat id")
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond),
		logger:  logger,
	}, nil
}

// Send delivers one message, retrying transient failures.
func (t *TelegramSender) Send(ctx context.Context, message string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	return utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.token)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID: t.chatID,
			Text:   message,
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send telegram message to chat %d: %w", t.chatID, err)
		}
		return nil
	})
}
