package notifier

import (
	"context"
	"fmt"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the Telegram client used for delivery
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel delivers text to a Telegram chat, one part at a time
type TelegramChannel struct {
	bot        Sender
	maxPayload int
	partDelay  time.Duration
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewTelegramChannel(bot Sender, cfg models.MDeliveryConfig, log *logger.Logger) *TelegramChannel {
	maxPayload := cfg.MaxPayload
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &TelegramChannel{
		bot:        bot,
		maxPayload: maxPayload,
		partDelay:  time.Duration(cfg.PartDelayMS) * time.Millisecond,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (c *TelegramChannel) Name() string {
	return "telegram"
}

// -----------------------------------------------------------------------------

// Deliver sends text to the chat with id userID. Parts after a failed part
// are still attempted.
func (c *TelegramChannel) Deliver(ctx context.Context, userID int64, text string) error {
	if userID == 0 {
		return helpers.NewDeliveryError("telegram: no chat id", nil)
	}

	parts := SplitMessage(text, c.maxPayload)
	if len(parts) > 1 {
		c.Logger.Info("Splitting message for %d into %d parts", userID, len(parts))
	}

	var failed int
	var lastErr error
	for i, part := range parts {
		if i > 0 && c.partDelay > 0 {
			select {
			case <-time.After(c.partDelay):
			case <-ctx.Done():
				return helpers.NewDeliveryError(fmt.Sprintf("telegram: cancelled after %d/%d parts", i, len(parts)), ctx.Err())
			}
		}

		if _, err := c.bot.Send(tgbotapi.NewMessage(userID, part)); err != nil {
			c.Logger.Error("Send to %d failed (part %d/%d): %v", userID, i+1, len(parts), err)
			failed++
			lastErr = err
		}
	}

	if failed > 0 {
		return helpers.NewDeliveryError(fmt.Sprintf("telegram: %d/%d parts failed", failed, len(parts)), lastErr)
	}
	return nil
}
