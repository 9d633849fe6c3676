package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"
)

const (
	emptyReplyText  = "⚠️ 응답을 생성하지 못했습니다. 다시 시도해주세요."
	deliveryTimeout = 30 * time.Second
)

// Dispatcher answers one inbound text
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, text string) string
}

// UpdateSource is the long-poll side of the Telegram client
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// -----------------------------------------------------------------------------

// Bot reads updates and answers each text message through the notifier.
// Chats are served concurrently, at most max_concurrent at a time. Messages
// of one chat are dispatched in arrival order.
type Bot struct {
	Config     *models.MConfig
	Updates    UpdateSource
	Dispatcher Dispatcher
	Notifier   interfaces.INotifier
	Logger     *logger.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	// chats with a running worker, and the texts queued behind it
	mu      sync.Mutex
	pending map[int64][]string
}

// -----------------------------------------------------------------------------

// Connect authenticates the bot token against the Telegram API
func Connect(cfg *models.MConfig) (*tgbotapi.BotAPI, error) {
	if cfg.Telegram.Token == "" {
		return nil, &helpers.ConfigurationError{BotError: helpers.BotError{Message: "telegram token is empty"}}
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, helpers.NewNetworkError("telegram login", err)
	}
	return api, nil
}

// -----------------------------------------------------------------------------

func NewBot(cfg *models.MConfig, updates UpdateSource, dispatcher Dispatcher, notifier interfaces.INotifier, log *logger.Logger) *Bot {
	limit := cfg.Telegram.MaxConcurrent
	if limit <= 0 {
		limit = 8
	}
	return &Bot{
		Config:     cfg,
		Updates:    updates,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Logger:     log,
		sem:        semaphore.NewWeighted(int64(limit)),
		pending:    make(map[int64][]string),
	}
}

// -----------------------------------------------------------------------------

// Run polls until ctx is done, then waits for in-flight handlers
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.Config.Telegram.PollTimeoutSeconds
	updates := b.Updates.GetUpdatesChan(u)

	b.Logger.Info("Telegram polling started (timeout %ds)", u.Timeout)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.Updates.StopReceivingUpdates()
			b.Logger.Info("Telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			b.handle(ctx, update)
		}
	}
}

// -----------------------------------------------------------------------------

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		b.Logger.Debug("Skipping update %d without text", update.UpdateID)
		return
	}

	chatID, text := msg.Chat.ID, msg.Text

	b.mu.Lock()
	if queue, busy := b.pending[chatID]; busy {
		b.pending[chatID] = append(queue, text)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// Only Run calls handle, so no other worker for chatID can appear here
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return
	}

	b.mu.Lock()
	b.pending[chatID] = nil
	b.mu.Unlock()

	b.wg.Add(1)
	go b.drain(ctx, chatID, text)
}

// drain answers text and then everything queued for chatID behind it
func (b *Bot) drain(ctx context.Context, chatID int64, text string) {
	defer b.wg.Done()
	defer b.sem.Release(1)

	for {
		b.respond(ctx, chatID, text)

		b.mu.Lock()
		queue := b.pending[chatID]
		if len(queue) == 0 {
			delete(b.pending, chatID)
			b.mu.Unlock()
			return
		}
		text, b.pending[chatID] = queue[0], queue[1:]
		b.mu.Unlock()
	}
}

func (b *Bot) respond(ctx context.Context, chatID int64, text string) {
	// Replies still go out while the poller shuts down
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			b.Logger.Error("Dispatch panic for %d: %v", chatID, rec)
			reply := "❌ 오류가 발생했습니다.\n잠시 후 다시 시도해주세요."
			if err := b.Notifier.Deliver(dctx, chatID, reply); err != nil {
				b.Logger.Warning("Error reply to %d failed: %v", chatID, err)
			}
		}
	}()

	b.Logger.Debug("Message from %d: %q", chatID, text)
	reply := b.Dispatcher.Dispatch(ctx, chatID, text)
	if strings.TrimSpace(reply) == "" {
		reply = emptyReplyText
	}

	if err := b.Notifier.Deliver(dctx, chatID, reply); err != nil {
		b.Logger.Warning("Reply to %d failed: %v", chatID, err)
	}
}
