package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -----------------------------------------------------------------------------

type fakeUpdates struct {
	ch      chan tgbotapi.Update
	stopped chan struct{}
	once    sync.Once
}

func newFakeUpdates() *fakeUpdates {
	return &fakeUpdates{ch: make(chan tgbotapi.Update, 16), stopped: make(chan struct{})}
}

func (f *fakeUpdates) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.ch }

func (f *fakeUpdates) StopReceivingUpdates() { f.once.Do(func() { close(f.stopped) }) }

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message:  &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text},
	}
}

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, userID int64, text string) string {
	switch text {
	case "panic":
		panic("boom")
	case "blank":
		return "  "
	}
	return "echo:" + text
}

type inbox struct {
	mu   sync.Mutex
	sent []string
}

func (i *inbox) Deliver(_ context.Context, userID int64, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sent = append(i.sent, text)
	return nil
}

func (i *inbox) all() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.sent...)
}

// -----------------------------------------------------------------------------

func TestBotAnswersTextUpdates(t *testing.T) {
	updates := newFakeUpdates()
	box := &inbox{}
	cfg := &models.MConfig{Telegram: models.MTelegramConfig{MaxConcurrent: 2}}
	bot := NewBot(cfg, updates, echoDispatcher{}, box, logger.NewNop("telegram"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	updates.ch <- textUpdate(1, 10, "/start")
	updates.ch <- tgbotapi.Update{UpdateID: 2}
	updates.ch <- textUpdate(3, 10, "panic")
	updates.ch <- textUpdate(4, 10, "blank")

	require.Eventually(t, func() bool { return len(box.all()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		"echo:/start",
		"❌ 오류가 발생했습니다.\n잠시 후 다시 시도해주세요.",
		emptyReplyText,
	}, box.all())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	<-updates.stopped
}

func TestBotStopsWhenChannelCloses(t *testing.T) {
	updates := newFakeUpdates()
	bot := NewBot(&models.MConfig{}, updates, echoDispatcher{}, &inbox{}, logger.NewNop("telegram"))

	close(updates.ch)
	assert.Error(t, bot.Run(context.Background()))
}

// -----------------------------------------------------------------------------

type recordingDispatcher struct {
	release chan struct{}

	mu    sync.Mutex
	order []string
}

func (r *recordingDispatcher) Dispatch(_ context.Context, userID int64, text string) string {
	if userID == 42 && text == "1" {
		<-r.release
	}
	r.mu.Lock()
	r.order = append(r.order, text)
	r.mu.Unlock()
	return "ok"
}

func (r *recordingDispatcher) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func TestBotKeepsOrderWithinChat(t *testing.T) {
	updates := newFakeUpdates()
	box := &inbox{}
	dispatcher := &recordingDispatcher{release: make(chan struct{})}
	cfg := &models.MConfig{Telegram: models.MTelegramConfig{MaxConcurrent: 4}}
	bot := NewBot(cfg, updates, dispatcher, box, logger.NewNop("telegram"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	updates.ch <- textUpdate(1, 42, "1")
	updates.ch <- textUpdate(2, 42, "2")
	updates.ch <- textUpdate(3, 43, "other")

	// Another chat is not held up by the slow one
	require.Eventually(t, func() bool { return len(dispatcher.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"other"}, dispatcher.seen())

	close(dispatcher.release)
	require.Eventually(t, func() bool { return len(box.all()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"other", "1", "2"}, dispatcher.seen())

	cancel()
	require.NoError(t, <-done)
}
