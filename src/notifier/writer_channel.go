package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterChannel prints deliveries, used by the console mode
type WriterChannel struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterChannel(w io.Writer) *WriterChannel {
	return &WriterChannel{w: w}
}

func (c *WriterChannel) Name() string {
	return "console"
}

func (c *WriterChannel) Deliver(_ context.Context, userID int64, text string) error {
	if text == "" {
		text = EmptyText
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "\n[push → %d]\n%s\n", userID, text)
	return err
}
