package notifier

import (
	"context"
	"errors"

	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
)

// Channel is a named INotifier
type Channel interface {
	interfaces.INotifier
	Name() string
}

// Composite delivers to every channel. One channel failing does not stop the
// others; the failures are logged and joined.
type Composite struct {
	channels []Channel
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewComposite(log *logger.Logger, channels ...Channel) *Composite {
	return &Composite{channels: channels, Logger: log}
}

// -----------------------------------------------------------------------------

// Add appends a channel. Not safe to call concurrently with Deliver.
func (c *Composite) Add(ch Channel) {
	c.channels = append(c.channels, ch)
}

// -----------------------------------------------------------------------------

func (c *Composite) Deliver(ctx context.Context, userID int64, text string) error {
	var errs []error
	for _, ch := range c.channels {
		if err := ch.Deliver(ctx, userID, text); err != nil {
			c.Logger.Warning("Delivery via %s to %d failed: %v", ch.Name(), userID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
