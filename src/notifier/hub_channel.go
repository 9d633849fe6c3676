package notifier

import (
	"context"

	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"
)

// Publisher fans a delivery out to connected web clients
type Publisher interface {
	Publish(d models.MDelivery)
}

// HubChannel copies deliveries to the websocket hub. Web clients have no size
// limit, so text is not split.
type HubChannel struct {
	hub Publisher
	now utils.Clock
}

func NewHubChannel(hub Publisher, clock utils.Clock) *HubChannel {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &HubChannel{hub: hub, now: clock}
}

func (c *HubChannel) Name() string {
	return "websocket"
}

func (c *HubChannel) Deliver(_ context.Context, userID int64, text string) error {
	if text == "" {
		text = EmptyText
	}
	c.hub.Publish(models.MDelivery{UserID: userID, Text: text, Timestamp: c.now().UnixMilli()})
	return nil
}
