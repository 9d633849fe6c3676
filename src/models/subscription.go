package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MAlertSubscription notifies a user when the quote text of Symbol changes
type MAlertSubscription struct {
	UserID       int64     `json:"user_id"`
	Symbol       string    `json:"symbol"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// MMonitorSubscription notifies a user on every tick
type MMonitorSubscription struct {
	UserID      int64     `json:"user_id"`
	Symbol      string    `json:"symbol"`
	UpdateCount int       `json:"update_count"`
	StartedAt   time.Time `json:"started_at"`
}

// MHolding is a portfolio position
type MHolding struct {
	Name     string          `json:"name"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	Quantity int64           `json:"quantity"`
	AddedAt  time.Time       `json:"added_at"`
}

func (h MHolding) TotalCost() decimal.Decimal {
	return h.BuyPrice.Mul(decimal.NewFromInt(h.Quantity))
}

// -----------------------------------------------------------------------------

// Journal kinds
const (
	JournalAlert   = "alert"
	JournalMonitor = "monitor"
	JournalFailure = "failure"
	JournalCLI     = "cli"
)

// MJournalEntry records one background delivery
type MJournalEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	Symbol    string    `json:"symbol"`
	Text      string    `json:"text"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}

// MDelivery is what the websocket hub pushes to clients
type MDelivery struct {
	UserID    int64  `json:"user_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// MRegistryStatus summarizes process state for the control plane
type MRegistryStatus struct {
	Sessions       int   `json:"sessions"`
	CachedResults  int   `json:"cached_results"`
	Alerts         int   `json:"alerts"`
	Monitors       int   `json:"monitors"`
	PortfolioUsers int   `json:"portfolio_users"`
	MarketOpen     bool  `json:"market_open"`
	Timestamp      int64 `json:"timestamp"`
}
