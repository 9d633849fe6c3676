package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MSearchResult is one candidate of a symbol search
type MSearchResult struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Market string `json:"market"`
}

// MQuote is a fetched quote. Text is the user-facing rendering and is what
// alert change detection compares.
type MQuote struct {
	DisplayName string          `json:"display_name"`
	Code        string          `json:"code"`
	Text        string          `json:"text"`
	Price       decimal.Decimal `json:"price"`
	Change      decimal.Decimal `json:"change"`
	ChangeRate  float64         `json:"change_rate"`
	Volume      int64           `json:"volume"`
	Source      string          `json:"source"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// MIndexQuote is a market index reading (KOSPI, KOSDAQ)
type MIndexQuote struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Change     float64 `json:"change"`
	ChangeRate float64 `json:"change_rate"`
}

// MPopularStock is one row of the popular list
type MPopularStock struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	ClosePrice string `json:"close_price"`
	Change     string `json:"change"`
}

// MQuoteResult is one entry of a multi-symbol lookup
type MQuoteResult struct {
	Query string `json:"query"`
	Quote MQuote `json:"quote"`
	Err   error  `json:"-"`
}
