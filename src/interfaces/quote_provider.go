package interfaces

import (
	"context"

	"stock-chatbot/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteProvider fetches quotes and searches the symbol directory.
// -----------------------------------------------------------------------------

type IQuoteProvider interface {

	// Name identifies the provider in logs and diagnostics
	Name() string

	// FetchQuote resolves a name, code or ticker and returns its formatted quote.
	FetchQuote(ctx context.Context, query string) (models.MQuote, error)

	// SearchSymbols returns directory entries matching keyword, possibly none.
	SearchSymbols(ctx context.Context, keyword string) ([]models.MSearchResult, error)
}

// -----------------------------------------------------------------------------
// IMarketDataProvider adds market-wide views on top of single quotes.
// -----------------------------------------------------------------------------

type IMarketDataProvider interface {
	IQuoteProvider

	// MarketIndices returns KOSPI and KOSDAQ readings
	MarketIndices(ctx context.Context) ([]models.MIndexQuote, error)

	// Popular returns the most viewed domestic stocks
	Popular(ctx context.Context, limit int) ([]models.MPopularStock, error)

	// Directory lists every searchable symbol
	Directory() []models.MSearchResult

	// FetchMany quotes several queries; failures stay per entry and order is kept
	FetchMany(ctx context.Context, queries []string) []models.MQuoteResult

	// RawQuote returns the unparsed upstream response for a code
	RawQuote(ctx context.Context, code string) ([]byte, error)
}
