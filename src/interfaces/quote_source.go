package interfaces

import (
	"context"

	"stock-chatbot/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteSource is one upstream feed that can quote a resolved symbol.
// -----------------------------------------------------------------------------

type IQuoteSource interface {

	// Name returns the unique name of this source
	Name() string

	// Quote fetches a symbol the source understands (a KRX code or a ticker)
	Quote(ctx context.Context, symbol string) (models.MQuote, error)
}
