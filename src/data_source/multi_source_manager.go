package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"stock-chatbot/src/data_source/naver"
	"stock-chatbot/src/data_source/yahoo"
	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	"golang.org/x/sync/errgroup"
)

// Index names read by MarketIndices
var marketIndices = []string{"KOSPI", "KOSDAQ"}

// MarketFeed is a quote source that also serves market-wide views
type MarketFeed interface {
	interfaces.IQuoteSource
	Index(ctx context.Context, name string) (models.MIndexQuote, error)
	Popular(ctx context.Context, limit int) ([]models.MPopularStock, error)
	RawQuote(ctx context.Context, code string) ([]byte, error)
}

// MultiSourceManager routes lookups: directory names and KRX codes go to the
// market feed, other ASCII tickers to the foreign source.
type MultiSourceManager struct {
	Symbols *Directory
	Market  MarketFeed
	Foreign interfaces.IQuoteSource
	Logger  *logger.Logger
	timeout time.Duration
	fanout  int
	mu      sync.RWMutex
	counts  map[string]int64
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(cfg *models.MConfig, dir *Directory, market MarketFeed, foreign interfaces.IQuoteSource, log *logger.Logger) *MultiSourceManager {
	timeout := time.Duration(cfg.Quote.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	fanout := cfg.Scheduler.MaxConcurrency
	if fanout <= 0 {
		fanout = 4
	}
	return &MultiSourceManager{
		Symbols: dir,
		Market:  market,
		Foreign: foreign,
		Logger:  log,
		timeout: timeout,
		fanout:  fanout,
		counts:  make(map[string]int64),
	}
}

// -----------------------------------------------------------------------------

// NewDefaultManager wires the Naver and Yahoo sources over netMgr
func NewDefaultManager(cfg *models.MConfig, netMgr interfaces.INetworkManager) *MultiSourceManager {
	return NewMultiSourceManager(cfg,
		NewDirectory(cfg.Symbols),
		naver.NewNaverSource(cfg, netMgr),
		yahoo.NewYahooFinanceSource(cfg, netMgr),
		logger.NewLogger(cfg, "MultiSourceManager"))
}

// -----------------------------------------------------------------------------

// Name returns "MultiSourceManager"
func (m *MultiSourceManager) Name() string {
	return "MultiSourceManager"
}

// -----------------------------------------------------------------------------

// Counts returns how many quotes each source served
func (m *MultiSourceManager) Counts() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

func (m *MultiSourceManager) count(source string) {
	m.mu.Lock()
	m.counts[source]++
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

// FetchQuote resolves query and fetches its quote within the fetch timeout
func (m *MultiSourceManager) FetchQuote(ctx context.Context, query string) (models.MQuote, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return models.MQuote{}, helpers.NewValidationError("종목명을 입력해주세요.")
	}

	source, symbol, err := m.resolve(q)
	if err != nil {
		return models.MQuote{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	quote, err := source.Quote(ctx, symbol)
	if err != nil {
		m.Logger.Warning("Quote %s via %s failed: %v", symbol, source.Name(), err)
		return models.MQuote{}, err
	}
	m.count(source.Name())
	return quote, nil
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) resolve(q string) (interfaces.IQuoteSource, string, error) {
	if entry, ok := m.Symbols.Lookup(q); ok {
		return m.Market, entry.Code, nil
	}
	if IsStockCode(q) {
		return m.Market, q, nil
	}
	if m.Foreign != nil && isTicker(q) {
		return m.Foreign, q, nil
	}
	return nil, "", helpers.NewQuoteError(
		fmt.Sprintf("'%s' 종목을 찾을 수 없습니다.\n사용 가능한 종목: %s", q, strings.Join(m.Symbols.Names(), ", ")), nil)
}

// isTicker accepts symbols like AAPL, BRK-B or 7203.T
func isTicker(s string) bool {
	if len(s) > 12 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '^') {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// FetchMany quotes every query concurrently. Failures stay per entry and the
// output keeps the input order.
func (m *MultiSourceManager) FetchMany(ctx context.Context, queries []string) []models.MQuoteResult {
	results := make([]models.MQuoteResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.fanout)
	for i, q := range queries {
		g.Go(func() error {
			quote, err := m.FetchQuote(gctx, q)
			results[i] = models.MQuoteResult{Query: q, Quote: quote, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// -----------------------------------------------------------------------------

// SearchSymbols matches keyword against the directory
func (m *MultiSourceManager) SearchSymbols(_ context.Context, keyword string) ([]models.MSearchResult, error) {
	return m.Symbols.Search(keyword), nil
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) Directory() []models.MSearchResult {
	return m.Symbols.Entries()
}

// -----------------------------------------------------------------------------

// MarketIndices fetches KOSPI and KOSDAQ concurrently
func (m *MultiSourceManager) MarketIndices(ctx context.Context) ([]models.MIndexQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out := make([]models.MIndexQuote, len(marketIndices))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range marketIndices {
		g.Go(func() error {
			idx, err := m.Market.Index(gctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			out[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) Popular(ctx context.Context, limit int) ([]models.MPopularStock, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.Market.Popular(ctx, limit)
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) RawQuote(ctx context.Context, code string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.Market.RawQuote(ctx, code)
}
