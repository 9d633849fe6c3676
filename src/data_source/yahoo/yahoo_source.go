package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
)

// YahooFinanceSource quotes tickers outside the KRX directory
type YahooFinanceSource struct {
	Config   *models.MConfig
	Network  interfaces.INetworkManager
	Logger   *logger.Logger
	chartURL string
	now      utils.Clock
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) Name() string {
	return "yahoo"
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *YahooFinanceSource {
	return &YahooFinanceSource{
		Config:   cfg,
		Network:  netMgr,
		Logger:   logger.NewLogger(cfg, "YahooFinanceSource"),
		chartURL: strings.TrimRight(cfg.Quote.YahooChartURL, "/"),
		now:      utils.SystemClock,
	}
}

// -----------------------------------------------------------------------------

type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ExchangeName       string  `json:"exchangeName"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				RegularMarketVol   int64   `json:"regularMarketVolume"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

// Quote fetches the latest chart meta for ticker
func (s *YahooFinanceSource) Quote(ctx context.Context, ticker string) (models.MQuote, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	params := map[string]string{
		"interval": "1d",
		"range":    "1d",
	}

	body, err := s.Network.Get(ctx, s.chartURL+"/"+url.PathEscape(symbol), params)
	if err != nil {
		return models.MQuote{}, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	return s.parseChartResponse(symbol, body)
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) parseChartResponse(symbol string, data []byte) (models.MQuote, error) {
	var resp YahooChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.MQuote{}, fmt.Errorf("json unmarshal failed: %w", err)
	}

	if resp.Chart.Error != nil {
		return models.MQuote{}, helpers.NewQuoteError(
			fmt.Sprintf("'%s' 종목을 찾을 수 없습니다.", symbol),
			fmt.Errorf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return models.MQuote{}, helpers.NewQuoteError(fmt.Sprintf("'%s' 종목을 찾을 수 없습니다.", symbol), nil)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.MQuote{}, helpers.NewQuoteError(fmt.Sprintf("'%s' 시세가 없습니다.", symbol), nil)
	}

	prevClose := meta.ChartPreviousClose
	if prevClose <= 0 {
		prevClose = meta.PreviousClose
	}

	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	change := decimal.Zero
	rate := decimal.Zero
	if prevClose > 0 {
		prev := decimal.NewFromFloat(prevClose)
		change = price.Sub(prev)
		rate = change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	}

	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	if name == "" {
		name = symbol
	}
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}

	arrow := "🔺"
	if change.IsNegative() {
		arrow = "🔻"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s (%s)\n\n", name, symbol)
	fmt.Fprintf(&sb, "현재가: %s %s\n", utils.FormatDecimal(price), currency)
	fmt.Fprintf(&sb, "%s 전일대비: %s (%s%%)\n", arrow, utils.FormatSigned(change), utils.FormatSigned(rate))
	if meta.RegularMarketVol > 0 {
		fmt.Fprintf(&sb, "거래량: %s주\n", utils.FormatNumber(meta.RegularMarketVol))
	}
	if meta.ExchangeName != "" {
		fmt.Fprintf(&sb, "거래소: %s\n", meta.ExchangeName)
	}
	sb.WriteString("\n⏰ 실시간 조회")

	rateF, _ := rate.Float64()
	s.Logger.Debug("Fetched %s: %s %s", symbol, price.String(), currency)

	return models.MQuote{
		DisplayName: symbol,
		Code:        symbol,
		Text:        sb.String(),
		Price:       price,
		Change:      change,
		ChangeRate:  rateF,
		Volume:      meta.RegularMarketVol,
		Source:      s.Name(),
		FetchedAt:   s.now(),
	}, nil
}
