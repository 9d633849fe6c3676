package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
)

// NaverSource reads KRX quotes, indices and the popular list from Naver
type NaverSource struct {
	Config     *models.MConfig
	Network    interfaces.INetworkManager
	Logger     *logger.Logger
	pollingURL string
	popularURL string
	now        utils.Clock
}

// -----------------------------------------------------------------------------

func NewNaverSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *NaverSource {
	return &NaverSource{
		Config:     cfg,
		Network:    netMgr,
		Logger:     logger.NewLogger(cfg, "NaverSource"),
		pollingURL: cfg.Quote.NaverPollingURL,
		popularURL: cfg.Quote.NaverPopularURL,
		now:        utils.SystemClock,
	}
}

// -----------------------------------------------------------------------------

func (s *NaverSource) Name() string {
	return "naver"
}

// -----------------------------------------------------------------------------

// flexNumber accepts both JSON numbers and numeric strings
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	str := strings.TrimSpace(string(b))
	if str == "null" {
		*n = ""
		return nil
	}
	if strings.HasPrefix(str, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*n = flexNumber(strings.ReplaceAll(v, ",", ""))
		return nil
	}
	*n = flexNumber(str)
	return nil
}

func (n flexNumber) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// -----------------------------------------------------------------------------

type pollingData struct {
	Code   string     `json:"cd"`
	Name   string     `json:"nm"`
	Value  flexNumber `json:"nv"`
	Change flexNumber `json:"cv"`
	Rate   flexNumber `json:"cr"`
	Volume flexNumber `json:"aq"`
	Rise   string     `json:"rf"`
}

type pollingResponse struct {
	ResultCode string `json:"resultCode"`
	Result     struct {
		Areas []struct {
			Name  string        `json:"name"`
			Datas []pollingData `json:"datas"`
		} `json:"areas"`
	} `json:"result"`
}

// -----------------------------------------------------------------------------

// falling reports a downward move. Naver sends absolute values with a rise/fall
// code (4 lower limit, 5 down) on some endpoints and signed values on others.
func (d pollingData) falling() bool {
	return d.Rise == "4" || d.Rise == "5" || strings.HasPrefix(string(d.Change), "-") || strings.HasPrefix(string(d.Rate), "-")
}

func (d pollingData) signedChange() (decimal.Decimal, decimal.Decimal) {
	change := d.Change.Decimal().Abs()
	rate := d.Rate.Decimal().Abs()
	if d.falling() {
		return change.Neg(), rate.Neg()
	}
	return change, rate
}

// -----------------------------------------------------------------------------

func (s *NaverSource) poll(ctx context.Context, query string) (pollingData, error) {
	body, err := s.Network.Get(ctx, s.pollingURL, map[string]string{"query": query})
	if err != nil {
		return pollingData{}, err
	}

	var resp pollingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return pollingData{}, fmt.Errorf("decode %s: %w", query, err)
	}
	if len(resp.Result.Areas) == 0 || len(resp.Result.Areas[0].Datas) == 0 {
		return pollingData{}, helpers.NewQuoteError("시세 데이터가 없습니다", fmt.Errorf("empty result for %s", query))
	}
	return resp.Result.Areas[0].Datas[0], nil
}

// -----------------------------------------------------------------------------

// RawQuote returns the unparsed polling response for a code
func (s *NaverSource) RawQuote(ctx context.Context, code string) ([]byte, error) {
	return s.Network.Get(ctx, s.pollingURL, map[string]string{"query": "SERVICE_ITEM:" + code})
}

// -----------------------------------------------------------------------------

// Quote fetches one KRX stock by code
func (s *NaverSource) Quote(ctx context.Context, code string) (models.MQuote, error) {
	data, err := s.poll(ctx, "SERVICE_ITEM:"+code)
	if err != nil {
		return models.MQuote{}, err
	}

	price := data.Value.Decimal()
	change, rate := data.signedChange()
	volume := data.Volume.Decimal().IntPart()
	name := data.Name
	if name == "" {
		name = code
	}

	arrow := "🔺"
	if change.IsNegative() {
		arrow = "🔻"
	}

	text := fmt.Sprintf("📊 %s (%s)\n\n"+
		"현재가: %s원\n"+
		"%s 전일대비: %s원 (%s%%)\n"+
		"거래량: %s주\n\n"+
		"⏰ 실시간 조회",
		name, code,
		utils.FormatDecimal(price),
		arrow, utils.FormatSigned(change), signedRate(rate),
		utils.FormatNumber(volume))

	rateF, _ := rate.Float64()
	return models.MQuote{
		DisplayName: name,
		Code:        code,
		Text:        text,
		Price:       price,
		Change:      change,
		ChangeRate:  rateF,
		Volume:      volume,
		Source:      s.Name(),
		FetchedAt:   s.now(),
	}, nil
}

// -----------------------------------------------------------------------------

// Index fetches one market index such as KOSPI or KOSDAQ
func (s *NaverSource) Index(ctx context.Context, name string) (models.MIndexQuote, error) {
	data, err := s.poll(ctx, "SERVICE_INDEX:"+name)
	if err != nil {
		return models.MIndexQuote{}, err
	}

	change, rate := data.signedChange()
	value := data.Value.Decimal()
	// Index values and changes arrive as integers scaled by 100
	if !strings.Contains(string(data.Value), ".") {
		value = value.Div(decimal.NewFromInt(100))
		change = change.Div(decimal.NewFromInt(100))
	}

	v, _ := value.Float64()
	c, _ := change.Float64()
	r, _ := rate.Float64()
	return models.MIndexQuote{Name: name, Value: v, Change: c, ChangeRate: r}, nil
}

// -----------------------------------------------------------------------------

type popularItem struct {
	StockName  string     `json:"stockName"`
	StockCode  string     `json:"stockCode"`
	ItemCode   string     `json:"itemCode"`
	ClosePrice flexNumber `json:"closePrice"`
	Rate       flexNumber `json:"fluctuationsRatio"`
	Compare    flexNumber `json:"compareToPreviousClosePrice"`
}

// Popular fetches the most searched domestic stocks
func (s *NaverSource) Popular(ctx context.Context, limit int) ([]models.MPopularStock, error) {
	body, err := s.Network.Get(ctx, s.popularURL, nil)
	if err != nil {
		return nil, err
	}

	items, err := decodePopular(body)
	if err != nil {
		return nil, err
	}

	out := make([]models.MPopularStock, 0, limit)
	for _, it := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		code := it.StockCode
		if code == "" {
			code = it.ItemCode
		}
		change := string(it.Rate)
		if change == "" {
			change = string(it.Compare)
		}
		out = append(out, models.MPopularStock{
			Name:       it.StockName,
			Code:       code,
			ClosePrice: formatPlain(string(it.ClosePrice)),
			Change:     change,
		})
	}
	return out, nil
}

// decodePopular accepts a bare array or an object wrapping it in "stocks"
func decodePopular(body []byte) ([]popularItem, error) {
	var items []popularItem
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Stocks []popularItem `json:"stocks"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode popular list: %w", err)
	}
	return wrapped.Stocks, nil
}

// -----------------------------------------------------------------------------

func formatPlain(n string) string {
	v, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return n
	}
	return utils.FormatNumber(v)
}

func signedRate(rate decimal.Decimal) string {
	if rate.IsPositive() {
		return "+" + rate.StringFixed(2)
	}
	return rate.StringFixed(2)
}
