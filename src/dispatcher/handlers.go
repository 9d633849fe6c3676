package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
)

const popularLimit = 10

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

func (d *Dispatcher) quote(ctx context.Context, userID int64, query string) string {
	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	q, err := d.Quotes.FetchQuote(ctx, query)
	if err != nil {
		d.Logger.Warning("Quote for %q failed: %v", query, err)
		return quoteFailure(err)
	}
	return q.Text + d.decorate(userID, query, q)
}

func (d *Dispatcher) decorate(userID int64, query string, q models.MQuote) string {
	if d.Portfolio == nil {
		return ""
	}
	return d.Portfolio.DecorateQuote(userID, query, q)
}

func quoteFailure(err error) string {
	var qe *helpers.QuoteError
	if errors.As(err, &qe) {
		return "❌ " + qe.Message
	}
	var ve *helpers.ValidationError
	if errors.As(err, &ve) {
		return "❌ " + ve.Message
	}
	return "❌ 주식 정보 조회 실패: " + helpers.UserMessage(err)
}

// -----------------------------------------------------------------------------

func (d *Dispatcher) multiQuote(ctx context.Context, payload string) string {
	var names []string
	for _, n := range strings.Split(payload, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return usage["/stocks"]
	}

	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("📈 주식 현황\n\n")
	for _, r := range d.Quotes.FetchMany(ctx, names) {
		if r.Err != nil {
			var qe *helpers.QuoteError
			if errors.As(r.Err, &qe) {
				fmt.Fprintf(&b, "❌ %s - 종목을 찾을 수 없습니다\n", r.Query)
			} else {
				fmt.Fprintf(&b, "❌ %s - 조회 실패\n", r.Query)
			}
			continue
		}
		unit := "원"
		if r.Quote.Source == "yahoo" {
			unit = ""
		}
		fmt.Fprintf(&b, "%s %s: %s%s (%s%%)\n",
			arrow(r.Quote.Change.IsNegative()),
			r.Query,
			utils.FormatDecimal(r.Quote.Price),
			unit,
			strconv.FormatFloat(r.Quote.ChangeRate, 'f', 2, 64))
	}
	return strings.TrimRight(b.String(), "\n")
}

func arrow(falling bool) string {
	if falling {
		return "🔻"
	}
	return "🔺"
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

// search runs a directory search and caches the hits for numbered selection.
// A search with no hits drops any earlier results of the user.
func (d *Dispatcher) search(ctx context.Context, userID int64, keyword string) (string, bool) {
	results, err := d.Quotes.SearchSymbols(ctx, keyword)
	if err != nil {
		d.Logger.Warning("Search for %q failed: %v", keyword, err)
		return "❌ 검색 실패: " + helpers.UserMessage(err), false
	}

	if len(results) == 0 {
		if userID != 0 {
			d.Cache.Clear(userID)
		}
		return fmt.Sprintf("❌ '%s'에 대한 검색 결과가 없습니다.\n\n📋 /list 로 조회 가능한 종목을 확인하세요.", keyword), false
	}

	if userID != 0 {
		d.Cache.Save(userID, results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 '%s' 검색 결과 (%d건)\n\n", keyword, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s) %s\n", i+1, r.Name, r.Code, r.Market)
	}
	b.WriteString("\n💡 번호를 입력하면 시세를 조회합니다.\n검색 결과는 5분간 유지됩니다.")
	return b.String(), true
}

func (d *Dispatcher) stockList() string {
	var b strings.Builder
	b.WriteString("📋 조회 가능한 주요 종목\n\n")
	for _, s := range d.Quotes.Directory() {
		b.WriteString("• " + s.Name + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// -----------------------------------------------------------------------------
// Market
// -----------------------------------------------------------------------------

func (d *Dispatcher) marketIndex(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	indices, err := d.Quotes.MarketIndices(ctx)
	if err != nil {
		d.Logger.Warning("Market index failed: %v", err)
		return "❌ 시장 지수 조회 실패: " + helpers.UserMessage(err)
	}

	lines := make([]string, 0, len(indices))
	for _, q := range indices {
		lines = append(lines, fmt.Sprintf("%s: %s %s%s (%s%%)",
			q.Name,
			utils.FormatDecimal(decimal.NewFromFloat(q.Value)),
			arrow(q.Change < 0),
			utils.FormatDecimal(decimal.NewFromFloat(q.Change)),
			strconv.FormatFloat(q.ChangeRate, 'f', 2, 64)))
	}

	text := "📊 시장 지수\n\n" + strings.Join(lines, "\n")
	if d.Market != nil {
		text += "\n\n" + d.Market.KRXStatusText()
	}
	return text
}

func (d *Dispatcher) popular(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	stocks, err := d.Quotes.Popular(ctx, popularLimit)
	if err != nil {
		d.Logger.Warning("Popular list failed: %v", err)
		return "❌ 인기 종목 조회 실패: " + helpers.UserMessage(err)
	}
	if len(stocks) == 0 {
		return "🔥 실시간 인기 검색 종목\n\n조회된 종목이 없습니다."
	}

	var b strings.Builder
	b.WriteString("🔥 실시간 인기 검색 종목\n\n")
	for i, s := range stocks {
		fmt.Fprintf(&b, "%d. %s %s: %s원 (%s%%)\n",
			i+1, arrow(strings.HasPrefix(s.Change, "-")), s.Name, plainNumber(s.ClosePrice), s.Change)
	}
	return strings.TrimRight(b.String(), "\n")
}

// plainNumber regroups an upstream number, keeping it as is when unparsable
func plainNumber(s string) string {
	n, err := utils.ParseNumber(s)
	if err != nil {
		return s
	}
	return utils.FormatDecimal(n)
}

// -----------------------------------------------------------------------------
// Portfolio
// -----------------------------------------------------------------------------

// addHolding parses "<name> <price> <qty>". The two error texts differ
// between the /add command and the add prompt.
func (d *Dispatcher) addHolding(userID int64, payload, formatErr, numberErr string) (string, bool) {
	parts := strings.Fields(payload)
	if len(parts) != 3 {
		return formatErr, false
	}

	price, err := utils.ParseNumber(parts[1])
	if err != nil {
		return numberErr, false
	}
	qty, err := strconv.ParseInt(strings.ReplaceAll(parts[2], ",", ""), 10, 64)
	if err != nil {
		return numberErr, false
	}

	reply := d.Portfolio.Add(userID, parts[0], price, qty)
	return reply, price.IsPositive() && qty > 0
}

// -----------------------------------------------------------------------------
// Alerts and monitors
// -----------------------------------------------------------------------------

// probe checks a symbol before subscribing. Unknown symbols are refused; a
// transient failure still subscribes, without a baseline.
func (d *Dispatcher) probe(ctx context.Context, symbol string) (models.MQuote, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	q, err := d.Quotes.FetchQuote(ctx, symbol)
	if err == nil {
		return q, "", true
	}

	var qe *helpers.QuoteError
	var ve *helpers.ValidationError
	if errors.As(err, &qe) || errors.As(err, &ve) {
		return models.MQuote{}, quoteFailure(err), false
	}
	d.Logger.Warning("Probe for %q failed, subscribing anyway: %v", symbol, err)
	return models.MQuote{}, "", true
}

func (d *Dispatcher) subscribeAlert(ctx context.Context, userID int64, symbol string) string {
	q, refusal, ok := d.probe(ctx, symbol)
	if !ok {
		return refusal
	}
	return d.Alerts.Subscribe(userID, symbol, q.Text)
}

func (d *Dispatcher) startMonitor(ctx context.Context, userID int64, symbol string) string {
	if _, refusal, ok := d.probe(ctx, symbol); !ok {
		return refusal
	}
	return d.Monitors.Start(userID, symbol, d.Config.Monitor.IntervalSeconds)
}

// stop ends both the monitor and the alert of a user
func (d *Dispatcher) stop(userID int64) string {
	monitorStopped, monitorText := d.Monitors.Stop(userID)
	alertStopped, alertText := d.Alerts.Unsubscribe(userID)
	if !monitorStopped && !alertStopped {
		return nothingRunning
	}

	var b strings.Builder
	if monitorStopped {
		b.WriteString(monitorText + "\n")
	}
	if alertStopped {
		b.WriteString(alertText)
	}
	return strings.TrimSpace(b.String())
}

func (d *Dispatcher) status(userID int64) string {
	var b strings.Builder
	b.WriteString("📊 내 현황\n\n")

	b.WriteString("💼 포트폴리오:\n")
	fmt.Fprintf(&b, "• 보유 종목 수: %d개\n\n", d.Portfolio.Count(userID))

	b.WriteString("🔔 가격 변동 알림:\n")
	if _, ok := d.Alerts.Get(userID); ok {
		b.WriteString(d.Alerts.Status(userID) + "\n\n")
	} else {
		b.WriteString("• 없음\n\n")
	}

	b.WriteString("🔄 연속 모니터링:\n")
	if _, ok := d.Monitors.Get(userID); ok {
		b.WriteString(d.Monitors.Status(userID, d.Config.Monitor.IntervalSeconds))
	} else {
		b.WriteString("• 없음")
	}
	return b.String()
}

// -----------------------------------------------------------------------------
// CLI
// -----------------------------------------------------------------------------

func (d *Dispatcher) startTask(userID int64, command string) string {
	id, err := d.Tasks.Start(userID, command)
	if err != nil {
		d.Logger.Warning("CLI task rejected: %v", err)
		return "❌ CLI 실행 실패: " + helpers.UserMessage(err)
	}
	d.Logger.Info("CLI task %s started for %d: %s", id, userID, command)
	return "✅ CLI 실행 시작: " + command
}
