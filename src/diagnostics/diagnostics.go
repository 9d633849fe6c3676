package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	probeCode    = "005930"
	quickPreview = 500
	rule         = "━━━━━━━━━━━━━━━━━━━━"
)

// probeUser owns the cache entry written by the cache check. Telegram never
// hands out this id.
const probeUser int64 = math.MinInt64

var badges = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

// -----------------------------------------------------------------------------

type checkResult struct {
	ok     bool
	detail string
}

type check struct {
	name string
	run  func(ctx context.Context) checkResult
}

// -----------------------------------------------------------------------------

// Diagnostics runs the self checks behind /test and /quicktest
type Diagnostics struct {
	Config *models.MConfig
	Quotes interfaces.IMarketDataProvider
	Cache  interfaces.IResultCache
	Logger *logger.Logger

	memory  func() helpers.MemoryInfo
	timeout time.Duration
}

// -----------------------------------------------------------------------------

func NewDiagnostics(cfg *models.MConfig, quotes interfaces.IMarketDataProvider, cache interfaces.IResultCache, log *logger.Logger) *Diagnostics {
	timeout := time.Duration(cfg.Quote.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Diagnostics{
		Config:  cfg,
		Quotes:  quotes,
		Cache:   cache,
		Logger:  log,
		memory:  helpers.ReadMemoryInfo,
		timeout: timeout,
	}
}

// -----------------------------------------------------------------------------

func (d *Diagnostics) checks() []check {
	return []check{
		{"네이버 금융 API (시세 조회)", d.checkPrice},
		{"네이버 시장 지수 API", d.checkIndex},
		{"네이버 인기 종목 API", d.checkPopular},
		{"종목 검색", d.checkSearch},
		{"검색 결과 캐시", d.checkCache},
		{"포트폴리오 계산", d.checkPortfolio},
		{"시스템 메모리", d.checkMemory},
	}
}

// Run executes every check concurrently and renders the report in check order
func (d *Diagnostics) Run(ctx context.Context) string {
	checks := d.checks()
	results := make([]checkResult, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			results[i] = c.run(cctx)
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	b.WriteString("🔧 시스템 진단 보고서\n" + rule + "\n\n")

	passed := 0
	for i, c := range checks {
		r := results[i]
		mark := "❌"
		if r.ok {
			mark = "✅"
			passed++
		} else {
			d.Logger.Warning("Diagnostic %q failed: %s", c.name, r.detail)
		}
		fmt.Fprintf(&b, "%s %s\n%s %s\n\n", badges[i], c.name, mark, r.detail)
	}

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "📊 최종 결과: %d/%d 통과\n\n", passed, len(checks))
	if passed == len(checks) {
		b.WriteString("✅ 모든 시스템이 정상 작동 중입니다!\n")
	} else {
		b.WriteString("⚠️ 일부 시스템에 문제가 있습니다.\n")
	}
	b.WriteString("💡 시스템 상태: " + HealthTier(passed, len(checks)))

	d.Logger.Info("Diagnostics finished: %d/%d passed", passed, len(checks))
	return b.String()
}

// HealthTier grades a pass ratio: 80% and up is good, 60% and up needs
// attention, anything lower needs maintenance
func HealthTier(passed, total int) string {
	if total <= 0 {
		return "점검 필요"
	}
	switch rate := float64(passed) / float64(total) * 100; {
	case rate >= 80:
		return "양호"
	case rate >= 60:
		return "주의"
	default:
		return "점검 필요"
	}
}

// -----------------------------------------------------------------------------
// Checks
// -----------------------------------------------------------------------------

func (d *Diagnostics) checkPrice(ctx context.Context) checkResult {
	q, err := d.Quotes.FetchQuote(ctx, probeCode)
	if err != nil {
		return checkResult{detail: "실패: " + helpers.UserMessage(err)}
	}
	if !q.Price.IsPositive() {
		return checkResult{detail: "실패: 현재가가 비어있습니다"}
	}
	return checkResult{ok: true, detail: fmt.Sprintf("정상 (%s 현재가 %s원)", probeCode, utils.FormatDecimal(q.Price))}
}

func (d *Diagnostics) checkIndex(ctx context.Context) checkResult {
	indices, err := d.Quotes.MarketIndices(ctx)
	if err != nil {
		return checkResult{detail: "실패: " + helpers.UserMessage(err)}
	}
	parts := make([]string, 0, len(indices))
	for _, q := range indices {
		parts = append(parts, q.Name+" "+utils.FormatDecimal(decimal.NewFromFloat(q.Value)))
	}
	return checkResult{ok: len(indices) > 0, detail: "정상 (" + strings.Join(parts, ", ") + ")"}
}

func (d *Diagnostics) checkPopular(ctx context.Context) checkResult {
	stocks, err := d.Quotes.Popular(ctx, 5)
	if err != nil {
		return checkResult{detail: "실패: " + helpers.UserMessage(err)}
	}
	if len(stocks) == 0 {
		return checkResult{detail: "실패: 응답에 종목이 없습니다"}
	}
	return checkResult{ok: true, detail: fmt.Sprintf("정상 (%d개 종목, 1위 %s)", len(stocks), stocks[0].Name)}
}

func (d *Diagnostics) checkSearch(ctx context.Context) checkResult {
	results, err := d.Quotes.SearchSymbols(ctx, "삼성")
	if err != nil {
		return checkResult{detail: "실패: " + helpers.UserMessage(err)}
	}
	if len(results) == 0 {
		return checkResult{detail: "실패: '삼성' 검색 결과 없음"}
	}
	return checkResult{ok: true, detail: fmt.Sprintf("정상 ('삼성' %d건, 전체 %d종목)", len(results), len(d.Quotes.Directory()))}
}

func (d *Diagnostics) checkCache(context.Context) checkResult {
	want := models.MSearchResult{Name: "삼성전자", Code: probeCode, Market: "KOSPI"}
	d.Cache.Save(probeUser, []models.MSearchResult{want})
	defer d.Cache.Clear(probeUser)

	got, ok := d.Cache.GetByIndex(probeUser, 1)
	if !ok || got != want {
		return checkResult{detail: "실패: 저장한 결과를 읽지 못했습니다"}
	}
	if _, ok := d.Cache.GetByIndex(probeUser, 2); ok {
		return checkResult{detail: "실패: 범위 밖 번호가 조회되었습니다"}
	}
	return checkResult{ok: true, detail: "정상 (저장/조회/범위 확인)"}
}

func (d *Diagnostics) checkPortfolio(context.Context) checkResult {
	h := models.MHolding{Name: "삼성전자", BuyPrice: decimal.NewFromInt(71000), Quantity: 10}
	report := portfolio.ProfitReport(h, decimal.NewFromInt(75000))
	if !strings.Contains(report, "+40,000원") || !strings.Contains(report, "+5.63%") {
		return checkResult{detail: "실패: 손익 계산 불일치"}
	}
	return checkResult{ok: true, detail: "정상 (71,000원 × 10주 → +40,000원, +5.63%)"}
}

func (d *Diagnostics) checkMemory(context.Context) checkResult {
	m := d.memory()
	detail := fmt.Sprintf("힙 %dMB, 고루틴 %d개", m.HeapMB, m.Goroutines)
	if m.TotalMB > 0 {
		detail = fmt.Sprintf("가용 %dMB / 전체 %dMB, %s", m.AvailableMB, m.TotalMB, detail)
	}
	if !m.Healthy() {
		return checkResult{detail: "메모리 부족 (" + detail + ")"}
	}
	return checkResult{ok: true, detail: "정상 (" + detail + ")"}
}

// -----------------------------------------------------------------------------

// Quick fetches the raw price response for one code and previews it
func (d *Diagnostics) Quick(ctx context.Context) string {
	url := d.Config.Quote.NaverPollingURL + "?query=SERVICE_ITEM:" + probeCode

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := d.Quotes.RawQuote(ctx, probeCode)
	if err != nil {
		d.Logger.Warning("Quick test failed: %v", err)
		return fmt.Sprintf("❌ API 테스트 실패\n\n오류: %s\n메시지: %s", errorKind(err), err.Error())
	}
	if len(body) == 0 {
		return "❌ API 응답 없음"
	}

	text := string(body)
	length := utf8.RuneCountInString(text)
	preview := text
	if length > quickPreview {
		preview = string([]rune(text)[:quickPreview])
	}

	return fmt.Sprintf("✅ API 정상 작동\n\nURL: %s\n\n응답 길이: %d자\n\n응답 내용 (처음 %d자):\n%s",
		url, length, quickPreview, preview)
}

func errorKind(err error) string {
	var ne *helpers.NetworkError
	var qe *helpers.QuoteError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.As(err, &ne):
		return "NetworkError"
	case errors.As(err, &qe):
		return "QuoteError"
	}
	return fmt.Sprintf("%T", err)
}
