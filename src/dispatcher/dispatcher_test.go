package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stock-chatbot/src/cache"
	datasource "stock-chatbot/src/data_source"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/session"
	"stock-chatbot/src/subscription"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice     int64 = 1001
	developer int64 = 4242
)

// -----------------------------------------------------------------------------

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string]int64
	down   bool
}

func (f *fakeFeed) Name() string { return "naver" }

func (f *fakeFeed) Quote(_ context.Context, code string) (models.MQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return models.MQuote{}, errors.New("connection refused")
	}
	price := f.prices[code]
	return models.MQuote{
		Code:   code,
		Text:   "📊 " + code + " " + utils.FormatNumber(price) + "원",
		Price:  decimal.NewFromInt(price),
		Change: decimal.NewFromInt(-100),
		Source: "naver",
	}, nil
}

func (f *fakeFeed) Index(_ context.Context, name string) (models.MIndexQuote, error) {
	return models.MIndexQuote{Name: name, Value: 2583.45, Change: -12.3, ChangeRate: -0.47}, nil
}

func (f *fakeFeed) Popular(_ context.Context, limit int) ([]models.MPopularStock, error) {
	all := []models.MPopularStock{
		{Name: "삼성전자", Code: "005930", ClosePrice: "75000", Change: "1.20"},
		{Name: "카카오", Code: "035720", ClosePrice: "41,000", Change: "-0.50"},
	}
	return all[:min(limit, len(all))], nil
}

func (f *fakeFeed) RawQuote(context.Context, string) ([]byte, error) {
	return []byte(`{}`), nil
}

type fakeDiagnostics struct{}

func (fakeDiagnostics) Run(context.Context) string   { return "diagnostics ran" }
func (fakeDiagnostics) Quick(context.Context) string { return "quicktest ran" }

type fakeTasks struct {
	mu      sync.Mutex
	started []string
}

func (f *fakeTasks) Start(_ int64, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, command)
	return "task-1", nil
}

// -----------------------------------------------------------------------------

type fixture struct {
	d     *Dispatcher
	clock *utils.ManualClock
	feed  *fakeFeed
	tasks *fakeTasks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	// Monday 10:00 in Seoul
	clock := utils.NewManualClock(time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC))
	cfg := &models.MConfig{
		PrivilegedUserID: developer,
		Quote:            models.MQuoteConfig{FetchTimeoutSeconds: 1},
		Monitor:          models.MMonitorConfig{IntervalSeconds: 10},
		CLI:              models.MCLIConfig{Enabled: true},
	}

	feed := &fakeFeed{prices: map[string]int64{
		"005930": 75000,
		"005380": 210000,
		"012330": 250000,
		"000720": 33000,
	}}
	dir := datasource.NewDirectory([]models.MSymbolConfig{
		{Name: "현대모비스", Code: "012330"},
		{Name: "현대건설", Code: "000720"},
	})
	quotes := datasource.NewMultiSourceManager(cfg, dir, feed, nil, logger.NewNop("router"))

	d := NewDispatcher(cfg,
		session.NewStore(10*time.Minute, clock.Now),
		cache.NewResultCache(5*time.Minute, clock.Now),
		quotes,
		portfolio.NewPortfolio(clock.Now),
		subscription.NewAlertRegistry(subscription.ScopeSymbol, clock.Now),
		subscription.NewMonitorRegistry(clock.Now),
		logger.NewNop("dispatcher"))
	d.Market = utils.NewMarketScheduler(logger.NewNop("market"), clock.Now)
	d.Diagnostics = fakeDiagnostics{}
	tasks := &fakeTasks{}
	d.Tasks = tasks

	return &fixture{d: d, clock: clock, feed: feed, tasks: tasks}
}

func (f *fixture) send(userID int64, text string) string {
	return f.d.Dispatch(context.Background(), userID, text)
}

func (f *fixture) state(userID int64) models.MState {
	return f.d.Sessions.Get(userID)
}

// -----------------------------------------------------------------------------

func TestStartShowsMainMenu(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, mainMenuText, f.send(alice, "/start"))
	sess, live := f.d.Sessions.Lookup(alice)
	require.True(t, live)
	assert.Equal(t, models.LevelMain, sess.State.Level())
}

func TestUnknownInput(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, unknownText, f.send(alice, "hello"))
	assert.Equal(t, unknownText, f.send(alice, "/nope"))
	assert.Equal(t, unknownText, f.send(alice, "   "))
	_, live := f.d.Sessions.Lookup(alice)
	assert.False(t, live)
}

func TestMainMenuNavigation(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")

	cases := []struct {
		digit string
		level models.MenuLevel
		text  string
	}{
		{"1", models.LevelStockSearch, stockSearchMenuText},
		{"2", models.LevelMarketInfo, marketInfoMenuText},
		{"3", models.LevelPortfolio, portfolioMenuText},
		{"4", models.LevelAlertMonitor, alertMonitorMenuText},
		{"5", models.LevelHelp, examplesMenuText},
	}
	for _, tc := range cases {
		t.Run(tc.level.String(), func(t *testing.T) {
			f.send(alice, "/start")
			assert.Equal(t, tc.text, f.send(alice, tc.digit))
			assert.Equal(t, models.AtLevel(tc.level), f.state(alice))
		})
	}

	f.send(alice, "/start")
	assert.Equal(t, invalidInputText, f.send(alice, "9"))
	assert.Equal(t, models.AtLevel(models.LevelMain), f.state(alice))
}

func TestZeroReturnsToMain(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "1")
	f.send(alice, "1")
	require.Equal(t, models.AtPrompt(models.PromptAwaitKeyword), f.state(alice))

	assert.Equal(t, backText+"\n\n"+mainMenuText, f.send(alice, "0"))
	assert.Equal(t, models.AtLevel(models.LevelMain), f.state(alice))
}

func TestInvalidDigitKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "2")

	assert.Equal(t, invalidInputText, f.send(alice, "7"))
	assert.Equal(t, models.AtLevel(models.LevelMarketInfo), f.state(alice))

	f.send(alice, "0")
	f.send(alice, "5")
	assert.Equal(t, invalidInputText, f.send(alice, "1"))
	assert.Equal(t, models.AtLevel(models.LevelHelp), f.state(alice))
}

// -----------------------------------------------------------------------------

func TestKeywordPromptThenSelection(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "1")
	assert.Equal(t, keywordPromptText, f.send(alice, "1"))

	reply := f.send(alice, "현대")
	assert.Contains(t, reply, "(3건)")
	assert.Contains(t, reply, "1. 현대차 (005380)")
	assert.Contains(t, reply, "2. 현대모비스 (012330)")
	assert.Equal(t, models.AtPrompt(models.PromptResultsReady), f.state(alice))

	assert.Equal(t, "📊 012330 250,000원", f.send(alice, "2"))
	assert.Equal(t, noResultsText, f.send(alice, "4"))
}

func TestResultsPromptRunsNewSearch(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/search 현대")

	reply := f.send(alice, "삼성")
	assert.Contains(t, reply, "1. 삼성전자 (005930)")
	assert.Equal(t, "📊 005930 75,000원", f.send(alice, "1"))
}

func TestSearchWithoutMatchesClearsCache(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/search 현대")
	f.d.Sessions.Clear(alice)

	reply := f.send(alice, "/search 테슬라")
	assert.Contains(t, reply, "'테슬라'에 대한 검색 결과가 없습니다")
	assert.Equal(t, noResultsText, f.send(alice, "1"))
}

func TestSelectionWithoutSession(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, noResultsText, f.send(alice, "1"))

	f.send(alice, "/search 현대")
	f.d.Sessions.Clear(alice)
	assert.Equal(t, "📊 005380 210,000원", f.send(alice, "1"))

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, noResultsText, f.send(alice, "1"))
}

func TestSessionExpiry(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "3")

	f.clock.Advance(10 * time.Minute)
	_, live := f.d.Sessions.Lookup(alice)
	require.False(t, live)

	// "2" now selects from the (empty) result cache instead of the menu
	assert.Equal(t, noResultsText, f.send(alice, "2"))
}

func TestCodePrompt(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "1")
	assert.Equal(t, codePromptText, f.send(alice, "3"))

	assert.Equal(t, codeFormatText, f.send(alice, "5930"))
	assert.Equal(t, models.AtPrompt(models.PromptAwaitCode), f.state(alice))

	assert.Equal(t, "📊 005930 75,000원", f.send(alice, "005930"))
	assert.Equal(t, models.AtLevel(models.LevelStockSearch), f.state(alice))
}

func TestCommandsWinOverPrompts(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "4")
	f.send(alice, "1")

	assert.Equal(t, helpText, f.send(alice, "/help"))
	assert.Equal(t, models.AtPrompt(models.PromptAwaitAlert), f.state(alice))
	assert.Equal(t, unknownText, f.send(alice, "/bogus"))
}

// -----------------------------------------------------------------------------

func TestQuoteWithPortfolio(t *testing.T) {
	f := newFixture(t)

	reply := f.send(alice, "/add 삼성전자 71000 10")
	assert.Contains(t, reply, "✅ 포트폴리오에 추가되었습니다!")
	assert.Contains(t, reply, "710,000원")

	reply = f.send(alice, "/stock 삼성전자")
	assert.True(t, strings.HasPrefix(reply, "📊 005930 75,000원"))
	assert.Contains(t, reply, "+40,000원")
	assert.Contains(t, reply, "+5.63%")

	// Another user sees the plain quote
	assert.Equal(t, "📊 005930 75,000원", f.send(2002, "/stock 삼성전자"))
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, addFormatText, f.send(alice, "/add 삼성전자 71000"))
	assert.Equal(t, addNumberText, f.send(alice, "/add 삼성전자 abc 10"))
	assert.Equal(t, addNumberText, f.send(alice, "/add 삼성전자 71000 1.5"))
	assert.Equal(t, addFormatText, f.send(alice, "/add"))
	assert.Contains(t, f.send(alice, "/add 삼성전자 0 10"), "0보다 커야")
	assert.Equal(t, 0, f.d.Portfolio.Count(alice))
}

func TestAddPrompt(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "3")
	assert.Equal(t, addPromptText, f.send(alice, "2"))

	assert.Equal(t, invalidInputText, f.send(alice, "삼성전자 71000"))
	assert.Equal(t, models.AtPrompt(models.PromptAwaitAdd), f.state(alice))

	assert.Contains(t, f.send(alice, "카카오 50,000 5"), "✅")
	assert.Equal(t, models.AtLevel(models.LevelPortfolio), f.state(alice))

	assert.Contains(t, f.send(alice, "1"), "카카오")
	f.send(alice, "3")
	assert.Contains(t, f.send(alice, "카카오"), "삭제했습니다")
	assert.Equal(t, 0, f.d.Portfolio.Count(alice))
}

func TestUsageForEmptyPayload(t *testing.T) {
	f := newFixture(t)

	for _, cmd := range []string{"/search", "/find", "/code", "/stock", "/주식", "/stocks", "/remove", "/alert", "/monitor"} {
		assert.Equal(t, usage[cmd], f.send(alice, cmd), cmd)
	}
}

func TestUnknownSymbol(t *testing.T) {
	f := newFixture(t)

	reply := f.send(alice, "/stock 없는종목")
	assert.True(t, strings.HasPrefix(reply, "❌ '없는종목' 종목을 찾을 수 없습니다."))
	assert.Contains(t, reply, "삼성전자")
}

func TestUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.feed.down = true

	assert.Equal(t, "❌ 주식 정보 조회 실패: connection refused", f.send(alice, "/stock 삼성전자"))
}

func TestMultiQuote(t *testing.T) {
	f := newFixture(t)

	reply := f.send(alice, "/stocks 삼성전자, 없는종목 ,현대차")
	lines := strings.Split(reply, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "📈 주식 현황", lines[0])
	assert.Equal(t, "🔻 삼성전자: 75,000원 (0.00%)", lines[2])
	assert.Equal(t, "❌ 없는종목 - 종목을 찾을 수 없습니다", lines[3])
	assert.Contains(t, lines[4], "현대차")
}

func TestMarketViews(t *testing.T) {
	f := newFixture(t)

	index := f.send(alice, "/지수")
	assert.Contains(t, index, "KOSPI: 2,583.45 🔻-12.3 (-0.47%)")
	assert.Contains(t, index, "KOSDAQ:")
	assert.Contains(t, index, "🟢 정규장 운영 중")

	popular := f.send(alice, "/popular")
	assert.Contains(t, popular, "1. 🔺 삼성전자: 75,000원 (1.20%)")
	assert.Contains(t, popular, "2. 🔻 카카오: 41,000원 (-0.50%)")

	assert.Contains(t, f.send(alice, "/list"), "• 현대모비스")
}

// -----------------------------------------------------------------------------

func TestAlertAndMonitorLifecycle(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, nothingRunning, f.send(alice, "/stop"))

	assert.Contains(t, f.send(alice, "/alert 삼성전자"), "실시간 알림이 설정되었습니다")
	seed, ok := f.d.Alerts.LastObserved(alice, "삼성전자")
	require.True(t, ok)
	assert.Equal(t, "📊 005930 75,000원", seed)

	assert.Contains(t, f.send(alice, "/monitor 현대차"), "10초마다")

	status := f.send(alice, "/status")
	assert.Contains(t, status, "• 보유 종목 수: 0개")
	assert.Contains(t, status, "📌 현재 구독 중: 삼성전자")
	assert.Contains(t, status, "🔄 현재 모니터링 중: 현대차")

	stopped := f.send(alice, "/stop")
	assert.Contains(t, stopped, "⏹️ '현대차' 모니터링을 중지했습니다.")
	assert.Contains(t, stopped, "❌ '삼성전자' 알림이 해제되었습니다.")
	assert.Equal(t, nothingRunning, f.send(alice, "/stop"))

	status = f.send(alice, "/status")
	assert.Contains(t, status, "🔔 가격 변동 알림:\n• 없음")
	assert.True(t, strings.HasSuffix(status, "🔄 연속 모니터링:\n• 없음"))
}

func TestStopOnlyMonitor(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/monitor 삼성전자")

	reply := f.send(alice, "/stop")
	assert.True(t, strings.HasPrefix(reply, "⏹️ '삼성전자' 모니터링을 중지했습니다."))
	assert.NotContains(t, reply, "알림")
}

func TestAlertRefusesUnknownSymbol(t *testing.T) {
	f := newFixture(t)

	assert.True(t, strings.HasPrefix(f.send(alice, "/alert 없는종목"), "❌ '없는종목'"))
	assert.Equal(t, 0, f.d.Alerts.Len())
}

func TestAlertSubscribesDuringOutage(t *testing.T) {
	f := newFixture(t)
	f.feed.down = true

	assert.Contains(t, f.send(alice, "/alert 삼성전자"), "✅")
	_, seeded := f.d.Alerts.LastObserved(alice, "삼성전자")
	assert.False(t, seeded)
}

func TestAlertMenuPrompts(t *testing.T) {
	f := newFixture(t)
	f.send(alice, "/start")
	f.send(alice, "4")

	assert.Equal(t, monitorPromptText, f.send(alice, "2"))
	assert.Contains(t, f.send(alice, "카카오"), "연속 모니터링을 시작합니다")
	assert.Equal(t, models.AtLevel(models.LevelAlertMonitor), f.state(alice))

	assert.Contains(t, f.send(alice, "3"), "🔄 현재 모니터링 중: 카카오")
	assert.Contains(t, f.send(alice, "4"), "모니터링을 중지했습니다")
}

// -----------------------------------------------------------------------------

func TestPrivilegedGate(t *testing.T) {
	f := newFixture(t)

	for _, cmd := range []string{"/test", "/quicktest", "/cli uptime"} {
		assert.Equal(t, refusalText, f.send(alice, cmd), cmd)
	}
	assert.Equal(t, refusalText, f.send(0, "/test"))
	assert.Equal(t, unknownText, f.send(0, "/cli uptime"))

	assert.Equal(t, "diagnostics ran", f.send(developer, "/test"))
	assert.Equal(t, "quicktest ran", f.send(developer, "/quicktest"))
	assert.Empty(t, f.tasks.started)

	ctx := WithoutPrivilege(context.Background())
	for _, cmd := range []string{"/test", "/quicktest", "/cli uptime"} {
		assert.Equal(t, refusalText, f.d.Dispatch(ctx, developer, cmd), cmd)
	}
	assert.Empty(t, f.tasks.started)
}

func TestCLI(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, usage["/cli"], f.send(developer, "/cli"))
	assert.Equal(t, "✅ CLI 실행 시작: uptime -p", f.send(developer, "/cli uptime -p"))
	assert.Equal(t, []string{"uptime -p"}, f.tasks.started)

	f.d.Config.CLI.Enabled = false
	assert.Equal(t, cliDisabledText, f.send(developer, "/cli uptime"))
}

func TestAnonymousSender(t *testing.T) {
	f := newFixture(t)

	for _, cmd := range []string{"/portfolio", "/stop", "/unalert", "/status", "/add 삼성전자 1 1", "/alert 삼성전자", "1"} {
		assert.Equal(t, unknownText, f.send(0, cmd), cmd)
	}
	assert.Equal(t, mainMenuText, f.send(0, "/start"))
	assert.Contains(t, f.send(0, "/search 현대"), "(3건)")
	assert.Equal(t, 0, f.d.Sessions.(*session.Store).Len())
}
