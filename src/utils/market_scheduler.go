package utils

import (
	"sync"

	"stock-chatbot/src/logger"
)

// MarketScheduler caches one TradingCalendar per exchange and answers open /
// closed questions for symbols and for the home market.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	now       Clock
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(l *logger.Logger, clock Clock) *MarketScheduler {
	if clock == nil {
		clock = SystemClock
	}
	return &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
		now:       clock,
	}
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) calendarFor(mic string) *TradingCalendar {
	ms.mu.RLock()
	cal, ok := ms.Calendars[mic]
	ms.mu.RUnlock()
	if ok {
		return cal
	}

	cal = GetCalendar(mic)
	ms.mu.Lock()
	ms.Calendars[mic] = cal
	ms.mu.Unlock()

	if cal.Fallback {
		ms.Logger.Warning("No calendar for MIC '%s'; using weekday session hours", mic)
	}
	return cal
}

// -----------------------------------------------------------------------------

// IsSymbolOpen reports whether the exchange listing symbol is open now
func (ms *MarketScheduler) IsSymbolOpen(symbol string) bool {
	return ms.calendarFor(MICForSymbol(symbol)).IsOpenAt(ms.now())
}

// -----------------------------------------------------------------------------

// KRXOpen reports whether the Korea Exchange is open now
func (ms *MarketScheduler) KRXOpen() bool {
	return ms.calendarFor(MICKorea).IsOpenAt(ms.now())
}

// -----------------------------------------------------------------------------

// KRXStatusText is the one-line market status shown under index quotes
func (ms *MarketScheduler) KRXStatusText() string {
	cal := ms.calendarFor(MICKorea)
	now := ms.now()
	switch {
	case cal.IsOpenAt(now):
		return "🟢 정규장 운영 중"
	case cal.IsTradingDay(now):
		return "🔴 장 마감 (" + now.In(cal.Timezone).Format("15:04") + " KST)"
	default:
		return "🔴 휴장일"
	}
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if the exchange of any given symbol is open
func (ms *MarketScheduler) AnyMarketOpen(symbols []string) bool {
	now := ms.now()
	seen := make(map[string]bool)
	for _, s := range symbols {
		mic := MICForSymbol(s)
		if seen[mic] {
			continue
		}
		seen[mic] = true
		if ms.calendarFor(mic).IsOpenAt(now) {
			return true
		}
	}
	return false
}
