package utils

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/scmhub/calendar"
)

// MIC codes used by the bot
const (
	MICKorea   = "xkrx"
	MICNewYork = "xnys"
)

// TradingCalendar answers "is the exchange open" using scmhub/calendar, with a
// weekday/session-hours fallback when the library has no calendar for a MIC.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
	openMin  int // minutes after local midnight
	closeMin int
}

// -----------------------------------------------------------------------------

// MICForSymbol maps a quote symbol to its exchange. Korean names, six-digit
// KRX codes and .KS/.KQ tickers go to Korea. Yahoo suffixes pick the listing
// exchange and plain tickers default to New York.
func MICForSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if IsKRXCode(s) || strings.HasSuffix(s, ".KS") || strings.HasSuffix(s, ".KQ") || hasNonASCII(s) {
		return MICKorea
	}

	suffixes := map[string]string{
		".T":  "xtks",
		".HK": "xhkg",
		".L":  "xlon",
		".DE": "xfra",
		".PA": "xpar",
		".TO": "xtse",
		".AX": "xasx",
		".SS": "xshg",
		".SZ": "xshe",
		".TW": "xtai",
	}
	for suffix, mic := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return mic
		}
	}
	return MICNewYork
}

// -----------------------------------------------------------------------------

// IsKRXCode reports whether s is a six-digit KRX stock code
func IsKRXCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// GetCalendar loads the calendar for a MIC
func GetCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(mic)
	if cal := calendar.GetCalendar(mic); cal != nil {
		return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
	}

	// Session hours for the exchanges we quote most
	tc := &TradingCalendar{MIC: mic, Fallback: true, openMin: 9*60 + 30, closeMin: 16 * 60}
	zone := "America/New_York"
	if mic == MICKorea {
		zone = "Asia/Seoul"
		tc.openMin, tc.closeMin = 9*60, 15*60+30
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	tc.Timezone = loc
	return tc
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenAt checks if the market is open at t.
func (tc *TradingCalendar) IsOpenAt(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minute := t.Hour()*60 + t.Minute()
		return minute >= tc.openMin && minute < tc.closeMin
	}

	return tc.Calendar.IsOpen(t)
}
