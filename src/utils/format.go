package utils

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// FormatNumber renders an integer with thousands separators: 1234567 -> 1,234,567
func FormatNumber(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := groupDigits(strconv.FormatInt(n, 10))
	if neg {
		return "-" + s
	}
	return s
}

// -----------------------------------------------------------------------------

// FormatDecimal renders a decimal with thousands separators and at most two
// fraction digits, dropping a zero fraction: 71000.00 -> 71,000
func FormatDecimal(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	out := groupDigits(intPart)
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// -----------------------------------------------------------------------------

// FormatSigned is FormatDecimal with an explicit + for positive values
func FormatSigned(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + FormatDecimal(d)
	}
	return FormatDecimal(d)
}

// -----------------------------------------------------------------------------

// ParseNumber parses a number that may carry thousands separators: "71,000"
func ParseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

// -----------------------------------------------------------------------------

func groupDigits(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
