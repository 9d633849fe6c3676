package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
)

const separator = "━━━━━━━━━━━━━━━━━━"

// Portfolio keeps each user's holdings, keyed by the name the user typed.
// Holdings live until removed.
type Portfolio struct {
	now      utils.Clock
	mu       sync.RWMutex
	holdings map[int64]map[string]models.MHolding
}

// -----------------------------------------------------------------------------

func NewPortfolio(clock utils.Clock) *Portfolio {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Portfolio{
		now:      clock,
		holdings: make(map[int64]map[string]models.MHolding),
	}
}

// -----------------------------------------------------------------------------

// Add stores or replaces a holding and returns the confirmation text
func (p *Portfolio) Add(userID int64, name string, buyPrice decimal.Decimal, quantity int64) string {
	if !buyPrice.IsPositive() || quantity <= 0 {
		return "❌ 매수가와 수량은 0보다 커야 합니다."
	}

	h := models.MHolding{Name: name, BuyPrice: buyPrice, Quantity: quantity, AddedAt: p.now()}

	p.mu.Lock()
	if p.holdings[userID] == nil {
		p.holdings[userID] = make(map[string]models.MHolding)
	}
	p.holdings[userID][name] = h
	p.mu.Unlock()

	return fmt.Sprintf("✅ 포트폴리오에 추가되었습니다!\n\n"+
		"📊 %s\n"+
		"💰 매수가: %s원\n"+
		"📦 수량: %s주\n"+
		"💵 총 매수금액: %s원",
		name, utils.FormatDecimal(buyPrice), utils.FormatNumber(quantity), utils.FormatDecimal(h.TotalCost()))
}

// -----------------------------------------------------------------------------

// Remove deletes a holding and reports whether it existed
func (p *Portfolio) Remove(userID int64, name string) (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.holdings[userID]
	if _, ok := user[name]; !ok {
		return false, fmt.Sprintf("❌ '%s'이(가) 포트폴리오에 없습니다.", name)
	}
	delete(user, name)
	if len(user) == 0 {
		delete(p.holdings, userID)
	}
	return true, fmt.Sprintf("✅ '%s'을(를) 포트폴리오에서 삭제했습니다.", name)
}

// -----------------------------------------------------------------------------

// Holding returns one holding
func (p *Portfolio) Holding(userID int64, name string) (models.MHolding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.holdings[userID][name]
	return h, ok
}

// -----------------------------------------------------------------------------

// Holdings returns the user's holdings in the order they were added
func (p *Portfolio) Holdings(userID int64) []models.MHolding {
	p.mu.RLock()
	list := make([]models.MHolding, 0, len(p.holdings[userID]))
	for _, h := range p.holdings[userID] {
		list = append(list, h)
	}
	p.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].AddedAt.Equal(list[j].AddedAt) {
			return list[i].Name < list[j].Name
		}
		return list[i].AddedAt.Before(list[j].AddedAt)
	})
	return list
}

// -----------------------------------------------------------------------------

func (p *Portfolio) Count(userID int64) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.holdings[userID])
}

// -----------------------------------------------------------------------------

// Users counts users holding at least one position
func (p *Portfolio) Users() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.holdings)
}

// -----------------------------------------------------------------------------

// View renders the whole portfolio
func (p *Portfolio) View(userID int64) string {
	list := p.Holdings(userID)
	if len(list) == 0 {
		return "❌ 포트폴리오가 비어있습니다.\n\n" +
			"/add <종목명> <매수가> <수량> 으로 추가하세요.\n" +
			"예: /add 삼성전자 71000 10"
	}

	var sb strings.Builder
	sb.WriteString("📊 내 포트폴리오\n\n")
	total := decimal.Zero
	for _, h := range list {
		fmt.Fprintf(&sb, "• %s\n  매수가: %s원 × %s주 = %s원\n\n",
			h.Name, utils.FormatDecimal(h.BuyPrice), utils.FormatNumber(h.Quantity), utils.FormatDecimal(h.TotalCost()))
		total = total.Add(h.TotalCost())
	}
	fmt.Fprintf(&sb, "💵 총 매수금액: %s원", utils.FormatDecimal(total))
	return sb.String()
}

// -----------------------------------------------------------------------------

// Decorate renders the profit/loss block for a holding at currentPrice, or ""
// when the user does not hold name
func (p *Portfolio) Decorate(userID int64, name string, currentPrice decimal.Decimal) string {
	h, ok := p.Holding(userID, name)
	if !ok || !currentPrice.IsPositive() {
		return ""
	}
	return ProfitReport(h, currentPrice)
}

// DecorateQuote renders the P/L block for a quote, matching the holding by the
// name the user asked for first and by the quoted display name second
func (p *Portfolio) DecorateQuote(userID int64, query string, q models.MQuote) string {
	if userID == 0 {
		return ""
	}
	for _, name := range []string{query, q.DisplayName} {
		if name == "" {
			continue
		}
		if block := p.Decorate(userID, name, q.Price); block != "" {
			return block
		}
	}
	return ""
}

// -----------------------------------------------------------------------------

// ProfitReport computes value, profit and rate for a holding
func ProfitReport(h models.MHolding, currentPrice decimal.Decimal) string {
	qty := decimal.NewFromInt(h.Quantity)
	cost := h.TotalCost()
	value := currentPrice.Mul(qty)
	profit := value.Sub(cost)

	rate := decimal.Zero
	if cost.IsPositive() {
		rate = profit.Div(cost).Mul(decimal.NewFromInt(100))
	}

	icon := "🔺"
	if profit.IsNegative() {
		icon = "🔻"
	}

	return fmt.Sprintf("\n💼 내 포트폴리오\n"+
		separator+"\n"+
		"매수가: %s원 × %s주\n"+
		"매수금액: %s원\n"+
		separator+"\n"+
		"현재가: %s원 × %s주\n"+
		"평가금액: %s원\n"+
		separator+"\n"+
		"%s 손익: %s원\n"+
		"%s 수익률: %s%%",
		utils.FormatDecimal(h.BuyPrice), utils.FormatNumber(h.Quantity),
		utils.FormatDecimal(cost),
		utils.FormatDecimal(currentPrice), utils.FormatNumber(h.Quantity),
		utils.FormatDecimal(value),
		icon, utils.FormatSigned(profit),
		icon, signedRate(rate))
}

// -----------------------------------------------------------------------------

func signedRate(rate decimal.Decimal) string {
	s := rate.StringFixed(2)
	if rate.IsPositive() {
		return "+" + s
	}
	return s
}
