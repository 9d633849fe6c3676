package subscription

import (
	"fmt"
	"sort"
	"sync"

	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"
)

// MonitorRegistry holds one monitor subscription per user with its tick count
type MonitorRegistry struct {
	now  utils.Clock
	mu   sync.RWMutex
	subs map[int64]models.MMonitorSubscription
}

// -----------------------------------------------------------------------------

func NewMonitorRegistry(clock utils.Clock) *MonitorRegistry {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &MonitorRegistry{
		now:  clock,
		subs: make(map[int64]models.MMonitorSubscription),
	}
}

// -----------------------------------------------------------------------------

// Start replaces the user's monitor and resets the counter to 0
func (r *MonitorRegistry) Start(userID int64, symbol string, intervalSeconds int) string {
	r.mu.Lock()
	r.subs[userID] = models.MMonitorSubscription{UserID: userID, Symbol: symbol, StartedAt: r.now()}
	r.mu.Unlock()

	return fmt.Sprintf("🔄 '%s' 연속 모니터링을 시작합니다.\n"+
		"%d초마다 최신 정보를 전송합니다.\n"+
		"💼 포트폴리오 정보도 함께 표시됩니다.\n\n"+
		"중지하려면 /stop 입력", symbol, intervalSeconds)
}

// -----------------------------------------------------------------------------

// Stop removes the user's monitor and reports whether one existed
func (r *MonitorRegistry) Stop(userID int64) (bool, string) {
	r.mu.Lock()
	sub, ok := r.subs[userID]
	delete(r.subs, userID)
	r.mu.Unlock()

	if !ok {
		return false, "❌ 진행 중인 모니터링이 없습니다."
	}
	return true, fmt.Sprintf("⏹️ '%s' 모니터링을 중지했습니다.\n총 %d회 업데이트되었습니다.", sub.Symbol, sub.UpdateCount)
}

// -----------------------------------------------------------------------------

// Increment bumps the counter of a still-active (userID, symbol) entry. It
// returns false when the user stopped or switched symbols in the meantime.
func (r *MonitorRegistry) Increment(userID int64, symbol string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[userID]
	if !ok || sub.Symbol != symbol {
		return 0, false
	}
	sub.UpdateCount++
	r.subs[userID] = sub
	return sub.UpdateCount, true
}

// -----------------------------------------------------------------------------

func (r *MonitorRegistry) Get(userID int64) (models.MMonitorSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[userID]
	return sub, ok
}

// -----------------------------------------------------------------------------

// Status renders the user's monitor details
func (r *MonitorRegistry) Status(userID int64, intervalSeconds int) string {
	sub, ok := r.Get(userID)
	if !ok {
		return "❌ 진행 중인 모니터링이 없습니다."
	}
	return fmt.Sprintf("🔄 현재 모니터링 중: %s\n"+
		"⏱️ 업데이트 주기: %d초\n"+
		"📊 업데이트 횟수: %d회\n"+
		"💼 포트폴리오 정보 포함\n\n"+
		"중지하려면 /stop 입력", sub.Symbol, intervalSeconds, sub.UpdateCount)
}

// -----------------------------------------------------------------------------

// Snapshot copies the registry for iteration outside the lock, ordered by user
func (r *MonitorRegistry) Snapshot() []models.MMonitorSubscription {
	r.mu.RLock()
	list := make([]models.MMonitorSubscription, 0, len(r.subs))
	for _, s := range r.subs {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

// -----------------------------------------------------------------------------

func (r *MonitorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
