package subscription

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"
)

// Snapshot scopes
const (
	ScopeSymbol = "symbol"
	ScopeUser   = "user"
)

// AlertRegistry holds one alert subscription per user plus the last quote
// text observed for change detection. With ScopeSymbol every user on the
// same symbol shares one snapshot.
type AlertRegistry struct {
	scope     string
	now       utils.Clock
	mu        sync.RWMutex
	subs      map[int64]models.MAlertSubscription
	snapshots map[string]string
}

// -----------------------------------------------------------------------------

func NewAlertRegistry(scope string, clock utils.Clock) *AlertRegistry {
	if scope != ScopeUser {
		scope = ScopeSymbol
	}
	if clock == nil {
		clock = utils.SystemClock
	}
	return &AlertRegistry{
		scope:     scope,
		now:       clock,
		subs:      make(map[int64]models.MAlertSubscription),
		snapshots: make(map[string]string),
	}
}

// -----------------------------------------------------------------------------

func (r *AlertRegistry) Scope() string {
	return r.scope
}

// -----------------------------------------------------------------------------

func (r *AlertRegistry) snapshotKey(userID int64, symbol string) string {
	if r.scope == ScopeUser {
		return strconv.FormatInt(userID, 10) + "|" + symbol
	}
	return symbol
}

// -----------------------------------------------------------------------------

// Subscribe replaces the user's alert. A non-empty seed becomes the snapshot
// so the first sweep only fires on a real change.
func (r *AlertRegistry) Subscribe(userID int64, symbol, seed string) string {
	r.mu.Lock()
	if prev, ok := r.subs[userID]; ok && prev.Symbol != symbol && r.scope == ScopeUser {
		delete(r.snapshots, r.snapshotKey(userID, prev.Symbol))
	}
	r.subs[userID] = models.MAlertSubscription{UserID: userID, Symbol: symbol, SubscribedAt: r.now()}
	if seed != "" {
		r.snapshots[r.snapshotKey(userID, symbol)] = seed
	}
	r.mu.Unlock()

	return fmt.Sprintf("✅ '%s' 실시간 알림이 설정되었습니다.\n가격 변동 시 자동으로 알림을 받습니다.", symbol)
}

// -----------------------------------------------------------------------------

// Unsubscribe removes the user's alert and reports whether one existed
func (r *AlertRegistry) Unsubscribe(userID int64) (bool, string) {
	r.mu.Lock()
	sub, ok := r.subs[userID]
	delete(r.subs, userID)
	if ok && r.scope == ScopeUser {
		delete(r.snapshots, r.snapshotKey(userID, sub.Symbol))
	}
	r.mu.Unlock()

	if !ok {
		return false, "구독 중인 종목이 없습니다."
	}
	return true, fmt.Sprintf("❌ '%s' 알림이 해제되었습니다.", sub.Symbol)
}

// -----------------------------------------------------------------------------

func (r *AlertRegistry) Get(userID int64) (models.MAlertSubscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[userID]
	return sub, ok
}

// -----------------------------------------------------------------------------

// Status renders the user's alert line
func (r *AlertRegistry) Status(userID int64) string {
	if sub, ok := r.Get(userID); ok {
		return "📌 현재 구독 중: " + sub.Symbol
	}
	return "구독 중인 종목이 없습니다."
}

// -----------------------------------------------------------------------------

// Snapshot copies the registry for iteration outside the lock, ordered by user
func (r *AlertRegistry) Snapshot() []models.MAlertSubscription {
	r.mu.RLock()
	list := make([]models.MAlertSubscription, 0, len(r.subs))
	for _, s := range r.subs {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

// -----------------------------------------------------------------------------

// Observe compares text with the stored snapshot for (userID, symbol). When it
// differs, including when no snapshot exists yet, it stores text and returns
// true.
func (r *AlertRegistry) Observe(userID int64, symbol, text string) bool {
	key := r.snapshotKey(userID, symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.snapshots[key]; ok && prev == text {
		return false
	}
	r.snapshots[key] = text
	return true
}

// -----------------------------------------------------------------------------

// LastObserved returns the stored snapshot for (userID, symbol)
func (r *AlertRegistry) LastObserved(userID int64, symbol string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.snapshots[r.snapshotKey(userID, symbol)]
	return text, ok
}

// -----------------------------------------------------------------------------

func (r *AlertRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
