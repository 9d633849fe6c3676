package cache

import (
	"sync"
	"time"

	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"
)

// DefaultTTL is how long search results stay selectable by number
const DefaultTTL = 5 * time.Minute

type entry struct {
	results   []models.MSearchResult
	createdAt time.Time
}

// ResultCache holds each user's latest search results. Lazy expiry on read is
// authoritative; PurgeExpired only reclaims memory.
type ResultCache struct {
	ttl     time.Duration
	now     utils.Clock
	mu      sync.RWMutex
	entries map[int64]entry
}

// -----------------------------------------------------------------------------

func NewResultCache(ttl time.Duration, clock utils.Clock) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = utils.SystemClock
	}
	return &ResultCache{
		ttl:     ttl,
		now:     clock,
		entries: make(map[int64]entry),
	}
}

// -----------------------------------------------------------------------------

// Save replaces the user's results
func (c *ResultCache) Save(userID int64, results []models.MSearchResult) {
	copied := make([]models.MSearchResult, len(results))
	copy(copied, results)

	c.mu.Lock()
	c.entries[userID] = entry{results: copied, createdAt: c.now()}
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (c *ResultCache) live(userID int64) ([]models.MSearchResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || utils.IsExpired(e.createdAt, c.now(), c.ttl) {
		return nil, false
	}
	return e.results, true
}

// -----------------------------------------------------------------------------

// GetByIndex returns the 1-based index-th result
func (c *ResultCache) GetByIndex(userID int64, index int) (models.MSearchResult, bool) {
	results, ok := c.live(userID)
	if !ok || index < 1 || index > len(results) {
		return models.MSearchResult{}, false
	}
	return results[index-1], true
}

// -----------------------------------------------------------------------------

func (c *ResultCache) HasValid(userID int64) bool {
	_, ok := c.live(userID)
	return ok
}

// -----------------------------------------------------------------------------

func (c *ResultCache) Count(userID int64) int {
	results, _ := c.live(userID)
	return len(results)
}

// -----------------------------------------------------------------------------

func (c *ResultCache) Clear(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// PurgeExpired drops every expired entry and returns how many were removed
func (c *ResultCache) PurgeExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for userID, e := range c.entries {
		if utils.IsExpired(e.createdAt, now, c.ttl) {
			delete(c.entries, userID)
			removed++
		}
	}
	return removed
}

// -----------------------------------------------------------------------------

// Len counts stored entries, expired or not
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
