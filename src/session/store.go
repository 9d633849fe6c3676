package session

import (
	"sync"
	"time"

	"stock-chatbot/src/models"
	"stock-chatbot/src/utils"
)

// DefaultTTL is how long a menu position survives without a write
const DefaultTTL = 10 * time.Minute

// Store keeps each user's menu position. Expiry is checked lazily on read;
// reads never modify the map.
type Store struct {
	ttl      time.Duration
	now      utils.Clock
	mu       sync.RWMutex
	sessions map[int64]models.MSession
}

// -----------------------------------------------------------------------------

func NewStore(ttl time.Duration, clock utils.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = utils.SystemClock
	}
	return &Store{
		ttl:      ttl,
		now:      clock,
		sessions: make(map[int64]models.MSession),
	}
}

// -----------------------------------------------------------------------------

// Set writes the user's state and stamps it
func (s *Store) Set(userID int64, state models.MState) {
	s.mu.Lock()
	s.sessions[userID] = models.MSession{State: state, LastTouched: s.now()}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get returns the live state, or MAIN when the session is absent or expired
func (s *Store) Get(userID int64) models.MState {
	if sess, ok := s.Lookup(userID); ok {
		return sess.State
	}
	return models.AtLevel(models.LevelMain)
}

// -----------------------------------------------------------------------------

// Lookup returns the session only when it exists and has not expired
func (s *Store) Lookup(userID int64) (models.MSession, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()

	if !ok || utils.IsExpired(sess.LastTouched, s.now(), s.ttl) {
		return models.MSession{}, false
	}
	return sess, true
}

// -----------------------------------------------------------------------------

func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Refresh re-stamps an existing entry and does nothing otherwise
func (s *Store) Refresh(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.LastTouched = s.now()
		s.sessions[userID] = sess
	}
}

// -----------------------------------------------------------------------------

// Len counts live sessions
func (s *Store) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sess := range s.sessions {
		if !utils.IsExpired(sess.LastTouched, now, s.ttl) {
			n++
		}
	}
	return n
}
