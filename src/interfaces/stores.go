package interfaces

import "stock-chatbot/src/models"

// -----------------------------------------------------------------------------
// ISessionStore keeps each user's menu position.
// -----------------------------------------------------------------------------

type ISessionStore interface {
	Set(userID int64, state models.MState)
	Get(userID int64) models.MState
	Lookup(userID int64) (models.MSession, bool)
	Clear(userID int64)
	Refresh(userID int64)
}

// -----------------------------------------------------------------------------
// IResultCache keeps each user's latest search results for numbered selection.
// -----------------------------------------------------------------------------

type IResultCache interface {
	Save(userID int64, results []models.MSearchResult)
	GetByIndex(userID int64, index int) (models.MSearchResult, bool)
	HasValid(userID int64) bool
	Count(userID int64) int
	Clear(userID int64)
	PurgeExpired() int
}
