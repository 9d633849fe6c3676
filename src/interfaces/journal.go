package interfaces

import (
	"context"
	"time"

	"stock-chatbot/src/models"
)

// -----------------------------------------------------------------------------
// IJournal defines the contract for the delivery journal storage.
// -----------------------------------------------------------------------------

type IJournal interface {

	// Initialize sets up the database schema and tables.
	Initialize(ctx context.Context) error

	// Record appends entries in one transaction.
	Record(ctx context.Context, entries []models.MJournalEntry) error

	// Recent returns the newest entries for a user (all users when userID is 0).
	Recent(ctx context.Context, userID int64, limit int) ([]models.MJournalEntry, error)

	// CleanupOldData removes entries older than the retention window.
	CleanupOldData(ctx context.Context, retention time.Duration) (int64, error)

	// Close the database connection
	Close() error
}
