package interfaces

import "context"

// -----------------------------------------------------------------------------
// INotifier delivers text to a user. Implementations split long text and log
// their own failures; the returned error is informational.
// -----------------------------------------------------------------------------

type INotifier interface {
	Deliver(ctx context.Context, userID int64, text string) error
}
