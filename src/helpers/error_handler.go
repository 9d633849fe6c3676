package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-chatbot/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type BotError struct {
	Message string
	Cause   error
}

func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BotError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks at call sites
type ConfigurationError struct{ BotError }
type NetworkError struct{ BotError }
type QuoteError struct{ BotError }
type DeliveryError struct{ BotError }
type DatabaseError struct{ BotError }
type ValidationError struct{ BotError }

// -----------------------------------------------------------------------------

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{BotError{Message: msg, Cause: cause}}
}

func NewQuoteError(msg string, cause error) error {
	return &QuoteError{BotError{Message: msg, Cause: cause}}
}

func NewDeliveryError(msg string, cause error) error {
	return &DeliveryError{BotError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{BotError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string) error {
	return &ValidationError{BotError{Message: msg}}
}

// -----------------------------------------------------------------------------

// UserMessage returns the innermost readable reason for an error, trimmed of
// wrapping context, for showing to chat users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "응답 시간 초과"
	}
	var qe *QuoteError
	if errors.As(err, &qe) {
		return qe.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxAttempts times with exponential backoff.
// It stops early when ctx is done or fn returns a ValidationError.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		lastErr = err
		var ve *ValidationError
		if errors.As(err, &ve) || attempt == maxAttempts-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxAttempts, operation, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
