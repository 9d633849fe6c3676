package helpers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stock-chatbot/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypesUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("fetch 005930: %w", NewNetworkError("request failed", cause))

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "request failed: connection refused", ne.Error())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "응답 시간 초과", UserMessage(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, "종목을 찾을 수 없습니다", UserMessage(fmt.Errorf("x: %w", NewQuoteError("종목을 찾을 수 없습니다", errors.New("empty")))))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewNop("test")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		res, err := RetryWithBackoff(context.Background(), log, "op", 3, time.Millisecond, func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("flaky")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, res)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		_, err := RetryWithBackoff(context.Background(), log, "op", 2, time.Millisecond, func(ctx context.Context) (string, error) {
			calls++
			return "", fmt.Errorf("fail %d", calls)
		})
		assert.EqualError(t, err, "fail 2")
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := RetryWithBackoff(context.Background(), log, "op", 5, time.Millisecond, func(ctx context.Context) (int, error) {
			calls++
			return 0, NewValidationError("bad input")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := RetryWithBackoff(ctx, log, "op", 5, time.Second, func(ctx context.Context) (int, error) {
			return 0, errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
