package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(retries int) *AsyncNetworkManager {
	cfg := &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 2, MaxRetries: retries, UserAgent: "test-agent"}}
	nm := NewAsyncNetworkManager(cfg, logger.NewNop("net"))
	nm.backoff = time.Millisecond
	return nm
}

func TestGetSendsParamsAndAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SERVICE_ITEM:005930", r.URL.Query().Get("query"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := newManager(0).Get(context.Background(), srv.URL+"/api/realtime", map[string]string{"query": "SERVICE_ITEM:005930"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newManager(2).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newManager(3).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var ne *helpers.NetworkError
	assert.True(t, errors.As(err, &ne))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newManager(0).Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBlockedProxyIsBenched(t *testing.T) {
	var refused, served atomic.Int32
	blocking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refused.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer blocking.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		_, _ = w.Write([]byte("via proxy"))
	}))
	defer working.Close()

	nm := newManager(1)
	nm.Proxies = helpers.NewProxyPool([]string{blocking.URL, working.URL}, "test-agent", time.Minute)

	body, err := nm.Get(context.Background(), "http://quotes.invalid/api", nil)
	require.NoError(t, err)
	assert.Equal(t, "via proxy", string(body))

	_, err = nm.Get(context.Background(), "http://quotes.invalid/api", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), refused.Load())
	assert.Equal(t, int32(2), served.Load())
}
