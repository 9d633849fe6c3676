package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stock-chatbot/src/cache"
	"stock-chatbot/src/dispatcher"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/session"
	"stock-chatbot/src/subscription"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, userID int64, text string) string {
	return "echo: " + text
}

type fakeJournal struct {
	entries []models.MJournalEntry
	asked   int64
}

func (j *fakeJournal) Initialize(context.Context) error                             { return nil }
func (j *fakeJournal) Record(context.Context, []models.MJournalEntry) error         { return nil }
func (j *fakeJournal) CleanupOldData(context.Context, time.Duration) (int64, error) { return 0, nil }
func (j *fakeJournal) Close() error                                                 { return nil }

func (j *fakeJournal) Recent(_ context.Context, userID int64, limit int) ([]models.MJournalEntry, error) {
	j.asked = userID
	if len(j.entries) > limit {
		return j.entries[:limit], nil
	}
	return j.entries, nil
}

type fixedStatus struct{}

func (fixedStatus) Status() models.MRegistryStatus {
	return models.MRegistryStatus{Sessions: 2, Alerts: 1}
}

func newTestServer(t *testing.T) (*APIServer, *httptest.Server) {
	t.Helper()
	cfg := &models.MConfig{LogLevel: "INFO"}
	s := NewAPIServer(cfg, echoDispatcher{}, logger.NewNop("api"))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func connections(s *APIServer) int {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return len(s.clients)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 0.0, body["connections"])
}

func TestStatus(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.Status = fixedStatus{}
	resp, err = http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st models.MRegistryStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 1, st.Alerts)
}

func TestPostMessage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/message", "application/json", bytes.NewBufferString(`{"user_id": 5, "text": "/start"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "echo: /start", body["response"])

	bad, err := http.Post(ts.URL+"/api/message", "application/json", bytes.NewBufferString(`{"user_id": 5}`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

type okDiagnostics struct{}

func (okDiagnostics) Run(context.Context) string   { return "diagnostics ran" }
func (okDiagnostics) Quick(context.Context) string { return "quicktest ran" }

type countingTasks struct{ started int }

func (c *countingTasks) Start(int64, string) (string, error) {
	c.started++
	return "task-1", nil
}

func TestPostMessageNeverPrivileged(t *testing.T) {
	const developer int64 = 777

	cfg := &models.MConfig{
		LogLevel:         "INFO",
		PrivilegedUserID: developer,
		CLI:              models.MCLIConfig{Enabled: true},
	}
	d := dispatcher.NewDispatcher(cfg,
		session.NewStore(10*time.Minute, time.Now),
		cache.NewResultCache(5*time.Minute, time.Now),
		nil,
		portfolio.NewPortfolio(time.Now),
		subscription.NewAlertRegistry(subscription.ScopeSymbol, time.Now),
		subscription.NewMonitorRegistry(time.Now),
		logger.NewNop("dispatcher"))
	d.Diagnostics = okDiagnostics{}
	tasks := &countingTasks{}
	d.Tasks = tasks

	// The same identity passes the gate on an authenticated transport
	require.Equal(t, "diagnostics ran", d.Dispatch(context.Background(), developer, "/test"))

	s := NewAPIServer(cfg, d, logger.NewNop("api"))
	ts := httptest.NewServer(s.Handler())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
		ts.Close()
	}()

	for _, text := range []string{"/test", "/quicktest", "/cli id"} {
		payload, err := json.Marshal(map[string]any{"user_id": developer, "text": text})
		require.NoError(t, err)

		resp, err := http.Post(ts.URL+"/api/message", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, "❌ 이 명령어는 개발자만 사용할 수 있습니다.", body["response"], text)
	}
	assert.Zero(t, tasks.started)
}

func TestJournal(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/journal")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	j := &fakeJournal{entries: []models.MJournalEntry{
		{UserID: 3, Kind: models.JournalAlert, Symbol: "삼성전자"},
		{UserID: 3, Kind: models.JournalMonitor, Symbol: "카카오"},
	}}
	s.Journal = j

	resp, err = http.Get(ts.URL + "/api/journal?user_id=3&limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Entries []models.MJournalEntry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Entries, 1)
	assert.Equal(t, int64(3), j.asked)

	for _, query := range []string{"", "?limit=10", "?user_id=abc", "?user_id=0"} {
		bad, err := http.Get(ts.URL + "/api/journal" + query)
		require.NoError(t, err)
		bad.Body.Close()
		assert.Equal(t, http.StatusBadRequest, bad.StatusCode, query)
	}
	assert.Equal(t, int64(3), j.asked)
}

func TestWebSocketRequiresUser(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPublishReachesOnlyOwner(t *testing.T) {
	s, ts := newTestServer(t)
	alice := dial(t, ts, "?user_id=1")
	bob := dial(t, ts, "?user_id=2")
	require.Eventually(t, func() bool { return connections(s) == 2 }, time.Second, 10*time.Millisecond)

	s.Publish(models.MDelivery{UserID: 1, Text: "🔔 알림", Timestamp: 42})

	var got models.MDelivery
	alice.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, alice.ReadJSON(&got))
	assert.Equal(t, "🔔 알림", got.Text)

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestStopDisconnectsClients(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, "?user_id=1")
	require.Eventually(t, func() bool { return connections(s) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	require.Eventually(t, func() bool { return connections(s) == 0 }, time.Second, 10*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	s.Publish(models.MDelivery{UserID: 1, Text: "late"})
}
