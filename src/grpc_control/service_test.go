package grpc_control

import (
	"context"
	"net"
	"testing"
	"time"

	"stock-chatbot/src/cache"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/session"
	"stock-chatbot/src/subscription"
	"stock-chatbot/src/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fixture struct {
	svc    *ControlService
	client *ControlClient
	clock  *utils.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := utils.NewManualClock(time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC))

	svc := NewControlService(
		session.NewStore(session.DefaultTTL, clock.Now),
		cache.NewResultCache(cache.DefaultTTL, clock.Now),
		subscription.NewAlertRegistry(subscription.ScopeUser, clock.Now),
		subscription.NewMonitorRegistry(clock.Now),
		portfolio.NewPortfolio(clock.Now),
		logger.NewNop("control"),
	)
	svc.now = clock.Now

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterControlServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return &fixture{svc: svc, client: NewControlClient(conn), clock: clock}
}

func TestGetStatusCountsRegistries(t *testing.T) {
	f := newFixture(t)
	f.svc.Sessions.Set(1, models.AtLevel(models.LevelPortfolio))
	f.svc.Cache.Save(1, []models.MSearchResult{{Name: "삼성전자", Code: "005930", Market: "KOSPI"}})
	f.svc.Alerts.Subscribe(1, "삼성전자", "")
	f.svc.Monitors.Start(2, "카카오", 10)
	f.svc.Portfolio.Add(2, "카카오", decimal.NewFromInt(41000), 3)

	out, err := f.client.GetStatus(context.Background())
	require.NoError(t, err)

	fields := out.GetFields()
	assert.Equal(t, 1.0, fields["sessions"].GetNumberValue())
	assert.Equal(t, 1.0, fields["cached_results"].GetNumberValue())
	assert.Equal(t, 1.0, fields["alerts"].GetNumberValue())
	assert.Equal(t, 1.0, fields["monitors"].GetNumberValue())
	assert.Equal(t, 1.0, fields["portfolio_users"].GetNumberValue())
	assert.False(t, fields["market_open"].GetBoolValue())
	assert.Empty(t, fields["quotes_served"].GetStructValue().GetFields())

	f.svc.Sources = fixedCounts{"naver": 3}
	out, err = f.client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.GetFields()["quotes_served"].GetStructValue().GetFields()["naver"].GetNumberValue())
}

type fixedCounts map[string]int64

func (c fixedCounts) Counts() map[string]int64 { return c }

func TestListSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.svc.Alerts.Subscribe(7, "삼성전자", "")
	f.svc.Monitors.Start(8, "카카오", 10)
	f.svc.Monitors.Increment(8, "카카오")

	out, err := f.client.ListSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, subscription.ScopeUser, out.GetFields()["snapshot_scope"].GetStringValue())

	alerts := out.GetFields()["alerts"].GetListValue().GetValues()
	require.Len(t, alerts, 1)
	alert := alerts[0].GetStructValue().GetFields()
	assert.Equal(t, 7.0, alert["user_id"].GetNumberValue())
	assert.Equal(t, "삼성전자", alert["symbol"].GetStringValue())

	monitors := out.GetFields()["monitors"].GetListValue().GetValues()
	require.Len(t, monitors, 1)
	assert.Equal(t, 1.0, monitors[0].GetStructValue().GetFields()["update_count"].GetNumberValue())
}

func TestPurgeCacheDropsExpired(t *testing.T) {
	f := newFixture(t)
	f.svc.Cache.Save(1, []models.MSearchResult{{Name: "삼성전자", Code: "005930"}})
	f.clock.Advance(cache.DefaultTTL + time.Second)
	f.svc.Cache.Save(2, []models.MSearchResult{{Name: "카카오", Code: "035720"}})

	out, err := f.client.PurgeCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.GetFields()["purged"].GetNumberValue())
	assert.True(t, f.svc.Cache.HasValid(2))
}

func TestClearUser(t *testing.T) {
	f := newFixture(t)
	f.svc.Sessions.Set(5, models.AtLevel(models.LevelMarketInfo))
	f.svc.Alerts.Subscribe(5, "삼성전자", "")
	f.svc.Portfolio.Add(5, "삼성전자", decimal.NewFromInt(71000), 10)

	out, err := f.client.ClearUser(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, out.GetFields()["alert_removed"].GetBoolValue())
	assert.False(t, out.GetFields()["monitor_stopped"].GetBoolValue())

	_, ok := f.svc.Sessions.Lookup(5)
	assert.False(t, ok)
	assert.Equal(t, 1, f.svc.Portfolio.Count(5))

	_, err = f.client.ClearUser(context.Background(), 0)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
