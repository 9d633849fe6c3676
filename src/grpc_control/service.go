package grpc_control

import (
	"context"
	"time"

	"stock-chatbot/src/cache"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/session"
	"stock-chatbot/src/subscription"
	"stock-chatbot/src/utils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SourceCounter reports how many quotes each upstream served
type SourceCounter interface {
	Counts() map[string]int64
}

// ControlService exposes the in-memory registries to operators
type ControlService struct {
	Sources   SourceCounter
	Sessions  *session.Store
	Cache     *cache.ResultCache
	Alerts    *subscription.AlertRegistry
	Monitors  *subscription.MonitorRegistry
	Portfolio *portfolio.Portfolio
	Market    *utils.MarketScheduler
	Logger    *logger.Logger
	now       utils.Clock
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	sessions *session.Store,
	resultCache *cache.ResultCache,
	alerts *subscription.AlertRegistry,
	monitors *subscription.MonitorRegistry,
	pf *portfolio.Portfolio,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Sessions:  sessions,
		Cache:     resultCache,
		Alerts:    alerts,
		Monitors:  monitors,
		Portfolio: pf,
		Logger:    log,
		now:       utils.SystemClock,
	}
}

// -----------------------------------------------------------------------------

// Status counts the live entries of every registry
func (s *ControlService) Status() models.MRegistryStatus {
	st := models.MRegistryStatus{
		Sessions:       s.Sessions.Len(),
		CachedResults:  s.Cache.Len(),
		Alerts:         s.Alerts.Len(),
		Monitors:       s.Monitors.Len(),
		PortfolioUsers: s.Portfolio.Users(),
		Timestamp:      s.now().UnixMilli(),
	}
	if s.Market != nil {
		st.MarketOpen = s.Market.KRXOpen()
	}
	return st
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.Status()
	quotes := map[string]any{}
	if s.Sources != nil {
		for name, n := range s.Sources.Counts() {
			quotes[name] = n
		}
	}
	return toStruct(map[string]any{
		"sessions":        st.Sessions,
		"cached_results":  st.CachedResults,
		"alerts":          st.Alerts,
		"monitors":        st.Monitors,
		"portfolio_users": st.PortfolioUsers,
		"market_open":     st.MarketOpen,
		"timestamp":       st.Timestamp,
		"quotes_served":   quotes,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSubscriptions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	alerts := []any{}
	for _, a := range s.Alerts.Snapshot() {
		alerts = append(alerts, map[string]any{
			"user_id":       a.UserID,
			"symbol":        a.Symbol,
			"subscribed_at": a.SubscribedAt.Format(time.RFC3339),
		})
	}

	monitors := []any{}
	for _, m := range s.Monitors.Snapshot() {
		monitors = append(monitors, map[string]any{
			"user_id":      m.UserID,
			"symbol":       m.Symbol,
			"update_count": m.UpdateCount,
			"started_at":   m.StartedAt.Format(time.RFC3339),
		})
	}

	return toStruct(map[string]any{
		"snapshot_scope": s.Alerts.Scope(),
		"alerts":         alerts,
		"monitors":       monitors,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) PurgeCache(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	purged := s.Cache.PurgeExpired()
	s.Logger.Info("Control: purged %d expired result sets", purged)
	return toStruct(map[string]any{"purged": purged})
}

// -----------------------------------------------------------------------------

// ClearUser drops everything held for one user except the portfolio
func (s *ControlService) ClearUser(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	userID := req.GetValue()
	if userID == 0 {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}

	s.Sessions.Clear(userID)
	s.Cache.Clear(userID)
	alertRemoved, _ := s.Alerts.Unsubscribe(userID)
	monitorStopped, _ := s.Monitors.Stop(userID)

	s.Logger.Info("Control: cleared user %d (alert %v, monitor %v)", userID, alertRemoved, monitorStopped)
	return toStruct(map[string]any{
		"user_id":         userID,
		"alert_removed":   alertRemoved,
		"monitor_stopped": monitorStopped,
	})
}

// -----------------------------------------------------------------------------

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
