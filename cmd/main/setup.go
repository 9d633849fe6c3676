package main

import (
	"context"
	"fmt"
	"time"

	"stock-chatbot/src/cache"
	"stock-chatbot/src/clitask"
	"stock-chatbot/src/config"
	datasource "stock-chatbot/src/data_source"
	"stock-chatbot/src/diagnostics"
	"stock-chatbot/src/dispatcher"
	"stock-chatbot/src/grpc_control"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/network"
	"stock-chatbot/src/notifier"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/scheduler"
	"stock-chatbot/src/session"
	"stock-chatbot/src/storage"
	"stock-chatbot/src/subscription"
	"stock-chatbot/src/utils"
)

// app holds every long-lived component of one process
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	journal    interfaces.IJournal
	quotes     *datasource.MultiSourceManager
	sessions   *session.Store
	cache      *cache.ResultCache
	portfolio  *portfolio.Portfolio
	alerts     *subscription.AlertRegistry
	monitors   *subscription.MonitorRegistry
	market     *utils.MarketScheduler
	notifier   *notifier.Composite
	scheduler  *scheduler.Scheduler
	tasks      *clitask.Runner
	dispatcher *dispatcher.Dispatcher
	control    *grpc_control.ControlService
}

// -----------------------------------------------------------------------------

// buildApp wires the components. Delivery channels are added by the caller
// before start.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	mc := cfg.MConfig
	appLogger := logger.NewLogger(mc, mc.Name)

	journal, err := setupJournal(ctx, mc, appLogger)
	if err != nil {
		return nil, err
	}

	networkManager := setupNetwork(mc)
	quotes := datasource.NewDefaultManager(mc, networkManager)
	appLogger.Info("Directory holds %d symbols", len(quotes.Directory()))
	registerDirectory(ctx, journal, quotes, appLogger)

	a := &app{
		cfg:       cfg,
		log:       appLogger,
		journal:   journal,
		quotes:    quotes,
		sessions:  session.NewStore(time.Duration(mc.Session.TTLMinutes)*time.Minute, nil),
		cache:     cache.NewResultCache(time.Duration(mc.Cache.TTLMinutes)*time.Minute, nil),
		portfolio: portfolio.NewPortfolio(nil),
		alerts:    subscription.NewAlertRegistry(mc.Alert.SnapshotScope, nil),
		monitors:  subscription.NewMonitorRegistry(nil),
		market:    utils.NewMarketScheduler(logger.NewLogger(mc, "MarketScheduler"), nil),
		notifier:  notifier.NewComposite(logger.NewLogger(mc, "Notifier")),
	}

	a.scheduler = setupScheduler(a)
	a.tasks = clitask.NewRunner(mc, a.notifier, logger.NewLogger(mc, "CLITask"))
	a.tasks.Journal = journal
	a.dispatcher = setupDispatcher(a)

	a.control = grpc_control.NewControlService(a.sessions, a.cache, a.alerts, a.monitors, a.portfolio,
		logger.NewLogger(mc, "ControlService"))
	a.control.Market = a.market
	a.control.Sources = quotes

	return a, nil
}

// -----------------------------------------------------------------------------

// close stops background work and releases storage
func (a *app) close() {
	a.scheduler.Stop()
	a.tasks.Shutdown()
	if err := a.journal.Close(); err != nil {
		a.log.Error("Journal close failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

// setupJournal opens and migrates the journal. A postgres journal may also
// extend the symbol directory from storage.symbols_ref.
func setupJournal(ctx context.Context, cfg *models.MConfig, appLogger *logger.Logger) (interfaces.IJournal, error) {
	journal, err := storage.NewJournal(cfg, logger.NewLogger(cfg, "Journal"))
	if err != nil {
		appLogger.Error("Failed to init journal: %v", err)
		return nil, err
	}
	if err := journal.Initialize(ctx); err != nil {
		appLogger.Error("Failed to migrate journal: %v", err)
		journal.Close()
		return nil, err
	}

	if pg, ok := journal.(*storage.PostgresDB); ok && cfg.Storage.SymbolsRef != "" {
		extra, err := pg.LoadSymbols(ctx, cfg.Storage.SymbolsRef)
		if err != nil {
			appLogger.Warning("Symbol table not loaded: %v", err)
		} else {
			cfg.Symbols = append(cfg.Symbols, extra...)
		}
	}
	return journal, nil
}

func registerDirectory(ctx context.Context, journal interfaces.IJournal, quotes *datasource.MultiSourceManager, appLogger *logger.Logger) {
	pg, ok := journal.(*storage.PostgresDB)
	if !ok {
		return
	}
	if err := pg.RegisterSymbols(ctx, quotes.Name(), quotes.Directory()); err != nil {
		appLogger.Warning("Symbol registration failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(cfg *models.MConfig) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(cfg, logger.NewLogger(cfg, "NetworkManager"))
}

// -----------------------------------------------------------------------------

func setupScheduler(a *app) *scheduler.Scheduler {
	mc := a.cfg.MConfig
	s := scheduler.NewScheduler(mc, a.quotes, a.alerts, a.monitors, a.notifier, logger.NewLogger(mc, "Scheduler"))
	s.Cache = a.cache
	s.Portfolio = a.portfolio
	s.Journal = a.journal
	s.Market = a.market
	return s
}

// -----------------------------------------------------------------------------

func setupDispatcher(a *app) *dispatcher.Dispatcher {
	mc := a.cfg.MConfig
	d := dispatcher.NewDispatcher(mc, a.sessions, a.cache, a.quotes, a.portfolio, a.alerts, a.monitors,
		logger.NewLogger(mc, "Dispatcher"))
	d.Market = a.market
	d.Diagnostics = diagnostics.NewDiagnostics(mc, a.quotes, a.cache, logger.NewLogger(mc, "Diagnostics"))
	d.Tasks = a.tasks
	return d
}

// -----------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
