package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonicnav/riskengine/internal/advisor"
	"github.com/sonicnav/riskengine/internal/aggregator"
	"github.com/sonicnav/riskengine/internal/alerting"
	"github.com/sonicnav/riskengine/internal/analytics"
	"github.com/sonicnav/riskengine/internal/analyzer"
	"github.com/sonicnav/riskengine/internal/cache"
	"github.com/sonicnav/riskengine/internal/catalog"
	"github.com/sonicnav/riskengine/internal/config"
	"github.com/sonicnav/riskengine/internal/datafetcher"
	"github.com/sonicnav/riskengine/internal/engine"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/protocol"
	"github.com/sonicnav/riskengine/internal/state"
	"github.com/sonicnav/riskengine/internal/types"
	"github.com/sonicnav/riskengine/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the risk engine service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Risk Engine Starting...")

	ctx := context.Background()
	params := config.DefaultRiskParameters

	// Optional Postgres archive for monitoring cycles and alert history
	var observer alerting.CycleObserver
	if config.ArchiveEnabled {
		dbSettings := config.DBConfigFromEnv()
		dbCfg := state.DBConfig{
			Host: dbSettings.Host, Port: dbSettings.Port,
			User: dbSettings.User, Password: dbSettings.Password,
			DBName: dbSettings.DBName, SSLMode: dbSettings.SSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize archive database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure archive schema")
		}
		observer = state.Archive{}
		log.Info().Msg("Cycle archive enabled")
	}

	// Optional Redis last-known-good cache
	var lkg *cache.Store
	if config.RedisAddr != "" {
		var err error
		lkg, err = cache.New(ctx, config.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", config.RedisAddr).Msg("Failed to connect to redis")
		}
		defer lkg.Close()
	}

	// --- 2. External Data Clients ---
	oracle := datafetcher.NewOracleClient(config.OracleAPI)
	chain := datafetcher.NewChainClient(config.ChainAPI)
	lendingSource := datafetcher.NewRESTMarketSource("lending", config.LendingAPI)
	stakingSource := datafetcher.NewRESTMarketSource("staking", config.StakingAPI)

	var sink datafetcher.NotificationSink = datafetcher.LogSink{}
	if config.WebhookURL != "" {
		sink = datafetcher.NewWebhookSink(config.WebhookURL)
	}

	// --- 3. Protocol Adapter Registry ---
	registry := protocol.NewRegistry()

	lendingAdapter, err := protocol.NewLendingAdapter(protocol.LendingConfig{
		Platform:  "lending",
		Source:    lendingSource,
		Positions: chain.PositionsFor("lending"),
		Submitter: chain,
		Cache:     lkg,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build lending adapter")
	}
	registry.Register(lendingAdapter)

	stakingAdapter, err := protocol.NewStakingAdapter(protocol.StakingConfig{
		Platform:  "staking",
		Source:    stakingSource,
		Positions: chain.PositionsFor("staking"),
		Submitter: chain,
		Cache:     lkg,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build staking adapter")
	}
	registry.Register(stakingAdapter)

	// --- 4. Core Components ---
	positionAggregator, err := aggregator.New(registry, params.AdapterCallTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build position aggregator")
	}

	market, err := analyzer.NewMarketAnalyzer(analyzer.MarketAnalyzerConfig{
		Oracle:         oracle,
		Sources:        []datafetcher.MarketDataSource{lendingSource, stakingSource},
		ReferenceFeeds: []string{config.ReferenceFeedID},
		Params:         params,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build market analyzer")
	}

	strategyCatalog := catalog.New(nil)
	if err := seedCatalog(strategyCatalog, os.Getenv("STRATEGIES_FILE")); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed strategy catalog")
	}

	alertStore := alerting.NewStore(nil)
	monitor, err := alerting.NewEngine(alerting.EngineConfig{
		Positions:  positionAggregator,
		Market:     market,
		Strategies: strategyCatalog,
		Store:      alertStore,
		Sink:       sink,
		Observer:   observer,
		Params:     params,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build monitoring engine")
	}

	priceAlerts, err := alerting.NewPriceAlertService(oracle, sink, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build price alert service")
	}

	historyAnalyzer, err := analytics.NewAnalyzer(analytics.AnalyzerConfig{
		Transactions: chain,
		Prices:       chain,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build history analyzer")
	}

	// --- 5. Engine Facade ---
	riskEngine, err := engine.New(engine.Config{
		Registry:    registry,
		Aggregator:  positionAggregator,
		Market:      market,
		Catalog:     strategyCatalog,
		Monitor:     monitor,
		Alerts:      alertStore,
		PriceAlerts: priceAlerts,
		Advisor:     advisor.NewAdvisor(params),
		Analytics:   historyAnalyzer,
		Params:      params,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create risk engine")
	}

	// --- 6. Background Jobs ---
	scheduler := datafetcher.NewScheduler()
	if err := scheduler.AddJob("*/1 * * * *", "price_alert_evaluation", func() error {
		return priceAlerts.Evaluate(ctx)
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule price alert evaluation")
	}
	if lkg != nil {
		if err := scheduler.AddJob("*/5 * * * *", "cache_warm", func() error {
			return datafetcher.WarmCache(ctx, lkg, oracle,
				[]string{config.ReferenceFeedID},
				[]datafetcher.MarketDataSource{lendingSource, stakingSource})
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule cache warming")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// --- 7. Web Server ---
	webServer := web.NewWebServer(riskEngine, config.WebPort)
	go func() {
		log.Info().Str("port", config.WebPort).Msg("Starting risk engine API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	// --- 8. Wait for Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down...")
	riskEngine.Shutdown()
}

// seedCatalog registers the strategies from a JSON file. A missing path
// starts the service with an empty catalog.
func seedCatalog(cat *catalog.Catalog, path string) error {
	if path == "" {
		log.Info().Msg("No strategies file configured, starting with an empty catalog")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var strategies []types.Strategy
	if err := json.Unmarshal(data, &strategies); err != nil {
		return err
	}

	for _, strategy := range strategies {
		if err := cat.Register(strategy); err != nil {
			return err
		}
	}
	log.Info().Int("count", len(strategies)).Str("file", path).Msg("Strategy catalog seeded")
	return nil
}
