package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/app/scheduler"
	"buybot/internal/app/service"
	dexclient "buybot/internal/client"
	"buybot/internal/domain/entity"
	"buybot/internal/infrastructure/configloader"
	evmclient "buybot/internal/infrastructure/network/client"
	networkdefinition "buybot/internal/infrastructure/network/definition"
	"buybot/internal/infrastructure/notify"
	"buybot/internal/infrastructure/restapi"
	"buybot/internal/infrastructure/stream"
	"buybot/internal/infrastructure/telegram"
	"buybot/internal/infrastructure/watchlistloader"
	"buybot/internal/pkg/logger"
	"buybot/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yml"), "path to the YAML config file")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	if err := configloader.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}
	cfg, err := configloader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.InitZap(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger.Debug("Configuration loaded", "path", *configPath, "telegramDisabled", cfg.Telegram.Disabled, "serverDisabled", cfg.Server.Disabled)

	if err := run(cfg, zapLogger); err != nil {
		logger.Error("Buy bot stopped with error", "error", err)
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *configloader.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Buy bot starting",
		"chain", cfg.DEXScreener.ChainID,
		"pollingIntervalMs", cfg.Monitor.PollingIntervalMillis,
		"minBuyUsd", cfg.Monitor.MinBuyAmountUSD)

	m := metrics.New()
	networks := networkdefinition.NewNetworkDefinitionProvider(logger.Named("NetworkDefinitions"))

	dex := dexclient.NewDEXScreenerClient(dexclient.Config{
		BaseURL:             cfg.DEXScreener.BaseURL,
		Timeout:             cfg.RequestTimeout(),
		MaxTokensPerRequest: cfg.DEXScreener.MaxTokensPerBatchRequest,
		RequestsPerMinute:   cfg.DEXScreener.RequestsPerMinute,
	}, zapLogger, m)

	snapshots := service.NewSnapshotCache(dex, service.SnapshotCacheConfig{
		ChainID:      cfg.DEXScreener.ChainID,
		TTL:          cfg.CacheTTL(),
		MaxStale:     cfg.CacheMaxStale(),
		BatchSize:    cfg.DEXScreener.MaxTokensPerBatchRequest,
		FetchTimeout: cfg.RequestTimeout(),
	}, logger.Named("SnapshotCache"), m)

	registry := service.NewSubscriptionRegistry(cfg.Monitor.MinBuyAmountUSD, logger.Named("SubscriptionRegistry"), m)
	leaderboard := service.NewLeaderboardService(logger.Named("Leaderboard"), m)
	detector := service.NewBuyDetector(snapshots, service.NewTokenStateStore(), cfg.Monitor.MinBuyAmountUSD, logger.Named("BuyDetector"), m)

	if cfg.Watchlist.Path != "" {
		added, err := watchlistloader.NewWatchlistFileLoader(cfg.Watchlist.Path, logger.Named("Watchlist")).Seed(registry)
		if err != nil {
			return fmt.Errorf("seed watchlist: %w", err)
		}
		logger.Info("Watchlist seeded", "subscriptions", added)
	}

	var resolver port.TokenMetadataResolver
	if cfg.RPC.URL != "" {
		netDef, ok := networks.GetNetworkDefinitionByName(cfg.DEXScreener.ChainID)
		if !ok {
			netDef = entity.NetworkDefinition{Name: cfg.DEXScreener.ChainID, Identifier: cfg.DEXScreener.ChainID}
		}
		netDef.PrimaryRPCURL = cfg.RPC.URL
		netDef.FallbackRPCURLs = cfg.RPC.FallbackURLs
		resolver = evmclient.NewTokenResolverProvider(netDef, cfg.RPCTimeout(), logger.Named("TokenResolver"))
		logger.Info("On-chain token metadata enabled", "network", netDef.Name)
	}

	broadcaster := stream.NewWebSocketBroadcaster(logger.Named("WebSocket"), m)
	sinks := []port.EventSink{broadcaster}
	var kafkaPublisher *stream.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = stream.NewKafkaPublisher(stream.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		sinks = append(sinks, kafkaPublisher)
		logger.Info("Kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var (
		alerts port.AlertSink
		poller *telegram.Poller
	)
	if !cfg.Telegram.Disabled {
		tg := telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, zapLogger, m)
		chainName := cfg.DEXScreener.ChainID
		if def, ok := networks.GetNetworkDefinitionByName(chainName); ok {
			chainName = def.Name
		}
		commands := telegram.NewCommandHandler(tg, telegram.CommandDeps{
			Registry:      registry,
			Leaderboard:   leaderboard,
			Snapshots:     snapshots,
			Resolver:      resolver,
			DefaultMinUSD: cfg.Monitor.MinBuyAmountUSD,
			ChainName:     chainName,
		}, logger.Named("TelegramCommands"), m)
		alerts = telegram.NewNotifier(tg, networks, logger.Named("TelegramNotifier"))
		poller = telegram.NewPoller(tg, commands, cfg.Telegram.LongPollTimeoutSeconds, logger.Named("TelegramPoller"))
	} else {
		logger.Warn("Telegram disabled, alerts are only streamed")
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		QueueSize:   cfg.Notifier.QueueSize,
		Workers:     cfg.Notifier.Workers,
		SendTimeout: cfg.SendTimeout(),
	}, alerts, sinks, logger.Named("Dispatcher"), m)

	monitor := service.NewMonitorService(registry, snapshots, detector, leaderboard, dispatcher, service.MonitorConfig{
		MaxConcurrentChecks: cfg.Monitor.MaxConcurrentChecks,
		CheckTimeout:        cfg.CheckTimeout(),
		PrefetchBatch:       !cfg.Monitor.DisableBatchPrefetch,
	}, logger.Named("Monitor"), m)

	sched := scheduler.New(cfg.PollingInterval(), func(ctx context.Context) {
		monitor.RunBatch(ctx)
	}, logger.Named("Scheduler"), m)

	var srv *http.Server
	if !cfg.Server.Disabled {
		gin.SetMode(gin.ReleaseMode)
		handler := restapi.NewHandler(registry, leaderboard, snapshots, detector, monitor, logger.Named("RestAPI"))
		router := restapi.SetupRouter(handler, restapi.RouterOptions{
			Metrics: m.Handler(),
			Stream:  broadcaster.Handler(),
			Logger:  zapLogger,
		})
		srv = &http.Server{
			Addr:         cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		}
	}

	dispatcher.Start()
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if poller != nil {
		if err := poller.Start(); err != nil {
			return fmt.Errorf("start telegram poller: %w", err)
		}
	}

	serverErr := make(chan error, 1)
	if srv != nil {
		go func() {
			logger.Info("HTTP server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if poller != nil {
		if err := poller.Stop(shutdownCtx); err != nil {
			logger.Warn("Telegram poller did not stop cleanly", "error", err)
		}
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("Scheduler did not stop cleanly", "error", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("Dispatcher did not drain", "error", err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server forced to shutdown", "error", err)
		}
	}
	broadcaster.Close()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Warn("Kafka publisher close failed", "error", err)
		}
	}

	logger.Info("Buy bot exiting", "batches", sched.Runs(), "skippedTicks", sched.Skipped())
	return runErr
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
