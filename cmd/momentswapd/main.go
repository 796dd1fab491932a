package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"momentswap/chain"
	"momentswap/config"
	"momentswap/exchange"
	"momentswap/identity"
	"momentswap/observability/logging"
	telemetry "momentswap/observability/otel"
	"momentswap/portfolio"
	"momentswap/selection"
	"momentswap/server"
	"momentswap/stats"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "momentswapd.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup("momentswapd", cfg.Environment)

	if cfg.Telemetry.Enabled {
		headers := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "momentswapd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     headers,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdownTelemetry(ctx)
		}()
	}

	node, err := chain.NewClient(cfg.Node.URL, cfg.Node.AuthToken, cfg.Node.Timeout.Duration)
	if err != nil {
		log.Fatalf("build node client: %v", err)
	}
	watcher := chain.NewWatcher(node, cfg.Node.PollInterval.Duration)

	fetcher := portfolio.NewChainFetcher(node)
	cache := portfolio.NewCache(fetcher, logger)
	sel := selection.NewModel()

	resolver := identity.NewResolver(node, logger)
	manager := identity.NewManager(resolver, cache, logger)
	feed := identity.NewSessionFeed()

	obs := server.NewObservability("momentswapd", logger)

	orch := exchange.New(node, watcher, cache, sel, func() chain.Address {
		return manager.Current().PrimaryAddress
	}, logger, exchange.Config{
		SettleDelay:  cfg.Exchange.SettleDelay.Duration,
		WatchTimeout: cfg.Exchange.WatchTimeout.Duration,
		Registry:     obs.Registry(),
	})

	manager.OnLogout(sel.Reset)
	manager.OnLogout(orch.Reset)
	manager.Start(feed)
	defer manager.Stop()

	statsClient, err := stats.NewClient(cfg.Stats.BaseURL, cfg.Node.Timeout.Duration)
	if err != nil {
		log.Fatalf("build stats client: %v", err)
	}
	statsStore, err := stats.OpenStore(cfg.Stats.DatabasePath)
	if err != nil {
		log.Fatalf("open stats store: %v", err)
	}
	defer statsStore.Close()
	statsSvc := stats.NewService(statsClient, statsStore, cfg.Stats.TTL.Duration, logger)

	limits := make(map[string]server.RateLimitClass, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		limits[key] = server.RateLimitClass{
			RequestsPerMinute: limit.RequestsPerMinute,
			Burst:             limit.Burst,
		}
	}
	var limiter *server.RateLimiter
	if len(limits) > 0 {
		limiter = server.NewRateLimiter(limits)
	}

	srv := server.New(feed, manager, cache, sel, orch, statsSvc, node, logger, obs, limiter)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("momentswapd listening", "addr", cfg.ListenAddress, "node", redactURL(cfg.Node.URL))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

func redactURL(raw string) string {
	if i := strings.Index(raw, "@"); i >= 0 {
		return "***" + raw[i:]
	}
	return raw
}
