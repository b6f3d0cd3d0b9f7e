package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"finplotter/config"
	"finplotter/internal/api"
	"finplotter/internal/gateway"
	"finplotter/internal/logger"
	"finplotter/internal/metrics"
	"finplotter/internal/service"
	redisstore "finplotter/internal/store/redis"
	"finplotter/internal/store/sqlite"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const (
	livenessInterval = 10 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.HTTPAddr = c.String("addr")
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		level = slog.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Init(serviceName, level)

	setup, err := cfg.Setup()
	if err != nil {
		return err
	}
	streams, err := cfg.StreamConfigs()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close store failed", "component", "main", "error", err)
		}
	}()

	prom := metrics.NewMetrics()

	cache, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		return err
	}
	defer cache.Close()
	cache.OnResult = prom.CacheResult
	cache.Breaker().OnStateChange = func(from, to redisstore.State) {
		slog.Warn("circuit breaker state changed", "component", "redis", "from", from.String(), "to", to.String())
		prom.SetBreakerState(int(to))
	}

	hub := gateway.NewHub(0)
	defer hub.Close()
	hub.OnClients = func(n int) { prom.WSClients.Set(float64(n)) }
	hub.OnDrop = prom.StreamResultDropsTotal.Inc

	opts := service.Options{
		Store:       store,
		Snapshots:   store,
		Cache:       cache,
		Broadcaster: hub,
		Metrics:     prom,
		Setup:       setup,
		Streams:     streams,
	}
	if cache.Enabled() {
		opts.Publisher = redisstore.NewPublisher(cache)
	}
	svc, err := service.New(opts)
	if err != nil {
		return err
	}

	restoreStart := time.Now()
	if err := svc.Restore(ctx); err != nil {
		return err
	}
	slog.Info("streaming engine ready", "component", "main",
		"symbols", svc.StreamSymbols(), "took", time.Since(restoreStart))

	health := metrics.NewHealthStatus(cache.Enabled())
	health.SetStreamSymbols(svc.StreamSymbols())
	health.StartLivenessChecker(ctx, cache.Client(), store.Writer.DB(), livenessInterval)

	router := api.NewRouter(api.Deps{
		Service: svc,
		Stream:  hub,
		Health:  health,
		Metrics: prom.Handler(),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		svc.RunSnapshots(gctx, cfg.SnapshotInterval)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(livenessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				health.SetStreamSymbols(svc.StreamSymbols())
			}
		}
	})
	g.Go(func() error {
		slog.Info("listening", "component", "main", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down", "component", "main")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
