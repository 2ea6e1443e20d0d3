package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/carpool-matching/internal/config"
	"github.com/example/carpool-matching/internal/events"
	"github.com/example/carpool-matching/internal/filter"
	"github.com/example/carpool-matching/internal/httpapi"
	"github.com/example/carpool-matching/internal/logging"
	"github.com/example/carpool-matching/internal/match"
	"github.com/example/carpool-matching/internal/routing"
	"github.com/example/carpool-matching/internal/storage"
)

func main() {
	cfg, err := config.LoadEngineConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.RunMigrations && cfg.PGDSN != "" {
		if err := runMigrations(cfg.PGDSN); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	var (
		reservations storage.ReservationStore
		blacklist    storage.BlacklistStore
		groups       storage.GroupStore
		stats        storage.StatisticStore
		policies     storage.PricingPolicyStore
		ready        func(ctx context.Context) error
	)
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		reservations, blacklist, groups, stats, policies = pg, pg, pg, pg, pg
		ready = pg.PingContext
	} else {
		logger.Warn("PG_DSN not set, using in-memory stores")
		mem := storage.NewMemoryStore()
		reservations, blacklist, groups, stats, policies = mem, mem, mem, mem, mem
	}

	providers := []routing.Provider{routing.NewOSRMProvider(cfg.OSRMEndpoint)}
	if cfg.GoogleMapsAPIKey != "" {
		gp, err := routing.NewGoogleProvider(cfg.GoogleMapsAPIKey)
		if err != nil {
			logger.Error("google provider init failed", "error", err)
			os.Exit(1)
		}
		providers = append(providers, gp)
	}

	var cache routing.Cache
	if cfg.RedisAddr != "" {
		cache = routing.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RouteCacheTTL)
	} else {
		cache = routing.NewMemoryCache(cfg.RouteCacheTTL)
	}
	resolver := routing.NewResolver(providers, cache, logging.ForComponent(logger, "routing"))
	resolver.CallTimeout = cfg.RoutingTimeout
	resolver.MinDistanceMeters = cfg.MinRouteMeters
	resolver.FallbackSpeedMps = cfg.FallbackSpeedMps

	orch := &match.Orchestrator{
		Reservations: reservations,
		Blacklist:    blacklist,
		Groups:       groups,
		Stats:        stats,
		Policies:     policies,
		Resolver:     resolver,
		Logger:       logging.ForComponent(logger, "match"),
		Cfg:          matchConfig(cfg),
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.MatchFoundTopic)
		defer pub.Close()
		orch.Events = pub
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(ctx, orch, logging.ForComponent(logger, "http"), ready),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("carpool-matching listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("bye")
}

func matchConfig(cfg config.EngineConfig) match.Config {
	mc := match.DefaultConfig()
	mc.Workers = cfg.Workers
	mc.RunDeadline = cfg.RunDeadline
	mc.TimeSlack = durationHours(cfg.TimeSlackHours)
	mc.CoarseRadiusMeters = cfg.CoarseRadiusMeters
	mc.MaxPickupSec = cfg.MaxPickupSec
	mc.BucketWindow = cfg.BucketWindow
	mc.GroupMode = filter.GroupMode(cfg.GroupMode)
	mc.Market = cfg.Market
	return mc
}

func durationHours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
