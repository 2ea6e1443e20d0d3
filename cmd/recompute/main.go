// The recompute worker consumes recompute requests from Kafka and refreshes
// match statistics in the background.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-matching/internal/config"
	"github.com/example/carpool-matching/internal/filter"
	"github.com/example/carpool-matching/internal/logging"
	"github.com/example/carpool-matching/internal/match"
	"github.com/example/carpool-matching/internal/routing"
	"github.com/example/carpool-matching/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recompute_messages_consumed_total",
		Help: "Total recompute requests consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recompute_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	recomputeRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recompute_runs_total",
		Help: "Total successful recompute runs",
	})
	recomputeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recompute_errors_total",
		Help: "Total failed recompute runs",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, recomputeRuns, recomputeErrors)
}

// recomputeMessage is the wire shape of one request. An empty id list
// means "recompute everything still searching".
type recomputeMessage struct {
	ReservationIDs []int64 `json:"reservation_ids"`
}

// Recomputer is the slice of the orchestrator this worker needs.
type Recomputer interface {
	RecomputeStatistics(ctx context.Context, ids []int64) error
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	cfg, err := config.LoadEngineConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN == "" {
		logger.Error("PG_DSN is required for the recompute worker")
		os.Exit(1)
	}
	pg, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		logger.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	providers := []routing.Provider{routing.NewOSRMProvider(cfg.OSRMEndpoint)}
	if cfg.GoogleMapsAPIKey != "" {
		if gp, err := routing.NewGoogleProvider(cfg.GoogleMapsAPIKey); err == nil {
			providers = append(providers, gp)
		} else {
			logger.Warn("google provider init failed", "error", err)
		}
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

	mc := match.DefaultConfig()
	mc.Workers = cfg.Workers
	mc.RunDeadline = cfg.RunDeadline
	mc.CoarseRadiusMeters = cfg.CoarseRadiusMeters
	mc.MaxPickupSec = cfg.MaxPickupSec
	mc.GroupMode = filter.GroupMode(cfg.GroupMode)
	mc.Market = cfg.Market
	orch := &match.Orchestrator{
		Reservations: pg,
		Blacklist:    pg,
		Groups:       pg,
		Stats:        pg,
		Policies:     pg,
		Resolver:     resolver,
		Logger:       logging.ForComponent(logger, "recompute"),
		Cfg:          mc,
	}

	// metrics and health server
	go func() {
		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		m.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		m.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := pg.PingContext(r.Context()); err != nil {
				http.Error(w, "postgres not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, m); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.RecomputeTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()

	logger.Info("recompute worker listening", "topic", cfg.RecomputeTopic, "brokers", brokers, "group", cfg.KafkaGroup)
	consumeLoop(ctx, r, orch, logger)
}

func consumeLoop(ctx context.Context, r *kafka.Reader, rec Recomputer, logger interface {
	Info(string, ...any)
	Warn(string, ...any)
}) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down recompute worker")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		switch err := processMessage(ctx, m.Value, rec); {
		case err == nil:
			recomputeRuns.Inc()
		case errors.Is(err, errInvalidMessage):
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err)
		default:
			recomputeErrors.Inc()
			logger.Warn("recompute failed", "error", err)
		}
	}
}

var errInvalidMessage = errors.New("invalid recompute message")

// processMessage decodes one Kafka payload and runs the recomputation.
func processMessage(ctx context.Context, value []byte, rec Recomputer) error {
	var msg recomputeMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	return rec.RecomputeStatistics(ctx, msg.ReservationIDs)
}
