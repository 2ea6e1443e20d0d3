package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EngineConfig captures all tunable parameters for the matching engine
// processes. Values are primarily loaded from environment variables with
// sane defaults so the binaries can run locally without excessive setup.
type EngineConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	PGDSN string

	RedisAddr     string
	RedisPassword string
	RouteCacheTTL time.Duration

	KafkaBrokers    []string
	MatchFoundTopic string
	RecomputeTopic  string
	KafkaGroup      string

	OSRMEndpoint     string
	GoogleMapsAPIKey string
	RoutingTimeout   time.Duration
	MinRouteMeters   float64
	FallbackSpeedMps float64

	Workers            int
	RunDeadline        time.Duration
	TimeSlackHours     float64
	CoarseRadiusMeters float64
	MaxPickupSec       float64
	BucketWindow       time.Duration
	GroupMode          string
	Market             string

	LogLevel      string
	RunMigrations bool
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		RouteCacheTTL: 5 * time.Minute,

		MatchFoundTopic: "match-found",
		RecomputeTopic:  "recompute-requests",
		KafkaGroup:      "carpool-matching-recompute",

		OSRMEndpoint:     "http://localhost:5000",
		RoutingTimeout:   3 * time.Second,
		MinRouteMeters:   10,
		FallbackSpeedMps: 10,

		Workers:            8,
		RunDeadline:        10 * time.Second,
		TimeSlackHours:     3,
		CoarseRadiusMeters: 80467, // 50 miles
		MaxPickupSec:       900,
		BucketWindow:       15 * time.Minute,
		GroupMode:          "prioritize",
		Market:             "default",

		LogLevel: "info",
	}
}

func LoadEngineConfig() (EngineConfig, error) {
	cfg := defaultEngineConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.MatchFoundTopic, "MATCH_FOUND_TOPIC")
	setStringFromEnv(&cfg.RecomputeTopic, "RECOMPUTE_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	cfg.GoogleMapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	setDurationFromEnv(&cfg.RoutingTimeout, "ROUTING_TIMEOUT", &errs)
	setFloatFromEnv(&cfg.MinRouteMeters, "MIN_ROUTE_METERS", &errs)
	setFloatFromEnv(&cfg.FallbackSpeedMps, "FALLBACK_SPEED_MPS", &errs)

	setIntFromEnv(&cfg.Workers, "MATCH_WORKERS", &errs)
	setDurationFromEnv(&cfg.RunDeadline, "MATCH_RUN_DEADLINE", &errs)
	setFloatFromEnv(&cfg.TimeSlackHours, "MATCH_TIME_SLACK_HOURS", &errs)
	setFloatFromEnv(&cfg.CoarseRadiusMeters, "MATCH_COARSE_RADIUS_M", &errs)
	setFloatFromEnv(&cfg.MaxPickupSec, "MATCH_MAX_PICKUP_SEC", &errs)
	setDurationFromEnv(&cfg.BucketWindow, "MATCH_BUCKET_WINDOW", &errs)
	setStringFromEnv(&cfg.GroupMode, "MATCH_GROUP_MODE")
	setStringFromEnv(&cfg.Market, "PRICING_MARKET")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_WORKERS must be > 0"))
	}
	if cfg.RunDeadline <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_RUN_DEADLINE must be > 0"))
	}
	if cfg.GroupMode != "prioritize" && cfg.GroupMode != "restrict" {
		errs = append(errs, fmt.Errorf("MATCH_GROUP_MODE must be prioritize or restrict"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
