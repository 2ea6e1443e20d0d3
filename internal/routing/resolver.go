package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/carpool-matching/internal/geo"
	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/observability"
)

// ProviderGreatCircle tags results computed from spherical geometry rather
// than an external service.
const ProviderGreatCircle = "greatcircle"

// Cache stores resolved legs keyed by query. Approximate results are never
// cached.
type Cache interface {
	Get(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, bool)
	Set(ctx context.Context, q models.RoutingQuery, r models.RoutingResult)
}

// Resolver answers routing queries through an ordered provider chain.
// Resolve never fails: when every provider is unavailable it degrades to a
// great-circle estimate marked approximate.
type Resolver struct {
	Providers []Provider // tried in order, one fallback hop at a time
	Cache     Cache      // optional

	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration
	// MinDistanceMeters short-circuits queries between near-coincident
	// points without any external call.
	MinDistanceMeters float64
	// FallbackSpeedMps converts great-circle distance to a duration when
	// no provider answered.
	FallbackSpeedMps float64

	Logger *slog.Logger
}

func NewResolver(providers []Provider, cache Cache, logger *slog.Logger) *Resolver {
	return &Resolver{
		Providers:         providers,
		Cache:             cache,
		CallTimeout:       3 * time.Second,
		MinDistanceMeters: 10,
		FallbackSpeedMps:  10,
		Logger:            logger,
	}
}

// Resolve returns the distance and duration between the query's endpoints.
func (r *Resolver) Resolve(ctx context.Context, q models.RoutingQuery) models.RoutingResult {
	gc := geo.Distance(q.Origin, q.Destination)
	if gc < r.MinDistanceMeters {
		return models.RoutingResult{
			DistanceMeters:  gc,
			DurationSeconds: geo.DurationAt(gc, r.FallbackSpeedMps),
			Provider:        ProviderGreatCircle,
		}
	}

	if r.Cache != nil {
		if res, ok := r.Cache.Get(ctx, q); ok {
			return res
		}
	}

	for _, p := range r.Providers {
		res, err := r.callProvider(ctx, p, q)
		if err != nil {
			observability.RoutingProviderErrors.WithLabelValues(p.Name()).Inc()
			r.log().Warn("routing provider failed",
				"provider", p.Name(),
				"origin", q.Origin,
				"destination", q.Destination,
				"mode", q.Mode,
				"error", err)
			continue
		}
		if r.Cache != nil {
			r.Cache.Set(ctx, q, res)
		}
		return res
	}

	observability.RoutingFallbacks.Inc()
	return models.RoutingResult{
		DistanceMeters:  gc,
		DurationSeconds: geo.DurationAt(gc, r.FallbackSpeedMps),
		Provider:        ProviderGreatCircle,
		Approximate:     true,
	}
}

func (r *Resolver) callProvider(ctx context.Context, p Provider, q models.RoutingQuery) (models.RoutingResult, error) {
	timeout := r.CallTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Route(cctx, q)
}

func (r *Resolver) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
