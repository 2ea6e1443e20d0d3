package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/carpool-matching/internal/models"
)

// fakeProvider counts calls and either fails or returns a fixed result.
type fakeProvider struct {
	name  string
	fail  bool
	calls int
	res   models.RoutingResult
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Route(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, error) {
	f.calls++
	if f.fail {
		return models.RoutingResult{}, errors.New("provider down")
	}
	res := f.res
	res.Provider = f.name
	return res, nil
}

func newTestResolver(providers ...Provider) *Resolver {
	r := NewResolver(providers, nil, nil)
	r.CallTimeout = 100 * time.Millisecond
	return r
}

var (
	sfCivic  = models.Coord{Lat: 37.7749, Lon: -122.4194}
	sfNob    = models.Coord{Lat: 37.7849, Lon: -122.4094}
	driveQry = models.RoutingQuery{Origin: sfCivic, Destination: sfNob, Mode: models.ModeDriving}
)

func TestResolve_ZeroDistanceShortCircuit(t *testing.T) {
	p := &fakeProvider{name: "primary"}
	r := newTestResolver(p)
	q := models.RoutingQuery{Origin: sfCivic, Destination: sfCivic, Mode: models.ModeDriving}
	res := r.Resolve(context.Background(), q)
	if p.calls != 0 {
		t.Fatalf("expected no external call, got %d", p.calls)
	}
	if res.DistanceMeters > 1 {
		t.Fatalf("expected ~0 distance, got %f", res.DistanceMeters)
	}
	if res.Provider != ProviderGreatCircle {
		t.Fatalf("expected greatcircle provider, got %s", res.Provider)
	}
}

func TestResolve_PrimarySuccess(t *testing.T) {
	p := &fakeProvider{name: "primary", res: models.RoutingResult{DistanceMeters: 2000, DurationSeconds: 240}}
	s := &fakeProvider{name: "secondary"}
	r := newTestResolver(p, s)
	res := r.Resolve(context.Background(), driveQry)
	if res.Provider != "primary" {
		t.Fatalf("expected primary, got %s", res.Provider)
	}
	if s.calls != 0 {
		t.Fatalf("secondary should not be called, got %d", s.calls)
	}
	if res.Approximate {
		t.Fatal("provider result must not be approximate")
	}
}

func TestResolve_FallbackToSecondary(t *testing.T) {
	p := &fakeProvider{name: "primary", fail: true}
	s := &fakeProvider{name: "secondary", res: models.RoutingResult{DistanceMeters: 2100, DurationSeconds: 250}}
	r := newTestResolver(p, s)
	res := r.Resolve(context.Background(), driveQry)
	if p.calls != 1 || s.calls != 1 {
		t.Fatalf("expected one call each, got primary=%d secondary=%d", p.calls, s.calls)
	}
	if res.Provider != "secondary" {
		t.Fatalf("expected secondary, got %s", res.Provider)
	}
	if res.Approximate {
		t.Fatal("secondary result must not be approximate")
	}
}

func TestResolve_BothFailDegradesToGreatCircle(t *testing.T) {
	p := &fakeProvider{name: "primary", fail: true}
	s := &fakeProvider{name: "secondary", fail: true}
	r := newTestResolver(p, s)
	res := r.Resolve(context.Background(), driveQry)
	if !res.Approximate {
		t.Fatal("expected approximate result")
	}
	if res.Provider != ProviderGreatCircle {
		t.Fatalf("expected greatcircle, got %s", res.Provider)
	}
	if res.DistanceMeters < 1000 || res.DistanceMeters > 2000 {
		t.Fatalf("unexpected great-circle distance %f", res.DistanceMeters)
	}
	if res.DurationSeconds <= 0 {
		t.Fatalf("expected positive duration, got %f", res.DurationSeconds)
	}
}

func TestResolve_CacheHitSkipsProviders(t *testing.T) {
	p := &fakeProvider{name: "primary", res: models.RoutingResult{DistanceMeters: 2000, DurationSeconds: 240}}
	r := newTestResolver(p)
	r.Cache = NewMemoryCache(time.Minute)

	first := r.Resolve(context.Background(), driveQry)
	second := r.Resolve(context.Background(), driveQry)
	if p.calls != 1 {
		t.Fatalf("expected single provider call, got %d", p.calls)
	}
	if first != second {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestMemoryCache_NeverStoresApproximate(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set(context.Background(), driveQry, models.RoutingResult{DistanceMeters: 1, Approximate: true})
	if _, ok := c.Get(context.Background(), driveQry); ok {
		t.Fatal("approximate result must not be cached")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	c.Set(context.Background(), driveQry, models.RoutingResult{DistanceMeters: 2000, Provider: "primary"})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(context.Background(), driveQry); ok {
		t.Fatal("expected entry to expire")
	}
}
