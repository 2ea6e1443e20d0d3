package detour

import (
	"context"
	"sync"
	"testing"

	"github.com/example/carpool-matching/internal/models"
)

var (
	driverOrigin = models.Coord{Lat: 37.7749, Lon: -122.4194}
	driverDest   = models.Coord{Lat: 37.7849, Lon: -122.4094}
	pickupPoint  = models.Coord{Lat: 37.7760, Lon: -122.4180}
)

// legResolver returns canned durations per query and records call counts.
// Legs resolve concurrently, so the counter is guarded.
type legResolver struct {
	mu        sync.Mutex
	durations map[models.RoutingQuery]float64
	approx    bool
	calls     int
}

func (r *legResolver) Resolve(ctx context.Context, q models.RoutingQuery) models.RoutingResult {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return models.RoutingResult{
		DistanceMeters:  r.durations[q] * 10,
		DurationSeconds: r.durations[q],
		Provider:        "fake",
		Approximate:     r.approx,
	}
}

func legs(pickupSec, dropoffSec, directSec float64) map[models.RoutingQuery]float64 {
	return map[models.RoutingQuery]float64{
		{Origin: driverOrigin, Destination: pickupPoint, Mode: models.ModeDriving}: pickupSec,
		{Origin: pickupPoint, Destination: driverDest, Mode: models.ModeDriving}:   dropoffSec,
		{Origin: driverOrigin, Destination: driverDest, Mode: models.ModeDriving}:  directSec,
	}
}

func tripPair() (*models.TripRequest, *models.TripRequest) {
	driver := &models.TripRequest{
		ID: 1, RequesterID: 1, Role: models.RoleDriver,
		Origin: driverOrigin, Destination: driverDest,
		DetourThresholdSec: 600,
	}
	// passenger is dropped at the driver's destination, so the tail leg
	// contributes nothing
	passenger := &models.TripRequest{
		ID: 2, RequesterID: 2, Role: models.RolePassenger,
		Origin: pickupPoint, Destination: driverDest,
	}
	return driver, passenger
}

func TestEvaluate_AcceptsWithinThreshold(t *testing.T) {
	driver, passenger := tripPair()
	r := &legResolver{durations: legs(300, 240, 240)}
	ev := NewEvaluator(r).Evaluate(context.Background(), driver, passenger, driver.DetourThresholdSec)

	if r.calls != 3 {
		t.Fatalf("expected exactly 3 resolver calls, got %d", r.calls)
	}
	if !ev.Accepted {
		t.Fatalf("expected acceptance, got %+v", ev)
	}
	if ev.DetourSec != 300 {
		t.Fatalf("expected 300s detour, got %f", ev.DetourSec)
	}
	if ev.TimeToPickupSec != 300 || ev.TimeToDropoffSec != 240 {
		t.Fatalf("leg times not recorded: %+v", ev)
	}
}

func TestEvaluate_RejectsBeyondThreshold(t *testing.T) {
	driver, passenger := tripPair()
	r := &legResolver{durations: legs(900, 240, 240)}
	ev := NewEvaluator(r).Evaluate(context.Background(), driver, passenger, driver.DetourThresholdSec)

	if ev.Accepted {
		t.Fatalf("expected rejection, got %+v", ev)
	}
	// leg times feed pricing even on rejection
	if ev.TimeToPickupSec != 900 || ev.TimeToDropoffSec != 240 {
		t.Fatalf("leg times not recorded on rejection: %+v", ev)
	}
}

func TestEvaluate_MonotonicInThreshold(t *testing.T) {
	driver, passenger := tripPair()
	r := &legResolver{durations: legs(300, 240, 240)}
	e := NewEvaluator(r)

	thresholds := []float64{540, 600, 900, 3600}
	accepted := false
	for _, th := range thresholds {
		ev := e.Evaluate(context.Background(), driver, passenger, th)
		if accepted && !ev.Accepted {
			t.Fatalf("acceptance not monotonic: rejected at %f after accepting at a lower threshold", th)
		}
		if ev.Accepted {
			accepted = true
		}
	}
	if !accepted {
		t.Fatal("expected acceptance at the largest threshold")
	}
}

func TestEvaluate_PropagatesApproximate(t *testing.T) {
	driver, passenger := tripPair()
	r := &legResolver{durations: legs(300, 240, 240), approx: true}
	ev := NewEvaluator(r).Evaluate(context.Background(), driver, passenger, 600)
	if !ev.Approximate {
		t.Fatal("approximate flag lost")
	}
}
