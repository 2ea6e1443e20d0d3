// Package detour decides whether pairing two trips keeps the driver's
// extra travel time inside the requester's tolerance, and prices the
// resulting trip.
package detour

import (
	"context"
	"sync"

	"github.com/example/carpool-matching/internal/geo"
	"github.com/example/carpool-matching/internal/models"
)

// RouteResolver is the slice of the routing resolver the evaluator needs.
type RouteResolver interface {
	Resolve(ctx context.Context, q models.RoutingQuery) models.RoutingResult
}

// Evaluation is the outcome of sizing one candidate pair. Pickup and
// dropoff times are recorded whether or not the pair was accepted.
type Evaluation struct {
	TimeToPickupSec  float64
	TimeToDropoffSec float64
	DirectSec        float64
	CombinedSec      float64
	DetourSec        float64
	Approximate      bool
	Accepted         bool
}

type Evaluator struct {
	Resolver RouteResolver
	Mode     models.TravelMode
	// TailSpeedMps converts the dropoff-to-destination great-circle leg
	// into seconds without an external call.
	TailSpeedMps float64
}

func NewEvaluator(resolver RouteResolver) *Evaluator {
	return &Evaluator{Resolver: resolver, Mode: models.ModeDriving, TailSpeedMps: 10}
}

// Evaluate resolves the three legs of one candidate decision concurrently:
// driver to pickup, pickup to dropoff, and the driver's direct route. The
// remaining dropoff-to-destination tail is estimated from great-circle
// geometry so a candidate costs exactly three external resolutions.
//
// The pair is accepted when the combined-minus-direct detour and the
// pickup-plus-dropoff sum both stay inside thresholdSec.
func (e *Evaluator) Evaluate(ctx context.Context, driver, passenger *models.TripRequest, thresholdSec float64) Evaluation {
	var pickup, dropoff, direct models.RoutingResult

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		pickup = e.Resolver.Resolve(ctx, models.RoutingQuery{
			Origin: driver.Origin, Destination: passenger.Origin, Mode: e.Mode,
		})
	}()
	go func() {
		defer wg.Done()
		dropoff = e.Resolver.Resolve(ctx, models.RoutingQuery{
			Origin: passenger.Origin, Destination: passenger.Destination, Mode: e.Mode,
		})
	}()
	go func() {
		defer wg.Done()
		direct = e.Resolver.Resolve(ctx, models.RoutingQuery{
			Origin: driver.Origin, Destination: driver.Destination, Mode: e.Mode,
		})
	}()
	wg.Wait()

	tailSec := geo.DurationAt(geo.Distance(passenger.Destination, driver.Destination), e.TailSpeedMps)

	ev := Evaluation{
		TimeToPickupSec:  pickup.DurationSeconds,
		TimeToDropoffSec: dropoff.DurationSeconds,
		DirectSec:        direct.DurationSeconds,
		CombinedSec:      pickup.DurationSeconds + dropoff.DurationSeconds + tailSec,
		Approximate:      pickup.Approximate || dropoff.Approximate || direct.Approximate,
	}
	ev.DetourSec = ev.CombinedSec - ev.DirectSec
	if ev.DetourSec < 0 {
		ev.DetourSec = 0
	}
	ev.Accepted = ev.DetourSec <= thresholdSec &&
		ev.TimeToPickupSec+ev.TimeToDropoffSec <= thresholdSec
	return ev
}
