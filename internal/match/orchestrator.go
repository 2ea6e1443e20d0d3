// Package match coordinates one matching run: it loads the source
// reservation, narrows counter-requests through the filter pipeline, sizes
// detours concurrently, prices the survivors and persists statistics.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/carpool-matching/internal/detour"
	"github.com/example/carpool-matching/internal/filter"
	"github.com/example/carpool-matching/internal/geo"
	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/observability"
	"github.com/example/carpool-matching/internal/storage"
)

// ErrInvalidCoordinates is returned when a reservation carries coordinates
// outside the WGS84 envelope.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Config carries the per-run tunables of the orchestrator.
type Config struct {
	Workers            int
	RunDeadline        time.Duration
	TimeSlack          time.Duration
	CoarseRadiusMeters float64
	MaxPickupSec       float64
	BucketWindow       time.Duration
	GroupMode          filter.GroupMode
	Market             string
	// UpsertBackoff is the pause before the single statistic retry.
	UpsertBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:            8,
		RunDeadline:        10 * time.Second,
		TimeSlack:          3 * time.Hour,
		CoarseRadiusMeters: 80467, // 50 miles
		MaxPickupSec:       900,
		BucketWindow:       15 * time.Minute,
		GroupMode:          filter.GroupPrioritize,
		Market:             "default",
		UpsertBackoff:      200 * time.Millisecond,
	}
}

// EventPublisher receives the match-found event for downstream consumers.
type EventPublisher interface {
	PublishMatchFound(ctx context.Context, ev models.MatchFoundEvent) error
}

// Orchestrator is request-scoped: a run shares no mutable state with other
// runs beyond the persisted stores. Callers must serialize concurrent runs
// for the same reservation (see KeyedMutex).
type Orchestrator struct {
	Reservations storage.ReservationStore
	Blacklist    storage.BlacklistStore
	Groups       storage.GroupStore
	Stats        storage.StatisticStore
	Policies     storage.PricingPolicyStore
	Resolver     detour.RouteResolver
	Events       EventPublisher // optional
	Logger       *slog.Logger
	Cfg          Config
}

// outcome is the fully-evaluated state of one surviving candidate.
type outcome struct {
	pair  *models.MatchCandidate
	quote detour.PriceQuote
}

// FindMatches runs the full pipeline for one reservation and returns
// ranked match groups. Provider outages degrade individual legs; only an
// unknown reservation, invalid coordinates or a store read failure abort
// the run.
func (o *Orchestrator) FindMatches(ctx context.Context, reservationID int64) (*models.MatchResult, error) {
	start := time.Now()
	observability.MatchRunsTotal.Inc()

	src, err := o.Reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !src.Origin.Valid() || !src.Destination.Valid() {
		return nil, fmt.Errorf("reservation %d: %w", reservationID, ErrInvalidCoordinates)
	}

	rctx, cancel := context.WithTimeout(ctx, o.Cfg.RunDeadline)
	defer cancel()

	survivors, err := o.narrow(rctx, src)
	if err != nil {
		return nil, err
	}

	outcomes, partial := o.evaluateAll(rctx, src, survivors)

	// statistics persist on the parent context so a run deadline does not
	// drop rows for legs that did resolve
	for _, oc := range outcomes {
		o.upsertStatistic(ctx, &models.MatchStatistic{
			SourceID:         src.ID,
			MatchID:          oc.pair.Counter.ID,
			TimeToPickupSec:  oc.pair.TimeToPickupSec,
			TimeToDropoffSec: oc.pair.TimeToDropoffSec,
		})
	}

	accepted := o.price(ctx, src, outcomes)
	groups := buildGroups(src, accepted, o.Cfg.BucketWindow, o.Cfg.GroupMode)

	if len(accepted) > 0 {
		observability.MatchesTotal.Add(float64(len(accepted)))
		if src.Status == models.StatusSearching {
			if err := o.Reservations.UpdateStatus(ctx, src.ID, models.StatusMatched); err != nil {
				o.log().Warn("status update failed", "reservation", src.ID, "error", err)
			}
		}
		o.publish(ctx, src.ID, groups, partial)
	}
	if partial {
		observability.PartialRuns.Inc()
	}
	observability.MatchLatency.Observe(time.Since(start).Seconds())

	return &models.MatchResult{
		ReservationID: src.ID,
		Groups:        groups,
		Partial:       partial,
	}, nil
}

// RecomputeStatistics re-runs evaluation for the given reservations and
// refreshes their statistic rows. A nil id list recomputes every searching
// reservation. Per-reservation failures are logged and skipped.
func (o *Orchestrator) RecomputeStatistics(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		var err error
		ids, err = o.Reservations.SearchingIDs(ctx)
		if err != nil {
			return fmt.Errorf("list searching reservations: %w", err)
		}
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := o.Reservations.Get(ctx, id)
		if err != nil {
			o.log().Warn("recompute skip", "reservation", id, "error", err)
			continue
		}
		if !src.Origin.Valid() || !src.Destination.Valid() {
			o.log().Warn("recompute skip", "reservation", id, "error", ErrInvalidCoordinates)
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, o.Cfg.RunDeadline)
		survivors, err := o.narrow(rctx, src)
		if err != nil {
			cancel()
			o.log().Warn("recompute pipeline failed", "reservation", id, "error", err)
			continue
		}
		outcomes, _ := o.evaluateAll(rctx, src, survivors)
		cancel()
		for _, oc := range outcomes {
			o.upsertStatistic(ctx, &models.MatchStatistic{
				SourceID:         src.ID,
				MatchID:          oc.pair.Counter.ID,
				TimeToPickupSec:  oc.pair.TimeToPickupSec,
				TimeToDropoffSec: oc.pair.TimeToDropoffSec,
			})
		}
	}
	return nil
}

// narrow loads open counter-requests and runs the cheap filter stages.
func (o *Orchestrator) narrow(ctx context.Context, src *models.TripRequest) ([]*models.TripRequest, error) {
	counterRole := src.Role.Counterpart()
	cands, err := o.Reservations.OpenRequests(ctx, counterRole, src.Origin, o.Cfg.CoarseRadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("query open requests: %w", err)
	}
	pipe := filter.NewPipeline(o.Logger,
		&filter.GroupStage{Store: o.Groups, Mode: o.Cfg.GroupMode},
		&filter.BlacklistStage{Store: o.Blacklist},
		filter.ProfileStage{},
		filter.RoleStage{},
		filter.TimeWindowStage{Slack: o.Cfg.TimeSlack},
		filter.LocationStage{RadiusMeters: o.Cfg.CoarseRadiusMeters},
	)
	return pipe.Run(ctx, src, cands)
}

// evaluateAll sizes every surviving candidate through a bounded worker
// pool. The three routing legs of one candidate run concurrently inside
// the evaluator; the pool bounds how many candidates are in flight at
// once. Candidates still unresolved at the run deadline are abandoned and
// the run is marked partial.
func (o *Orchestrator) evaluateAll(ctx context.Context, src *models.TripRequest, cands []*models.TripRequest) ([]*outcome, bool) {
	workers := o.Cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	ev := detour.NewEvaluator(o.Resolver)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		outcomes  []*outcome
		abandoned int
	)
	sem := make(chan struct{}, workers)
	for _, cand := range cands {
		wg.Add(1)
		go func(cand *models.TripRequest) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				abandoned++
				mu.Unlock()
				return
			}
			driver, passenger := orient(src, cand)
			res := ev.Evaluate(ctx, driver, passenger, src.DetourThresholdSec)
			if ctx.Err() != nil {
				// late result, discard
				mu.Lock()
				abandoned++
				mu.Unlock()
				return
			}
			if res.TimeToPickupSec > o.Cfg.MaxPickupSec {
				return // pickup infeasible, dropped silently
			}
			shared := false
			if cand.GroupID != 0 || src.GroupID != 0 {
				if same, err := o.Groups.SameGroup(ctx, src.RequesterID, cand.RequesterID); err == nil {
					shared = same
				}
			}
			mu.Lock()
			outcomes = append(outcomes, &outcome{pair: &models.MatchCandidate{
				Source:           src,
				Counter:          cand,
				TimeToPickupSec:  res.TimeToPickupSec,
				TimeToDropoffSec: res.TimeToDropoffSec,
				DirectSec:        res.DirectSec,
				DetourSec:        res.DetourSec,
				Approximate:      res.Approximate,
				Accepted:         res.Accepted,
				SharedGroup:      shared,
			}})
			mu.Unlock()
		}(cand)
	}
	wg.Wait()
	return outcomes, abandoned > 0
}

// orient returns the pair in (driver, passenger) order.
func orient(src, cand *models.TripRequest) (*models.TripRequest, *models.TripRequest) {
	if src.Role == models.RoleDriver {
		return src, cand
	}
	return cand, src
}

// price computes the fare split for accepted outcomes and returns them.
func (o *Orchestrator) price(ctx context.Context, src *models.TripRequest, outcomes []*outcome) []*outcome {
	pol, err := o.Policies.PolicyFor(ctx, o.Cfg.Market)
	if err != nil {
		// missing policy degrades to the request's own unit price
		o.log().Warn("pricing policy unavailable", "market", o.Cfg.Market, "error", err)
		pol = models.PricingPolicy{Market: o.Cfg.Market}
	}
	accepted := make([]*outcome, 0, len(outcomes))
	for _, oc := range outcomes {
		if !oc.pair.Accepted {
			continue
		}
		driver, _ := orient(src, oc.pair.Counter)
		distance := driver.RouteDistanceMtr
		if distance == 0 {
			// no stored route distance, estimate from the endpoints
			distance = geo.Distance(driver.Origin, driver.Destination)
		}
		oc.quote = detour.Quote(distance, src.UnitPrice, pol, oc.pair.DetourSec)
		accepted = append(accepted, oc)
	}
	return accepted
}

// upsertStatistic writes one row, retrying once with backoff. Failure is a
// warning, never fatal to the run.
func (o *Orchestrator) upsertStatistic(ctx context.Context, s *models.MatchStatistic) {
	if err := o.Stats.Upsert(ctx, s); err != nil {
		observability.StatisticUpsertRetries.Inc()
		backoff := o.Cfg.UpsertBackoff
		if backoff <= 0 {
			backoff = 200 * time.Millisecond
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			observability.StatisticUpsertErrors.Inc()
			o.log().Warn("statistic upsert dropped",
				"source", s.SourceID, "match", s.MatchID, "error", err)
			return
		}
		if err := o.Stats.Upsert(ctx, s); err != nil {
			observability.StatisticUpsertErrors.Inc()
			o.log().Warn("statistic upsert dropped",
				"source", s.SourceID, "match", s.MatchID, "error", err)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, reservationID int64, groups []models.MatchGroup, partial bool) {
	if o.Events == nil {
		return
	}
	ev := models.MatchFoundEvent{
		ReservationID: reservationID,
		GroupCount:    len(groups),
		Partial:       partial,
		OccurredAt:    time.Now(),
	}
	for _, g := range groups {
		ev.CandidateCount += len(g.Candidates)
	}
	if len(groups) > 0 && len(groups[0].Candidates) > 0 {
		ev.BestCandidateID = groups[0].Candidates[0].CandidateID
	}
	if err := o.Events.PublishMatchFound(ctx, ev); err != nil {
		o.log().Warn("match-found publish failed", "reservation", reservationID, "error", err)
	}
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
