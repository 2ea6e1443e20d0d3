package storage

import (
	"context"
	"errors"

	"github.com/example/carpool-matching/internal/models"
)

var (
	// ErrReservationNotFound is returned when a reservation id is unknown.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrPolicyNotFound is returned when a market has no pricing policy.
	ErrPolicyNotFound = errors.New("pricing policy not found")
)

// ReservationStore reads and mutates trip requests.
type ReservationStore interface {
	Get(ctx context.Context, id int64) (*models.TripRequest, error)
	// OpenRequests returns open requests of the given role whose origin
	// lies within radiusMeters of near. This is a coarse pre-filter; the
	// pipeline applies the precise checks.
	OpenRequests(ctx context.Context, role models.Role, near models.Coord, radiusMeters float64) ([]*models.TripRequest, error)
	// SearchingIDs lists ids still in the searching state, for background
	// recomputation.
	SearchingIDs(ctx context.Context) ([]int64, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status) error
}

// BlacklistStore answers block queries. IsBlocked checks both orderings so
// filter logic stays a one-line predicate.
type BlacklistStore interface {
	IsBlocked(ctx context.Context, a, b int64) (bool, error)
}

// GroupStore answers shared-group membership queries.
type GroupStore interface {
	SameGroup(ctx context.Context, a, b int64) (bool, error)
}

// StatisticStore persists match statistics keyed by (source, match).
type StatisticStore interface {
	Upsert(ctx context.Context, s *models.MatchStatistic) error
	BySource(ctx context.Context, sourceID int64) ([]models.MatchStatistic, error)
}

// PricingPolicyStore supplies per-market fare parameters.
type PricingPolicyStore interface {
	PolicyFor(ctx context.Context, market string) (models.PricingPolicy, error)
}
