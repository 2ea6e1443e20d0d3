package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside the WGS84 envelope.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// Counterpart returns the role a request of this role can pair with.
func (r Role) Counterpart() Role {
	if r == RoleDriver {
		return RolePassenger
	}
	return RoleDriver
}

type Status string

const (
	StatusSearching Status = "searching"
	StatusMatched   Status = "matched"
	StatusReserved  Status = "reserved"
	StatusCanceled  Status = "canceled"
	StatusStarted   Status = "started"
)

type TravelMode string

const (
	ModeDriving TravelMode = "driving"
	ModeCycling TravelMode = "cycling"
	ModeWalking TravelMode = "walking"
)

// TripRequest is a user's declared intent to travel. Zero time values mean
// the corresponding bound was not supplied by the user.
type TripRequest struct {
	ID          int64  `json:"id"`
	RequesterID int64  `json:"requester_id"`
	Role        Role   `json:"role"`
	Origin      Coord  `json:"origin"`
	Destination Coord  `json:"destination"`
	Status      Status `json:"status"`

	EarliestDeparture time.Time `json:"earliest_departure"`
	LatestDeparture   time.Time `json:"latest_departure"`
	EarliestArrival   time.Time `json:"earliest_arrival"`
	LatestArrival     time.Time `json:"latest_arrival"`

	// DetourThresholdSec is the hard bound on extra travel time the
	// requester tolerates when pairing.
	DetourThresholdSec float64 `json:"detour_threshold_sec"`

	UnitPrice decimal.Decimal `json:"unit_price"` // per km

	Gender           string  `json:"gender"`
	SameGenderOnly   bool    `json:"same_gender_only"`
	GroupID          int64   `json:"group_id"` // 0 = no affiliation
	RouteDistanceMtr float64 `json:"route_distance_m"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the request can still enter a matching run.
func (t *TripRequest) Open() bool {
	return t.Status == StatusSearching || t.Status == StatusMatched
}

// MatchCandidate pairs a source request with one counter-request for the
// duration of a single orchestration run. It is never persisted.
type MatchCandidate struct {
	Source  *TripRequest
	Counter *TripRequest

	TimeToPickupSec  float64
	TimeToDropoffSec float64
	DirectSec        float64
	DetourSec        float64
	Approximate      bool
	Accepted         bool
	SharedGroup      bool
}

// MatchStatistic is the persisted record of one (source, match) pairing.
// The (SourceID, MatchID) key is immutable; re-running a pipeline updates
// the row in place.
type MatchStatistic struct {
	SourceID         int64     `json:"source_id"`
	MatchID          int64     `json:"match_id"`
	TimeToPickupSec  float64   `json:"time_to_pickup_sec"`
	TimeToDropoffSec float64   `json:"time_to_dropoff_sec"`
	CreatedOn        time.Time `json:"created_on"`
	ModifiedOn       time.Time `json:"modified_on"`
}

// RoutingQuery asks for the road distance and duration between two points.
type RoutingQuery struct {
	Origin      Coord
	Destination Coord
	Mode        TravelMode
}

// RoutingResult is the answer to a RoutingQuery. Approximate is set when
// no external provider could answer and great-circle geometry was used.
type RoutingResult struct {
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_sec"`
	Provider        string  `json:"provider"`
	Approximate     bool    `json:"approximate"`
}

// PricingPolicy carries the per-market fare parameters.
type PricingPolicy struct {
	Market           string
	UnitPricePerKm   decimal.Decimal
	DriverFee        decimal.Decimal
	PassengerFee     decimal.Decimal
	PremiumRate      decimal.Decimal // fraction of total added past the comfort bound
	ComfortDetourSec float64
}

// RankedCandidate is one priced entry of a match group.
type RankedCandidate struct {
	CandidateID     int64           `json:"candidate_id"`
	Role            Role            `json:"role"`
	Price           decimal.Decimal `json:"price"`
	DriverPayout    decimal.Decimal `json:"driver_payout"`
	PassengerCharge decimal.Decimal `json:"passenger_charge"`
	DetourSeconds   float64         `json:"detour_seconds"`
	Premium         bool            `json:"premium"`
	Approximate     bool            `json:"approximate"`
}

// MatchGroup clusters candidates that share one departure window.
type MatchGroup struct {
	AcceptTime time.Time         `json:"accept_time"`
	Candidates []RankedCandidate `json:"candidates"`
}

// MatchResult is the ranked outcome of one orchestration run. Partial is
// set when the run deadline expired before every candidate resolved.
type MatchResult struct {
	ReservationID int64        `json:"reservation_id"`
	Groups        []MatchGroup `json:"groups"`
	Partial       bool         `json:"partial"`
}

// MatchFoundEvent is published for downstream notification consumers.
type MatchFoundEvent struct {
	ReservationID   int64     `json:"reservation_id"`
	GroupCount      int       `json:"group_count"`
	CandidateCount  int       `json:"candidate_count"`
	BestCandidateID int64     `json:"best_candidate_id"`
	Partial         bool      `json:"partial"`
	OccurredAt      time.Time `json:"occurred_at"`
}
