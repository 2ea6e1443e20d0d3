package filter

import (
	"context"
	"time"

	"github.com/example/carpool-matching/internal/geo"
	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/storage"
)

// GroupMode selects how group affiliation shapes the candidate set.
type GroupMode string

const (
	// GroupRestrict drops candidates outside the source's groups.
	GroupRestrict GroupMode = "restrict"
	// GroupPrioritize keeps everyone; shared-group candidates are ranked
	// ahead later.
	GroupPrioritize GroupMode = "prioritize"
)

// GroupStage applies group affiliation policy.
type GroupStage struct {
	Store storage.GroupStore
	Mode  GroupMode
}

func (s *GroupStage) Name() string { return "group" }

func (s *GroupStage) Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error) {
	if s.Mode != GroupRestrict || src.GroupID == 0 {
		return true, nil
	}
	return s.Store.SameGroup(ctx, src.RequesterID, cand.RequesterID)
}

// BlacklistStage drops any pair with a block in either direction.
type BlacklistStage struct {
	Store storage.BlacklistStore
}

func (s *BlacklistStage) Name() string { return "blacklist" }

func (s *BlacklistStage) Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error) {
	blocked, err := s.Store.IsBlocked(ctx, src.RequesterID, cand.RequesterID)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

// ProfileStage enforces profile constraints symmetrically: both parties'
// requirements must hold for the pair to survive.
type ProfileStage struct{}

func (ProfileStage) Name() string { return "profile" }

func (ProfileStage) Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error) {
	if src.SameGenderOnly && src.Gender != cand.Gender {
		return false, nil
	}
	if cand.SameGenderOnly && cand.Gender != src.Gender {
		return false, nil
	}
	return true, nil
}

// RoleStage keeps only complementary roles: a driver pairs with passengers
// and vice versa.
type RoleStage struct{}

func (RoleStage) Name() string { return "role" }

func (RoleStage) Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error) {
	return cand.Role == src.Role.Counterpart(), nil
}

// TimeWindowStage keeps candidates whose departure and arrival windows
// overlap the source's within Slack. A missing bound on either side is
// substituted with the source's corresponding bound.
type TimeWindowStage struct {
	Slack time.Duration
}

func (TimeWindowStage) Name() string { return "timewindow" }

func (s TimeWindowStage) Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error) {
	if !windowsOverlap(src.EarliestDeparture, src.LatestDeparture,
		cand.EarliestDeparture, cand.LatestDeparture, s.Slack) {
		return false, nil
	}
	return windowsOverlap(src.EarliestArrival, src.LatestArrival,
		cand.EarliestArrival, cand.LatestArrival, s.Slack), nil
}

func windowsOverlap(srcLo, srcHi, candLo, candHi time.Time, slack time.Duration) bool {
	if candLo.IsZero() {
		candLo = srcLo
	}
	if candHi.IsZero() {
		candHi = srcHi
	}
	// source with no bounds at all constrains nothing
	if srcLo.IsZero() && srcHi.IsZero() {
		return true
	}
	if !srcHi.IsZero() && !candLo.IsZero() && candLo.After(srcHi.Add(slack)) {
		return false
	}
	if !srcLo.IsZero() && !candHi.IsZero() && srcLo.After(candHi.Add(slack)) {
		return false
	}
	return true
}

// LocationStage applies the coarse great-circle filter on both endpoints.
// Cheap, no external calls.
type LocationStage struct {
	RadiusMeters float64
}

func (LocationStage) Name() string { return "location" }

func (s LocationStage) Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error) {
	if !geo.WithinRadius(src.Origin, cand.Origin, s.RadiusMeters) {
		return false, nil
	}
	return geo.WithinRadius(src.Destination, cand.Destination, s.RadiusMeters), nil
}
