package match

import (
	"sort"
	"time"

	"github.com/example/carpool-matching/internal/filter"
	"github.com/example/carpool-matching/internal/models"
)

// acceptTimeFor clamps the candidate's earliest departure into the source
// window and truncates it to the bucket width so compatible departures
// land in one group.
func acceptTimeFor(src, cand *models.TripRequest, window time.Duration) time.Time {
	t := cand.EarliestDeparture
	if t.IsZero() {
		t = src.EarliestDeparture
	}
	if !src.EarliestDeparture.IsZero() && t.Before(src.EarliestDeparture) {
		t = src.EarliestDeparture
	}
	if !src.LatestDeparture.IsZero() && t.After(src.LatestDeparture) {
		t = src.LatestDeparture
	}
	if window <= 0 {
		return t
	}
	return t.Truncate(window)
}

// buildGroups clusters accepted outcomes into accept-time buckets and
// ranks each bucket deterministically: shared-group candidates first when
// prioritizing, then smallest detour, then earliest departure, then
// lowest id.
func buildGroups(src *models.TripRequest, accepted []*outcome, window time.Duration, mode filter.GroupMode) []models.MatchGroup {
	if len(accepted) == 0 {
		return []models.MatchGroup{}
	}

	buckets := make(map[time.Time][]*outcome)
	for _, oc := range accepted {
		at := acceptTimeFor(src, oc.pair.Counter, window)
		buckets[at] = append(buckets[at], oc)
	}

	times := make([]time.Time, 0, len(buckets))
	for at := range buckets {
		times = append(times, at)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	groups := make([]models.MatchGroup, 0, len(times))
	for _, at := range times {
		ocs := buckets[at]
		sort.Slice(ocs, func(i, j int) bool { return rankLess(ocs[i], ocs[j], mode) })
		g := models.MatchGroup{AcceptTime: at, Candidates: make([]models.RankedCandidate, 0, len(ocs))}
		for _, oc := range ocs {
			g.Candidates = append(g.Candidates, models.RankedCandidate{
				CandidateID:     oc.pair.Counter.ID,
				Role:            oc.pair.Counter.Role,
				Price:           oc.quote.Total,
				DriverPayout:    oc.quote.DriverPayout,
				PassengerCharge: oc.quote.PassengerCharge,
				DetourSeconds:   oc.pair.DetourSec,
				Premium:         oc.quote.Premium,
				Approximate:     oc.pair.Approximate,
			})
		}
		groups = append(groups, g)
	}
	return groups
}

func rankLess(a, b *outcome, mode filter.GroupMode) bool {
	if mode == filter.GroupPrioritize && a.pair.SharedGroup != b.pair.SharedGroup {
		return a.pair.SharedGroup
	}
	if a.pair.DetourSec != b.pair.DetourSec {
		return a.pair.DetourSec < b.pair.DetourSec
	}
	ad, bd := a.pair.Counter.EarliestDeparture, b.pair.Counter.EarliestDeparture
	if !ad.Equal(bd) {
		// a zero bound ranks after any known bound
		if ad.IsZero() {
			return false
		}
		if bd.IsZero() {
			return true
		}
		return ad.Before(bd)
	}
	return a.pair.Counter.ID < b.pair.Counter.ID
}
