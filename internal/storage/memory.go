package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/carpool-matching/internal/geo"
	"github.com/example/carpool-matching/internal/models"
)

// MemoryStore implements every store interface in memory. It backs local
// runs without external services and the package tests.
type MemoryStore struct {
	mu           sync.RWMutex
	reservations map[int64]*models.TripRequest
	blocked      map[[2]int64]bool
	groups       map[int64][]int64 // group id -> member user ids
	stats        map[[2]int64]*models.MatchStatistic
	policies     map[string]models.PricingPolicy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reservations: make(map[int64]*models.TripRequest),
		blocked:      make(map[[2]int64]bool),
		groups:       make(map[int64][]int64),
		stats:        make(map[[2]int64]*models.MatchStatistic),
		policies:     make(map[string]models.PricingPolicy),
	}
}

func (m *MemoryStore) PutReservation(t *models.TripRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.reservations[t.ID] = &cp
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (*models.TripRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *t
	return &cp, nil
}

// naive scan; the Postgres store pushes the same bounding filter into SQL
func (m *MemoryStore) OpenRequests(ctx context.Context, role models.Role, near models.Coord, radiusMeters float64) ([]*models.TripRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.TripRequest, 0)
	for _, t := range m.reservations {
		if t.Role != role || !t.Open() {
			continue
		}
		if !geo.WithinRadius(near, t.Origin, radiusMeters) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SearchingIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0)
	for id, t := range m.reservations {
		if t.Status == models.StatusSearching {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

// Block records that a blocks b. Lookups are bidirectional regardless of
// which direction was stored.
func (m *MemoryStore) Block(a, b int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[[2]int64{a, b}] = true
}

func (m *MemoryStore) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blocked[[2]int64{a, b}] || m.blocked[[2]int64{b, a}], nil
}

func (m *MemoryStore) JoinGroup(groupID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[groupID] = append(m.groups[groupID], userID)
}

func (m *MemoryStore) SameGroup(ctx context.Context, a, b int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, members := range m.groups {
		var hasA, hasB bool
		for _, id := range members {
			if id == a {
				hasA = true
			}
			if id == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, s *models.MatchStatistic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{s.SourceID, s.MatchID}
	now := time.Now()
	if existing, ok := m.stats[key]; ok {
		existing.TimeToPickupSec = s.TimeToPickupSec
		existing.TimeToDropoffSec = s.TimeToDropoffSec
		existing.ModifiedOn = now
		return nil
	}
	cp := *s
	cp.CreatedOn = now
	cp.ModifiedOn = now
	m.stats[key] = &cp
	return nil
}

func (m *MemoryStore) BySource(ctx context.Context, sourceID int64) ([]models.MatchStatistic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MatchStatistic, 0)
	for _, s := range m.stats {
		if s.SourceID == sourceID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func (m *MemoryStore) PutPolicy(p models.PricingPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.Market] = p
}

func (m *MemoryStore) PolicyFor(ctx context.Context, market string) (models.PricingPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[market]
	if !ok {
		return models.PricingPolicy{}, ErrPolicyNotFound
	}
	return p, nil
}
