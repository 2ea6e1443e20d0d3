package storage

import (
	"context"
	"testing"
	"time"

	"github.com/example/carpool-matching/internal/models"
)

func TestMemoryStore_UpsertIdempotent(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	s := &models.MatchStatistic{SourceID: 1, MatchID: 2, TimeToPickupSec: 300, TimeToDropoffSec: 200}
	if err := m.Upsert(ctx, s); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first, _ := m.BySource(ctx, 1)
	time.Sleep(time.Millisecond)

	s.TimeToPickupSec = 310
	if err := m.Upsert(ctx, s); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	second, _ := m.BySource(ctx, 1)

	if len(second) != 1 {
		t.Fatalf("expected 1 row after re-upsert, got %d", len(second))
	}
	if second[0].TimeToPickupSec != 310 {
		t.Fatalf("row not updated: %+v", second[0])
	}
	if !second[0].CreatedOn.Equal(first[0].CreatedOn) {
		t.Fatal("CreatedOn must survive updates")
	}
	if !second[0].ModifiedOn.After(first[0].ModifiedOn) {
		t.Fatal("ModifiedOn must advance on update")
	}
}

func TestMemoryStore_BlockedBothWays(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	m.Block(1, 2)
	if b, _ := m.IsBlocked(ctx, 1, 2); !b {
		t.Fatal("stored direction not blocked")
	}
	if b, _ := m.IsBlocked(ctx, 2, 1); !b {
		t.Fatal("reverse direction not blocked")
	}
	if b, _ := m.IsBlocked(ctx, 1, 3); b {
		t.Fatal("unrelated pair blocked")
	}
}

func TestMemoryStore_OpenRequestsCoarseFilter(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	sf := models.Coord{Lat: 37.7749, Lon: -122.4194}
	la := models.Coord{Lat: 34.0522, Lon: -118.2437}

	m.PutReservation(&models.TripRequest{ID: 1, Role: models.RolePassenger, Status: models.StatusSearching, Origin: sf})
	m.PutReservation(&models.TripRequest{ID: 2, Role: models.RolePassenger, Status: models.StatusSearching, Origin: la})
	m.PutReservation(&models.TripRequest{ID: 3, Role: models.RoleDriver, Status: models.StatusSearching, Origin: sf})
	m.PutReservation(&models.TripRequest{ID: 4, Role: models.RolePassenger, Status: models.StatusCanceled, Origin: sf})

	out, err := m.OpenRequests(ctx, models.RolePassenger, sf, 80000)
	if err != nil {
		t.Fatalf("OpenRequests: %v", err)
	}
	if len(out) != 1 || out[0].ID != 1 {
		t.Fatalf("expected only request 1, got %v", out)
	}
}

func TestMemoryStore_SearchingIDs(t *testing.T) {
	m := NewMemoryStore()
	m.PutReservation(&models.TripRequest{ID: 2, Status: models.StatusSearching})
	m.PutReservation(&models.TripRequest{ID: 1, Status: models.StatusSearching})
	m.PutReservation(&models.TripRequest{ID: 3, Status: models.StatusReserved})

	ids, err := m.SearchingIDs(context.Background())
	if err != nil {
		t.Fatalf("SearchingIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected [1 2], got %v", ids)
	}
}
