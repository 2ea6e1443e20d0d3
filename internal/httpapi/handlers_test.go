package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/carpool-matching/internal/match"
	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/storage"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, q models.RoutingQuery) models.RoutingResult {
	return models.RoutingResult{DistanceMeters: 2000, DurationSeconds: 120, Provider: "stub"}
}

func testServer(store *storage.MemoryStore) *Server {
	return testServerCtx(context.Background(), store)
}

func testServerCtx(ctx context.Context, store *storage.MemoryStore) *Server {
	orch := &match.Orchestrator{
		Reservations: store,
		Blacklist:    store,
		Groups:       store,
		Stats:        store,
		Policies:     store,
		Resolver:     stubResolver{},
		Cfg:          match.DefaultConfig(),
	}
	return NewServer(ctx, orch, slog.Default(), nil)
}

func TestHandleFindMatches_UnknownReservation(t *testing.T) {
	s := testServer(storage.NewMemoryStore())
	req := httptest.NewRequest("GET", "/api/v1/reservations/42/matches", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleFindMatches_BadID(t *testing.T) {
	s := testServer(storage.NewMemoryStore())
	req := httptest.NewRequest("GET", "/api/v1/reservations/abc/matches", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleFindMatches_EmptyResult(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutReservation(&models.TripRequest{
		ID: 1, RequesterID: 1, Role: models.RoleDriver,
		Status:             models.StatusSearching,
		Origin:             models.Coord{Lat: 37.7749, Lon: -122.4194},
		Destination:        models.Coord{Lat: 37.7849, Lon: -122.4094},
		EarliestDeparture:  time.Now(),
		DetourThresholdSec: 600,
	})
	s := testServer(store)
	req := httptest.NewRequest("GET", "/api/v1/reservations/1/matches", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res models.MatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if res.ReservationID != 1 || len(res.Groups) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandleRecompute_Accepted(t *testing.T) {
	s := testServer(storage.NewMemoryStore())
	req := httptest.NewRequest("POST", "/internal/recompute", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 202 {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestHandleRecompute_StopsWithServer(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutReservation(&models.TripRequest{
		ID: 1, RequesterID: 1, Role: models.RoleDriver,
		Status:             models.StatusSearching,
		Origin:             models.Coord{Lat: 37.7749, Lon: -122.4194},
		Destination:        models.Coord{Lat: 37.7849, Lon: -122.4094},
		DetourThresholdSec: 600,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // server already shutting down
	s := testServerCtx(ctx, store)

	req := httptest.NewRequest("POST", "/internal/recompute", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != 202 {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	time.Sleep(50 * time.Millisecond)
	stats, _ := store.BySource(context.Background(), 1)
	if len(stats) != 0 {
		t.Fatalf("recompute ran past server shutdown, wrote %d rows", len(stats))
	}
}

func TestRequestID_Echoed(t *testing.T) {
	s := testServer(storage.NewMemoryStore())

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("caller's request id not echoed, got %q", got)
	}

	req = httptest.NewRequest("GET", "/healthz", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}
