package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/carpool-matching/internal/match"
	"github.com/example/carpool-matching/internal/storage"
)

func (s *Server) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	// concurrent runs for one reservation would race status writes
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	res, err := s.orch.FindMatches(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrReservationNotFound):
			http.Error(w, "reservation not found", http.StatusNotFound)
		case errors.Is(err, match.ErrInvalidCoordinates):
			http.Error(w, "invalid coordinates", http.StatusBadRequest)
		default:
			s.reqLogger(r).Error("find matches failed", "reservation", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

type recomputeRequest struct {
	ReservationIDs []int64 `json:"reservation_ids"`
}

// handleRecompute kicks off background statistic recomputation and
// returns immediately. The work runs on the server's base context so a
// shutdown cancels it instead of leaving it running silently.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	log := s.reqLogger(r)
	go func() {
		if err := s.orch.RecomputeStatistics(s.base, req.ReservationIDs); err != nil {
			log.Error("recompute failed", "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}
