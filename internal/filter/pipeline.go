// Package filter narrows the open counter-requests for one source request
// through an ordered, short-circuiting chain of predicates. A candidate
// removed by one stage is never seen by a later one.
package filter

import (
	"context"
	"log/slog"

	"github.com/example/carpool-matching/internal/models"
)

// Stage decides whether one candidate stays paired with the source.
type Stage interface {
	Name() string
	Keep(ctx context.Context, src, cand *models.TripRequest) (bool, error)
}

type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Run reduces cands stage by stage. A stage error aborts the run; routing
// degradation never surfaces here because the cheap stages make no
// external calls.
func (p *Pipeline) Run(ctx context.Context, src *models.TripRequest, cands []*models.TripRequest) ([]*models.TripRequest, error) {
	for _, stage := range p.stages {
		kept := cands[:0]
		for _, cand := range cands {
			if cand.ID == src.ID {
				continue
			}
			ok, err := stage.Keep(ctx, src, cand)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, cand)
			}
		}
		if p.logger != nil {
			p.logger.Debug("filter stage done", "stage", stage.Name(), "source", src.ID, "remaining", len(kept))
		}
		cands = kept
		if len(cands) == 0 {
			break
		}
	}
	return cands, nil
}
