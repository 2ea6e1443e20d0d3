package routing

import (
	"context"
	"errors"

	"github.com/example/carpool-matching/internal/models"
)

// ErrNoRoute is returned by a provider that answered but found no route
// between the requested points.
var ErrNoRoute = errors.New("no route found")

// Provider answers a single routing query against one external service.
// Implementations must honor ctx cancellation and deadlines.
type Provider interface {
	Name() string
	Route(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, error)
}
