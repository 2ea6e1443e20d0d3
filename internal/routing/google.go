package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/example/carpool-matching/internal/models"
)

// GoogleProvider answers routing queries via the Google Directions API.
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (g *GoogleProvider) Name() string { return "google" }

func travelModeFor(mode models.TravelMode) maps.Mode {
	switch mode {
	case models.ModeCycling:
		return maps.TravelModeBicycling
	case models.ModeWalking:
		return maps.TravelModeWalking
	default:
		return maps.TravelModeDriving
	}
}

func (g *GoogleProvider) Route(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%.6f,%.6f", q.Origin.Lat, q.Origin.Lon),
		Destination: fmt.Sprintf("%.6f,%.6f", q.Destination.Lat, q.Destination.Lon),
		Mode:        travelModeFor(q.Mode),
	}
	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return models.RoutingResult{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return models.RoutingResult{}, ErrNoRoute
	}
	leg := routes[0].Legs[0]
	return models.RoutingResult{
		DistanceMeters:  float64(leg.Distance.Meters),
		DurationSeconds: leg.Duration.Seconds(),
		Provider:        g.Name(),
	}, nil
}
