package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/carpool-matching/internal/models"
)

// OSRMProvider performs route lookups against an OSRM HTTP server.
type OSRMProvider struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMProvider(endpoint string) *OSRMProvider {
	return &OSRMProvider{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (o *OSRMProvider) Name() string { return "osrm" }

func profileFor(mode models.TravelMode) string {
	switch mode {
	case models.ModeCycling:
		return "cycling"
	case models.ModeWalking:
		return "walking"
	default:
		return "driving"
	}
}

// Route queries OSRM /route between the two points and returns the first
// route's distance and duration.
func (o *OSRMProvider) Route(ctx context.Context, q models.RoutingQuery) (models.RoutingResult, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=false",
		o.Endpoint, profileFor(q.Mode), q.Origin.Lon, q.Origin.Lat, q.Destination.Lon, q.Destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.RoutingResult{}, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return models.RoutingResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.RoutingResult{}, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.RoutingResult{}, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return models.RoutingResult{}, fmt.Errorf("%w: osrm code %q", ErrNoRoute, out.Code)
	}
	return models.RoutingResult{
		DistanceMeters:  out.Routes[0].Distance,
		DurationSeconds: out.Routes[0].Duration,
		Provider:        o.Name(),
	}, nil
}
