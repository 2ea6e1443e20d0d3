package geo

import (
	"math"

	"github.com/example/carpool-matching/internal/models"
)

// EarthRadiusMeters is the WGS84 equatorial radius used for great-circle math.
const EarthRadiusMeters = 6378137.0

// Distance returns the great-circle distance between two points in meters,
// assuming a spherical earth.
func Distance(a, b models.Coord) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// WithinRadius reports whether b lies within radiusMeters of a.
func WithinRadius(a, b models.Coord, radiusMeters float64) bool {
	return Distance(a, b) <= radiusMeters
}

// DurationAt estimates travel time in seconds over distanceMeters at the
// given speed. Used only when no routing provider answered.
func DurationAt(distanceMeters, speedMps float64) float64 {
	if speedMps <= 0 {
		speedMps = 8.0 // ~28.8 km/h default city speed
	}
	return distanceMeters / speedMps
}
