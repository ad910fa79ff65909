// Package places defines the place-search and walking-route collaborators
// consumed by navigation dispatch, plus proximity sorting over results.
package places

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrNoResults is returned when a search matches nothing.
var ErrNoResults = errors.New("places: no results")

// ErrNoRoute is returned when no walking route exists to the destination.
var ErrNoRoute = errors.New("places: no route")

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultOrigin is the fallback origin used when the device location is
// unavailable (downtown Eugene, Oregon).
var DefaultOrigin = Coordinate{Lat: 44.04272, Lon: -123.06726}

// Place is one search result.
type Place struct {
	Name     string     `json:"name"`
	Address  string     `json:"address,omitempty"`
	Location Coordinate `json:"location"`
}

// Route is a computed walking route.
type Route struct {
	Destination Place `json:"destination"`

	// Polyline is the route geometry from origin to destination.
	Polyline []Coordinate `json:"polyline,omitempty"`

	// DistanceMeters is the total route length.
	DistanceMeters float64 `json:"distance_meters"`
}

// Searcher finds places matching a natural-language query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Place, error)
}

// Router computes a walking route from an origin to a place.
type Router interface {
	Route(ctx context.Context, from Coordinate, to Place) (*Route, error)
}

// LocationProvider reports the current device location.
type LocationProvider interface {
	// Current returns the device location, or false when unavailable.
	Current() (Coordinate, bool)
}

// StaticLocation is a LocationProvider pinned to one coordinate.
type StaticLocation struct {
	Coord Coordinate
}

// Current implements LocationProvider.
func (s StaticLocation) Current() (Coordinate, bool) { return s.Coord, true }

// NoLocation is a LocationProvider that never has a fix.
type NoLocation struct{}

// Current implements LocationProvider.
func (NoLocation) Current() (Coordinate, bool) { return Coordinate{}, false }

// OriginOrDefault resolves the search origin: the provider's location when
// available, DefaultOrigin otherwise.
func OriginOrDefault(p LocationProvider) Coordinate {
	if p != nil {
		if c, ok := p.Current(); ok {
			return c
		}
	}
	return DefaultOrigin
}

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between two coordinates in
// meters, using the haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// SortByProximity orders places by straight-line distance from the origin,
// closest first. The sort is stable so equidistant results keep their
// search ranking.
func SortByProximity(results []Place, origin Coordinate) {
	sort.SliceStable(results, func(i, j int) bool {
		return Distance(results[i].Location, origin) < Distance(results[j].Location, origin)
	})
}
