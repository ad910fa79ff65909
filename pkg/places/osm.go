package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vizzilabs/go-vizzi/internal/httpc"
)

// Default OpenStreetMap endpoints.
const (
	nominatimURL = "https://nominatim.openstreetmap.org/search"
	osrmURL      = "https://router.project-osrm.org/route/v1/foot"

	userAgent = "go-vizzi/1.0"

	// searchLimit caps Nominatim results per query.
	searchLimit = 5
)

// OSM implements Searcher and Router against the public OpenStreetMap
// services: Nominatim for place search and OSRM for walking routes.
type OSM struct {
	searchURL string
	routeURL  string
	client    *http.Client
	logger    *slog.Logger
}

// OSMOption configures the OSM provider.
type OSMOption func(*OSM)

// WithSearchURL overrides the Nominatim endpoint.
func WithSearchURL(u string) OSMOption {
	return func(o *OSM) { o.searchURL = u }
}

// WithRouteURL overrides the OSRM endpoint.
func WithRouteURL(u string) OSMOption {
	return func(o *OSM) { o.routeURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) OSMOption {
	return func(o *OSM) { o.client = c }
}

// WithOSMLogger sets the logger.
func WithOSMLogger(l *slog.Logger) OSMOption {
	return func(o *OSM) { o.logger = l }
}

// NewOSM creates the OpenStreetMap-backed provider.
func NewOSM(opts ...OSMOption) *OSM {
	o := &OSM{
		searchURL: nominatimURL,
		routeURL:  osrmURL,
		client:    httpc.NewClient(15 * time.Second),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("provider", "osm")
	return o
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search implements Searcher via Nominatim.
func (o *OSM) Search(ctx context.Context, query string) ([]Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("places: build search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: search status %d", resp.StatusCode)
	}

	var raw []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("places: decode search response: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoResults
	}

	results := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		name := r.Name
		if name == "" {
			name = r.DisplayName
		}
		results = append(results, Place{
			Name:     name,
			Address:  r.DisplayName,
			Location: Coordinate{Lat: lat, Lon: lon},
		})
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	o.logger.Debug("search complete", "query", query, "results", len(results), "latency", time.Since(start))
	return results, nil
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route implements Router via OSRM's foot profile.
func (o *OSM) Route(ctx context.Context, from Coordinate, to Place) (*Route, error) {
	// OSRM takes lon,lat pairs.
	path := fmt.Sprintf("%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.routeURL, from.Lon, from.Lat, to.Location.Lon, to.Location.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("places: build route request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places: route: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: route status %d", resp.StatusCode)
	}

	var raw osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("places: decode route response: %w", err)
	}
	if raw.Code != "Ok" || len(raw.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := raw.Routes[0]
	polyline := make([]Coordinate, 0, len(best.Geometry.Coordinates))
	for _, pair := range best.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		polyline = append(polyline, Coordinate{Lat: pair[1], Lon: pair[0]})
	}

	return &Route{
		Destination:    to,
		Polyline:       polyline,
		DistanceMeters: best.Distance,
	}, nil
}

// Compile-time interface checks.
var (
	_ Searcher = (*OSM)(nil)
	_ Router   = (*OSM)(nil)
)
