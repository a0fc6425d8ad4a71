package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/pkg/config"
	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
	"github.com/lukagarbi/doorstep/internal/pkg/retry"
)

// Client implements ports.BuildingSource against an Overpass-style geodata
// API. It returns raw candidate centers for a bounding box; spatial
// filtering against the territory polygon happens in the detection service.
type Client struct {
	url            string
	http           *http.Client
	policy         retry.Policy
	timeoutSeconds int
}

// NewClient creates a geodata client from configuration.
func NewClient(cfg config.OverpassConfig) *Client {
	return &Client{
		url: cfg.URL,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		policy: retry.Policy{
			Attempts:     cfg.RetryAttempts,
			InitialDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		},
		timeoutSeconds: cfg.TimeoutSeconds,
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// overpassElement covers the three shapes the API mixes into one list:
// nodes carry lat/lon directly, ways and relations carry either a
// precomputed center or a geometry ring.
type overpassElement struct {
	Type     string       `json:"type"`
	ID       int64        `json:"id"`
	Lat      *float64     `json:"lat"`
	Lon      *float64     `json:"lon"`
	Center   *coordinate  `json:"center"`
	Geometry []coordinate `json:"geometry"`
}

type coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// centerPoint picks the element's representative point: direct lat/lon,
// then center, then the first geometry vertex. Elements without a finite
// coordinate pair report ok=false.
func (el overpassElement) centerPoint() (lat, lon float64, ok bool) {
	switch {
	case el.Lat != nil && el.Lon != nil:
		lat, lon = *el.Lat, *el.Lon
	case el.Center != nil:
		lat, lon = el.Center.Lat, el.Center.Lon
	case len(el.Geometry) > 0:
		lat, lon = el.Geometry[0].Lat, el.Geometry[0].Lon
	default:
		return 0, 0, false
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, false
	}
	return lat, lon, true
}

// FetchBuildings queries building-tagged ways, relations, and nodes inside
// the bounding box. A non-2xx status is a failure of the whole call; the
// query is retried as a unit and the last error is returned once attempts
// are exhausted.
func (c *Client) FetchBuildings(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
	bbox := fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	query := fmt.Sprintf(
		`[out:json][timeout:%d];(way["building"](%s);relation["building"](%s);node["building"](%s););out center;`,
		c.timeoutSeconds, bbox, bbox, bbox,
	)

	q := url.Values{}
	q.Set("data", query)
	reqURL := c.url + "?" + q.Encode()

	var elements []overpassElement
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		metrics.ExternalCallDuration.WithLabelValues("overpass").Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("overpass request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("overpass returned status %d", resp.StatusCode)
		}

		var body overpassResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode overpass response: %w", err)
		}
		elements = body.Elements
		return nil
	}

	if err := retry.Do(ctx, c.policy, op); err != nil {
		metrics.ExternalCallErrors.WithLabelValues("overpass").Inc()
		return nil, err
	}

	candidates := make([]domain.BuildingCandidate, 0, len(elements))
	for _, el := range elements {
		lat, lon, ok := el.centerPoint()
		if !ok {
			continue
		}
		candidates = append(candidates, domain.BuildingCandidate{
			ID:  fmt.Sprintf("osm-%s-%d", el.Type, el.ID),
			Lat: lat,
			Lon: lon,
		})
	}
	return candidates, nil
}
