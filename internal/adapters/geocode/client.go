package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/pkg/config"
	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
	"github.com/lukagarbi/doorstep/internal/pkg/retry"
)

// Client implements ports.ReverseGeocoder against a Google-style geocoding
// API. Running without an API key is supported; Configured reports false
// and the address resolver falls back to placeholder addresses.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	policy retry.Policy
}

// NewClient creates a reverse-geocoding client from configuration.
func NewClient(cfg config.GeocodingConfig) *Client {
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		policy: retry.Policy{
			Attempts:     cfg.RetryAttempts,
			InitialDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type geocodeResponse struct {
	Status  string          `json:"status"`
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
}

// ReverseGeocode resolves a coordinate to a formatted address. Transport
// errors and non-2xx statuses are retried; a well-formed response without
// results is ports.ErrNoAddress and is not retried, since the service has
// already answered.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("geocoding api key not configured")
	}

	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%.6f,%.6f", lat, lon))
	q.Set("key", c.apiKey)
	reqURL := c.url + "?" + q.Encode()

	var address string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		metrics.ExternalCallDuration.WithLabelValues("geocoding").Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("geocoding request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("geocoding returned status %d", resp.StatusCode)
		}

		var body geocodeResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode geocoding response: %w", err)
		}
		if body.Status != "OK" || len(body.Results) == 0 {
			return retry.Permanent(ports.ErrNoAddress)
		}
		address = body.Results[0].FormattedAddress
		return nil
	}

	if err := retry.Do(ctx, c.policy, op); err != nil {
		if !errors.Is(err, ports.ErrNoAddress) {
			metrics.ExternalCallErrors.WithLabelValues("geocoding").Inc()
		}
		return "", err
	}
	return address, nil
}
