package overpass_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lukagarbi/doorstep/internal/adapters/overpass"
	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/pkg/config"
)

var testBounds = domain.Bounds{MinLat: 43.25, MinLon: -2.94, MaxLat: 43.27, MaxLon: -2.92}

func testConfig(url string) config.OverpassConfig {
	return config.OverpassConfig{
		URL:            url,
		TimeoutSeconds: 5,
		RetryAttempts:  3,
		RetryDelayMs:   1,
	}
}

func TestClient_FetchBuildings_ParsesElementShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"elements": [
				{"type": "node", "id": 101, "lat": 43.262, "lon": -2.935},
				{"type": "way", "id": 202, "center": {"lat": 43.263, "lon": -2.936}},
				{"type": "relation", "id": 303, "geometry": [
					{"lat": 43.264, "lon": -2.937},
					{"lat": 43.265, "lon": -2.938}
				]},
				{"type": "way", "id": 404, "tags": {"building": "yes"}}
			]
		}`))
	}))
	defer srv.Close()

	client := overpass.NewClient(testConfig(srv.URL))
	got, err := client.FetchBuildings(context.Background(), testBounds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The coordinate-less way 404 is skipped; everything else keeps source order.
	want := []domain.BuildingCandidate{
		{ID: "osm-node-101", Lat: 43.262, Lon: -2.935},
		{ID: "osm-way-202", Lat: 43.263, Lon: -2.936},
		{ID: "osm-relation-303", Lat: 43.264, Lon: -2.937},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %+v, want %+v", got, want)
	}
}

func TestClient_FetchBuildings_DirectCoordinatesWin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements": [
			{"type": "node", "id": 1, "lat": 43.262, "lon": -2.935,
			 "center": {"lat": 0, "lon": 0}}
		]}`))
	}))
	defer srv.Close()

	client := overpass.NewClient(testConfig(srv.URL))
	got, err := client.FetchBuildings(context.Background(), testBounds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Lat != 43.262 || got[0].Lon != -2.935 {
		t.Errorf("expected direct coordinates to take priority over center, got %+v", got)
	}
}

func TestClient_FetchBuildings_QueryCarriesBoundingBox(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("data")
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()

	client := overpass.NewClient(testConfig(srv.URL))
	if _, err := client.FetchBuildings(context.Background(), testBounds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fragment := range []string{
		"[out:json]",
		`way["building"]`,
		`relation["building"]`,
		`node["building"]`,
		"43.250000,-2.940000,43.270000,-2.920000",
		"out center",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query missing %q:\n%s", fragment, query)
		}
	}
}

func TestClient_FetchBuildings_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"elements": [{"type": "node", "id": 7, "lat": 43.26, "lon": -2.93}]}`))
	}))
	defer srv.Close()

	client := overpass.NewClient(testConfig(srv.URL))
	got, err := client.FetchBuildings(context.Background(), testBounds)
	if err != nil {
		t.Fatalf("expected recovery on second attempt, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
	if len(got) != 1 || got[0].ID != "osm-node-7" {
		t.Errorf("candidates = %+v", got)
	}
}

func TestClient_FetchBuildings_FailsAfterAttemptsExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := overpass.NewClient(testConfig(srv.URL))
	_, err := client.FetchBuildings(context.Background(), testBounds)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the last status, got %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("requests = %d, want 3 (every attempt hits the server)", n)
	}
}

func TestClient_FetchBuildings_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()

	client := overpass.NewClient(testConfig(srv.URL))
	got, err := client.FetchBuildings(context.Background(), testBounds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}
