package usecases_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/core/usecases"
)

// --- Mock BuildingSource ---

type mockBuildingSource struct {
	fetchFn func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error)
}

func (m *mockBuildingSource) FetchBuildings(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, b)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	detectionFn func(ctx context.Context, e *domain.DetectionEvent) error
	createdFn   func(ctx context.Context, t *domain.Territory) error
	deletedFn   func(ctx context.Context, id string) error
}

func (m *mockPublisher) PublishDetectionCompleted(ctx context.Context, e *domain.DetectionEvent) error {
	if m.detectionFn != nil {
		return m.detectionFn(ctx, e)
	}
	return nil
}

func (m *mockPublisher) PublishTerritoryCreated(ctx context.Context, t *domain.Territory) error {
	if m.createdFn != nil {
		return m.createdFn(ctx, t)
	}
	return nil
}

func (m *mockPublisher) PublishTerritoryDeleted(ctx context.Context, id string) error {
	if m.deletedFn != nil {
		return m.deletedFn(ctx, id)
	}
	return nil
}

// --- Helpers ---

// squareAround builds an axis-aligned square of sideMeters centered on
// (lat, lon).
func squareAround(lat, lon, sideMeters float64) domain.GeoPolygon {
	halfLat := sideMeters / 2 / 111194.9
	halfLon := halfLat / math.Cos(lat*math.Pi/180)
	return domain.GeoPolygon{Coordinates: []domain.GeoPoint{
		{Lat: lat - halfLat, Lon: lon - halfLon},
		{Lat: lat - halfLat, Lon: lon + halfLon},
		{Lat: lat + halfLat, Lon: lon + halfLon},
		{Lat: lat + halfLat, Lon: lon - halfLon},
	}}
}

func newDetectionService(source *mockBuildingSource, geocoder *mockGeocoder, pub *mockPublisher) *usecases.DetectionService {
	resolver := usecases.NewAddressResolver(geocoder, nil, 0)
	synth := usecases.NewSynthesizer(30)
	var publisher ports.EventPublisher
	if pub != nil {
		publisher = pub
	}
	return usecases.NewDetectionService(source, resolver, synth, publisher, usecases.DefaultDetectionParams)
}

// --- Tests ---

func TestDetectionService_DegeneratePolygon(t *testing.T) {
	sourceCalled := false
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			sourceCalled = true
			return nil, nil
		},
	}
	svc := newDetectionService(source, &mockGeocoder{}, nil)

	for _, poly := range []domain.GeoPolygon{
		{},
		{Coordinates: []domain.GeoPoint{{Lat: 43.26, Lon: -2.93}}},
		{Coordinates: []domain.GeoPoint{{Lat: 43.26, Lon: -2.93}, {Lat: 43.27, Lon: -2.94}}},
	} {
		result := svc.DetectBuildings(context.Background(), poly)
		if len(result.Buildings) != 0 {
			t.Errorf("expected no buildings for %d points, got %d", len(poly.Coordinates), len(result.Buildings))
		}
		if len(result.Warnings) != 0 {
			t.Errorf("expected no warnings for degenerate polygon, got %v", result.Warnings)
		}
	}
	if sourceCalled {
		t.Error("geodata source should not be queried for degenerate polygons")
	}
}

func TestDetectionService_SourceFailure(t *testing.T) {
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			return nil, errors.New("overpass unreachable")
		},
	}
	svc := newDetectionService(source, &mockGeocoder{}, nil)

	result := svc.DetectBuildings(context.Background(), squareAround(43.26, -2.93, 100))

	if len(result.Buildings) != 0 {
		t.Errorf("fail-closed policy violated: got %d buildings", len(result.Buildings))
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected exactly 1 warning, got %v", result.Warnings)
	}
	if result.Warnings[0] != usecases.WarnGeodataUnavailable {
		t.Errorf("unexpected warning text: %q", result.Warnings[0])
	}
}

func TestDetectionService_RealPlusSimulated(t *testing.T) {
	// 40 m square: area 1600 m² → target 4. Two real candidates inside,
	// no geocoding key, so the deficit of 2 is synthesized.
	poly := squareAround(43.26, -2.93, 40)
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			return []domain.BuildingCandidate{
				{ID: "osm-way-1", Lat: 43.26, Lon: -2.93},
				{ID: "osm-way-2", Lat: 43.26001, Lon: -2.93001},
			}, nil
		},
	}
	svc := newDetectionService(source, &mockGeocoder{configured: false}, nil)

	result := svc.DetectBuildings(context.Background(), poly)

	if len(result.Buildings) != 4 {
		t.Fatalf("expected 4 buildings (2 real + 2 simulated), got %d", len(result.Buildings))
	}

	real, simulated := 0, 0
	for _, b := range result.Buildings {
		switch b.Source {
		case domain.SourceReal:
			real++
			if !strings.HasPrefix(b.Address, "Building at ") {
				t.Errorf("real building should carry placeholder address, got %q", b.Address)
			}
		case domain.SourceSimulated:
			simulated++
			if !strings.HasPrefix(b.ID, "sim-") {
				t.Errorf("simulated id should be sim-prefixed, got %q", b.ID)
			}
		}
	}
	if real != 2 || simulated != 2 {
		t.Errorf("expected 2 real + 2 simulated, got %d + %d", real, simulated)
	}

	want := []string{usecases.WarnNoGeocodingKey, usecases.WarnSimulatedData}
	if !reflect.DeepEqual(result.Warnings, want) {
		t.Errorf("warnings = %v, want %v (each exactly once)", result.Warnings, want)
	}
}

func TestDetectionService_TargetClampLow(t *testing.T) {
	// 5 m square: area 25 m² rounds to 0 buildings, clamped up to 3.
	poly := squareAround(43.26, -2.93, 5)
	svc := newDetectionService(&mockBuildingSource{}, &mockGeocoder{}, nil)

	result := svc.DetectBuildings(context.Background(), poly)

	if len(result.Buildings) != 3 {
		t.Fatalf("expected 3 simulated buildings for a tiny polygon, got %d", len(result.Buildings))
	}
	for _, b := range result.Buildings {
		if b.Source != domain.SourceSimulated {
			t.Errorf("expected only simulated buildings, got %s", b.Source)
		}
	}
}

func TestDetectionService_TargetClampHigh(t *testing.T) {
	// 1 km square: area 10⁶ m² → 2500 by density, clamped down to 50.
	poly := squareAround(43.26, -2.93, 1000)
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			var cands []domain.BuildingCandidate
			for i := 0; i < 60; i++ {
				cands = append(cands, domain.BuildingCandidate{
					ID:  "osm-node-" + strconv.Itoa(i),
					Lat: 43.26, Lon: -2.93,
				})
			}
			return cands, nil
		},
	}
	svc := newDetectionService(source, &mockGeocoder{}, nil)

	result := svc.DetectBuildings(context.Background(), poly)

	if len(result.Buildings) != 50 {
		t.Fatalf("expected target clamped to 50, got %d buildings", len(result.Buildings))
	}
	for _, b := range result.Buildings {
		if b.Source != domain.SourceReal {
			t.Error("no synthesis should happen once the target is met by real candidates")
			break
		}
	}
}

func TestDetectionService_FiltersOutsideCandidates(t *testing.T) {
	poly := squareAround(43.26, -2.93, 100)
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			return []domain.BuildingCandidate{
				{ID: "far-north", Lat: 44.0, Lon: -2.93},
				{ID: "inside-1", Lat: 43.26, Lon: -2.93},
				{ID: "far-east", Lat: 43.26, Lon: 1.0},
				{ID: "inside-2", Lat: 43.26002, Lon: -2.93002},
			}, nil
		},
	}
	svc := newDetectionService(source, &mockGeocoder{}, nil)

	result := svc.DetectBuildings(context.Background(), poly)

	var realIDs []string
	for _, b := range result.Buildings {
		if b.Source == domain.SourceReal {
			realIDs = append(realIDs, b.ID)
		}
	}
	if !reflect.DeepEqual(realIDs, []string{"inside-1", "inside-2"}) {
		t.Errorf("interior candidates in source order expected, got %v", realIDs)
	}
}

func TestDetectionService_DeterministicWithFakes(t *testing.T) {
	// Enough real candidates to meet the target, so no randomized
	// synthesis is involved and two runs must match exactly.
	poly := squareAround(43.26, -2.93, 40) // target 4
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			return []domain.BuildingCandidate{
				{ID: "a", Lat: 43.26, Lon: -2.93},
				{ID: "b", Lat: 43.26001, Lon: -2.93001},
				{ID: "c", Lat: 43.25999, Lon: -2.92999},
				{ID: "d", Lat: 43.26002, Lon: -2.93002},
			}, nil
		},
	}
	geocoder := &mockGeocoder{
		configured: true,
		reverseFn: func(ctx context.Context, lat, lon float64) (string, error) {
			return "7 Calle Somera, Bilbao", nil
		},
	}
	svc := newDetectionService(source, geocoder, nil)

	first := svc.DetectBuildings(context.Background(), poly)
	second := svc.DetectBuildings(context.Background(), poly)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs against deterministic fakes differ:\n%+v\n%+v", first, second)
	}
	if len(first.Buildings) != 4 {
		t.Fatalf("expected 4 buildings, got %d", len(first.Buildings))
	}
	if n := first.Buildings[0].BuildingNumber; n == nil || *n != 7 {
		t.Errorf("expected building number 7 extracted from address, got %v", n)
	}
	if len(first.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", first.Warnings)
	}
}

func TestDetectionService_GeocodeFailureIsSilent(t *testing.T) {
	poly := squareAround(43.26, -2.93, 40)
	source := &mockBuildingSource{
		fetchFn: func(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error) {
			return []domain.BuildingCandidate{
				{ID: "a", Lat: 43.26, Lon: -2.93},
				{ID: "b", Lat: 43.26001, Lon: -2.93001},
				{ID: "c", Lat: 43.25999, Lon: -2.92999},
				{ID: "d", Lat: 43.26002, Lon: -2.93002},
			}, nil
		},
	}
	geocoder := &mockGeocoder{
		configured: true,
		reverseFn: func(ctx context.Context, lat, lon float64) (string, error) {
			return "", errors.New("geocoding down")
		},
	}
	svc := newDetectionService(source, geocoder, nil)

	result := svc.DetectBuildings(context.Background(), poly)

	if len(result.Buildings) != 4 {
		t.Fatalf("geocoding failure must not block assembly, got %d buildings", len(result.Buildings))
	}
	for _, b := range result.Buildings {
		if !strings.HasPrefix(b.Address, "Building at ") {
			t.Errorf("expected placeholder address, got %q", b.Address)
		}
	}
	if len(result.Warnings) != 0 {
		t.Errorf("remote geocode failures must stay silent, got %v", result.Warnings)
	}
}

func TestDetectionService_PublishesEvent(t *testing.T) {
	var got *domain.DetectionEvent
	pub := &mockPublisher{
		detectionFn: func(ctx context.Context, e *domain.DetectionEvent) error {
			got = e
			return nil
		},
	}
	svc := newDetectionService(&mockBuildingSource{}, &mockGeocoder{}, pub)

	result := svc.DetectBuildings(context.Background(), squareAround(43.26, -2.93, 20))

	if got == nil {
		t.Fatal("expected a detection-completed event")
	}
	if got.Trigger != "api" {
		t.Errorf("trigger = %q, want api", got.Trigger)
	}
	if got.BuildingCount != len(result.Buildings) || got.SimulatedCount != result.SimulatedCount() {
		t.Errorf("event counts %d/%d do not match result %d/%d",
			got.BuildingCount, got.SimulatedCount, len(result.Buildings), result.SimulatedCount())
	}
}
