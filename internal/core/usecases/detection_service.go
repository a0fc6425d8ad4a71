package usecases

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/pkg/geospatial"
	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
)

// Warning texts surfaced in detection results. Results deduplicate
// warnings by exact text, so these must stay stable.
const (
	WarnGeodataUnavailable = "unable to fetch building data right now, territory can still be saved"
	WarnNoGeocodingKey     = "no geocoding API key configured, building addresses are approximate"
	WarnSimulatedData      = "simulated buildings were added to approximate this area"
)

// DetectionParams are the density heuristics that size a detection run.
// The divisor and clamp bounds are observable behavior; they are tuned via
// config, never re-derived.
type DetectionParams struct {
	AreaPerBuildingM2 float64
	MinTarget         int
	MaxTarget         int
}

// DefaultDetectionParams assumes one building per 400 m² and between 3 and
// 50 buildings per territory.
var DefaultDetectionParams = DetectionParams{AreaPerBuildingM2: 400, MinTarget: 3, MaxTarget: 50}

// DetectionService locates candidate buildings inside a territory polygon.
// It composes the geodata source, the address resolver and the synthesizer,
// and it never returns an error: every failure degrades to a valid result
// whose warnings describe what went wrong.
type DetectionService struct {
	source    ports.BuildingSource
	resolver  *AddressResolver
	synth     *Synthesizer
	publisher ports.EventPublisher
	params    DetectionParams
}

// NewDetectionService creates a DetectionService. publisher may be nil.
func NewDetectionService(
	source ports.BuildingSource,
	resolver *AddressResolver,
	synth *Synthesizer,
	publisher ports.EventPublisher,
	params DetectionParams,
) *DetectionService {
	if params.AreaPerBuildingM2 <= 0 {
		params.AreaPerBuildingM2 = DefaultDetectionParams.AreaPerBuildingM2
	}
	if params.MinTarget < 1 {
		params.MinTarget = DefaultDetectionParams.MinTarget
	}
	if params.MaxTarget < params.MinTarget {
		params.MaxTarget = DefaultDetectionParams.MaxTarget
	}
	return &DetectionService{
		source:    source,
		resolver:  resolver,
		synth:     synth,
		publisher: publisher,
		params:    params,
	}
}

// DetectBuildings runs detection for an ad-hoc polygon drawn by a user.
func (s *DetectionService) DetectBuildings(ctx context.Context, polygon domain.GeoPolygon) domain.DetectionResult {
	return s.run(ctx, polygon, "", "api")
}

// DetectForTerritory runs detection for a saved territory's boundary.
func (s *DetectionService) DetectForTerritory(ctx context.Context, t *domain.Territory) domain.DetectionResult {
	return s.run(ctx, t.Boundary, t.ID, "rescan")
}

func (s *DetectionService) run(ctx context.Context, polygon domain.GeoPolygon, territoryID, trigger string) domain.DetectionResult {
	start := time.Now()
	result := s.detect(ctx, polygon)

	metrics.DetectionRuns.WithLabelValues(trigger).Inc()
	metrics.DetectionDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	simulated := result.SimulatedCount()
	metrics.BuildingsDetected.WithLabelValues(string(domain.SourceReal)).Add(float64(len(result.Buildings) - simulated))
	metrics.BuildingsDetected.WithLabelValues(string(domain.SourceSimulated)).Add(float64(simulated))
	metrics.DetectionWarnings.Add(float64(len(result.Warnings)))

	if s.publisher != nil {
		_ = s.publisher.PublishDetectionCompleted(ctx, &domain.DetectionEvent{
			TerritoryID:    territoryID,
			Trigger:        trigger,
			BuildingCount:  len(result.Buildings),
			SimulatedCount: simulated,
			Warnings:       result.Warnings,
			At:             time.Now(),
		})
	}

	return result
}

// detect walks the pipeline: target count, real candidates, addresses,
// synthetic top-up. Each stage can short-circuit to the final result.
func (s *DetectionService) detect(ctx context.Context, polygon domain.GeoPolygon) domain.DetectionResult {
	result := domain.DetectionResult{Buildings: []domain.DetectedBuilding{}, Warnings: []string{}}

	// Degenerate polygons are empty input, not an error.
	if !polygon.IsValidRegion() {
		return result
	}

	area := geospatial.PolygonArea(polygon)
	target := s.targetCount(area)
	bounds := geospatial.PolygonBounds(polygon)

	candidates, err := s.source.FetchBuildings(ctx, bounds)
	if err != nil {
		// Fail closed: a geodata outage yields zero real buildings and
		// zero synthesized ones.
		slog.Error("building fetch failed", "error", err, "area_m2", area)
		result.Warnings = appendWarning(result.Warnings, WarnGeodataUnavailable)
		return result
	}

	for _, cand := range candidates {
		if len(result.Buildings) >= target {
			break
		}
		if !geospatial.PointInPolygon(domain.GeoPoint{Lat: cand.Lat, Lon: cand.Lon}, polygon) {
			continue
		}

		address, number, warning := s.resolver.Resolve(ctx, cand.Lat, cand.Lon)
		result.Warnings = appendWarning(result.Warnings, warning)
		result.Buildings = append(result.Buildings, domain.DetectedBuilding{
			ID:             cand.ID,
			Lat:            cand.Lat,
			Lon:            cand.Lon,
			Address:        address,
			BuildingNumber: number,
			Source:         domain.SourceReal,
		})
	}

	if missing := target - len(result.Buildings); missing > 0 {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		simulated := s.synth.Synthesize(polygon, bounds, missing, rng)
		if len(simulated) > 0 {
			result.Buildings = append(result.Buildings, simulated...)
			result.Warnings = appendWarning(result.Warnings, WarnSimulatedData)
		}
	}

	return result
}

func (s *DetectionService) targetCount(areaM2 float64) int {
	target := int(math.Round(areaM2 / s.params.AreaPerBuildingM2))
	if target < s.params.MinTarget {
		target = s.params.MinTarget
	}
	if target > s.params.MaxTarget {
		target = s.params.MaxTarget
	}
	return target
}

// appendWarning adds text unless it is empty or already present, keeping
// insertion order.
func appendWarning(warnings []string, text string) []string {
	if text == "" {
		return warnings
	}
	for _, w := range warnings {
		if w == text {
			return warnings
		}
	}
	return append(warnings, text)
}
