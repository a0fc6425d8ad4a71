package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/pkg/geospatial"
	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
)

// TerritoryService handles territory CRUD, rescans, and run history. Only
// the polygon and its metadata are stored; detection results always stay
// with the caller.
type TerritoryService struct {
	territories ports.TerritoryRepository
	runs        ports.DetectionRunRepository
	cache       ports.CacheService
	publisher   ports.EventPublisher
	detector    *DetectionService
}

// NewTerritoryService creates a new TerritoryService. runs, cache, and
// publisher may be nil.
func NewTerritoryService(
	territories ports.TerritoryRepository,
	runs ports.DetectionRunRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	detector *DetectionService,
) *TerritoryService {
	return &TerritoryService{
		territories: territories,
		runs:        runs,
		cache:       cache,
		publisher:   publisher,
		detector:    detector,
	}
}

// Create validates and persists a new territory.
func (s *TerritoryService) Create(ctx context.Context, name string, boundary domain.GeoPolygon) (*domain.Territory, error) {
	if name == "" {
		return nil, fmt.Errorf("territory name must not be empty")
	}
	if !boundary.IsValidRegion() {
		return nil, fmt.Errorf("territory boundary needs at least 3 points, got %d", len(boundary.Coordinates))
	}

	now := time.Now().UTC()
	t := &domain.Territory{
		ID:         uuid.New().String(),
		Name:       name,
		Boundary:   boundary,
		AreaM2:     geospatial.PolygonArea(boundary),
		PerimeterM: geospatial.PolygonPerimeter(boundary),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.territories.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create territory: %w", err)
	}

	if s.publisher != nil {
		_ = s.publisher.PublishTerritoryCreated(ctx, t)
	}

	return t, nil
}

// GetByID returns a single territory.
func (s *TerritoryService) GetByID(ctx context.Context, id string) (*domain.Territory, error) {
	cacheKey := "territory:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var t domain.Territory
			if err := json.Unmarshal(data, &t); err == nil {
				metrics.CacheHits.WithLabelValues("territory").Inc()
				return &t, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("territory").Inc()
	}

	t, err := s.territories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(t); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return t, nil
}

// List returns territories with the total count for pagination.
func (s *TerritoryService) List(ctx context.Context, limit, offset int) ([]domain.Territory, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.territories.List(ctx, limit, offset)
}

// ListNear returns territories whose boundary lies within radiusMeters of
// the given point, closest first.
func (s *TerritoryService) ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Territory, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.territories.ListNear(ctx, lat, lon, radiusMeters, limit)
}

// ListIDs returns the ids of every saved territory, for rescan sweeps.
func (s *TerritoryService) ListIDs(ctx context.Context) ([]string, error) {
	return s.territories.ListIDs(ctx)
}

// Delete removes a territory and drops it from the cache.
func (s *TerritoryService) Delete(ctx context.Context, id string) error {
	if err := s.territories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete territory: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, "territory:id:"+id)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishTerritoryDeleted(ctx, id)
	}

	return nil
}

// Rescan re-runs building detection for a saved territory. The detection
// itself never fails; the error covers only an unknown territory.
func (s *TerritoryService) Rescan(ctx context.Context, id string) (domain.DetectionResult, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.DetectionResult{}, fmt.Errorf("load territory %s: %w", id, err)
	}
	return s.detector.DetectForTerritory(ctx, t), nil
}

// RunHistory returns recent detection-run summaries for a territory,
// newest first. Territories scanned before the recorder was deployed have
// an empty history.
func (s *TerritoryService) RunHistory(ctx context.Context, id string, limit int) ([]domain.DetectionRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("load territory %s: %w", id, err)
	}
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListByTerritory(ctx, id, limit)
}
