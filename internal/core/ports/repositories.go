package ports

import (
	"context"
	"errors"

	"github.com/lukagarbi/doorstep/internal/core/domain"
)

// ErrTerritoryNotFound is returned when no territory exists for an id.
var ErrTerritoryNotFound = errors.New("territory not found")

// TerritoryRepository persists territories. Detected buildings are never
// stored; only the polygon and its metadata survive a detection run.
type TerritoryRepository interface {
	Create(ctx context.Context, t *domain.Territory) error
	GetByID(ctx context.Context, id string) (*domain.Territory, error)
	List(ctx context.Context, limit, offset int) ([]domain.Territory, int, error)
	ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Territory, error)
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// DetectionRunRepository persists detection-run summaries, written by the
// recorder worker and read by the history endpoint.
type DetectionRunRepository interface {
	Record(ctx context.Context, run *domain.DetectionRun) error
	ListByTerritory(ctx context.Context, territoryID string, limit int) ([]domain.DetectionRun, error)
}
