package ports

import (
	"context"
	"errors"

	"github.com/lukagarbi/doorstep/internal/core/domain"
)

// ErrNoAddress is returned by a ReverseGeocoder when the service answered
// but had no address for the coordinate. It is a definitive answer, not a
// transport failure, so callers should not retry it.
var ErrNoAddress = errors.New("no address for coordinate")

// BuildingSource queries an external geodata service for building features
// inside a bounding box. Candidates come back in source order, centers
// only, without addresses.
type BuildingSource interface {
	FetchBuildings(ctx context.Context, b domain.Bounds) ([]domain.BuildingCandidate, error)
}

// ReverseGeocoder turns a coordinate into a formatted street address.
type ReverseGeocoder interface {
	// ReverseGeocode returns the formatted address for the coordinate, or
	// ErrNoAddress when the service has none.
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
	// Configured reports whether the geocoder has credentials to call the
	// remote service at all.
	Configured() bool
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishDetectionCompleted(ctx context.Context, event *domain.DetectionEvent) error
	PublishTerritoryCreated(ctx context.Context, t *domain.Territory) error
	PublishTerritoryDeleted(ctx context.Context, id string) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeDetectionEvents(ctx context.Context, handler func(ctx context.Context, event *domain.DetectionEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
