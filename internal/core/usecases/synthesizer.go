package usecases

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/pkg/geospatial"
)

// Synthesizer fills a shortfall of real buildings with plausible points
// sampled uniformly inside the territory polygon.
type Synthesizer struct {
	sampleAttempts int
}

// NewSynthesizer creates a Synthesizer. sampleAttempts caps the rejection
// sampling per point; 30 is the service default.
func NewSynthesizer(sampleAttempts int) *Synthesizer {
	if sampleAttempts < 1 {
		sampleAttempts = 30
	}
	return &Synthesizer{sampleAttempts: sampleAttempts}
}

// Synthesize generates up to missing simulated buildings inside the
// polygon. It stops early when sampling exhausts, so the result may be
// shorter than requested; callers treat a partial fill as acceptable.
func (s *Synthesizer) Synthesize(polygon domain.GeoPolygon, bounds domain.Bounds, missing int, rng *rand.Rand) []domain.DetectedBuilding {
	if missing < 1 {
		return nil
	}

	ts := time.Now().UnixMilli()
	var buildings []domain.DetectedBuilding
	for i := 0; i < missing; i++ {
		pt, ok := geospatial.RandomPointIn(polygon, bounds, rng, s.sampleAttempts)
		if !ok {
			break
		}
		buildings = append(buildings, domain.DetectedBuilding{
			ID:      fmt.Sprintf("sim-%d-%d", ts, i),
			Lat:     pt.Lat,
			Lon:     pt.Lon,
			Address: fmt.Sprintf("Simulated building near %.6f, %.6f", pt.Lat, pt.Lon),
			Source:  domain.SourceSimulated,
		})
	}
	return buildings
}
