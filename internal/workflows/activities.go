package workflows

import (
	"context"
	"fmt"

	"github.com/lukagarbi/doorstep/internal/core/usecases"
)

// RescanReport is the activity-level result for one territory.
type RescanReport struct {
	TerritoryID    string
	BuildingCount  int
	SimulatedCount int
	Warnings       []string
}

// RescanActivities holds the activity implementations for the nightly
// rescan workflow.
type RescanActivities struct {
	Territories *usecases.TerritoryService
}

// ListTerritoryIDs returns the ids of every saved territory.
func (a *RescanActivities) ListTerritoryIDs(ctx context.Context) ([]string, error) {
	ids, err := a.Territories.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list territory ids: %w", err)
	}
	return ids, nil
}

// RescanTerritory re-runs detection for one territory. The detection
// pipeline degrades to warnings instead of failing, so an error here means
// the territory could not be loaded at all.
func (a *RescanActivities) RescanTerritory(ctx context.Context, territoryID string) (RescanReport, error) {
	result, err := a.Territories.Rescan(ctx, territoryID)
	if err != nil {
		return RescanReport{}, fmt.Errorf("rescan territory %s: %w", territoryID, err)
	}
	return RescanReport{
		TerritoryID:    territoryID,
		BuildingCount:  len(result.Buildings),
		SimulatedCount: result.SimulatedCount(),
		Warnings:       result.Warnings,
	}, nil
}
