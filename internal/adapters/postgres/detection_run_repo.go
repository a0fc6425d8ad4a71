package postgres

import (
	"context"

	"github.com/lukagarbi/doorstep/internal/core/domain"
)

// DetectionRunRepo implements ports.DetectionRunRepository with pgx. Rows
// are written by the recorder worker and read by the history endpoint.
type DetectionRunRepo struct {
	db *DB
}

// NewDetectionRunRepo creates a new DetectionRunRepo.
func NewDetectionRunRepo(db *DB) *DetectionRunRepo {
	return &DetectionRunRepo{db: db}
}

// Record appends one run summary.
func (r *DetectionRunRepo) Record(ctx context.Context, run *domain.DetectionRun) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO detection_runs (territory_id, triggered_by, building_count, simulated_count, warnings, run_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.TerritoryID, run.Trigger, run.BuildingCount, run.SimulatedCount, run.Warnings, run.At)
	return err
}

// ListByTerritory returns recent runs for a territory, newest first.
func (r *DetectionRunRepo) ListByTerritory(ctx context.Context, territoryID string, limit int) ([]domain.DetectionRun, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, territory_id, triggered_by, building_count, simulated_count, warnings, run_at
		FROM detection_runs
		WHERE territory_id = $1
		ORDER BY run_at DESC
		LIMIT $2
	`, territoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.DetectionRun
	for rows.Next() {
		var run domain.DetectionRun
		if err := rows.Scan(
			&run.ID, &run.TerritoryID, &run.Trigger,
			&run.BuildingCount, &run.SimulatedCount, &run.Warnings, &run.At,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
