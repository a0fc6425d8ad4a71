package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RescanSummary reports what a nightly sweep accomplished.
type RescanSummary struct {
	Territories int
	Rescanned   int
	Failed      int
}

// NightlyRescanWorkflow re-runs building detection for every saved
// territory. Each territory is an independent activity; one failing
// territory never aborts the sweep, it is just counted.
func NightlyRescanWorkflow(ctx workflow.Context) (RescanSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting nightly rescan sweep")

	actOpts := workflow.ActivityOptions{
		// A single rescan can spend most of a minute on geodata retries.
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var ids []string
	if err := workflow.ExecuteActivity(ctx, "ListTerritoryIDs").Get(ctx, &ids); err != nil {
		return RescanSummary{}, err
	}

	summary := RescanSummary{Territories: len(ids)}
	for _, id := range ids {
		var report RescanReport
		if err := workflow.ExecuteActivity(ctx, "RescanTerritory", id).Get(ctx, &report); err != nil {
			logger.Warn("territory rescan failed", "territoryID", id, "error", err)
			summary.Failed++
			continue
		}
		summary.Rescanned++
		logger.Info("territory rescanned",
			"territoryID", id,
			"buildings", report.BuildingCount,
			"simulated", report.SimulatedCount)
	}

	logger.Info("Nightly rescan sweep finished",
		"territories", summary.Territories,
		"rescanned", summary.Rescanned,
		"failed", summary.Failed)
	return summary, nil
}
