package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/core/ports"
)

// detectRequest is the body of POST /api/v1/territories/detect.
type detectRequest struct {
	Coordinates []domain.GeoPoint `json:"coordinates"`
}

// createTerritoryRequest is the body of POST /api/v1/territories.
type createTerritoryRequest struct {
	Name     string            `json:"name"`
	Boundary domain.GeoPolygon `json:"boundary"`
}

// DetectBuildingsHandler runs building detection for an ad-hoc polygon.
// A malformed body is the only 400; every other outcome is a 200 whose
// warnings describe what degraded.
func DetectBuildingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req detectRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		// UserContext carries the route timeout, which caps the outbound
		// geodata and geocoding calls.
		result := deps.Detector.DetectBuildings(c.UserContext(), domain.GeoPolygon{Coordinates: req.Coordinates})
		return c.JSON(result)
	}
}

// CreateTerritoryHandler persists a new territory.
func CreateTerritoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createTerritoryRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Name == "" {
			return errBadRequest(c, "name is required")
		}
		if !req.Boundary.IsValidRegion() {
			return errBadRequest(c, "boundary needs at least 3 points")
		}

		t, err := deps.Territories.Create(c.Context(), req.Name, req.Boundary)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.Status(201).JSON(t)
	}
}

// ListTerritoriesHandler lists territories. With lat and lon it becomes a
// proximity query and returns a bare list, closest first; otherwise it
// returns an offset/limit page with Link headers.
func ListTerritoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") != "" || c.Query("lon") != "" {
			if c.Query("lat") == "" || c.Query("lon") == "" {
				return errBadRequest(c, "lat and lon are required together")
			}
			lat := c.QueryFloat("lat", 0)
			lon := c.QueryFloat("lon", 0)
			radius := c.QueryFloat("radius", 2000)
			limit := c.QueryInt("limit", 50)

			if radius <= 0 || radius > 50000 {
				return errBadRequest(c, "radius must be between 1 and 50000 meters")
			}

			territories, err := deps.Territories.ListNear(c.Context(), lat, lon, radius, limit)
			if err != nil {
				return errInternal(c, err.Error())
			}
			if territories == nil {
				territories = []domain.Territory{}
			}
			return c.JSON(territories)
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 50
		}

		territories, total, err := deps.Territories.List(c.Context(), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: territories, Pagination: pg})
	}
}

// GetTerritoryHandler returns a single territory by id.
func GetTerritoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "territory id is required")
		}
		t, err := deps.Territories.GetByID(c.Context(), id)
		if err != nil {
			if errors.Is(err, ports.ErrTerritoryNotFound) {
				return errNotFound(c, "territory not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(t)
	}
}

// DeleteTerritoryHandler removes a territory.
func DeleteTerritoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "territory id is required")
		}
		if err := deps.Territories.Delete(c.Context(), id); err != nil {
			if errors.Is(err, ports.ErrTerritoryNotFound) {
				return errNotFound(c, "territory not found")
			}
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// RescanTerritoryHandler re-runs detection for a saved territory. Like the
// ad-hoc endpoint, the scan itself cannot fail; only an unknown id can.
func RescanTerritoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "territory id is required")
		}
		result, err := deps.Territories.Rescan(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, ports.ErrTerritoryNotFound) {
				return errNotFound(c, "territory not found")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(result)
	}
}

// TerritoryDetectionsHandler returns recent detection-run summaries for a
// territory, newest first.
func TerritoryDetectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "territory id is required")
		}
		limit := c.QueryInt("limit", 20)

		runs, err := deps.Territories.RunHistory(c.Context(), id, limit)
		if err != nil {
			if errors.Is(err, ports.ErrTerritoryNotFound) {
				return errNotFound(c, "territory not found")
			}
			return errInternal(c, err.Error())
		}
		if runs == nil {
			runs = []domain.DetectionRun{}
		}
		return c.JSON(runs)
	}
}

// CoverageStats holds aggregate counts across territories and runs.
type CoverageStats struct {
	Territories    int     `json:"territories"`
	DetectionRuns  int     `json:"detection_runs"`
	BuildingsFound int     `json:"buildings_found"`
	Simulated      int     `json:"simulated"`
	TotalAreaM2    float64 `json:"total_area_m2"`
	LastRun        string  `json:"last_run,omitempty"`
}

// CoverageStatsHandler returns row counts from the territory tables.
func CoverageStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CoverageStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM territories),
				(SELECT count(*) FROM detection_runs),
				COALESCE((SELECT sum(building_count) FROM detection_runs), 0),
				COALESCE((SELECT sum(simulated_count) FROM detection_runs), 0),
				COALESCE((SELECT sum(area_m2) FROM territories), 0),
				COALESCE((SELECT max(run_at)::text FROM detection_runs), '')
		`)
		if err := row.Scan(&stats.Territories, &stats.DetectionRuns,
			&stats.BuildingsFound, &stats.Simulated, &stats.TotalAreaM2, &stats.LastRun); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}
