package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/core/ports"
)

// TerritoryRepo implements ports.TerritoryRepository with pgx. Boundaries
// are stored as geometry(Polygon, 4326); WKT on the way in, GeoJSON on the
// way out.
type TerritoryRepo struct {
	db *DB
}

// NewTerritoryRepo creates a new TerritoryRepo.
func NewTerritoryRepo(db *DB) *TerritoryRepo {
	return &TerritoryRepo{db: db}
}

const territoryColumns = `id, name, ST_AsGeoJSON(boundary), area_m2, perimeter_m, created_at, updated_at`

// Create inserts a new territory.
func (r *TerritoryRepo) Create(ctx context.Context, t *domain.Territory) error {
	wkt, err := polygonToWKT(t.Boundary)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO territories (id, name, boundary, area_m2, perimeter_m, created_at, updated_at)
		VALUES ($1, $2, ST_GeomFromText($3, 4326), $4, $5, $6, $7)
	`, t.ID, t.Name, wkt, t.AreaM2, t.PerimeterM, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetByID returns a territory by UUID.
func (r *TerritoryRepo) GetByID(ctx context.Context, id string) (*domain.Territory, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+territoryColumns+`
		FROM territories WHERE id = $1
	`, id)
	return scanTerritory(row)
}

// List returns a page of territories, newest first, plus the total count.
func (r *TerritoryRepo) List(ctx context.Context, limit, offset int) ([]domain.Territory, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM territories`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+territoryColumns+`
		FROM territories
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var territories []domain.Territory
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, 0, err
		}
		territories = append(territories, *t)
	}
	return territories, total, rows.Err()
}

// ListNear returns territories whose boundary lies within radiusMeters of
// the point, closest first, using PostGIS ST_DWithin.
func (r *TerritoryRepo) ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Territory, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+territoryColumns+`,
		       ST_Distance(boundary::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM territories
		WHERE ST_DWithin(boundary::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var territories []domain.Territory
	for rows.Next() {
		var t domain.Territory
		var boundaryJSON []byte
		var dist float64
		if err := rows.Scan(
			&t.ID, &t.Name, &boundaryJSON, &t.AreaM2, &t.PerimeterM,
			&t.CreatedAt, &t.UpdatedAt, &dist,
		); err != nil {
			return nil, err
		}
		boundary, err := polygonFromGeoJSON(boundaryJSON)
		if err != nil {
			return nil, fmt.Errorf("territory %s boundary: %w", t.ID, err)
		}
		t.Boundary = boundary
		t.Distance = &dist
		territories = append(territories, t)
	}
	return territories, rows.Err()
}

// ListIDs returns every territory id, oldest first.
func (r *TerritoryRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM territories ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a territory. Deleting an unknown id is ErrTerritoryNotFound.
func (r *TerritoryRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM territories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrTerritoryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerritory(row rowScanner) (*domain.Territory, error) {
	var t domain.Territory
	var boundaryJSON []byte
	if err := row.Scan(
		&t.ID, &t.Name, &boundaryJSON, &t.AreaM2, &t.PerimeterM,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrTerritoryNotFound
		}
		return nil, err
	}
	boundary, err := polygonFromGeoJSON(boundaryJSON)
	if err != nil {
		return nil, fmt.Errorf("territory %s boundary: %w", t.ID, err)
	}
	t.Boundary = boundary
	return &t, nil
}

// polygonToWKT renders the boundary as a closed WKT ring, lon before lat.
func polygonToWKT(p domain.GeoPolygon) (string, error) {
	if len(p.Coordinates) < 3 {
		return "", fmt.Errorf("polygon needs at least 3 points, got %d", len(p.Coordinates))
	}
	var b strings.Builder
	b.WriteString("POLYGON((")
	for i, pt := range p.Coordinates {
		if i > 0 {
			b.WriteByte(',')
		}
		writeWKTPoint(&b, pt)
	}
	b.WriteByte(',')
	writeWKTPoint(&b, p.Coordinates[0])
	b.WriteString("))")
	return b.String(), nil
}

func writeWKTPoint(b *strings.Builder, pt domain.GeoPoint) {
	b.WriteString(strconv.FormatFloat(pt.Lon, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(pt.Lat, 'f', -1, 64))
}

// polygonFromGeoJSON reads the outer ring of a GeoJSON polygon back into
// the open-ring form the domain uses (closure implied, not repeated).
func polygonFromGeoJSON(data []byte) (domain.GeoPolygon, error) {
	var g struct {
		Type        string        `json:"type"`
		Coordinates [][][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return domain.GeoPolygon{}, err
	}
	if len(g.Coordinates) == 0 {
		return domain.GeoPolygon{}, fmt.Errorf("polygon has no rings")
	}

	ring := g.Coordinates[0]
	if len(ring) > 1 {
		first, last := ring[0], ring[len(ring)-1]
		if len(first) >= 2 && len(last) >= 2 && first[0] == last[0] && first[1] == last[1] {
			ring = ring[:len(ring)-1]
		}
	}

	poly := domain.GeoPolygon{Coordinates: make([]domain.GeoPoint, 0, len(ring))}
	for _, c := range ring {
		if len(c) < 2 {
			continue
		}
		poly.Coordinates = append(poly.Coordinates, domain.GeoPoint{Lat: c[1], Lon: c[0]})
	}
	return poly, nil
}
