package postgres

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/lukagarbi/doorstep/internal/core/domain"
)

func TestPolygonToWKT(t *testing.T) {
	poly := domain.GeoPolygon{Coordinates: []domain.GeoPoint{
		{Lat: 43.26, Lon: -2.93},
		{Lat: 43.26, Lon: -2.92},
		{Lat: 43.27, Lon: -2.92},
	}}

	wkt, err := polygonToWKT(poly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Ring is closed by repeating the first vertex, lon before lat.
	want := "POLYGON((-2.93 43.26,-2.92 43.26,-2.92 43.27,-2.93 43.26))"
	if wkt != want {
		t.Errorf("wkt = %q, want %q", wkt, want)
	}
}

func TestPolygonToWKT_TooFewPoints(t *testing.T) {
	poly := domain.GeoPolygon{Coordinates: []domain.GeoPoint{
		{Lat: 43.26, Lon: -2.93},
		{Lat: 43.27, Lon: -2.92},
	}}
	if _, err := polygonToWKT(poly); err == nil {
		t.Error("expected error for a two-point polygon")
	}
}

func TestPolygonFromGeoJSON(t *testing.T) {
	data := []byte(`{"type":"Polygon","coordinates":[[[-2.93,43.26],[-2.92,43.26],[-2.92,43.27],[-2.93,43.26]]]}`)

	poly, err := polygonFromGeoJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The closing vertex is dropped on the way back in.
	want := []domain.GeoPoint{
		{Lat: 43.26, Lon: -2.93},
		{Lat: 43.26, Lon: -2.92},
		{Lat: 43.27, Lon: -2.92},
	}
	if !reflect.DeepEqual(poly.Coordinates, want) {
		t.Errorf("coordinates = %+v, want %+v", poly.Coordinates, want)
	}
}

func TestPolygonFromGeoJSON_Malformed(t *testing.T) {
	if _, err := polygonFromGeoJSON([]byte(`{"type":"Polygon"`)); err == nil {
		t.Error("expected error for truncated json")
	}
	if _, err := polygonFromGeoJSON([]byte(`{"type":"Polygon","coordinates":[]}`)); err == nil {
		t.Error("expected error for a polygon with no rings")
	}
}

func TestPolygonRoundTrip(t *testing.T) {
	poly := domain.GeoPolygon{Coordinates: []domain.GeoPoint{
		{Lat: 43.2615, Lon: -2.9353},
		{Lat: 43.2618, Lon: -2.9341},
		{Lat: 43.2627, Lon: -2.9346},
		{Lat: 43.2624, Lon: -2.9359},
	}}

	wkt, err := polygonToWKT(poly)
	if err != nil {
		t.Fatalf("to wkt: %v", err)
	}

	// Simulate what PostGIS hands back for that ring.
	geojson := `{"type":"Polygon","coordinates":[[`
	for i, pt := range append(poly.Coordinates, poly.Coordinates[0]) {
		if i > 0 {
			geojson += ","
		}
		geojson += `[` + formatCoord(pt.Lon) + `,` + formatCoord(pt.Lat) + `]`
	}
	geojson += `]]}`

	got, err := polygonFromGeoJSON([]byte(geojson))
	if err != nil {
		t.Fatalf("from geojson: %v", err)
	}
	if !reflect.DeepEqual(got, poly) {
		t.Errorf("round trip changed the polygon:\n got %+v\nwant %+v\n(wkt %s)", got, poly, wkt)
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
