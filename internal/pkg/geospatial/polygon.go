package geospatial

import (
	"math"
	"math/rand"

	"github.com/lukagarbi/doorstep/internal/core/domain"
)

// Denominator guard for horizontal edges in the ray cast.
const rayCastEpsilon = 1e-12

// PolygonArea returns the approximate area of the polygon in square meters.
// Vertices are projected onto a local planar frame centered on the mean
// latitude (equirectangular, good for territory-sized regions, not global),
// then the shoelace formula is applied. Returns 0 for fewer than 3 points.
func PolygonArea(p domain.GeoPolygon) float64 {
	pts := p.Coordinates
	if len(pts) < 3 {
		return 0
	}

	var meanLat float64
	for _, pt := range pts {
		meanLat += pt.Lat
	}
	meanLat /= float64(len(pts))

	mPerDegLat := earthRadiusKm * 1000 * math.Pi / 180
	mPerDegLon := mPerDegLat * math.Cos(toRad(meanLat))

	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		xi, yi := pts[i].Lon*mPerDegLon, pts[i].Lat*mPerDegLat
		xj, yj := pts[j].Lon*mPerDegLon, pts[j].Lat*mPerDegLat
		sum += xi*yj - xj*yi
	}
	return math.Abs(sum) / 2
}

// PointInPolygon reports whether pt lies inside the polygon ring using a
// standard ray cast over lon/lat treated as planar x/y. Degenerate polygons
// (<3 points) are never hit.
func PointInPolygon(pt domain.GeoPoint, p domain.GeoPolygon) bool {
	pts := p.Coordinates
	if len(pts) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		xi, yi := pts[i].Lon, pts[i].Lat
		xj, yj := pts[j].Lon, pts[j].Lat
		if (yi > pt.Lat) != (yj > pt.Lat) &&
			pt.Lon < (xj-xi)*(pt.Lat-yi)/(yj-yi+rayCastEpsilon)+xi {
			inside = !inside
		}
	}
	return inside
}

// PolygonBounds returns the min/max bounding box of the polygon. For an
// empty polygon the result holds infinities; callers should check
// IsValidRegion first.
func PolygonBounds(p domain.GeoPolygon) domain.Bounds {
	b := domain.Bounds{
		MinLat: math.Inf(1),
		MinLon: math.Inf(1),
		MaxLat: math.Inf(-1),
		MaxLon: math.Inf(-1),
	}
	for _, pt := range p.Coordinates {
		b.MinLat = math.Min(b.MinLat, pt.Lat)
		b.MinLon = math.Min(b.MinLon, pt.Lon)
		b.MaxLat = math.Max(b.MaxLat, pt.Lat)
		b.MaxLon = math.Max(b.MaxLon, pt.Lon)
	}
	return b
}

// RandomPointIn draws uniform points inside the bounding box and returns the
// first one that falls inside the polygon. Gives up after maxAttempts draws
// and reports false; thin or degenerate polygons reject most samples, so
// callers must handle the miss.
func RandomPointIn(p domain.GeoPolygon, b domain.Bounds, rng *rand.Rand, maxAttempts int) (domain.GeoPoint, bool) {
	for i := 0; i < maxAttempts; i++ {
		pt := domain.GeoPoint{
			Lat: b.MinLat + rng.Float64()*(b.MaxLat-b.MinLat),
			Lon: b.MinLon + rng.Float64()*(b.MaxLon-b.MinLon),
		}
		if PointInPolygon(pt, p) {
			return pt, true
		}
	}
	return domain.GeoPoint{}, false
}

// PolygonPerimeter returns the ring length in meters, closing the last
// vertex back to the first. Returns 0 for fewer than 3 points.
func PolygonPerimeter(p domain.GeoPolygon) float64 {
	pts := p.Coordinates
	if len(pts) < 3 {
		return 0
	}
	var total float64
	for i := range pts {
		j := (i + 1) % len(pts)
		total += Haversine(pts[i].Lat, pts[i].Lon, pts[j].Lat, pts[j].Lon)
	}
	return total
}
