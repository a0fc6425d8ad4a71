package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeoPolygon represents a closed ring of geographic coordinates. The last
// point connects back to the first; it is not repeated. Fewer than three
// points is treated as an empty region, not an error.
type GeoPolygon struct {
	Coordinates []GeoPoint `json:"coordinates"`
}

// IsValidRegion reports whether the polygon has enough points to enclose
// an area.
func (p GeoPolygon) IsValidRegion() bool {
	return len(p.Coordinates) >= 3
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}
