package domain

import (
	"time"
)

// Source tells whether a detected building came from real geodata or was
// synthesized to fill a shortfall.
type Source string

const (
	SourceReal      Source = "real"
	SourceSimulated Source = "simulated"
)

// Territory is a user-drawn polygon delineating a canvassing area.
type Territory struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Boundary   GeoPolygon `json:"boundary"`
	AreaM2     float64    `json:"area_m2"`
	PerimeterM float64    `json:"perimeter_m"`
	Distance   *float64   `json:"distance,omitempty"` // computed field
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BuildingCandidate is a building location discovered from the geodata
// service, prior to address resolution.
type BuildingCandidate struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DetectedBuilding is a fully assembled building inside a territory.
type DetectedBuilding struct {
	ID             string  `json:"id"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Address        string  `json:"address"`
	BuildingNumber *int    `json:"building_number,omitempty"`
	Source         Source  `json:"source"`
}

// DetectionResult is the outcome of one detection run. Warnings carry
// every degradation that occurred; the run itself never fails.
type DetectionResult struct {
	Buildings []DetectedBuilding `json:"buildings"`
	Warnings  []string           `json:"warnings"`
}

// SimulatedCount returns how many buildings in the result are synthetic.
func (r DetectionResult) SimulatedCount() int {
	n := 0
	for _, b := range r.Buildings {
		if b.Source == SourceSimulated {
			n++
		}
	}
	return n
}

// DetectionEvent is published after a detection run completes.
type DetectionEvent struct {
	TerritoryID    string    `json:"territory_id,omitempty"`
	Trigger        string    `json:"trigger"` // "api" or "rescan"
	BuildingCount  int       `json:"building_count"`
	SimulatedCount int       `json:"simulated_count"`
	Warnings       []string  `json:"warnings,omitempty"`
	At             time.Time `json:"at"`
}

// DetectionRun is a persisted summary of one detection run. Only counts and
// warnings are recorded; the buildings themselves stay with the caller.
type DetectionRun struct {
	ID             int64     `json:"id"`
	TerritoryID    string    `json:"territory_id"`
	Trigger        string    `json:"trigger"`
	BuildingCount  int       `json:"building_count"`
	SimulatedCount int       `json:"simulated_count"`
	Warnings       []string  `json:"warnings,omitempty"`
	At             time.Time `json:"at"`
}
