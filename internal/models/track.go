package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Point is one GNSS fix flattened out of a GPX track, route or waypoint list.
// Lat/Lon are always WGS84. X/Y hold the UTM easting/northing once the point
// has been projected; EPSG is zero until then.
type Point struct {
	Latitude  float64
	Longitude float64
	Elevation *float64
	Time      *time.Time

	SourceFile string
	// TrackID is the track index, "route_<i>" for route points and empty for
	// waypoints.
	TrackID   string
	SegmentID *int
	PtIndex   *int

	X    float64
	Y    float64
	EPSG int

	// Group is the plotting tag, the stem of the cleaned file the point was
	// read back from. Empty while cleaning.
	Group string
}

// Projected reports whether X/Y carry UTM coordinates.
func (p Point) Projected() bool {
	return p.EPSG != 0
}

// HasTime reports whether the fix carries a timestamp.
func (p Point) HasTime() bool {
	return p.Time != nil && !p.Time.IsZero()
}

// Stem strips directory and extension from a path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GroupBySource partitions points by source tag preserving first-seen order.
func GroupBySource(points []Point, source func(Point) string) ([]string, map[string][]Point) {
	var order []string
	groups := make(map[string][]Point)
	for _, p := range points {
		key := source(p)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}
	return order, groups
}
