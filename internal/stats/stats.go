// Package stats computes per-device accuracy figures against protocol
// references.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"trackbench/internal/models"
	"trackbench/pkg/geom"
)

// Groups maps a device tag to its points.
type Groups map[string][]models.Point

// Group partitions points by their plotting tag. Untagged points fall under
// "points".
func Group(points []models.Point) Groups {
	_, groups := models.GroupBySource(points, func(p models.Point) string {
		if p.Group == "" {
			return "points"
		}
		return p.Group
	})
	return groups
}

// Names returns the group tags in sorted order.
func (g Groups) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select picks the refs of a kind. When no ref carries a kind at all, refs
// whose name contains the kind are picked instead.
func Select(refs []models.Reference, kind models.Kind) []models.Reference {
	kinded := false
	for _, r := range refs {
		if r.Kind != models.KindNone {
			kinded = true
			break
		}
	}
	var out []models.Reference
	for _, r := range refs {
		switch {
		case kinded && strings.EqualFold(string(r.Kind), string(kind)):
			out = append(out, r)
		case !kinded && strings.Contains(strings.ToLower(r.Name), string(kind)):
			out = append(out, r)
		}
	}
	return out
}

func geometries(refs []models.Reference) []orb.Geometry {
	var out []orb.Geometry
	for _, r := range refs {
		if r.Geometry != nil {
			out = append(out, r.Geometry)
		}
	}
	return out
}

// RingArea builds the area between the outer and inner references.
func RingArea(refs []models.Reference) geom.Area {
	return geom.Ring(geometries(Select(refs, models.KindOuter)), geometries(Select(refs, models.KindInner)))
}

// RingStats counts, per device, the points falling inside area. Coordinates
// are tested as lon/lat.
func RingStats(groups Groups, area geom.Area) []models.DeviceStat {
	out := make([]models.DeviceStat, 0, len(groups))
	for _, name := range groups.Names() {
		pts := groups[name]
		s := models.DeviceStat{Device: name, Total: len(pts)}
		for _, p := range pts {
			if area.Contains(orb.Point{p.Longitude, p.Latitude}) {
				s.Inside++
			}
		}
		if s.Total > 0 {
			s.Percent = 100 * float64(s.Inside) / float64(s.Total)
		}
		out = append(out, s)
	}
	return out
}

// RadiusStat is the share of a device's points within each radius of the
// reference point.
type RadiusStat struct {
	Device  string
	Total   int
	Within  []int
	Percent []float64
	MeanM   float64
	MaxM    float64
}

// RadiusStats measures haversine distances from each point to center.
func RadiusStats(groups Groups, center orb.Point, radii []float64) []RadiusStat {
	out := make([]RadiusStat, 0, len(groups))
	for _, name := range groups.Names() {
		pts := groups[name]
		s := RadiusStat{
			Device:  name,
			Total:   len(pts),
			Within:  make([]int, len(radii)),
			Percent: make([]float64, len(radii)),
		}
		var sum float64
		for _, p := range pts {
			d := geo.DistanceHaversine(orb.Point{p.Longitude, p.Latitude}, center)
			sum += d
			s.MaxM = math.Max(s.MaxM, d)
			for i, r := range radii {
				if d <= r {
					s.Within[i]++
				}
			}
		}
		if s.Total > 0 {
			s.MeanM = sum / float64(s.Total)
			for i := range radii {
				s.Percent[i] = 100 * float64(s.Within[i]) / float64(s.Total)
			}
		}
		out = append(out, s)
	}
	return out
}

// Center returns the first point reference, used as the p1 target.
func Center(refs []models.Reference) (orb.Point, bool) {
	for _, r := range Select(refs, models.KindPoint) {
		if p, ok := r.Geometry.(orb.Point); ok {
			return p, true
		}
	}
	return orb.Point{}, false
}

// RingTable renders ring stats as CSV rows.
func RingTable(stats []models.DeviceStat) ([]string, [][]string) {
	header := []string{"device", "inside", "total", "percent"}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{s.Device, fmt.Sprint(s.Inside), fmt.Sprint(s.Total), fmt.Sprintf("%.1f", s.Percent)})
	}
	return header, rows
}

// RadiusTable renders radius stats as CSV rows, one within/percent column
// pair per radius.
func RadiusTable(stats []RadiusStat, radii []float64) ([]string, [][]string) {
	header := []string{"device", "total"}
	for _, r := range radii {
		header = append(header, fmt.Sprintf("within_%gm", r), fmt.Sprintf("percent_%gm", r))
	}
	header = append(header, "mean_m", "max_m")

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		row := []string{s.Device, fmt.Sprint(s.Total)}
		for i := range radii {
			row = append(row, fmt.Sprint(s.Within[i]), fmt.Sprintf("%.1f", s.Percent[i]))
		}
		rows = append(rows, append(row, fmt.Sprintf("%.3f", s.MeanM), fmt.Sprintf("%.3f", s.MaxM)))
	}
	return header, rows
}
