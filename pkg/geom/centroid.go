package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Centroid returns the planar centroid of g, falling back to the bound centre
// for geometries orb cannot weight.
func Centroid(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	c, _ := planar.CentroidArea(g)
	if c == (orb.Point{}) {
		return g.Bound().Center()
	}
	return c
}

// Bound is the union of the bounds of every geometry. ok is false for an
// empty input.
func Bound(geoms []orb.Geometry) (b orb.Bound, ok bool) {
	for _, g := range geoms {
		if g == nil {
			continue
		}
		if !ok {
			b, ok = g.Bound(), true
			continue
		}
		b = b.Union(g.Bound())
	}
	return b, ok
}

// MeanPoint averages a set of points.
func MeanPoint(pts []orb.Point) (orb.Point, bool) {
	if len(pts) == 0 {
		return orb.Point{}, false
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(pts))
	return orb.Point{sx / n, sy / n}, true
}
