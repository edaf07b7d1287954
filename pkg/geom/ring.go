// Package geom holds the few planar helpers the protocol statistics need on
// top of orb: turning reference outlines into an area, crossing points and
// centroids.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Area is the region inside any outer polygon and outside every inner one.
type Area struct {
	Outer orb.MultiPolygon
	Inner orb.MultiPolygon
}

// Ring builds the area between outer and inner reference outlines. Line
// geometries are treated as the boundary of the polygon they enclose.
func Ring(outers, inners []orb.Geometry) Area {
	var a Area
	for _, g := range outers {
		a.Outer = append(a.Outer, Polygons(g)...)
	}
	for _, g := range inners {
		a.Inner = append(a.Inner, Polygons(g)...)
	}
	return a
}

// Empty reports whether the area can contain anything.
func (a Area) Empty() bool {
	return len(a.Outer) == 0
}

// Contains reports whether pt falls in the interior of the area. Points on
// an outer or inner boundary are outside.
func (a Area) Contains(pt orb.Point) bool {
	if a.Empty() || !Within(a.Outer, pt) {
		return false
	}
	return len(a.Inner) == 0 || !planar.MultiPolygonContains(a.Inner, pt)
}

// Within reports whether pt lies in the interior of any polygon of mp.
// Unlike planar.MultiPolygonContains, boundary points are not within.
func Within(mp orb.MultiPolygon, pt orb.Point) bool {
	for _, poly := range mp {
		if len(poly) == 0 || !planar.PolygonContains(poly, pt) {
			continue
		}
		if !onRing(poly[0], pt) {
			return true
		}
	}
	return false
}

// Outlines returns every boundary ring of the area for drawing.
func (a Area) Outlines() []orb.Ring {
	var out []orb.Ring
	for _, mp := range []orb.MultiPolygon{a.Outer, a.Inner} {
		for _, poly := range mp {
			out = append(out, poly...)
		}
	}
	return out
}

// Polygons converts a geometry into the polygons it bounds. Points and
// degenerate lines produce nothing.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return append([]orb.Polygon(nil), v...)
	case orb.Ring:
		return ringPolygon(orb.LineString(v))
	case orb.LineString:
		return ringPolygon(v)
	case orb.MultiLineString:
		var out []orb.Polygon
		for _, ls := range v {
			out = append(out, ringPolygon(ls)...)
		}
		return out
	case orb.Collection:
		var out []orb.Polygon
		for _, sub := range v {
			out = append(out, Polygons(sub)...)
		}
		return out
	}
	return nil
}

func ringPolygon(ls orb.LineString) []orb.Polygon {
	if len(ls) < 3 {
		return nil
	}
	r := append(orb.Ring(nil), ls...)
	if !r.Closed() {
		r = append(r, r[0])
	}
	if len(r) < 4 {
		return nil
	}
	return []orb.Polygon{{r}}
}
