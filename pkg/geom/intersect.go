package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const eps = 1e-12

// Lines flattens a geometry into its line strings; polygons contribute their
// rings.
func Lines(g orb.Geometry) []orb.LineString {
	switch v := g.(type) {
	case orb.LineString:
		return []orb.LineString{v}
	case orb.MultiLineString:
		return append([]orb.LineString(nil), v...)
	case orb.Ring:
		return []orb.LineString{orb.LineString(v)}
	case orb.Polygon:
		var out []orb.LineString
		for _, r := range v {
			out = append(out, orb.LineString(r))
		}
		return out
	case orb.MultiPolygon:
		var out []orb.LineString
		for _, p := range v {
			out = append(out, Lines(p)...)
		}
		return out
	case orb.Collection:
		var out []orb.LineString
		for _, sub := range v {
			out = append(out, Lines(sub)...)
		}
		return out
	}
	return nil
}

// FirstIntersection walks a from its first vertex and returns the first point
// that also lies on b.
func FirstIntersection(a, b orb.Geometry) (orb.Point, bool) {
	targets := Lines(b)
	for _, la := range Lines(a) {
		for i := 0; i+1 < len(la); i++ {
			best, found := math.Inf(1), false
			var hit orb.Point
			for _, lb := range targets {
				for j := 0; j+1 < len(lb); j++ {
					p, ok := segmentIntersection(la[i], la[i+1], lb[j], lb[j+1])
					if !ok {
						continue
					}
					if d := planar.DistanceSquared(la[i], p); d < best {
						best, hit, found = d, p, true
					}
				}
			}
			if found {
				return hit, true
			}
		}
	}
	return orb.Point{}, false
}

// segmentIntersection returns the intersection of segments p1p2 and q1q2
// closest to p1. Collinear overlaps yield the overlap endpoint nearest p1.
func segmentIntersection(p1, p2, q1, q2 orb.Point) (orb.Point, bool) {
	r := orb.Point{p2[0] - p1[0], p2[1] - p1[1]}
	s := orb.Point{q2[0] - q1[0], q2[1] - q1[1]}
	qp := orb.Point{q1[0] - p1[0], q1[1] - p1[1]}
	denom := cross(r, s)
	rr := dot(r, r)
	if rr == 0 || dot(s, s) == 0 {
		return orb.Point{}, false
	}

	// Tolerances are relative so lon/lat and metre inputs behave alike.
	if math.Abs(denom) <= eps*math.Sqrt(rr*dot(s, s)) {
		if math.Abs(cross(qp, r)) > eps*math.Sqrt(rr*dot(qp, qp)) {
			return orb.Point{}, false
		}
		t0 := dot(qp, r) / rr
		t1 := t0 + dot(s, r)/rr
		lo, hi := math.Min(t0, t1), math.Max(t0, t1)
		if hi < 0 || lo > 1 {
			return orb.Point{}, false
		}
		t := math.Max(lo, 0)
		return orb.Point{p1[0] + t*r[0], p1[1] + t*r[1]}, true
	}

	t := cross(qp, s) / denom
	u := cross(qp, r) / denom
	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return orb.Point{}, false
	}
	return orb.Point{p1[0] + t*r[0], p1[1] + t*r[1]}, true
}

func onRing(r orb.Ring, pt orb.Point) bool {
	for i := 0; i+1 < len(r); i++ {
		if onSegment(r[i], r[i+1], pt) {
			return true
		}
	}
	return false
}

func onSegment(a, b, pt orb.Point) bool {
	ab := orb.Point{b[0] - a[0], b[1] - a[1]}
	ap := orb.Point{pt[0] - a[0], pt[1] - a[1]}
	rr := dot(ab, ab)
	if rr == 0 {
		return ap == orb.Point{}
	}
	if math.Abs(cross(ab, ap)) > eps*math.Sqrt(rr*dot(ap, ap)) {
		return false
	}
	t := dot(ap, ab) / rr
	return t >= -eps && t <= 1+eps
}

func cross(a, b orb.Point) float64 { return a[0]*b[1] - a[1]*b[0] }

func dot(a, b orb.Point) float64 { return a[0]*b[0] + a[1]*b[1] }
