package utm

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Geographic reports whether epsg denotes lon/lat coordinates. Zero is taken
// as WGS84.
func Geographic(epsg int) bool {
	return epsg == 0 || epsg == WGS84
}

// Project returns a copy of a lon/lat geometry projected into the zone.
func Project(g orb.Geometry, epsg int) (orb.Geometry, error) {
	if _, _, err := Zone(epsg); err != nil {
		return nil, err
	}
	return project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		x, y, _ := Forward(p[0], p[1], epsg)
		return orb.Point{x, y}
	}), nil
}

// Unproject returns a copy of a UTM geometry converted back to lon/lat.
func Unproject(g orb.Geometry, epsg int) (orb.Geometry, error) {
	if _, _, err := Zone(epsg); err != nil {
		return nil, err
	}
	return project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		lon, lat, _ := Inverse(p[0], p[1], epsg)
		return orb.Point{lon, lat}
	}), nil
}

// Reproject converts g between two codes, each either geographic or UTM.
func Reproject(g orb.Geometry, from, to int) (orb.Geometry, error) {
	switch {
	case Geographic(from) && Geographic(to), from == to:
		return orb.Clone(g), nil
	case Geographic(from):
		return Project(g, to)
	case Geographic(to):
		return Unproject(g, from)
	}
	ll, err := Unproject(g, from)
	if err != nil {
		return nil, err
	}
	return Project(ll, to)
}
