package protocol

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"trackbench/internal/models"
	"trackbench/pkg/geom"
	"trackbench/pkg/utm"
)

// Match pairs a point with the reference it was joined to. Ref is nil when no
// reference qualified; DistanceM is NaN for within joins.
type Match struct {
	Point     models.Point
	Ref       *models.Reference
	DistanceM float64
}

// AttachNearest joins every point to its closest reference of p. Distances
// to lon/lat point references are haversine metres; everything else is
// measured in the references' UTM zone, or the point's own zone when the
// references are still lon/lat.
func (a *Analyzer) AttachNearest(points []models.Point, p models.Protocol) ([]Match, error) {
	refs, err := a.ProtocolRefs(p)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(points))
	for i, pt := range points {
		out[i] = Match{Point: pt, DistanceM: math.Inf(1)}
		for j := range refs {
			d, err := distance(pt, refs[j])
			if err != nil {
				return nil, err
			}
			if d < out[i].DistanceM {
				out[i].DistanceM = d
				out[i].Ref = &refs[j]
			}
		}
		if out[i].Ref == nil {
			out[i].DistanceM = math.NaN()
		}
	}
	return out, nil
}

func distance(pt models.Point, ref models.Reference) (float64, error) {
	if ref.Geometry == nil {
		return math.Inf(1), nil
	}
	ll := orb.Point{pt.Longitude, pt.Latitude}
	if utm.Geographic(ref.EPSG) {
		if rp, ok := ref.Geometry.(orb.Point); ok {
			return geo.DistanceHaversine(ll, rp), nil
		}
		epsg := utm.ZoneEPSG(pt.Longitude, pt.Latitude)
		g, err := utm.Project(ref.Geometry, epsg)
		if err != nil {
			return 0, err
		}
		x, y, err := utm.Forward(pt.Longitude, pt.Latitude, epsg)
		if err != nil {
			return 0, err
		}
		return planar.DistanceFrom(g, orb.Point{x, y}), nil
	}
	xy, err := pointIn(pt, ref.EPSG)
	if err != nil {
		return 0, err
	}
	return planar.DistanceFrom(ref.Geometry, xy), nil
}

// AttachWithin tags each point with the first polygonal reference of p that
// contains it.
func (a *Analyzer) AttachWithin(points []models.Point, p models.Protocol) ([]Match, error) {
	refs, err := a.ProtocolRefs(p)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(points))
	for i, pt := range points {
		out[i] = Match{Point: pt, DistanceM: math.NaN()}
		for j := range refs {
			ok, err := within(pt, refs[j])
			if err != nil {
				return nil, err
			}
			if ok {
				out[i].Ref = &refs[j]
				break
			}
		}
	}
	return out, nil
}

func within(pt models.Point, ref models.Reference) (bool, error) {
	xy, err := pointIn(pt, ref.EPSG)
	if err != nil {
		return false, err
	}
	switch g := ref.Geometry.(type) {
	case orb.Polygon:
		return geom.Within(orb.MultiPolygon{g}, xy), nil
	case orb.MultiPolygon:
		return geom.Within(g, xy), nil
	}
	return false, nil
}

// pointIn returns the point's coordinates in the given code.
func pointIn(pt models.Point, epsg int) (orb.Point, error) {
	switch {
	case utm.Geographic(epsg):
		return orb.Point{pt.Longitude, pt.Latitude}, nil
	case pt.EPSG == epsg:
		return orb.Point{pt.X, pt.Y}, nil
	}
	x, y, err := utm.Forward(pt.Longitude, pt.Latitude, epsg)
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to place point in EPSG:%d: %w", epsg, err)
	}
	return orb.Point{x, y}, nil
}
