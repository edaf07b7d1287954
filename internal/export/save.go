package export

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"

	"trackbench/internal/keys"
	"trackbench/internal/models"
	"trackbench/pkg/utm"
)

// WritePointsGPKG writes points as a single layer named after the file. With a
// UTM epsg the geometry is stored projected, otherwise in EPSG:4326.
func WritePointsGPKG(path string, points []models.Point, epsg int) error {
	if len(points) == 0 {
		return ErrEmpty
	}
	srs := utm.WGS84
	if !utm.Geographic(epsg) {
		srs = epsg
	}
	l := layer{
		name:     models.Stem(path),
		geomType: "POINT",
		srsID:    srs,
		columns:  pointSchema(),
		features: make([]feature, 0, len(points)),
	}
	for _, p := range points {
		g, err := pointGeometry(p, srs)
		if err != nil {
			return err
		}
		l.features = append(l.features, feature{geom: g, values: pointValues(p)})
	}
	return writeGPKG(path, l)
}

func pointGeometry(p models.Point, srs int) (orb.Point, error) {
	if srs == utm.WGS84 {
		return orb.Point{p.Longitude, p.Latitude}, nil
	}
	if p.EPSG == srs {
		return orb.Point{p.X, p.Y}, nil
	}
	x, y, err := utm.Forward(p.Longitude, p.Latitude, srs)
	return orb.Point{x, y}, err
}

// SavePoints writes <base>.gpkg and <base>.geojson.
func SavePoints(base string, points []models.Point, epsg int) error {
	if len(points) == 0 {
		return ErrEmpty
	}
	if err := WritePointsGPKG(base+".gpkg", points, epsg); err != nil {
		return fmt.Errorf("failed to write gpkg: %w", err)
	}
	if err := WritePointsGeoJSON(base+".geojson", points); err != nil {
		return fmt.Errorf("failed to write geojson: %w", err)
	}
	return nil
}

// WriteRefsGPKG stores refs in EPSG:4326 with one layer per kind, in order of
// first appearance. An empty set yields one empty layer so the file still
// opens as a GeoPackage.
func WriteRefsGPKG(path string, p models.Protocol, refs []models.Reference) error {
	var (
		order  []models.Kind
		layers = make(map[models.Kind]*layer)
	)
	for _, r := range refs {
		if r.Geometry == nil {
			continue
		}
		g, err := utm.Reproject(r.Geometry, r.EPSG, utm.WGS84)
		if err != nil {
			return fmt.Errorf("ref %q: %w", r.Name, err)
		}
		l, ok := layers[r.Kind]
		if !ok {
			l = &layer{name: keys.RefsLayer(p, r.Kind), geomType: "GEOMETRY", srsID: utm.WGS84, columns: refSchema()}
			layers[r.Kind] = l
			order = append(order, r.Kind)
		}
		l.features = append(l.features, feature{geom: g, values: refValues(r)})
	}

	out := make([]layer, 0, len(order))
	for _, k := range order {
		out = append(out, *layers[k])
	}
	if len(out) == 0 {
		out = append(out, layer{name: keys.Refs(p), geomType: "GEOMETRY", srsID: utm.WGS84, columns: refSchema()})
	}
	return writeGPKG(path, out...)
}

// SaveRefs writes kml_refs_<p>.gpkg and kml_refs_<p>.geojson into dir.
func SaveRefs(dir string, p models.Protocol, refs []models.Reference) error {
	base := filepath.Join(dir, keys.Refs(p))
	if err := WriteRefsGPKG(base+".gpkg", p, refs); err != nil {
		return fmt.Errorf("failed to write refs gpkg: %w", err)
	}
	if err := WriteRefsGeoJSON(base+".geojson", refs); err != nil {
		return fmt.Errorf("failed to write refs geojson: %w", err)
	}
	return nil
}
