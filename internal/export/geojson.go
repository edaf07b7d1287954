package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"trackbench/internal/models"
	"trackbench/pkg/utm"
)

// PointsCollection renders points as lon/lat features. Projected points keep
// their easting/northing in the x/y attributes.
func PointsCollection(points []models.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
		f.Properties = pointProps(p)
		fc.Append(f)
	}
	return fc
}

// RefsCollection renders references in EPSG:4326, unprojecting those stored
// in a UTM zone.
func RefsCollection(refs []models.Reference) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range refs {
		if r.Geometry == nil {
			continue
		}
		g, err := utm.Reproject(r.Geometry, r.EPSG, utm.WGS84)
		if err != nil {
			return nil, fmt.Errorf("ref %q: %w", r.Name, err)
		}
		f := geojson.NewFeature(g)
		f.Properties = refProps(r)
		fc.Append(f)
	}
	return fc, nil
}

func WritePointsGeoJSON(path string, points []models.Point) error {
	if len(points) == 0 {
		return ErrEmpty
	}
	return writeCollection(path, PointsCollection(points))
}

// WriteRefsGeoJSON writes refs to path. An empty set writes an empty
// collection.
func WriteRefsGeoJSON(path string, refs []models.Reference) error {
	fc, err := RefsCollection(refs)
	if err != nil {
		return err
	}
	return writeCollection(path, fc)
}

func writeCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// readCollection returns nil for a missing or empty file.
func readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return fc, nil
}

func pointsFromCollection(fc *geojson.FeatureCollection) []models.Point {
	var out []models.Point
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		p := pointFromProps(f.Properties)
		p.Longitude, p.Latitude = pt[0], pt[1]
		out = append(out, p)
	}
	return out
}

func refsFromCollection(fc *geojson.FeatureCollection) []models.Reference {
	var out []models.Reference
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		r := refFromProps(f.Properties)
		r.Geometry = f.Geometry
		out = append(out, r)
	}
	return out
}
