package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"trackbench/internal/models"
	"trackbench/pkg/utm"
)

var ErrFormat = errors.New("export: unsupported file format")

// ReadPoints loads points from a .gpkg (first feature layer) or .geojson
// file. A missing or empty file yields no points and no error.
func ReadPoints(path string) ([]models.Point, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		fc, err := readCollection(path)
		if err != nil || fc == nil {
			return nil, err
		}
		return pointsFromCollection(fc), nil
	case ".gpkg":
		layers, err := readStored(path)
		if err != nil || len(layers) == 0 {
			return nil, err
		}
		return pointsFromLayer(layers[0])
	}
	return nil, fmt.Errorf("%w: %s", ErrFormat, path)
}

func pointsFromLayer(l storedLayer) ([]models.Point, error) {
	projected := !utm.Geographic(l.srsID)
	out := make([]models.Point, 0, len(l.rows))
	for _, r := range l.rows {
		pt, ok := r.geom.(orb.Point)
		if !ok {
			continue
		}
		p := pointFromProps(r.props)
		if projected {
			lon, lat, err := utm.Inverse(pt[0], pt[1], l.srsID)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", l.name, err)
			}
			p.Longitude, p.Latitude = lon, lat
			p.X, p.Y, p.EPSG = pt[0], pt[1], l.srsID
		} else {
			p.Longitude, p.Latitude = pt[0], pt[1]
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadRefs loads references from every layer of a .gpkg, or from a .geojson
// file, in EPSG:4326.
func ReadRefs(path string) ([]models.Reference, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		fc, err := readCollection(path)
		if err != nil || fc == nil {
			return nil, err
		}
		return refsFromCollection(fc), nil
	case ".gpkg":
		layers, err := readStored(path)
		if err != nil {
			return nil, err
		}
		var out []models.Reference
		for _, l := range layers {
			for _, row := range l.rows {
				if row.geom == nil {
					continue
				}
				g, err := utm.Reproject(row.geom, l.srsID, utm.WGS84)
				if err != nil {
					return nil, fmt.Errorf("layer %s: %w", l.name, err)
				}
				ref := refFromProps(row.props)
				ref.Geometry = g
				out = append(out, ref)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFormat, path)
}

// readStored opens a GeoPackage, treating a missing or zero-length file as
// empty.
func readStored(path string) ([]storedLayer, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}
	return readGPKG(path)
}
