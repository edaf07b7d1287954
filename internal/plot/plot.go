// Package plot turns a protocol's cleaned files into the web map, GeoJSON,
// CSV summary and statistics that make up the plot results.
package plot

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"trackbench/internal/export"
	"trackbench/internal/keys"
	"trackbench/internal/mapview"
	"trackbench/internal/models"
	"trackbench/internal/stats"
)

var ErrNoCleanDir = errors.New("plot: clean directory not found")

// Output describes what was produced for one protocol.
type Output struct {
	Protocol models.Protocol
	Dir      string
	Points   int
	Refs     int
	Files    []string
	Stats    []models.DeviceStat
}

// Plotter reads <clean>/protocoloN and writes <plot>/protocoloN.
type Plotter struct {
	cleanDir string
	plotDir  string
	radii    []float64
}

func New(cleanDir, plotDir string, radii []float64) *Plotter {
	return &Plotter{cleanDir: cleanDir, plotDir: plotDir, radii: radii}
}

// All plots every protocol, skipping those without a clean directory.
func (p *Plotter) All() ([]Output, error) {
	var out []Output
	for _, proto := range models.Protocols {
		o, err := p.Protocol(proto)
		if errors.Is(err, ErrNoCleanDir) {
			log.Printf("Skipping %s: no directory", proto.Dir())
			continue
		}
		if err != nil {
			return out, fmt.Errorf("%s: %w", proto, err)
		}
		out = append(out, *o)
	}
	return out, nil
}

// Load returns the tagged points and the refs of a protocol's clean
// directory.
func (p *Plotter) Load(proto models.Protocol) ([]models.Point, []models.Reference, error) {
	dir := filepath.Join(p.cleanDir, proto.Dir())
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoCleanDir, dir)
	}
	points, err := LoadPoints(dir)
	if err != nil {
		return nil, nil, err
	}
	refs, err := LoadRefs(dir, proto)
	if err != nil {
		return nil, nil, err
	}
	return points, refs, nil
}

// Protocol writes every output for one protocol.
func (p *Plotter) Protocol(proto models.Protocol) (*Output, error) {
	points, refs, err := p.Load(proto)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Protocol: proto,
		Dir:      filepath.Join(p.plotDir, proto.Dir()),
		Points:   len(points),
		Refs:     len(refs),
	}
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(out.Dir, name)
		if err := fn(path); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out.Files = append(out.Files, path)
		return nil
	}

	if len(points) > 0 {
		if err := write(keys.PointsGeoJSON(proto), func(path string) error {
			return export.WritePointsGeoJSON(path, points)
		}); err != nil {
			return nil, err
		}
		if err := write(keys.Summary(proto), func(path string) error {
			return export.WriteSummary(path, points)
		}); err != nil {
			return nil, err
		}
	}
	if len(refs) > 0 {
		if err := write(keys.Refs(proto)+".geojson", func(path string) error {
			return export.WriteRefsGeoJSON(path, refs)
		}); err != nil {
			return nil, err
		}
	}

	opt := mapview.Options{Protocol: proto, Radii: p.radii}
	groups := stats.Group(points)
	switch proto {
	case models.P2:
		area := stats.RingArea(refs)
		if !area.Empty() && len(points) > 0 {
			opt.Ring = area
			out.Stats = stats.RingStats(groups, area)
			opt.Stats = out.Stats
			header, rows := stats.RingTable(out.Stats)
			if err := write(keys.Stats(proto), func(path string) error {
				return export.WriteTable(path, header, rows)
			}); err != nil {
				return nil, err
			}
		}
	case models.P1:
		if center, ok := stats.Center(refs); ok && len(points) > 0 {
			header, rows := stats.RadiusTable(stats.RadiusStats(groups, center, p.radii), p.radii)
			if err := write(keys.Stats(proto), func(path string) error {
				return export.WriteTable(path, header, rows)
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := write(keys.Map(proto), func(path string) error {
		return mapview.WriteFile(path, points, refs, opt)
	}); err != nil {
		return nil, err
	}
	log.Printf("Protocol %s: %d points, %d refs, %d files in %s", proto, out.Points, out.Refs, len(out.Files), out.Dir)
	return out, nil
}

// LoadPoints reads every *_points file of dir, preferring the GeoPackage
// over the GeoJSON of the same stem. Points are tagged with the file stem.
func LoadPoints(dir string) ([]models.Point, error) {
	gpkgs, err := filepath.Glob(filepath.Join(dir, "*_points.gpkg"))
	if err != nil {
		return nil, err
	}
	geojsons, err := filepath.Glob(filepath.Join(dir, "*_points.geojson"))
	if err != nil {
		return nil, err
	}
	sort.Strings(gpkgs)
	sort.Strings(geojsons)

	seen := make(map[string]bool)
	files := append([]string(nil), gpkgs...)
	for _, f := range gpkgs {
		seen[models.Stem(f)] = true
	}
	for _, f := range geojsons {
		if !seen[models.Stem(f)] {
			files = append(files, f)
		}
	}

	var out []models.Point
	for _, f := range files {
		pts, err := export.ReadPoints(f)
		if err != nil {
			log.Printf("Skipping %s: %v", f, err)
			continue
		}
		stem := models.Stem(f)
		for i := range pts {
			pts[i].Group = stem
		}
		out = append(out, pts...)
	}
	return out, nil
}

// LoadRefs reads kml_refs_<p>.gpkg, else the GeoJSON.
func LoadRefs(dir string, proto models.Protocol) ([]models.Reference, error) {
	for _, ext := range []string{".gpkg", ".geojson"} {
		path := filepath.Join(dir, keys.Refs(proto)+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		refs, err := export.ReadRefs(path)
		if err != nil {
			log.Printf("kml refs file exists but failed to load: %s: %v", path, err)
			return nil, nil
		}
		return refs, nil
	}
	return nil, nil
}
