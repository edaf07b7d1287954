// Package mapview renders a protocol's points and references as a
// self-contained Leaflet page.
package mapview

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"trackbench/internal/models"
	"trackbench/internal/stats"
	"trackbench/pkg/geom"
)

//go:embed map.html.tmpl
var pageTemplate string

var page = template.Must(template.New("map").Parse(pageTemplate))

const defaultZoom = 16

// Palette colours device layers in sorted device order, cycling when there
// are more devices than colours.
var Palette = []string{"blue", "green", "orange", "purple", "darkred", "cadetblue", "darkgreen", "black"}

var kindColors = map[models.Kind]string{
	models.KindOuter:     "blue",
	models.KindInner:     "green",
	models.KindStartLine: "red",
	models.KindTrail:     "purple",
	models.KindCrossing:  "darkred",
	models.KindPoint:     "red",
}

// Options tune a map beyond its points and references.
type Options struct {
	Protocol models.Protocol
	// Radii are drawn as real-metre circles around p1 reference points.
	Radii []float64
	// Ring is outlined when non-empty.
	Ring geom.Area
	// Stats fill the legend's ring statistics table.
	Stats []models.DeviceStat
}

type latLon [2]float64

type refShape struct {
	Name   string     `json:"name"`
	Popup  string     `json:"popup"`
	Color  string     `json:"color"`
	Marker *latLon    `json:"marker,omitempty"`
	Radius int        `json:"radius,omitempty"`
	Lines  [][]latLon `json:"lines,omitempty"`
	Radii  []float64  `json:"radii,omitempty"`
}

type pointMarker struct {
	At    latLon `json:"at"`
	Popup string `json:"popup"`
}

type deviceLayer struct {
	Name   string        `json:"name"`
	Color  string        `json:"color"`
	Points []pointMarker `json:"points"`
}

type refRow struct {
	Name string
	At   models.Coordinates
}

type statRow struct {
	Device  string
	Ratio   string
	Percent string
}

// mapData is serialised into the page script.
type mapData struct {
	Center  models.Coordinates `json:"center"`
	Zoom    int                `json:"zoom"`
	Bounds  []latLon           `json:"bounds,omitempty"`
	Refs    []refShape         `json:"refs"`
	Devices []deviceLayer      `json:"devices"`
	Ring    [][]latLon         `json:"ring,omitempty"`
}

type pageData struct {
	Title   string
	Data    mapData
	Legend  []deviceLayer
	RefRows []refRow
	Stats   []statRow
}

// Render writes the page for points and refs, both in lon/lat.
func Render(w io.Writer, points []models.Point, refs []models.Reference, opt Options) error {
	groups := stats.Group(points)
	d := pageData{
		Title: fmt.Sprintf("Protocol %s", opt.Protocol),
		Data: mapData{
			Zoom:    defaultZoom,
			Refs:    []refShape{},
			Devices: []deviceLayer{},
		},
	}

	var ll []orb.Point
	for _, p := range points {
		ll = append(ll, orb.Point{p.Longitude, p.Latitude})
	}
	var refGeoms []orb.Geometry
	for _, r := range refs {
		if r.Geometry != nil {
			refGeoms = append(refGeoms, r.Geometry)
		}
	}

	center, ok := geom.MeanPoint(ll)
	if !ok {
		var centroids []orb.Point
		for _, g := range refGeoms {
			centroids = append(centroids, geom.Centroid(g))
		}
		center, _ = geom.MeanPoint(centroids)
	}
	d.Data.Center = coordinates(center)

	if len(ll) > 0 {
		d.Data.Bounds = boundCorners(orb.MultiPoint(ll).Bound())
	} else if b, ok := geom.Bound(refGeoms); ok {
		d.Data.Bounds = boundCorners(b)
	}

	for _, r := range refs {
		if r.Geometry == nil {
			continue
		}
		d.Data.Refs = append(d.Data.Refs, shape(r, opt))
		d.RefRows = append(d.RefRows, refRow{Name: r.Name, At: coordinates(geom.Centroid(r.Geometry))})
	}

	for i, name := range groups.Names() {
		layer := deviceLayer{Name: name, Color: Palette[i%len(Palette)]}
		for _, p := range groups[name] {
			popup := ""
			if p.HasTime() {
				popup = p.Time.UTC().Format(time.RFC3339)
			}
			layer.Points = append(layer.Points, pointMarker{At: latLon{p.Latitude, p.Longitude}, Popup: popup})
		}
		d.Data.Devices = append(d.Data.Devices, layer)
		d.Legend = append(d.Legend, deviceLayer{Name: layer.Name, Color: layer.Color})
	}

	if !opt.Ring.Empty() {
		for _, r := range opt.Ring.Outlines() {
			d.Data.Ring = append(d.Data.Ring, line(orb.LineString(r)))
		}
	}

	for _, s := range opt.Stats {
		d.Stats = append(d.Stats, statRow{
			Device:  s.Device,
			Ratio:   fmt.Sprintf("%d/%d", s.Inside, s.Total),
			Percent: fmt.Sprintf("%.1f%%", s.Percent),
		})
	}

	return page.Execute(w, d)
}

// WriteFile renders the page into path.
func WriteFile(path string, points []models.Point, refs []models.Reference, opt Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := Render(f, points, refs, opt); err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}
	return f.Close()
}

func shape(r models.Reference, opt Options) refShape {
	kind := models.Kind(strings.ToLower(string(r.Kind)))
	s := refShape{Name: r.Name, Popup: fmt.Sprintf("KML ref (%s)", kind)}
	if r.Name != "" {
		s.Popup = fmt.Sprintf("%s (%s)", r.Name, kind)
	}

	_, isPoint := r.Geometry.(orb.Point)
	lines := geom.Lines(r.Geometry)
	switch {
	case isPoint || kind == models.KindPoint || kind == models.KindCrossing:
		s.Color = colorOr(kind, "red")
		c := toLatLon(geom.Centroid(r.Geometry))
		s.Marker, s.Radius = &c, 6
		if opt.Protocol == models.P1 && (kind == models.KindPoint || strings.Contains(strings.ToLower(s.Popup), "p1")) {
			s.Radii = opt.Radii
		}
	case len(lines) > 0:
		s.Color = colorOr(kind, "black")
		for _, l := range exteriors(r.Geometry, lines) {
			s.Lines = append(s.Lines, line(l))
		}
	default:
		s.Color = "gray"
		c := toLatLon(geom.Centroid(r.Geometry))
		s.Marker, s.Radius = &c, 5
	}
	return s
}

// exteriors keeps only the outer ring of polygons.
func exteriors(g orb.Geometry, lines []orb.LineString) []orb.LineString {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.LineString{orb.LineString(v[0])}
	case orb.MultiPolygon:
		var out []orb.LineString
		for _, p := range v {
			if len(p) > 0 {
				out = append(out, orb.LineString(p[0]))
			}
		}
		return out
	}
	return lines
}

func colorOr(kind models.Kind, def string) string {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	return def
}

func toLatLon(p orb.Point) latLon { return latLon{p[1], p[0]} }

func coordinates(p orb.Point) models.Coordinates {
	return models.Coordinates{Lat: p[1], Lon: p[0]}
}

func line(ls orb.LineString) []latLon {
	out := make([]latLon, len(ls))
	for i, p := range ls {
		out[i] = toLatLon(p)
	}
	return out
}

func boundCorners(b orb.Bound) []latLon {
	return []latLon{{b.Min[1], b.Min[0]}, {b.Max[1], b.Max[0]}}
}
