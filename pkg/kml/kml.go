// Package kml reads placemarks out of a KML document as orb geometries.
//
// Only the geometry subset used for reference planning is understood: Point,
// LineString, LinearRing, Polygon and MultiGeometry nested at any depth of
// Document and Folder elements. Styles, overlays and extended data are ignored.
package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var ErrNoPlacemarks = errors.New("kml: no placemarks with geometry")

// Placemark is a named geometry from the document.
type Placemark struct {
	Name        string
	Description string
	// Folder is the slash-joined path of enclosing Folder/Document names.
	Folder   string
	Geometry orb.Geometry
}

type kmlFile struct {
	XMLName  xml.Name    `xml:"kml"`
	Document *container  `xml:"Document"`
	Folders  []container `xml:"Folder"`
	Marks    []placemark `xml:"Placemark"`
}

type container struct {
	Name      string      `xml:"name"`
	Documents []container `xml:"Document"`
	Folders   []container `xml:"Folder"`
	Marks     []placemark `xml:"Placemark"`
}

type placemark struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Point       *point         `xml:"Point"`
	LineString  *lineString    `xml:"LineString"`
	LinearRing  *lineString    `xml:"LinearRing"`
	Polygon     *polygon       `xml:"Polygon"`
	Multi       *multiGeometry `xml:"MultiGeometry"`
}

type point struct {
	Coordinates string `xml:"coordinates"`
}

type lineString struct {
	Coordinates string `xml:"coordinates"`
}

type boundary struct {
	LinearRing lineString `xml:"LinearRing"`
}

type polygon struct {
	Outer boundary   `xml:"outerBoundaryIs"`
	Inner []boundary `xml:"innerBoundaryIs"`
}

type multiGeometry struct {
	Points      []point         `xml:"Point"`
	LineStrings []lineString    `xml:"LineString"`
	LinearRings []lineString    `xml:"LinearRing"`
	Polygons    []polygon       `xml:"Polygon"`
	Multi       []multiGeometry `xml:"MultiGeometry"`
}

// ReadFile parses the KML at path.
func ReadFile(path string) ([]Placemark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kml: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a KML document. Placemarks without geometry are skipped; a
// document with none left fails with ErrNoPlacemarks.
func Read(r io.Reader) ([]Placemark, error) {
	var doc kmlFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode kml: %w", err)
	}

	var out []Placemark
	root := container{Folders: doc.Folders, Marks: doc.Marks}
	if doc.Document != nil {
		root.Documents = append(root.Documents, *doc.Document)
	}
	if err := walk(root, "", &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoPlacemarks
	}
	return out, nil
}

func walk(c container, path string, out *[]Placemark) error {
	for _, m := range c.Marks {
		geom, err := m.geometry()
		if err != nil {
			return fmt.Errorf("placemark %q: %w", m.Name, err)
		}
		if geom == nil {
			continue
		}
		*out = append(*out, Placemark{
			Name:        strings.TrimSpace(m.Name),
			Description: strings.TrimSpace(m.Description),
			Folder:      path,
			Geometry:    geom,
		})
	}
	for _, d := range c.Documents {
		if err := walk(d, join(path, d.Name), out); err != nil {
			return err
		}
	}
	for _, f := range c.Folders {
		if err := walk(f, join(path, f.Name), out); err != nil {
			return err
		}
	}
	return nil
}

func join(path, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return path
	case path == "":
		return name
	}
	return path + "/" + name
}

func (m placemark) geometry() (orb.Geometry, error) {
	switch {
	case m.Point != nil:
		return m.Point.point()
	case m.LineString != nil:
		return m.LineString.line()
	case m.LinearRing != nil:
		ls, err := m.LinearRing.line()
		if err != nil {
			return nil, err
		}
		return closeRing(orb.Ring(ls)), nil
	case m.Polygon != nil:
		return m.Polygon.polygon()
	case m.Multi != nil:
		return m.Multi.geometry()
	}
	return nil, nil
}

func (p point) point() (orb.Point, error) {
	pts, err := parseCoordinates(p.Coordinates)
	if err != nil {
		return orb.Point{}, err
	}
	if len(pts) != 1 {
		return orb.Point{}, fmt.Errorf("point has %d coordinates", len(pts))
	}
	return pts[0], nil
}

func (l lineString) line() (orb.LineString, error) {
	pts, err := parseCoordinates(l.Coordinates)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("line has %d coordinates", len(pts))
	}
	return orb.LineString(pts), nil
}

func (p polygon) polygon() (orb.Polygon, error) {
	outer, err := p.Outer.LinearRing.line()
	if err != nil {
		return nil, fmt.Errorf("outer boundary: %w", err)
	}
	poly := orb.Polygon{closeRing(orb.Ring(outer))}
	for i, b := range p.Inner {
		inner, err := b.LinearRing.line()
		if err != nil {
			return nil, fmt.Errorf("inner boundary %d: %w", i, err)
		}
		poly = append(poly, closeRing(orb.Ring(inner)))
	}
	return poly, nil
}

// geometry collapses a MultiGeometry into the matching orb multi type when its
// members are homogeneous and into a Collection otherwise.
func (m multiGeometry) geometry() (orb.Geometry, error) {
	var (
		points   orb.MultiPoint
		lines    orb.MultiLineString
		polygons orb.MultiPolygon
		all      orb.Collection
	)
	for _, p := range m.Points {
		g, err := p.point()
		if err != nil {
			return nil, err
		}
		points = append(points, g)
		all = append(all, g)
	}
	for _, l := range m.LineStrings {
		g, err := l.line()
		if err != nil {
			return nil, err
		}
		lines = append(lines, g)
		all = append(all, g)
	}
	for _, l := range m.LinearRings {
		g, err := l.line()
		if err != nil {
			return nil, err
		}
		poly := orb.Polygon{closeRing(orb.Ring(g))}
		polygons = append(polygons, poly)
		all = append(all, poly)
	}
	for _, p := range m.Polygons {
		g, err := p.polygon()
		if err != nil {
			return nil, err
		}
		polygons = append(polygons, g)
		all = append(all, g)
	}
	for _, sub := range m.Multi {
		g, err := sub.geometry()
		if err != nil {
			return nil, err
		}
		if g != nil {
			all = append(all, g)
		}
	}

	switch {
	case len(all) == 0:
		return nil, nil
	case len(points) == len(all):
		return points, nil
	case len(lines) == len(all):
		return lines, nil
	case len(polygons) == len(all):
		return polygons, nil
	}
	return all, nil
}

// parseCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
func parseCoordinates(s string) ([]orb.Point, error) {
	var pts []orb.Point
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad coordinate tuple %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude in %q: %w", tuple, err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude in %q: %w", tuple, err)
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}
