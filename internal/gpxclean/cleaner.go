// Package gpxclean flattens GPX files into points, filters them to a time
// window and projects them to UTM.
package gpxclean

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"trackbench/internal/models"
	"trackbench/pkg/utm"
)

var ErrNotLoaded = errors.New("gpxclean: no data loaded, call Load first")

// Open bounds used when only one end of a time window is configured.
const (
	DefaultStart = "1970-01-01"
	DefaultEnd   = "2100-01-01"
)

// Cleaner holds the points of the files passed to Load. It is not safe for
// concurrent mutation.
type Cleaner struct {
	points []models.Point
	loaded bool
}

func New() *Cleaner {
	return &Cleaner{}
}

// Load reads every GPX in paths, replacing any previously loaded points.
// Missing files are logged and skipped; a file that fails to parse is an error.
func (c *Cleaner) Load(paths []string) error {
	c.points = nil
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			log.Printf("GPX file not found: %s", path)
			continue
		}
		g, err := gpx.ParseFile(path)
		if err != nil {
			return fmt.Errorf("failed to parse gpx %s: %w", path, err)
		}
		before := len(c.points)
		c.points = append(c.points, flatten(g, path)...)
		log.Printf("Loaded %d points from %s", len(c.points)-before, path)
	}
	c.loaded = true
	return nil
}

func flatten(g *gpx.GPX, source string) []models.Point {
	var out []models.Point
	for t := range g.Tracks {
		for s := range g.Tracks[t].Segments {
			for i := range g.Tracks[t].Segments[s].Points {
				p := fromGPX(&g.Tracks[t].Segments[s].Points[i], source)
				p.TrackID = fmt.Sprint(t)
				p.SegmentID = intPtr(s)
				p.PtIndex = intPtr(i)
				out = append(out, p)
			}
		}
	}
	for i := range g.Waypoints {
		out = append(out, fromGPX(&g.Waypoints[i], source))
	}
	for r := range g.Routes {
		for i := range g.Routes[r].Points {
			p := fromGPX(&g.Routes[r].Points[i], source)
			p.TrackID = fmt.Sprintf("route_%d", r)
			p.PtIndex = intPtr(i)
			out = append(out, p)
		}
	}
	return out
}

func fromGPX(pt *gpx.GPXPoint, source string) models.Point {
	p := models.Point{
		Latitude:   pt.Latitude,
		Longitude:  pt.Longitude,
		SourceFile: source,
	}
	if pt.Elevation.NotNull() {
		e := pt.Elevation.Value()
		p.Elevation = &e
	}
	if !pt.Timestamp.IsZero() {
		ts := pt.Timestamp.UTC()
		p.Time = &ts
	}
	return p
}

func intPtr(i int) *int { return &i }

// Points returns a copy of the loaded points, limited to sources when given.
func (c *Cleaner) Points(sources ...string) ([]models.Point, error) {
	if !c.loaded {
		return nil, ErrNotLoaded
	}
	sel := selector(sources)
	var out []models.Point
	for _, p := range c.points {
		if sel(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// FilterTimeRange keeps points whose time falls within [start, end]. Blank
// bounds default to DefaultStart and DefaultEnd. With sources only those
// files' points are filtered and the rest are left untouched. Points without
// a timestamp never pass a filter.
func (c *Cleaner) FilterTimeRange(start, end string, sources ...string) error {
	if !c.loaded {
		return ErrNotLoaded
	}
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}
	from, err := ParseTime(start)
	if err != nil {
		return fmt.Errorf("bad start bound: %w", err)
	}
	to, err := ParseTime(end)
	if err != nil {
		return fmt.Errorf("bad end bound: %w", err)
	}

	sel := selector(sources)
	kept := c.points[:0]
	for _, p := range c.points {
		if !sel(p) || (p.HasTime() && !p.Time.Before(from) && !p.Time.After(to)) {
			kept = append(kept, p)
		}
	}
	c.points = kept
	return nil
}

// ToUTM projects the selected points and records the zone on each. With epsg
// zero the zone is taken from the mean lon/lat of the selection. The EPSG used
// is returned; an empty selection returns zero.
func (c *Cleaner) ToUTM(epsg int, sources ...string) (int, error) {
	if !c.loaded {
		return 0, ErrNotLoaded
	}
	sel := selector(sources)
	var idx []int
	var sumLon, sumLat float64
	for i, p := range c.points {
		if sel(p) {
			idx = append(idx, i)
			sumLon += p.Longitude
			sumLat += p.Latitude
		}
	}
	if len(idx) == 0 {
		return 0, nil
	}
	if epsg == 0 {
		n := float64(len(idx))
		epsg = utm.ZoneEPSG(sumLon/n, sumLat/n)
	}
	for _, i := range idx {
		p := &c.points[i]
		x, y, err := utm.Forward(p.Longitude, p.Latitude, epsg)
		if err != nil {
			return 0, fmt.Errorf("failed to project to EPSG:%d: %w", epsg, err)
		}
		p.X, p.Y, p.EPSG = x, y, epsg
	}
	return epsg, nil
}

func selector(sources []string) func(models.Point) bool {
	if len(sources) == 0 {
		return func(models.Point) bool { return true }
	}
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	return func(p models.Point) bool {
		_, ok := set[p.SourceFile]
		return ok
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339 with or without zone, "2006-01-02 15:04:05" and a
// bare date. Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
