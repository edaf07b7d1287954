// Package protocol extracts the reference geometry of each measurement
// protocol from the planning KML.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"trackbench/internal/models"
	"trackbench/pkg/geom"
	"trackbench/pkg/kml"
	"trackbench/pkg/utm"
)

var (
	ErrNotLoaded       = errors.New("protocol: no KML loaded, call Load first")
	ErrUnknownProtocol = errors.New("protocol: unknown protocol key")
	ErrNoPoints        = errors.New("protocol: no points to derive a UTM zone from")
)

// Analyzer holds every placemark of a KML and the references selected for
// each protocol.
type Analyzer struct {
	path   string
	refs   []models.Reference
	byKey  map[models.Protocol][]models.Reference
	loaded bool
}

func New() *Analyzer {
	return &Analyzer{byKey: make(map[models.Protocol][]models.Reference)}
}

// Load reads the KML at path.
func (a *Analyzer) Load(path string) error {
	marks, err := kml.ReadFile(path)
	if err != nil {
		return err
	}
	a.path = path
	a.Use(marks)
	return nil
}

// Use replaces the loaded references with marks.
func (a *Analyzer) Use(marks []kml.Placemark) {
	a.refs = make([]models.Reference, 0, len(marks))
	for _, m := range marks {
		a.refs = append(a.refs, models.Reference{
			Name:        m.Name,
			Description: m.Description,
			Geometry:    m.Geometry,
		})
	}
	a.byKey = make(map[models.Protocol][]models.Reference)
	a.loaded = true
}

// Path is the KML passed to Load.
func (a *Analyzer) Path() string {
	return a.path
}

// Refs returns every placemark of the KML.
func (a *Analyzer) Refs() []models.Reference {
	return cloneRefs(a.refs)
}

// candidates lists the default selectors tried for a protocol.
func candidates(p models.Protocol) []string {
	n := p.Number()
	return []string{
		"Protocolo " + n,
		"Protocolo_" + n,
		"P" + n,
		"Protocol " + n,
		"p" + n,
	}
}

// SplitByProtocol assigns references to every protocol. A protocol with a
// configured pattern matches on it alone; others try the default candidates.
// When nothing matches, any reference mentioning the protocol digit is taken.
// The named artifacts built afterwards replace the raw selection when found.
func (a *Analyzer) SplitByProtocol(patterns map[models.Protocol]string) (map[models.Protocol][]models.Reference, error) {
	if !a.loaded {
		return nil, ErrNotLoaded
	}
	raw := make(map[models.Protocol][]models.Reference)
	for _, p := range models.Protocols {
		pats := candidates(p)
		if pat, ok := patterns[p]; ok && pat != "" {
			pats = []string{pat}
		}
		subset := a.filter(func(r models.Reference) bool {
			for _, pat := range pats {
				if containsFold(r.Name, pat) || containsFold(r.Description, pat) {
					return true
				}
			}
			return false
		})
		if len(subset) == 0 {
			n := p.Number()
			subset = a.filter(func(r models.Reference) bool {
				return strings.Contains(r.Name, n) || strings.Contains(r.Description, n)
			})
		}
		raw[p] = subset
	}

	a.byKey = make(map[models.Protocol][]models.Reference)
	artifacts := a.artifacts(raw[models.P2])
	for _, p := range models.Protocols {
		if arts := artifacts[p]; len(arts) > 0 {
			a.byKey[p] = arts
			continue
		}
		subset := raw[p]
		for i := range subset {
			subset[i].Kind = models.InferKind(subset[i].Name)
		}
		a.byKey[p] = subset
	}
	return a.cloneMap(), nil
}

func (a *Analyzer) artifacts(p2Subset []models.Reference) map[models.Protocol][]models.Reference {
	out := make(map[models.Protocol][]models.Reference)

	if g := a.firstNamed("P1 Point", "P1"); g != nil {
		out[models.P1] = []models.Reference{{Name: "P1 Point", Kind: models.KindPoint, Geometry: g}}
	}

	var p2 []models.Reference
	for _, c := range []struct {
		name    string
		kind    models.Kind
		lookups []string
	}{
		{"P2 OuterLine", models.KindOuter, []string{"P2 Outer", "OuterLine"}},
		{"P2 InnerLine", models.KindInner, []string{"P2 Inner", "Inner Line"}},
		{"P2 Start Line", models.KindStartLine, []string{"P2 Start", "Start Line"}},
	} {
		if g := a.firstNamed(c.lookups...); g != nil {
			p2 = append(p2, models.Reference{Name: c.name, Kind: c.kind, Geometry: g})
		}
	}
	if len(p2) == 0 {
		i := 0
		for _, r := range p2Subset {
			switch r.Geometry.(type) {
			case orb.LineString, orb.MultiLineString:
			default:
				continue
			}
			kind := models.Kind(fmt.Sprintf("line_%d", i))
			if i < 3 {
				kind = []models.Kind{models.KindOuter, models.KindInner, models.KindStartLine}[i]
			}
			name := r.Name
			if name == "" {
				name = fmt.Sprintf("p2_line_%d", i)
			}
			p2 = append(p2, models.Reference{Name: name, Description: r.Description, Kind: kind, Geometry: r.Geometry})
			i++
		}
	}
	out[models.P2] = p2

	trail := a.firstNamed("P3 Trail", "Trail")
	var start orb.Geometry
	for _, r := range p2 {
		if r.Kind == models.KindStartLine {
			start = r.Geometry
			break
		}
	}
	if start == nil {
		start = a.firstNamed("P2 Start", "Start Line")
	}
	var p3 []models.Reference
	if trail != nil {
		p3 = append(p3, models.Reference{Name: "P3 Trail", Kind: models.KindTrail, Geometry: trail})
		if start != nil {
			if pt, ok := geom.FirstIntersection(trail, start); ok {
				p3 = append(p3, models.Reference{Name: "P3 Crossing", Kind: models.KindCrossing, Geometry: pt})
			}
		}
	}
	out[models.P3] = p3
	return out
}

// firstNamed returns the geometry of the first reference whose name contains
// any lookup, trying lookups in order.
func (a *Analyzer) firstNamed(lookups ...string) orb.Geometry {
	for _, l := range lookups {
		for _, r := range a.refs {
			if containsFold(r.Name, l) {
				return r.Geometry
			}
		}
	}
	return nil
}

func (a *Analyzer) filter(keep func(models.Reference) bool) []models.Reference {
	var out []models.Reference
	for _, r := range a.refs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ProtocolRefs returns a copy of the references selected for p.
func (a *Analyzer) ProtocolRefs(p models.Protocol) ([]models.Reference, error) {
	refs, ok := a.byKey[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
	return cloneRefs(refs), nil
}

// NamedRefs returns the placemarks whose name contains substr, ignoring case.
func (a *Analyzer) NamedRefs(substr string) []models.Reference {
	return cloneRefs(a.filter(func(r models.Reference) bool {
		return containsFold(r.Name, substr)
	}))
}

func (a *Analyzer) P1Point() []models.Reference {
	return a.NamedRefs("P1 Point")
}

func (a *Analyzer) P2Components() map[models.Kind][]models.Reference {
	return map[models.Kind][]models.Reference{
		models.KindInner:     a.NamedRefs("P2 Inner Line"),
		models.KindOuter:     a.NamedRefs("P2 OuterLine"),
		models.KindStartLine: a.NamedRefs("P2 Start Line"),
	}
}

func (a *Analyzer) P3Components() map[models.Kind][]models.Reference {
	return map[models.Kind][]models.Reference{
		models.KindTrail:     a.NamedRefs("P3 Trail"),
		models.KindStartLine: a.NamedRefs("P3 Start Line"),
	}
}

// ProjectToEPSG reprojects the references of p, or of every protocol and the
// full placemark list when p is empty.
func (a *Analyzer) ProjectToEPSG(epsg int, p models.Protocol) error {
	if !a.loaded {
		return ErrNotLoaded
	}
	if p == "" {
		if err := reproject(a.refs, epsg); err != nil {
			return err
		}
		for k := range a.byKey {
			if err := reproject(a.byKey[k], epsg); err != nil {
				return err
			}
		}
		return nil
	}
	refs, ok := a.byKey[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
	return reproject(refs, epsg)
}

// ProjectForPoints moves the references into the UTM zone of the points'
// mean lon/lat and returns that zone's EPSG.
func (a *Analyzer) ProjectForPoints(points []models.Point, p models.Protocol) (int, error) {
	if len(points) == 0 {
		return 0, ErrNoPoints
	}
	var sumLon, sumLat float64
	for _, pt := range points {
		sumLon += pt.Longitude
		sumLat += pt.Latitude
	}
	n := float64(len(points))
	epsg := utm.ZoneEPSG(sumLon/n, sumLat/n)
	if err := a.ProjectToEPSG(epsg, p); err != nil {
		return 0, err
	}
	return epsg, nil
}

func reproject(refs []models.Reference, epsg int) error {
	for i := range refs {
		g, err := utm.Reproject(refs[i].Geometry, refs[i].EPSG, epsg)
		if err != nil {
			return fmt.Errorf("failed to reproject %q: %w", refs[i].Name, err)
		}
		refs[i].Geometry = g
		refs[i].EPSG = epsg
		if utm.Geographic(epsg) {
			refs[i].EPSG = 0
		}
	}
	return nil
}

func (a *Analyzer) cloneMap() map[models.Protocol][]models.Reference {
	out := make(map[models.Protocol][]models.Reference, len(a.byKey))
	for k, v := range a.byKey {
		out[k] = cloneRefs(v)
	}
	return out
}

func cloneRefs(refs []models.Reference) []models.Reference {
	if refs == nil {
		return nil
	}
	out := make([]models.Reference, len(refs))
	for i, r := range refs {
		out[i] = r
		if r.Geometry != nil {
			out[i].Geometry = orb.Clone(r.Geometry)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
