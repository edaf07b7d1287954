package mapview

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"trackbench/internal/models"
	"trackbench/pkg/geom"
)

func TestRender(t *testing.T) {
	ts := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	points := []models.Point{
		{Latitude: 40.4168, Longitude: -3.7038, Time: &ts, Group: "b_points"},
		{Latitude: 40.4169, Longitude: -3.7039, Group: "a_points"},
	}
	refs := []models.Reference{
		{Name: "P1 Point", Kind: models.KindPoint, Geometry: orb.Point{-3.70381234, 40.41681234}},
		{Name: "Outer", Kind: models.KindOuter, Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}},
	}

	tests := []struct {
		name     string
		opt      Options
		contains []string
		absent   []string
	}{
		{
			name: "p1 without stats",
			opt:  Options{Protocol: models.P1, Radii: []float64{0.5, 3}},
			contains: []string{
				"No data available",
				"<td>P1 Point</td><td>40.416812</td><td>-3.703812</td>",
				`"radii":[0.5,3]`,
				"<td>a_points</td>",
				"2024-05-10T09:00:00Z",
			},
			absent: []string{`"ring"`},
		},
		{
			name: "p2 with stats and ring",
			opt: Options{
				Protocol: models.P2,
				Radii:    []float64{0.5},
				Ring:     geom.Ring([]orb.Geometry{orb.LineString{{0, 0}, {1, 0}, {1, 1}}}, nil),
				Stats:    []models.DeviceStat{{Device: "a_points", Inside: 1, Total: 2, Percent: 50}},
			},
			contains: []string{"<td>1/2</td>", "<td>50.0%</td>", `"ring"`},
			absent:   []string{"No data available", `"radii"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Render(&buf, points, refs, tt.opt); err != nil {
				t.Fatalf("Render error: %v", err)
			}
			out := buf.String()
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("page is missing %q", s)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("page should not contain %q", s)
				}
			}
		})
	}
}

func TestShape(t *testing.T) {
	tests := []struct {
		name    string
		ref     models.Reference
		color   string
		marker  bool
		lines   int
		rings   bool
		options Options
	}{
		{"crossing", models.Reference{Name: "P3 Crossing", Kind: models.KindCrossing, Geometry: orb.Point{1, 2}}, "darkred", true, 0, false, Options{}},
		{"p1 rings", models.Reference{Name: "P1 Point", Kind: models.KindPoint, Geometry: orb.Point{1, 2}}, "red", true, 0, true, Options{Protocol: models.P1, Radii: []float64{1}}},
		{"unknown line", models.Reference{Name: "path", Geometry: orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}}, "black", false, 2, false, Options{}},
		{"trail", models.Reference{Name: "P3 Trail", Kind: models.KindTrail, Geometry: orb.LineString{{0, 0}, {1, 1}}}, "purple", false, 1, false, Options{}},
		{"polygon exterior", models.Reference{Kind: models.KindInner, Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, {{0.1, 0.1}, {0.2, 0.1}, {0.2, 0.2}, {0.1, 0.1}}}}, "green", false, 1, false, Options{}},
		{"other", models.Reference{Name: "pins", Geometry: orb.MultiPoint{{0, 0}, {2, 2}}}, "gray", true, 0, false, Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shape(tt.ref, tt.options)
			if s.Color != tt.color {
				t.Errorf("color = %s; want %s", s.Color, tt.color)
			}
			if (s.Marker != nil) != tt.marker || len(s.Lines) != tt.lines || (len(s.Radii) > 0) != tt.rings {
				t.Errorf("shape = %+v", s)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocolo3", "map_p3.html")
	if err := WriteFile(path, nil, nil, Options{Protocol: models.P3}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"center":{"lat":0,"lon":0}`) {
		t.Error("an empty map should centre on 0,0")
	}
}
