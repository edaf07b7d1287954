package plot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"trackbench/internal/export"
	"trackbench/internal/models"
)

func square(x0, y0, x1, y1 float64) orb.LineString {
	return orb.LineString{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func seed(t *testing.T, clean string) {
	t.Helper()
	dir := filepath.Join(clean, models.P2.Dir())
	fenix := []models.Point{
		{Longitude: 1, Latitude: 1},
		{Longitude: 5, Latitude: 5},
	}
	if err := export.SavePoints(filepath.Join(dir, "Garmin_Fenix_5x_points"), fenix, 0); err != nil {
		t.Fatal(err)
	}
	iphone := []models.Point{{Longitude: 2, Latitude: 8}}
	if err := export.WritePointsGeoJSON(filepath.Join(dir, "Iphone_12_points.geojson"), iphone); err != nil {
		t.Fatal(err)
	}
	refs := []models.Reference{
		{Name: "P2 OuterLine", Kind: models.KindOuter, Geometry: square(0, 0, 10, 10)},
		{Name: "P2 InnerLine", Kind: models.KindInner, Geometry: square(4, 4, 6, 6)},
	}
	if err := export.SaveRefs(dir, models.P2, refs); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPoints_PrefersGPKG(t *testing.T) {
	clean := t.TempDir()
	seed(t, clean)
	pts, err := LoadPoints(filepath.Join(clean, "protocolo2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 3 {
		t.Fatalf("got %d points; want 3 (no duplicates from the fenix geojson)", len(pts))
	}
	if pts[0].Group != "Garmin_Fenix_5x_points" || pts[2].Group != "Iphone_12_points" {
		t.Errorf("groups = %q, %q", pts[0].Group, pts[2].Group)
	}
}

func TestProtocol_P2(t *testing.T) {
	clean, out := t.TempDir(), t.TempDir()
	seed(t, clean)

	o, err := New(clean, out, []float64{1, 3}).Protocol(models.P2)
	if err != nil {
		t.Fatalf("Protocol error: %v", err)
	}
	if o.Points != 3 || o.Refs != 2 {
		t.Errorf("output = %+v", o)
	}
	for _, name := range []string{"points_p2.geojson", "summary_p2.csv", "kml_refs_p2.geojson", "stats_p2.csv", "map_p2.html"} {
		if _, err := os.Stat(filepath.Join(out, "protocolo2", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	want := map[string][2]int{
		"Garmin_Fenix_5x_points": {1, 2},
		"Iphone_12_points":       {1, 1},
	}
	if len(o.Stats) != len(want) {
		t.Fatalf("stats = %+v", o.Stats)
	}
	for _, s := range o.Stats {
		if w := want[s.Device]; s.Inside != w[0] || s.Total != w[1] {
			t.Errorf("%s: %d/%d; want %d/%d", s.Device, s.Inside, s.Total, w[0], w[1])
		}
	}

	// Plotted points carry the tag into the GeoJSON.
	pts, err := export.ReadPoints(filepath.Join(out, "protocolo2", "points_p2.geojson"))
	if err != nil || len(pts) != 3 || pts[0].Group == "" {
		t.Errorf("plotted points = %+v, err %v", pts, err)
	}
}

func TestAll_SkipsMissing(t *testing.T) {
	clean, out := t.TempDir(), t.TempDir()
	seed(t, clean)
	got, err := New(clean, out, nil).All()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Protocol != models.P2 {
		t.Errorf("outputs = %+v", got)
	}
	if _, err := New(clean, out, nil).Protocol(models.P3); !errors.Is(err, ErrNoCleanDir) {
		t.Errorf("err = %v; want ErrNoCleanDir", err)
	}
}

func TestProtocol_EmptyDir(t *testing.T) {
	clean, out := t.TempDir(), t.TempDir()
	if err := os.MkdirAll(filepath.Join(clean, "protocolo1"), 0o755); err != nil {
		t.Fatal(err)
	}
	o, err := New(clean, out, []float64{1}).Protocol(models.P1)
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Files) != 1 || filepath.Base(o.Files[0]) != "map_p1.html" {
		t.Errorf("files = %v", o.Files)
	}
}
