package gpxclean

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="trackbench" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="40.4170" lon="-3.7040"><ele>651</ele><name>start</name></wpt>
  <rte>
    <rtept lat="40.4180" lon="-3.7050"></rtept>
    <rtept lat="40.4181" lon="-3.7051"></rtept>
  </rte>
  <trk>
    <trkseg>
      <trkpt lat="40.4168" lon="-3.7038"><ele>650.5</ele><time>2024-05-10T09:00:00Z</time></trkpt>
      <trkpt lat="40.4169" lon="-3.7039"><time>2024-05-10T09:30:00Z</time></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="40.4170" lon="-3.7040"><time>2024-05-10T10:30:00Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func writeGPX(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Flatten(t *testing.T) {
	dir := t.TempDir()
	path := writeGPX(t, dir, "fenix5.gpx")

	c := New()
	if err := c.Load([]string{path, filepath.Join(dir, "missing.gpx")}); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	pts, err := c.Points()
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 6 {
		t.Fatalf("got %d points; want 6", len(pts))
	}

	first := pts[0]
	if first.TrackID != "0" || *first.SegmentID != 0 || *first.PtIndex != 0 {
		t.Errorf("first track point ids = %q %v %v", first.TrackID, *first.SegmentID, *first.PtIndex)
	}
	if first.Elevation == nil || *first.Elevation != 650.5 {
		t.Errorf("elevation = %v", first.Elevation)
	}
	if pts[1].Elevation != nil {
		t.Errorf("missing elevation should stay nil, got %v", *pts[1].Elevation)
	}
	if *pts[2].SegmentID != 1 || *pts[2].PtIndex != 0 {
		t.Errorf("second segment ids = %v %v", *pts[2].SegmentID, *pts[2].PtIndex)
	}

	wpt := pts[3]
	if wpt.TrackID != "" || wpt.SegmentID != nil || wpt.PtIndex != nil || wpt.HasTime() {
		t.Errorf("waypoint should carry no track info: %+v", wpt)
	}
	route := pts[5]
	if route.TrackID != "route_0" || *route.PtIndex != 1 || route.SegmentID != nil {
		t.Errorf("route point = %+v", route)
	}
	if route.SourceFile != path {
		t.Errorf("source = %q", route.SourceFile)
	}
}

func TestNotLoaded(t *testing.T) {
	c := New()
	if _, err := c.Points(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Points err = %v", err)
	}
	if err := c.FilterTimeRange("", ""); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("FilterTimeRange err = %v", err)
	}
	if _, err := c.ToUTM(0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("ToUTM err = %v", err)
	}
}

func TestFilterTimeRange(t *testing.T) {
	dir := t.TempDir()
	a := writeGPX(t, dir, "a.gpx")
	b := writeGPX(t, dir, "b.gpx")

	tests := []struct {
		name       string
		start, end string
		sources    []string
		wantA      int
		wantB      int
	}{
		{"inclusive bounds", "2024-05-10T09:00:00Z", "2024-05-10 09:30:00", nil, 2, 2},
		{"open end", "2024-05-10T09:15:00", "", nil, 2, 2},
		{"date only start", "2024-05-11", "", nil, 0, 0},
		{"subset only", "2024-05-10 10:00:00", "2024-05-10 11:00:00", []string{a}, 1, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if err := c.Load([]string{a, b}); err != nil {
				t.Fatal(err)
			}
			if err := c.FilterTimeRange(tt.start, tt.end, tt.sources...); err != nil {
				t.Fatalf("FilterTimeRange error: %v", err)
			}
			pa, _ := c.Points(a)
			pb, _ := c.Points(b)
			if len(pa) != tt.wantA || len(pb) != tt.wantB {
				t.Errorf("kept a=%d b=%d; want a=%d b=%d", len(pa), len(pb), tt.wantA, tt.wantB)
			}
		})
	}
}

func TestFilterTimeRange_BadBound(t *testing.T) {
	c := New()
	if err := c.Load(nil); err != nil {
		t.Fatal(err)
	}
	if err := c.FilterTimeRange("yesterday", ""); err == nil {
		t.Error("expected error for unparseable bound")
	}
}

func TestToUTM(t *testing.T) {
	dir := t.TempDir()
	a := writeGPX(t, dir, "a.gpx")

	c := New()
	if err := c.Load([]string{a}); err != nil {
		t.Fatal(err)
	}
	epsg, err := c.ToUTM(0)
	if err != nil {
		t.Fatalf("ToUTM error: %v", err)
	}
	if epsg != 32630 {
		t.Errorf("epsg = %d; want 32630", epsg)
	}
	pts, _ := c.Points()
	for _, p := range pts {
		if !p.Projected() || p.EPSG != 32630 {
			t.Fatalf("point not projected: %+v", p)
		}
		if p.X < 440000 || p.X > 441000 || p.Y < 4474000 || p.Y > 4475000 {
			t.Errorf("unexpected UTM coords %.2f %.2f", p.X, p.Y)
		}
	}

	if epsg, err := c.ToUTM(0, "other.gpx"); err != nil || epsg != 0 {
		t.Errorf("empty selection = %d, %v", epsg, err)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-05-10T09:00:00Z", "2024-05-10T11:00:00+02:00", "2024-05-10T09:00:00", "2024-05-10 09:00:00"} {
		got, err := ParseTime(s)
		if err != nil {
			t.Errorf("ParseTime(%q) error: %v", s, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v; want %v", s, got, want)
		}
	}
}
