package utm

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestZoneEPSG(t *testing.T) {
	cases := []struct {
		name     string
		lon, lat float64
		want     int
	}{
		{"greenwich north", 0, 51.5, 32631},
		{"madrid", -3.7038, 40.4168, 32630},
		{"buenos aires south", -58.3816, -34.6037, 32721},
		{"antimeridian wraps to zone 1", 180, 10, 32601},
		{"equator counts as north", 10, 0, 32632},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ZoneEPSG(tc.lon, tc.lat); got != tc.want {
				t.Fatalf("ZoneEPSG(%v, %v) = %d; want %d", tc.lon, tc.lat, got, tc.want)
			}
		})
	}
}

func TestForward_KnownValues(t *testing.T) {
	cases := []struct {
		name     string
		lon, lat float64
		epsg     int
		wantX    float64
		wantY    float64
	}{
		{"origin in zone 31", 0, 0, 32631, 166021.4431, 0},
		{"central meridian", 3, 0, 32631, 500000, 0},
		{"madrid", -3.7038, 40.4168, 32630, 440290.4581, 4474257.3820},
		{"buenos aires", -58.3816, -34.6037, 32721, 373317.5023, 6170036.1713},
		{"east edge of zone 31", 5.99, 60, 32631, 666737.4255, 6655180.2276},
		{"forced into zone 30", -0.01, 45, 32630, 735657.8721, 4987300.3460},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y, err := Forward(tc.lon, tc.lat, tc.epsg)
			if err != nil {
				t.Fatalf("Forward error: %v", err)
			}
			if math.Abs(x-tc.wantX) > 0.01 || math.Abs(y-tc.wantY) > 0.01 {
				t.Fatalf("Forward = (%.4f, %.4f); want (%.4f, %.4f)", x, y, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestInverse_RoundTrip(t *testing.T) {
	points := [][2]float64{{-3.7038, 40.4168}, {-58.3816, -34.6037}, {2.9, 0.001}, {151.2093, -33.8688}}
	for _, p := range points {
		epsg := ZoneEPSG(p[0], p[1])
		x, y, err := Forward(p[0], p[1], epsg)
		if err != nil {
			t.Fatalf("Forward error: %v", err)
		}
		lon, lat, err := Inverse(x, y, epsg)
		if err != nil {
			t.Fatalf("Inverse error: %v", err)
		}
		if math.Abs(lon-p[0]) > 1e-8 || math.Abs(lat-p[1]) > 1e-8 {
			t.Errorf("round trip %v -> (%v, %v)", p, lon, lat)
		}
	}
}

func TestInverse_ForcedZone(t *testing.T) {
	// Refs are projected into the zone of the points, which may not be their own.
	cases := []struct {
		lon, lat float64
		epsg     int
	}{
		{5.99, 60, 32631},
		{-0.01, 45, 32630},
		{0, 0, 32631},
		{-6.5, 40.4, 32630},
	}
	for _, tc := range cases {
		x, y, err := Forward(tc.lon, tc.lat, tc.epsg)
		if err != nil {
			t.Fatalf("Forward error: %v", err)
		}
		lon, lat, err := Inverse(x, y, tc.epsg)
		if err != nil {
			t.Fatalf("Inverse error: %v", err)
		}
		if math.Abs(lon-tc.lon) > 1e-8 || math.Abs(lat-tc.lat) > 1e-8 {
			t.Errorf("EPSG:%d round trip (%v, %v) -> (%v, %v)", tc.epsg, tc.lon, tc.lat, lon, lat)
		}
	}
}

func TestZone_RejectsNonUTM(t *testing.T) {
	for _, code := range []int{4326, 32600, 32661, 3857} {
		if _, _, err := Zone(code); !errors.Is(err, ErrNotUTM) {
			t.Errorf("Zone(%d) err = %v; want ErrNotUTM", code, err)
		}
	}
	if _, err := WKT(4326); !errors.Is(err, ErrNotUTM) {
		t.Errorf("WKT(4326) should fail with ErrNotUTM")
	}
}

func TestWKT_NamesZone(t *testing.T) {
	got, err := WKT(32721)
	if err != nil {
		t.Fatalf("WKT error: %v", err)
	}
	for _, want := range []string{`UTM zone 21S`, `"central_meridian",-57`, `"false_northing",1e+07`, `AUTHORITY["EPSG","32721"]]`} {
		if !strings.Contains(got, want) {
			t.Errorf("WKT missing %q in %s", want, got)
		}
	}
}

func TestReproject(t *testing.T) {
	line := orb.LineString{{-3.7038, 40.4168}, {-3.7000, 40.4200}}

	proj, err := Project(line, 32630)
	if err != nil {
		t.Fatalf("Project error: %v", err)
	}
	if line[0] != (orb.Point{-3.7038, 40.4168}) {
		t.Fatal("Project modified its input")
	}
	p0 := proj.(orb.LineString)[0]
	if math.Abs(p0[0]-440290.4581) > 0.01 || math.Abs(p0[1]-4474257.3820) > 0.01 {
		t.Errorf("projected = %v", p0)
	}

	other, err := Reproject(proj, 32630, 32631)
	if err != nil {
		t.Fatalf("Reproject error: %v", err)
	}
	back, err := Reproject(other, 32631, 0)
	if err != nil {
		t.Fatalf("Reproject error: %v", err)
	}
	for i, p := range back.(orb.LineString) {
		if math.Abs(p[0]-line[i][0]) > 1e-7 || math.Abs(p[1]-line[i][1]) > 1e-7 {
			t.Errorf("vertex %d = %v; want %v", i, p, line[i])
		}
	}

	if _, err := Project(line, 3857); !errors.Is(err, ErrNotUTM) {
		t.Errorf("err = %v; want ErrNotUTM", err)
	}
}
