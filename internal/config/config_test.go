package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"

	"trackbench/internal/models"
)

func writeParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	base := t.TempDir()
	t.Setenv("TRACKBENCH_BASE_DIR", base)

	c, err := Load(nil, filepath.Join(base, "nope.json"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c.GPXFolder != filepath.Join(base, "GPX") {
		t.Errorf("gpx folder = %q", c.GPXFolder)
	}
	if c.CleanDir != filepath.Join(base, "Clean_Files") {
		t.Errorf("clean dir = %q", c.CleanDir)
	}
	if !reflect.DeepEqual(c.P1RadiiM, []float64{0.1, 0.5, 1, 3, 5}) {
		t.Errorf("radii = %v", c.P1RadiiM)
	}
	for _, tt := range []struct {
		p      models.Protocol
		folder string
	}{
		{models.P1, "Protocolos 1 y 2"},
		{models.P2, "Protocolos 1 y 2"},
		{models.P3, "Protocolo 3"},
	} {
		pp := c.Protocol(tt.p)
		if pp.Folder != tt.folder || !pp.ToUTM || pp.Start != "" {
			t.Errorf("%s params = %+v", tt.p, pp)
		}
	}
}

func TestLoad_File(t *testing.T) {
	base := t.TempDir()
	path := writeParams(t, `{
		"version": "2.1",
		"base_dir": "`+filepath.ToSlash(base)+`",
		"gpx_folder": "tracks",
		"kml_file": "plan.kml",
		"device_patterns": [{"pattern": "edge\\s*530", "name": "Garmin_Edge_530"}],
		"protocols": {
			"p1": {"start": "2024-05-10 09:00:00", "end": "2024-05-10 10:00:00"},
			"p3": {"to_utm": false, "match": "Protocolo 3"}
		},
		"sinks": {"s3": {"enabled": true, "bucket": "runs"}}
	}`)

	c, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c.Version != "2.1" {
		t.Errorf("version = %q", c.Version)
	}
	if c.GPXFolder != filepath.Join(base, "tracks") || c.KML() != filepath.Join(base, "plan.kml") {
		t.Errorf("paths not resolved: %q %q", c.GPXFolder, c.KML())
	}
	if len(c.DevicePatterns) != 1 || c.DevicePatterns[0].Name != "Garmin_Edge_530" {
		t.Errorf("device patterns = %+v", c.DevicePatterns)
	}

	p1 := c.Protocol(models.P1)
	if p1.Start != "2024-05-10 09:00:00" || !p1.ToUTM || p1.Folder != "Protocolos 1 y 2" {
		t.Errorf("p1 = %+v", p1)
	}
	p3 := c.Protocol(models.P3)
	if p3.ToUTM {
		t.Error("p3 to_utm should be false")
	}
	if got := c.Matches(); !reflect.DeepEqual(got, map[models.Protocol]string{models.P3: "Protocolo 3"}) {
		t.Errorf("matches = %v", got)
	}
	if !c.Sinks.S3.Enabled || c.Sinks.S3.Bucket != "runs" || c.Sinks.S3.Prefix != "clean" {
		t.Errorf("s3 sink = %+v", c.Sinks.S3)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeParams(t, `{"version": `)
	if _, err := Load(nil, path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoad_EnvAndFlags(t *testing.T) {
	base := t.TempDir()
	path := writeParams(t, `{"base_dir": "`+filepath.ToSlash(base)+`", "clean_dir": "from_file"}`)
	t.Setenv("TRACKBENCH_SINKS_KAFKA_TOPIC", "events")
	t.Setenv("TRACKBENCH_PLOT_DIR", "from_env")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("clean-dir", "", "")
	if err := cmd.Flags().Set("clean-dir", "/abs/flag"); err != nil {
		t.Fatal(err)
	}

	c, err := Load(cmd, path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c.Sinks.Kafka.Topic != "events" {
		t.Errorf("topic = %q", c.Sinks.Kafka.Topic)
	}
	if c.PlotDir != filepath.Join(base, "from_env") {
		t.Errorf("plot dir = %q", c.PlotDir)
	}
	if c.CleanDir != "/abs/flag" {
		t.Errorf("clean dir = %q", c.CleanDir)
	}
}
