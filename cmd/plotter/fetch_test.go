package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"trackbench/internal/models"
)

type fakeDownloader struct {
	got  map[string]string
	fail string
}

func (f *fakeDownloader) Download(_ context.Context, _, key, path string) error {
	if key == f.fail {
		return errors.New("NoSuchKey")
	}
	f.got[key] = path
	return nil
}

func TestFetchCleaned(t *testing.T) {
	ev := models.CleanedEvent{
		Protocol: models.P2,
		Files:    []string{"clean/protocolo2/Iphone_12_points.gpkg", "clean/protocolo2/kml_refs_p2.gpkg"},
	}
	d := &fakeDownloader{got: map[string]string{}}
	if err := fetchCleaned(context.Background(), d, "trackbench", "/work/Clean_Files", ev); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("/work/Clean_Files", "protocolo2", "kml_refs_p2.gpkg")
	if len(d.got) != 2 || d.got["clean/protocolo2/kml_refs_p2.gpkg"] != want {
		t.Errorf("downloads = %v", d.got)
	}

	d.fail = "clean/protocolo2/kml_refs_p2.gpkg"
	if err := fetchCleaned(context.Background(), d, "trackbench", "/work/Clean_Files", ev); err == nil {
		t.Error("expected the download error to surface")
	}
}
