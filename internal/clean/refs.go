package clean

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"trackbench/internal/config"
	"trackbench/internal/export"
	"trackbench/internal/models"
	"trackbench/internal/protocol"
)

var ErrKMLNotFound = errors.New("clean: kml file not found")

// FindKML returns the configured KML when it exists, else the first *.kml in
// the base directory.
func FindKML(cfg *config.Config) (string, error) {
	for _, p := range []string{cfg.KMLFile, cfg.KMLPath} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
		log.Printf("Configured KML %s not found", p)
	}
	matches, err := filepath.Glob(filepath.Join(cfg.BaseDir, "*.kml"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrKMLNotFound
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ExportRefs writes kml_refs_<p>.{gpkg,geojson} for every protocol. Refs are
// projected to the zone of the protocol's cleaned points when there are any;
// a failed projection leaves them in lon/lat.
func ExportRefs(kmlPath string, cfg *config.Config, report *Report) error {
	a := protocol.New()
	if err := a.Load(kmlPath); err != nil {
		return fmt.Errorf("failed to load kml: %w", err)
	}
	log.Printf("Loaded %d placemarks from %s", len(a.Refs()), a.Path())
	if _, err := a.SplitByProtocol(cfg.Matches()); err != nil {
		return err
	}
	for _, p := range models.Protocols {
		if pts := report.Points(p); len(pts) > 0 {
			if _, err := a.ProjectForPoints(pts, p); err != nil {
				log.Printf("Leaving %s refs unprojected: %v", p, err)
			}
		}
		refs, err := a.ProtocolRefs(p)
		if err != nil {
			return err
		}
		dir := filepath.Join(cfg.CleanDir, p.Dir())
		if err := export.SaveRefs(dir, p, refs); err != nil {
			log.Printf("Failed to write KML refs for %s: %v", p, err)
			continue
		}
		report.Refs[p] = len(refs)
		log.Printf("Wrote %d KML refs for %s to %s", len(refs), p, dir)
	}
	return nil
}
