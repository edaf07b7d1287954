// Package keys builds the canonical file, layer and object names shared by the
// cleaner, the plotter and the sinks.
package keys

import (
	"fmt"
	"path"
	"strings"

	"trackbench/internal/models"
)

const pointsSuffix = "_points"

// Points is the basename of a device's cleaned points, without extension.
func Points(device string) string {
	return device + pointsSuffix
}

// Refs is the basename of a protocol's reference export.
func Refs(p models.Protocol) string {
	return fmt.Sprintf("kml_refs_%s", p)
}

// RefsLayer names the GeoPackage layer holding one kind of reference.
func RefsLayer(p models.Protocol, kind models.Kind) string {
	if kind == models.KindNone {
		return Refs(p)
	}
	return fmt.Sprintf("kml_refs_%s_%s", p, kind)
}

func PointsGeoJSON(p models.Protocol) string { return fmt.Sprintf("points_%s.geojson", p) }

func Summary(p models.Protocol) string { return fmt.Sprintf("summary_%s.csv", p) }

func Stats(p models.Protocol) string { return fmt.Sprintf("stats_%s.csv", p) }

func Map(p models.Protocol) string { return fmt.Sprintf("map_%s.html", p) }

// Object returns the object-store key for a file of a protocol's clean
// directory.
func Object(prefix string, p models.Protocol, file string) string {
	return path.Join(Prefix(prefix, p), path.Base(file))
}

// Prefix is the object-store key prefix for a protocol's clean directory.
func Prefix(prefix string, p models.Protocol) string {
	return path.Join(sanitizeKey(prefix), p.Dir())
}

// sanitizeKey trims slashes and replaces spaces with hyphens.
func sanitizeKey(s string) string {
	return strings.ReplaceAll(strings.Trim(s, "/"), " ", "-")
}
