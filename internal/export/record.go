// Package export writes and reads cleaned points and protocol references as
// GeoPackage, GeoJSON and CSV.
package export

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"trackbench/internal/models"
)

var ErrEmpty = errors.New("export: nothing to write")

// PointColumns are the attributes stored for every point, in column order.
var PointColumns = []string{
	"latitude", "longitude", "elevation",
	"time", "time_iso", "time_utc",
	"source_file", "track_id", "segment_id", "pt_index",
	"x", "y",
}

// RefColumns are the attributes stored for every reference.
var RefColumns = []string{"name", "description", "kind"}

// SourceColumn tags plotted points with the device stem they came from.
const SourceColumn = "_source_file"

const naiveUTC = "2006-01-02T15:04:05"

func pointValues(p models.Point) []any {
	vals := []any{
		p.Latitude, p.Longitude, nil,
		nil, nil, nil,
		p.SourceFile, p.TrackID, nil, nil,
		nil, nil,
	}
	if p.Elevation != nil {
		vals[2] = *p.Elevation
	}
	if p.HasTime() {
		t := p.Time.UTC()
		vals[3] = t.Format(time.RFC3339Nano)
		vals[4] = p.Time.Format(time.RFC3339Nano)
		vals[5] = t.Format(naiveUTC)
	}
	if p.SegmentID != nil {
		vals[8] = int64(*p.SegmentID)
	}
	if p.PtIndex != nil {
		vals[9] = int64(*p.PtIndex)
	}
	if p.Projected() {
		vals[10] = p.X
		vals[11] = p.Y
	}
	return vals
}

func pointProps(p models.Point) map[string]any {
	vals := pointValues(p)
	props := make(map[string]any, len(PointColumns)+1)
	for i, c := range PointColumns {
		props[c] = vals[i]
	}
	if p.Group != "" {
		props[SourceColumn] = p.Group
	}
	return props
}

// pointFromProps rebuilds a point from stored attributes. Coordinates are
// set by the caller from the geometry.
func pointFromProps(props map[string]any) models.Point {
	p := models.Point{
		SourceFile: asString(props["source_file"]),
		TrackID:    asString(props["track_id"]),
		Group:      asString(props[SourceColumn]),
	}
	if v, ok := asFloat(props["latitude"]); ok {
		p.Latitude = v
	}
	if v, ok := asFloat(props["longitude"]); ok {
		p.Longitude = v
	}
	if v, ok := asFloat(props["elevation"]); ok {
		p.Elevation = &v
	}
	for _, key := range []string{"time", "time_iso", "time_utc"} {
		if s := asString(props[key]); s != "" {
			if t, err := parseStoredTime(s); err == nil {
				p.Time = &t
				break
			}
		}
	}
	if v, ok := asInt(props["segment_id"]); ok {
		p.SegmentID = &v
	}
	if v, ok := asInt(props["pt_index"]); ok {
		p.PtIndex = &v
	}
	return p
}

func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(naiveUTC, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func refValues(r models.Reference) []any {
	return []any{r.Name, r.Description, string(r.Kind)}
}

func refProps(r models.Reference) map[string]any {
	return map[string]any{"name": r.Name, "description": r.Description, "kind": string(r.Kind)}
}

func refFromProps(props map[string]any) models.Reference {
	return models.Reference{
		Name:        asString(props["name"]),
		Description: asString(props["description"]),
		Kind:        models.Kind(asString(props["kind"])),
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case int64:
		return float64(f), true
	case int:
		return float64(f), true
	case string:
		x, err := strconv.ParseFloat(f, 64)
		return x, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch i := v.(type) {
	case int64:
		return int(i), true
	case int:
		return i, true
	case float64:
		return int(i), true
	case string:
		x, err := strconv.Atoi(i)
		return x, err == nil
	}
	return 0, false
}

// formatValue renders an attribute for CSV output.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return asString(v)
}
