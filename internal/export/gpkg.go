package export

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"trackbench/pkg/utm"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10300

	geomColumn = "geom"
)

var gpkgSchema = []string{
	`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys (srs_id)
	)`,
	`INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system')`,
}

// column is an attribute column of a feature table.
type column struct {
	name    string
	sqlType string
}

type feature struct {
	geom   orb.Geometry
	values []any
}

// layer is one feature table of a GeoPackage.
type layer struct {
	name     string
	geomType string
	srsID    int
	columns  []column
	features []feature
}

var pointSQLTypes = map[string]string{
	"latitude":   "REAL",
	"longitude":  "REAL",
	"elevation":  "REAL",
	"segment_id": "INTEGER",
	"pt_index":   "INTEGER",
	"x":          "REAL",
	"y":          "REAL",
}

func pointSchema() []column {
	cols := make([]column, len(PointColumns))
	for i, name := range PointColumns {
		typ, ok := pointSQLTypes[name]
		if !ok {
			typ = "TEXT"
		}
		cols[i] = column{name: name, sqlType: typ}
	}
	return cols
}

func refSchema() []column {
	cols := make([]column, len(RefColumns))
	for i, name := range RefColumns {
		cols[i] = column{name: name, sqlType: "TEXT"}
	}
	return cols
}

// writeGPKG creates or updates the GeoPackage at path. Layers that already
// exist are replaced.
func writeGPKG(path string, layers ...layer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open gpkg: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID)); err != nil {
		return fmt.Errorf("failed to set application id: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion)); err != nil {
		return fmt.Errorf("failed to set user version: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range gpkgSchema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create gpkg metadata: %w", err)
		}
	}
	for _, l := range layers {
		if err := writeLayer(tx, l); err != nil {
			return fmt.Errorf("layer %s: %w", l.name, err)
		}
	}
	return tx.Commit()
}

func writeLayer(tx *sql.Tx, l layer) error {
	if err := ensureSRS(tx, l.srsID); err != nil {
		return err
	}
	table := quoteIdent(l.name)
	for _, stmt := range []struct {
		query string
		args  []any
	}{
		{"DROP TABLE IF EXISTS " + table, nil},
		{"DELETE FROM gpkg_geometry_columns WHERE table_name = ?", []any{l.name}},
		{"DELETE FROM gpkg_contents WHERE table_name = ?", []any{l.name}},
	} {
		if _, err := tx.Exec(stmt.query, stmt.args...); err != nil {
			return err
		}
	}

	defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", geomColumn + " " + l.geomType}
	names := []string{geomColumn}
	for _, c := range l.columns {
		defs = append(defs, quoteIdent(c.name)+" "+c.sqlType)
		names = append(names, quoteIdent(c.name))
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	insert, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")))
	if err != nil {
		return err
	}
	defer insert.Close()

	var bound orb.Bound
	for i, f := range l.features {
		blob, err := encodeGeometry(f.geom, l.srsID)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if _, err := insert.Exec(append([]any{blob}, f.values...)...); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if i == 0 {
			bound = f.geom.Bound()
		} else {
			bound = bound.Union(f.geom.Bound())
		}
	}

	var minX, minY, maxX, maxY any
	if len(l.features) > 0 {
		minX, minY, maxX, maxY = bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]
	}
	if _, err := tx.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`, l.name, l.name, minX, minY, maxX, maxY, l.srsID); err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, ?, ?, ?, 0, 0)`, l.name, geomColumn, l.geomType, l.srsID)
	return err
}

func ensureSRS(tx *sql.Tx, srsID int) error {
	name, def := "WGS 84 geodetic", utm.GeographicWKT
	if srsID != utm.WGS84 {
		wkt, err := utm.WKT(srsID)
		if err != nil {
			return err
		}
		zone, north, _ := utm.Zone(srsID)
		hemi := "N"
		if !north {
			hemi = "S"
		}
		name, def = fmt.Sprintf("WGS 84 / UTM zone %d%s", zone, hemi), wkt
	}
	_, err := tx.Exec(`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition) VALUES (?, ?, 'EPSG', ?, ?)`,
		name, srsID, srsID, def)
	return err
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// encodeGeometry wraps WKB in the GeoPackage binary header with an XY
// envelope.
func encodeGeometry(g orb.Geometry, srsID int) ([]byte, error) {
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	b := g.Bound()
	var buf bytes.Buffer
	buf.Write([]byte{'G', 'P', 0, 0x03}) // little endian, envelope [minx, maxx, miny, maxy]
	_ = binary.Write(&buf, binary.LittleEndian, int32(srsID))
	for _, v := range []float64{b.Min[0], b.Max[0], b.Min[1], b.Max[1]} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

var envelopeSizes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// decodeGeometry parses a GeoPackage geometry blob.
func decodeGeometry(blob []byte) (orb.Geometry, int, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, 0, errors.New("not a geopackage geometry")
	}
	flags := blob[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 == 1 {
		order = binary.LittleEndian
	}
	srsID := int(int32(order.Uint32(blob[4:8])))
	size, ok := envelopeSizes[(flags>>1)&0x07]
	if !ok || len(blob) < 8+size {
		return nil, 0, errors.New("bad geopackage envelope")
	}
	if flags&0x10 != 0 {
		return nil, srsID, nil
	}
	g, err := wkb.Unmarshal(blob[8+size:])
	if err != nil {
		return nil, 0, err
	}
	return g, srsID, nil
}

// storedLayer is a feature table read back from a GeoPackage.
type storedLayer struct {
	name  string
	srsID int
	rows  []storedRow
}

type storedRow struct {
	geom  orb.Geometry
	props map[string]any
}

// readGPKG returns every feature layer in gpkg_contents order.
func readGPKG(path string) ([]storedLayer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gpkg: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features' ORDER BY c.rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	type meta struct {
		table, column string
		srs           int
	}
	var metas []meta
	for rows.Next() {
		var m meta
		if err := rows.Scan(&m.table, &m.column, &m.srs); err != nil {
			rows.Close()
			return nil, err
		}
		metas = append(metas, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []storedLayer
	for _, m := range metas {
		l, err := readTable(db, m.table, m.column, m.srs)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", m.table, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func readTable(db *sql.DB, table, geomCol string, srsID int) (storedLayer, error) {
	l := storedLayer{name: table, srsID: srsID}
	rows, err := db.Query("SELECT * FROM " + quoteIdent(table))
	if err != nil {
		return l, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return l, err
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return l, err
		}
		r := storedRow{props: make(map[string]any, len(cols))}
		for i, c := range cols {
			switch c {
			case geomCol:
				blob, _ := vals[i].([]byte)
				if blob == nil {
					continue
				}
				g, _, err := decodeGeometry(blob)
				if err != nil {
					return l, err
				}
				r.geom = g
			case "fid":
			default:
				r.props[c] = vals[i]
			}
		}
		l.rows = append(l.rows, r)
	}
	return l, rows.Err()
}
