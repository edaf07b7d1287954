package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"trackbench/internal/models"
)

// conn is the subset of *pgx.Conn the store uses.
type conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close(ctx context.Context) error
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cleaned_points (
		run_id UUID NOT NULL,
		protocol TEXT NOT NULL,
		device TEXT NOT NULL,
		source_file TEXT NOT NULL,
		track_id TEXT,
		segment_id INTEGER,
		pt_index INTEGER,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		elevation DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ,
		x DOUBLE PRECISION,
		y DOUBLE PRECISION,
		epsg INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS cleaned_points_run_idx ON cleaned_points (run_id, protocol, device)`,
	`CREATE TABLE IF NOT EXISTS device_stats (
		run_id UUID NOT NULL,
		protocol TEXT NOT NULL,
		device TEXT NOT NULL,
		inside INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percent DOUBLE PRECISION NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

var pointColumns = []string{
	"run_id", "protocol", "device", "source_file", "track_id", "segment_id", "pt_index",
	"latitude", "longitude", "elevation", "recorded_at", "x", "y", "epsg",
}

// PointStore loads cleaned points and statistics into Postgres.
type PointStore struct {
	conn conn
}

// NewPointStore connects with dsn.
func NewPointStore(ctx context.Context, dsn string) (*PointStore, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PointStore{conn: c}, nil
}

func (s *PointStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// EnsureSchema creates the tables when missing.
func (s *PointStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// WritePoints copies one device's points of a run.
func (s *PointStore) WritePoints(ctx context.Context, runID uuid.UUID, p models.Protocol, device string, points []models.Point) (int64, error) {
	rows := make([][]any, 0, len(points))
	for _, pt := range points {
		rows = append(rows, pointRow(runID, p, device, pt))
	}
	n, err := s.conn.CopyFrom(ctx, pgx.Identifier{"cleaned_points"}, pointColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy points: %w", err)
	}
	log.Printf("Copied %d %s points of %s into postgres", n, p, device)
	return n, nil
}

func pointRow(runID uuid.UUID, p models.Protocol, device string, pt models.Point) []any {
	var (
		recorded *time.Time
		x, y     *float64
		epsg     *int
	)
	if pt.HasTime() {
		t := pt.Time.UTC()
		recorded = &t
	}
	if pt.Projected() {
		x, y, epsg = &pt.X, &pt.Y, &pt.EPSG
	}
	return []any{
		runID, string(p), device, pt.SourceFile, pt.TrackID, pt.SegmentID, pt.PtIndex,
		pt.Latitude, pt.Longitude, pt.Elevation, recorded, x, y, epsg,
	}
}

// WriteStats stores ring statistics of a run.
func (s *PointStore) WriteStats(ctx context.Context, runID uuid.UUID, p models.Protocol, stats []models.DeviceStat) error {
	for _, st := range stats {
		if _, err := s.conn.Exec(ctx,
			`INSERT INTO device_stats (run_id, protocol, device, inside, total, percent) VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, string(p), st.Device, st.Inside, st.Total, st.Percent); err != nil {
			return fmt.Errorf("failed to store stats for %s: %w", st.Device, err)
		}
	}
	return nil
}
