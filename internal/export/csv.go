package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"trackbench/internal/models"
)

// WriteSummary writes every point attribute, plus the plotting tag, as CSV.
func WriteSummary(path string, points []models.Point) error {
	if len(points) == 0 {
		return ErrEmpty
	}
	header := append(append([]string(nil), PointColumns...), SourceColumn)
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		vals := pointValues(p)
		row := make([]string, 0, len(header))
		for _, v := range vals {
			row = append(row, formatValue(v))
		}
		rows = append(rows, append(row, p.Group))
	}
	return WriteTable(path, header, rows)
}

// WriteTable writes a header and rows as CSV, creating the parent directory.
func WriteTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
