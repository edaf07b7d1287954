// Package clean runs the cleaning pass: every GPX file selected for a
// protocol is loaded, time filtered, projected and written to the clean
// directory, then the protocol references are exported next to it.
package clean

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"trackbench/internal/config"
	"trackbench/internal/export"
	"trackbench/internal/gpxclean"
	"trackbench/internal/keys"
	"trackbench/internal/models"
	"trackbench/internal/pipeline"
)

// Job is one GPX file cleaned for one protocol.
type Job struct {
	Path     string
	Protocol models.Protocol
	Device   string
	Params   config.ProtocolParams
	// Base is the output path without extension.
	Base string

	cleaner *gpxclean.Cleaner
	Points  []models.Point
	EPSG    int

	// Set by the save step.
	GPKG    string
	GeoJSON string
	done    bool
}

// Files lists the outputs the job wrote.
func (j *Job) Files() []string {
	var out []string
	for _, f := range []string{j.GPKG, j.GeoJSON} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Discover lists every .gpx below root, sorted.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".gpx") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Jobs pairs files with the protocols whose folder selector appears in their
// path. A file under the shared p1/p2 folder yields a job for each.
func Jobs(files []string, cfg *config.Config) []*Job {
	var jobs []*Job
	for _, p := range models.Protocols {
		params := cfg.Protocol(p)
		for _, f := range files {
			if params.Folder == "" || !strings.Contains(f, params.Folder) {
				continue
			}
			device := keys.DeviceName(f, cfg.DevicePatterns)
			jobs = append(jobs, &Job{
				Path:     f,
				Protocol: p,
				Device:   device,
				Params:   params,
				Base:     filepath.Join(cfg.CleanDir, p.Dir(), keys.Points(device)),
			})
		}
	}
	return jobs
}

func load(_ context.Context, j *Job) error {
	j.cleaner = gpxclean.New()
	return j.cleaner.Load([]string{j.Path})
}

func filter(_ context.Context, j *Job) error {
	if j.Params.Start == "" && j.Params.End == "" {
		return nil
	}
	return j.cleaner.FilterTimeRange(j.Params.Start, j.Params.End)
}

func project(_ context.Context, j *Job) error {
	if j.Params.ToUTM {
		epsg, err := j.cleaner.ToUTM(0)
		if err != nil {
			return err
		}
		j.EPSG = epsg
	}
	pts, err := j.cleaner.Points()
	if err != nil {
		return err
	}
	j.Points = pts
	if len(pts) == 0 {
		log.Printf("No points left in %s for %s, nothing to write", j.Path, j.Protocol)
	}
	return nil
}

func save(_ context.Context, j *Job) error {
	err := export.SavePoints(j.Base, j.Points, j.EPSG)
	if errors.Is(err, export.ErrEmpty) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", j.Base, err)
	}
	j.GPKG, j.GeoJSON = j.Base+".gpkg", j.Base+".geojson"
	log.Printf("Saved %d %s points for %s", len(j.Points), j.Protocol, j.Device)
	return nil
}

func finish(_ context.Context, j *Job) error {
	j.done = true
	return nil
}

// NewPipeline builds the per-file stages: load, filter, project, then save.
func NewPipeline() *pipeline.Pipeline[Job] {
	return pipeline.NewPipeline(
		pipeline.NewStage("load", load),
		pipeline.NewStage("filter", filter),
		pipeline.NewStage("project", project),
		pipeline.NewStage("save", save),
		pipeline.NewStage("finish", finish),
	)
}

// Report holds the jobs that completed, per protocol.
type Report struct {
	RunID  string
	KML    string
	Items  map[models.Protocol][]*Job
	Refs   map[models.Protocol]int
	Failed int
}

// Total counts completed jobs over every protocol.
func (r *Report) Total() int {
	n := 0
	for _, jobs := range r.Items {
		n += len(jobs)
	}
	return n
}

// Points returns the cleaned points of every job of p.
func (r *Report) Points(p models.Protocol) []models.Point {
	var out []models.Point
	for _, j := range r.Items[p] {
		out = append(out, j.Points...)
	}
	return out
}

// Files returns the point files written for p.
func (r *Report) Files(p models.Protocol) []string {
	var out []string
	for _, j := range r.Items[p] {
		out = append(out, j.Files()...)
	}
	return out
}

func (r *Report) String() string {
	return fmt.Sprintf("%d cleaned items (protocol1=%d, protocol2=%d, protocol3=%d)",
		r.Total(), len(r.Items[models.P1]), len(r.Items[models.P2]), len(r.Items[models.P3]))
}

// Runner cleans the files of one configuration.
type Runner struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run cleans every discovered file and exports the KML references. A missing
// KML skips the reference export without failing the run.
func (r *Runner) Run(ctx context.Context, runID string) (*Report, error) {
	files, err := Discover(r.cfg.GPXFolder)
	if err != nil {
		return nil, err
	}
	jobs := Jobs(files, r.cfg)
	log.Printf("Discovered %d GPX files, %d jobs", len(files), len(jobs))

	in := make(chan *Job)
	go func() {
		defer close(in)
		for _, j := range jobs {
			select {
			case in <- j:
			case <-ctx.Done():
				return
			}
		}
	}()
	res := NewPipeline().Process(ctx, in)

	report := &Report{
		RunID:  runID,
		Items:  make(map[models.Protocol][]*Job),
		Refs:   make(map[models.Protocol]int),
		Failed: res.Failed,
	}
	for _, j := range jobs {
		if j.done {
			report.Items[j.Protocol] = append(report.Items[j.Protocol], j)
		}
	}
	log.Printf("GPX cleaning complete. %s", report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	kmlPath, err := FindKML(r.cfg)
	if errors.Is(err, ErrKMLNotFound) {
		log.Println("No KML found; skipping KML export.")
		return report, nil
	}
	if err != nil {
		return report, err
	}
	report.KML = kmlPath
	if err := ExportRefs(kmlPath, r.cfg, report); err != nil {
		return report, err
	}
	return report, nil
}
