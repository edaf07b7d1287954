// Package config loads the run parameters shared by the cleaner and the
// plotter from config/params.json, the environment and command flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trackbench/internal/models"
)

// DefaultPath is where the params file lives relative to the working directory.
const DefaultPath = "config/params.json"

// EnvPrefix is prepended to every environment override, e.g.
// TRACKBENCH_SINKS_S3_BUCKET.
const EnvPrefix = "trackbench"

type DevicePattern struct {
	Pattern string `mapstructure:"pattern"`
	Name    string `mapstructure:"name"`
}

// ProtocolParams controls how GPX files are selected and cleaned for one
// protocol. Start and End are left blank for an open time window.
type ProtocolParams struct {
	Start  string `mapstructure:"start"`
	End    string `mapstructure:"end"`
	ToUTM  bool   `mapstructure:"to_utm"`
	Match  string `mapstructure:"match"`
	Folder string `mapstructure:"folder"`
}

type S3Sink struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

type KafkaSink struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type PostgresSink struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type Sinks struct {
	S3       S3Sink       `mapstructure:"s3"`
	Kafka    KafkaSink    `mapstructure:"kafka"`
	Postgres PostgresSink `mapstructure:"postgres"`
}

type Config struct {
	Version        string                    `mapstructure:"version"`
	BaseDir        string                    `mapstructure:"base_dir"`
	GPXFolder      string                    `mapstructure:"gpx_folder"`
	KMLFile        string                    `mapstructure:"kml_file"`
	KMLPath        string                    `mapstructure:"kml_path"`
	CleanDir       string                    `mapstructure:"clean_dir"`
	PlotDir        string                    `mapstructure:"plot_dir"`
	DevicePatterns []DevicePattern           `mapstructure:"device_patterns"`
	Protocols      map[string]ProtocolParams `mapstructure:"protocols"`
	P1RadiiM       []float64                 `mapstructure:"p1_radii_m"`
	Sinks          Sinks                     `mapstructure:"sinks"`
}

// Defaults returns the values used when neither the file, the environment nor
// a flag sets a key.
func Defaults() map[string]any {
	d := map[string]any{
		"version":                "",
		"base_dir":               "",
		"gpx_folder":             "GPX",
		"kml_file":               "",
		"kml_path":               "",
		"clean_dir":              "Clean_Files",
		"plot_dir":               "Plot_results",
		"p1_radii_m":             []float64{0.1, 0.5, 1, 3, 5},
		"sinks.s3.enabled":       false,
		"sinks.s3.bucket":        "trackbench",
		"sinks.s3.prefix":        "clean",
		"sinks.kafka.enabled":    false,
		"sinks.kafka.brokers":    []string{"localhost:9092"},
		"sinks.kafka.topic":      "trackbench.cleaned",
		"sinks.kafka.group_id":   "trackbench-plotter",
		"sinks.postgres.enabled": false,
		"sinks.postgres.dsn":     "",
	}
	for _, p := range models.Protocols {
		folder := "Protocolos 1 y 2"
		if p == models.P3 {
			folder = "Protocolo 3"
		}
		prefix := "protocols." + string(p) + "."
		d[prefix+"start"] = ""
		d[prefix+"end"] = ""
		d[prefix+"to_utm"] = true
		d[prefix+"match"] = ""
		d[prefix+"folder"] = folder
	}
	return d
}

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"base-dir":   "base_dir",
	"gpx-folder": "gpx_folder",
	"kml":        "kml_file",
	"clean-dir":  "clean_dir",
	"plot-dir":   "plot_dir",
}

// Load reads the params file at path (DefaultPath when empty). A missing file
// leaves the defaults in place; a file that fails to parse is an error. When
// cmd is non-nil its flags listed in flagKeys take precedence over the file.
func Load(cmd *cobra.Command, path string) (*Config, error) {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if path == "" {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		log.Printf("No params config found at %s; using defaults", path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.resolve(); err != nil {
		return nil, err
	}
	log.Printf("Loaded params config version=%s", c.Version)
	return &c, nil
}

func (c *Config) resolve() error {
	if c.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve base dir: %w", err)
		}
		c.BaseDir = wd
	}
	c.GPXFolder = c.Resolve(c.GPXFolder)
	c.CleanDir = c.Resolve(c.CleanDir)
	c.PlotDir = c.Resolve(c.PlotDir)
	if c.KMLFile != "" {
		c.KMLFile = c.Resolve(c.KMLFile)
	}
	if c.KMLPath != "" {
		c.KMLPath = c.Resolve(c.KMLPath)
	}
	return nil
}

// Resolve joins relative paths onto the base directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// KML returns the configured KML location, preferring kml_file.
func (c *Config) KML() string {
	if c.KMLFile != "" {
		return c.KMLFile
	}
	return c.KMLPath
}

// Protocol returns the parameters for p, falling back to the defaults for a
// protocol missing from the file.
func (c *Config) Protocol(p models.Protocol) ProtocolParams {
	if pp, ok := c.Protocols[string(p)]; ok {
		return pp
	}
	folder := "Protocolos 1 y 2"
	if p == models.P3 {
		folder = "Protocolo 3"
	}
	return ProtocolParams{ToUTM: true, Folder: folder}
}

// Matches returns the configured KML selector for every protocol that has one.
func (c *Config) Matches() map[models.Protocol]string {
	out := make(map[models.Protocol]string)
	for _, p := range models.Protocols {
		if m := c.Protocol(p).Match; m != "" {
			out[p] = m
		}
	}
	return out
}
