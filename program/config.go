package main

import (
	"flag"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/keilerkonzept/objtop/snapshot"
)

type Config struct {
	ConfigPath string

	// input
	InputPath   string
	Kind        string
	ShowRuntime bool

	// list
	Search        string
	SearchMode    string
	Reverse       bool
	Refresh       time.Duration
	TrackSelected bool

	// leaders sketch
	K      int
	Window int
	Width  int
	Depth  int
	Decay  float64

	// render
	History   int
	LogScale  bool
	ViewSplit int
	AltScreen bool

	StatsEnabled bool
	StatsWindow  int

	// logging
	LogFile  string
	LogLevel string
}

var config = defaultConfig()

func defaultConfig() Config {
	return Config{
		InputPath: "self",
		Kind:      "",

		SearchMode: "contains",
		Refresh:    2 * time.Second,

		K:      10,
		Window: 30,
		Width:  1024,
		Depth:  3,
		Decay:  0.9,

		History:   120,
		ViewSplit: 60,
		AltScreen: true,

		StatsEnabled: true,
		StatsWindow:  64,

		LogLevel: "info",
	}
}

func registerFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "Read settings from this YAML file (flags given on the command line win)")
	fs.StringVar(&c.InputPath, "in", c.InputPath, `Object source: a manifest (.yaml/.yml/.json), a pprof heap profile, or "self" for this process's live heap`)
	fs.StringVar(&c.Kind, "kind", c.Kind, `Object kind to list (manifest kind, "*" for all) or heap grouping (function, mapping, stack)`)
	fs.BoolVar(&c.ShowRuntime, "show-runtime", c.ShowRuntime, "Keep Go runtime allocation sites visible in heap profiles")
	fs.StringVar(&c.Search, "search", c.Search, "Initial search text")
	fs.StringVar(&c.SearchMode, "search-mode", c.SearchMode, "Search mode: contains or fuzzy")
	fs.BoolVar(&c.Reverse, "reverse", c.Reverse, "Start with the smallest objects first")
	fs.DurationVar(&c.Refresh, "refresh", c.Refresh, "Rebuild the list this often (0 = manual refresh only)")
	fs.BoolVar(&c.TrackSelected, "track-selected", c.TrackSelected, "Keep the selected object focused across rebuilds")
	fs.IntVar(&c.K, "k", c.K, "Number of sustained leaders to track")
	fs.IntVar(&c.Window, "window", c.Window, "Sustained leaders window, in rebuilds")
	fs.IntVar(&c.Width, "width", c.Width, "Leaders sketch width")
	fs.IntVar(&c.Depth, "depth", c.Depth, "Leaders sketch depth")
	fs.Float64Var(&c.Decay, "decay", c.Decay, "Leaders sketch counter decay probability on collisions")
	fs.IntVar(&c.History, "history", c.History, "Number of rebuilds kept in the footprint plot")
	fs.BoolVar(&c.LogScale, "log-scale", c.LogScale, "Use a logarithmic Y axis scale (default: linear)")
	fs.IntVar(&c.ViewSplit, "view-split", c.ViewSplit, "Split the view at this % of the total screen width [20,80]")
	fs.BoolVar(&c.AltScreen, "alt-screen", c.AltScreen, "Use the terminal alternate screen buffer")
	fs.BoolVar(&c.StatsEnabled, "stats", c.StatsEnabled, "Show rebuild stats")
	fs.IntVar(&c.StatsWindow, "stats-window", c.StatsWindow, "Number of recent rebuild latencies kept")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Write logs to this file (default: discard)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
}

// fileConfig mirrors Config for the YAML file. Unset keys stay nil.
type fileConfig struct {
	In           *string        `yaml:"in"`
	Kind         *string        `yaml:"kind"`
	ShowRuntime  *bool          `yaml:"show_runtime"`
	Search       *string        `yaml:"search"`
	SearchMode   *string        `yaml:"search_mode"`
	Reverse      *bool          `yaml:"reverse"`
	Refresh      *time.Duration `yaml:"refresh"`
	Track        *bool          `yaml:"track_selected"`
	K            *int           `yaml:"k"`
	Window       *int           `yaml:"window"`
	Width        *int           `yaml:"width"`
	Depth        *int           `yaml:"depth"`
	Decay        *float64       `yaml:"decay"`
	History      *int           `yaml:"history"`
	LogScale     *bool          `yaml:"log_scale"`
	ViewSplit    *int           `yaml:"view_split"`
	AltScreen    *bool          `yaml:"alt_screen"`
	StatsEnabled *bool          `yaml:"stats"`
	StatsWindow  *int           `yaml:"stats_window"`
	LogFile      *string        `yaml:"log_file"`
	LogLevel     *string        `yaml:"log_level"`
}

// applyConfigFile overlays the YAML file at path onto c. Keys whose flag was
// set explicitly on the command line are left alone.
func applyConfigFile(c *Config, path string, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	setString(&c.InputPath, fc.In, explicit["in"])
	setString(&c.Kind, fc.Kind, explicit["kind"])
	setBool(&c.ShowRuntime, fc.ShowRuntime, explicit["show-runtime"])
	setString(&c.Search, fc.Search, explicit["search"])
	setString(&c.SearchMode, fc.SearchMode, explicit["search-mode"])
	setBool(&c.Reverse, fc.Reverse, explicit["reverse"])
	if fc.Refresh != nil && !explicit["refresh"] {
		c.Refresh = *fc.Refresh
	}
	setBool(&c.TrackSelected, fc.Track, explicit["track-selected"])
	setInt(&c.K, fc.K, explicit["k"])
	setInt(&c.Window, fc.Window, explicit["window"])
	setInt(&c.Width, fc.Width, explicit["width"])
	setInt(&c.Depth, fc.Depth, explicit["depth"])
	if fc.Decay != nil && !explicit["decay"] {
		c.Decay = *fc.Decay
	}
	setInt(&c.History, fc.History, explicit["history"])
	setBool(&c.LogScale, fc.LogScale, explicit["log-scale"])
	setInt(&c.ViewSplit, fc.ViewSplit, explicit["view-split"])
	setBool(&c.AltScreen, fc.AltScreen, explicit["alt-screen"])
	setBool(&c.StatsEnabled, fc.StatsEnabled, explicit["stats"])
	setInt(&c.StatsWindow, fc.StatsWindow, explicit["stats-window"])
	setString(&c.LogFile, fc.LogFile, explicit["log-file"])
	setString(&c.LogLevel, fc.LogLevel, explicit["log-level"])
	return nil
}

func setString(dst *string, v *string, explicit bool) {
	if v != nil && !explicit {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool, explicit bool) {
	if v != nil && !explicit {
		*dst = *v
	}
}

func setInt(dst *int, v *int, explicit bool) {
	if v != nil && !explicit {
		*dst = *v
	}
}

func validateAndNormalizeConfig(c *Config) error {
	if c.InputPath == "" {
		return errors.Newf("-in must not be empty")
	}
	if c.Refresh < 0 {
		return errors.Newf("-refresh must be >= 0")
	}
	if c.K < 1 {
		return errors.Newf("-k must be >= 1")
	}
	if c.Window < 1 {
		return errors.Newf("-window must be >= 1")
	}
	if c.Width < 1 {
		return errors.Newf("-width must be >= 1")
	}
	if c.Depth < 1 {
		return errors.Newf("-depth must be >= 1")
	}
	if c.Decay < 0 || c.Decay > 1 {
		return errors.Newf("-decay must be in [0,1]")
	}
	if c.History < 2 {
		return errors.Newf("-history must be >= 2")
	}
	if _, err := snapshot.ParseSearchMode(c.SearchMode); err != nil {
		return errors.Wrap(err, "-search-mode")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("-log-level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	c.ViewSplit = max(20, c.ViewSplit)
	c.ViewSplit = min(80, c.ViewSplit)
	if c.StatsWindow < 16 {
		c.StatsWindow = 16
	}
	return nil
}
