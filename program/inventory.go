package main

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"

	"github.com/keilerkonzept/objtop/snapshot"
	"github.com/keilerkonzept/objtop/source"
)

const liveInput = "self"

// inventory is what the UI needs from a snapshot list, whatever its object type.
type inventory interface {
	snapshot.Viewer
	Snapshot() *snapshot.Snapshot
}

// openInventory builds the list for the configured input. The description
// names the source for the status line.
func openInventory(c Config, logger log.Logger) (inventory, string, error) {
	opts := []snapshot.Option{snapshot.WithLogger(log.With(logger, "component", "snapshot"))}

	switch {
	case c.InputPath == liveInput:
		g, err := source.ParseGrouping(c.Kind)
		if err != nil {
			return nil, "", err
		}
		h := source.LiveHeapProfile()
		h.ShowRuntime = c.ShowRuntime
		return snapshot.New[*source.Site](h.Source(g), h.Sizer(), opts...), "live heap by " + string(g), nil

	case isManifestPath(c.InputPath):
		m, err := source.LoadManifest(c.InputPath)
		if err != nil {
			return nil, "", err
		}
		kind := c.Kind
		if kind == "" {
			kind = source.AnyKind
		}
		desc := filepath.Base(c.InputPath) + " kind " + kind
		return snapshot.New[*source.Entry](m.Source(kind), m.Sizer(), opts...), desc, nil

	default:
		g, err := source.ParseGrouping(c.Kind)
		if err != nil {
			return nil, "", err
		}
		h, err := source.LoadHeapProfile(c.InputPath)
		if err != nil {
			return nil, "", errors.WithHint(err, "-in takes a manifest (.yaml/.yml/.json), a pprof heap profile or \"self\"")
		}
		h.ShowRuntime = c.ShowRuntime
		desc := filepath.Base(c.InputPath) + " by " + string(g)
		return snapshot.New[*source.Site](h.Source(g), h.Sizer(), opts...), desc, nil
	}
}

func isManifestPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
