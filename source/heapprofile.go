package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/pprof/profile"

	"github.com/keilerkonzept/objtop/snapshot"
)

const inuseSpace = "inuse_space"

// ErrUnknownGrouping is returned for a grouping name ParseGrouping does not know.
var ErrUnknownGrouping = errors.New("unknown heap grouping")

// Grouping decides which allocation sites are merged into one object.
type Grouping string

const (
	GroupByFunction Grouping = "function"
	GroupByMapping  Grouping = "mapping"
	GroupByStack    Grouping = "stack"
)

// ParseGrouping parses "function", "mapping" or "stack"; empty means function.
func ParseGrouping(s string) (Grouping, error) {
	switch g := Grouping(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GroupByFunction, nil
	case GroupByFunction, GroupByMapping, GroupByStack:
		return g, nil
	}
	return "", errors.Wrapf(ErrUnknownGrouping, "%q", s)
}

// Site is a group of heap allocations holding live memory.
type Site struct {
	name  string
	flags snapshot.HideFlags
	bytes int64
}

func (s *Site) Name() string                  { return s.name }
func (s *Site) HideFlags() snapshot.HideFlags { return s.flags }
func (s *Site) Bytes() int64                  { return s.bytes }

// HeapProfile exposes the in-use allocations of a Go heap profile as objects.
// A live HeapProfile captures a fresh profile of the current process on every
// scan.
type HeapProfile struct {
	// ShowRuntime keeps sites whose leaf frame belongs to the Go runtime
	// visible. By default they are marked NotEditable and drop out of lists.
	ShowRuntime bool

	capture func() (*profile.Profile, error)

	mu   sync.Mutex
	prof *profile.Profile
}

// NewHeapProfile wraps an already parsed profile.
func NewHeapProfile(p *profile.Profile) (*HeapProfile, error) {
	if _, err := sampleIndex(p); err != nil {
		return nil, err
	}
	return &HeapProfile{prof: p}, nil
}

// ReadHeapProfile parses a pprof heap profile, gzipped or not.
func ReadHeapProfile(r io.Reader) (*HeapProfile, error) {
	p, err := profile.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing heap profile")
	}
	return NewHeapProfile(p)
}

// LoadHeapProfile reads the heap profile at path.
func LoadHeapProfile(path string) (*HeapProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening heap profile")
	}
	defer f.Close()
	h, err := ReadHeapProfile(f)
	if err != nil {
		return nil, errors.Wrapf(err, "heap profile %s", path)
	}
	return h, nil
}

// LiveHeapProfile returns a HeapProfile that re-captures this process's heap
// each time its source is scanned.
func LiveHeapProfile() *HeapProfile {
	return &HeapProfile{capture: CaptureHeapProfile}
}

// CaptureHeapProfile collects garbage and returns the current heap profile of
// this process.
func CaptureHeapProfile() (*profile.Profile, error) {
	runtime.GC()
	var buf bytes.Buffer
	if err := pprof.WriteHeapProfile(&buf); err != nil {
		return nil, errors.Wrap(err, "writing heap profile")
	}
	p, err := profile.Parse(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "parsing captured heap profile")
	}
	return p, nil
}

func (h *HeapProfile) current() (*profile.Profile, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.capture != nil {
		p, err := h.capture()
		if err != nil {
			return nil, err
		}
		h.prof = p
	}
	if h.prof == nil {
		return nil, errors.New("no heap profile loaded")
	}
	return h.prof, nil
}

// Sites aggregates in-use bytes per group, in order of first appearance.
// Groups holding no live memory are left out.
func (h *HeapProfile) Sites(g Grouping) ([]*Site, error) {
	if _, err := ParseGrouping(string(g)); err != nil {
		return nil, err
	}
	p, err := h.current()
	if err != nil {
		return nil, err
	}
	idx, err := sampleIndex(p)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Site)
	var order []*Site
	for _, s := range p.Sample {
		if idx >= len(s.Value) || len(s.Location) == 0 {
			continue
		}
		name := siteName(s, g)
		runtimeLeaf := !h.ShowRuntime && isRuntimeFrame(leafFunction(s.Location[0]))
		site, ok := byName[name]
		if !ok {
			site = &Site{name: name}
			if runtimeLeaf {
				site.flags = snapshot.NotEditable
			}
			byName[name] = site
			order = append(order, site)
		} else if !runtimeLeaf {
			// A group is hidden only while all of its samples are runtime's.
			site.flags &^= snapshot.NotEditable
		}
		site.bytes += s.Value[idx]
	}

	sites := order[:0]
	for _, site := range order {
		if site.bytes > 0 {
			sites = append(sites, site)
		}
	}
	return sites, nil
}

// Source enumerates the sites of the profile under grouping g.
func (h *HeapProfile) Source(g Grouping) snapshot.Source[*Site] {
	return snapshot.SourceFunc[*Site](func() ([]*Site, error) {
		return h.Sites(g)
	})
}

// Sizer reports each site's in-use bytes.
func (h *HeapProfile) Sizer() snapshot.Sizer[*Site] {
	return snapshot.SizerFunc[*Site](func(s *Site) (int64, error) {
		return s.bytes, nil
	})
}

func sampleIndex(p *profile.Profile) (int, error) {
	for i, st := range p.SampleType {
		if st.Type == inuseSpace {
			return i, nil
		}
	}
	return 0, errors.Newf("profile has no %s sample type", inuseSpace)
}

func siteName(s *profile.Sample, g Grouping) string {
	switch g {
	case GroupByMapping:
		if m := s.Location[0].Mapping; m != nil && m.File != "" {
			return filepath.Base(m.File)
		}
		return "[unknown]"
	case GroupByStack:
		var frames []string
		for _, loc := range s.Location {
			if len(loc.Line) == 0 {
				frames = append(frames, fmt.Sprintf("%#x", loc.Address))
				continue
			}
			for _, line := range loc.Line {
				frames = append(frames, functionName(line.Function))
			}
		}
		return strings.Join(frames, " < ")
	default:
		return leafFunction(s.Location[0])
	}
}

func leafFunction(loc *profile.Location) string {
	if len(loc.Line) == 0 {
		return fmt.Sprintf("%#x", loc.Address)
	}
	return functionName(loc.Line[0].Function)
}

func functionName(fn *profile.Function) string {
	if fn == nil || fn.Name == "" {
		return "[unknown]"
	}
	return fn.Name
}

func isRuntimeFrame(name string) bool {
	return strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "internal/")
}
