package source

import (
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/keilerkonzept/objtop/snapshot"
)

// AnyKind selects every kind in a manifest.
const AnyKind = "*"

// Entry is one object described by a manifest.
type Entry struct {
	name    string
	kind    string
	flags   snapshot.HideFlags
	bytes   int64
	missing bool
}

func (e *Entry) Name() string                  { return e.name }
func (e *Entry) Kind() string                  { return e.kind }
func (e *Entry) HideFlags() snapshot.HideFlags { return e.flags }
func (e *Entry) Bytes() int64                  { return e.bytes }

// Manifest is a static inventory of objects, usually loaded from a YAML or
// JSON file:
//
//	objects:
//	  - name: Tex1
//	    kind: Texture2D
//	    bytes: 2097152
//	    flags: [NotEditable]
//
// Entries marked `missing: true` enumerate normally but fail their size
// query, like an object destroyed mid-scan.
type Manifest struct {
	entries []*Entry
}

type manifestFile struct {
	Objects []manifestObject `yaml:"objects"`
}

type manifestObject struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Bytes   int64    `yaml:"bytes"`
	Flags   []string `yaml:"flags"`
	Missing bool     `yaml:"missing"`
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return m, nil
}

// ParseManifest parses a YAML (or JSON) manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var f manifestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}
	m := &Manifest{entries: make([]*Entry, 0, len(f.Objects))}
	for i, o := range f.Objects {
		if o.Name == "" {
			return nil, errors.Newf("object %d: missing name", i)
		}
		if o.Bytes < 0 {
			return nil, errors.Newf("object %q: negative size %d", o.Name, o.Bytes)
		}
		var flags snapshot.HideFlags
		for _, name := range o.Flags {
			v, err := snapshot.ParseHideFlags(name)
			if err != nil {
				return nil, errors.Wrapf(err, "object %q", o.Name)
			}
			flags |= v
		}
		m.entries = append(m.entries, &Entry{
			name:    o.Name,
			kind:    o.Kind,
			flags:   flags,
			bytes:   o.Bytes,
			missing: o.Missing,
		})
	}
	return m, nil
}

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Kinds returns the distinct kinds in the manifest, sorted.
func (m *Manifest) Kinds() []string {
	seen := make(map[string]struct{})
	var kinds []string
	for _, e := range m.entries {
		if _, ok := seen[e.kind]; ok {
			continue
		}
		seen[e.kind] = struct{}{}
		kinds = append(kinds, e.kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Source enumerates the entries of one kind in file order. AnyKind (or the
// empty string) enumerates all entries.
func (m *Manifest) Source(kind string) snapshot.Source[*Entry] {
	return snapshot.SourceFunc[*Entry](func() ([]*Entry, error) {
		out := make([]*Entry, 0, len(m.entries))
		for _, e := range m.entries {
			if kind == "" || kind == AnyKind || e.kind == kind {
				out = append(out, e)
			}
		}
		return out, nil
	})
}

// Sizer reports each entry's declared size.
func (m *Manifest) Sizer() snapshot.Sizer[*Entry] {
	return snapshot.SizerFunc[*Entry](func(e *Entry) (int64, error) {
		if e.missing {
			return 0, errors.Wrapf(snapshot.ErrObjectUnavailable, "%s", e.name)
		}
		return e.bytes, nil
	})
}
