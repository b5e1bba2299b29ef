package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/objtop/snapshot"
)

const testManifest = `
objects:
  - name: Tex1
    kind: Texture2D
    bytes: 2097152
  - name: Tex2
    kind: Texture2D
    bytes: 1048576
  - name: EditorIcon
    kind: Texture2D
    bytes: 8388608
    flags: [NotEditable]
  - name: Gone
    kind: Texture2D
    bytes: 4194304
    missing: true
  - name: Hero
    kind: Mesh
    bytes: 524288
`

func TestManifest_Source(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, []string{"Mesh", "Texture2D"}, m.Kinds())

	l := snapshot.New[*Entry](m.Source("Texture2D"), m.Sizer())
	stats, err := l.Rebuild(snapshot.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2.00 MB    Tex1", "1.00 MB    Tex2"}, l.Snapshot().Labels())
	assert.Equal(t, 4, stats.Scanned)
	assert.Equal(t, 1, stats.Hidden)
	assert.Equal(t, 1, stats.Unavailable)

	l = snapshot.New[*Entry](m.Source(AnyKind), m.Sizer())
	_, err = l.Rebuild(snapshot.Request{Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0.50 MB    Hero", "1.00 MB    Tex2", "2.00 MB    Tex1"}, l.Snapshot().Labels())

	l = snapshot.New[*Entry](m.Source("Shader"), m.Sizer())
	_, err = l.Rebuild(snapshot.Request{})
	require.NoError(t, err)
	assert.Zero(t, l.Count())
}

func TestManifest_JSON(t *testing.T) {
	m, err := ParseManifest([]byte(`{"objects": [{"name": "A", "kind": "Mesh", "bytes": 1024, "flags": ["HideInInspector"]}]}`))
	require.NoError(t, err)
	objs, err := m.Source("Mesh").FindAll()
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "A", objs[0].Name())
	assert.Equal(t, "Mesh", objs[0].Kind())
	assert.Equal(t, int64(1024), objs[0].Bytes())
	assert.Equal(t, snapshot.HideInInspector, objs[0].HideFlags())
}

func TestManifest_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":       "objects: [",
		"no name":      "objects:\n  - bytes: 1\n",
		"negative":     "objects:\n  - name: a\n    bytes: -1\n",
		"unknown flag": "objects:\n  - name: a\n    flags: [Invisible]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o600))
	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
