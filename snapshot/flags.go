package snapshot

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// HideFlags is the visibility/editability bitset carried by every object.
type HideFlags uint8

const (
	HideInHierarchy       HideFlags = 1 << 0
	HideInInspector       HideFlags = 1 << 1
	DontSaveInEditor      HideFlags = 1 << 2
	NotEditable           HideFlags = 1 << 3
	DontSaveInBuild       HideFlags = 1 << 4
	DontUnloadUnusedAsset HideFlags = 1 << 5

	DontSave        = DontSaveInEditor | DontSaveInBuild | DontUnloadUnusedAsset
	HideAndDontSave = HideInHierarchy | DontSaveInEditor | NotEditable | DontSaveInBuild | DontUnloadUnusedAsset
)

var flagNames = []struct {
	flag HideFlags
	name string
}{
	{HideAndDontSave, "HideAndDontSave"},
	{DontSave, "DontSave"},
	{HideInHierarchy, "HideInHierarchy"},
	{HideInInspector, "HideInInspector"},
	{DontSaveInEditor, "DontSaveInEditor"},
	{NotEditable, "NotEditable"},
	{DontSaveInBuild, "DontSaveInBuild"},
	{DontUnloadUnusedAsset, "DontUnloadUnusedAsset"},
}

// Has reports whether every bit of mask is set.
func (f HideFlags) Has(mask HideFlags) bool { return f&mask == mask }

// Visible reports whether an object with these flags belongs in a listing.
// Objects that are not editable are dropped, and so is anything that shares
// a bit with HideAndDontSave.
func (f HideFlags) Visible() bool {
	if f&NotEditable != 0 {
		return false
	}
	return f&HideAndDontSave == 0
}

// String renders the flags as "|"-joined names, composite names first.
func (f HideFlags) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	rest := f
	for _, fn := range flagNames {
		if rest&fn.flag == fn.flag {
			parts = append(parts, fn.name)
			rest &^= fn.flag
		}
	}
	return strings.Join(parts, "|")
}

// ParseHideFlags parses names such as "NotEditable|DontSave". Names are
// case-insensitive; "None" and the empty string parse to zero.
func ParseHideFlags(s string) (HideFlags, error) {
	var f HideFlags
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		v, err := parseHideFlag(strings.TrimSpace(part))
		if err != nil {
			return 0, err
		}
		f |= v
	}
	return f, nil
}

func parseHideFlag(name string) (HideFlags, error) {
	if name == "" || strings.EqualFold(name, "None") {
		return 0, nil
	}
	for _, fn := range flagNames {
		if strings.EqualFold(fn.name, name) {
			return fn.flag, nil
		}
	}
	return 0, errors.Newf("unknown hide flag %q", name)
}
