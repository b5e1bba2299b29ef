package snapshot

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
)

// Predicate decides whether a row label matches a search. Implementations
// must be pure.
type Predicate func(label string) bool

// MatchAll matches every label.
func MatchAll(string) bool { return true }

// Contains matches labels containing text, ignoring case. Blank text matches
// everything. The returned predicate must not be called concurrently.
func Contains(text string) Predicate {
	text = strings.TrimSpace(text)
	if text == "" {
		return MatchAll
	}
	fold := cases.Fold()
	needle := fold.String(text)
	return func(label string) bool {
		return strings.Contains(fold.String(label), needle)
	}
}

// Fuzzy matches labels that contain the characters of text in order.
// Blank text matches everything.
func Fuzzy(text string) Predicate {
	text = strings.TrimSpace(text)
	if text == "" {
		return MatchAll
	}
	return func(label string) bool {
		return len(fuzzy.Find(text, []string{label})) > 0
	}
}

// SearchMode selects how search text is turned into a Predicate.
type SearchMode int

const (
	SearchContains SearchMode = iota
	SearchFuzzy
)

func (m SearchMode) String() string {
	switch m {
	case SearchFuzzy:
		return "fuzzy"
	default:
		return "contains"
	}
}

// ParseSearchMode parses "contains" or "fuzzy".
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contains":
		return SearchContains, nil
	case "fuzzy":
		return SearchFuzzy, nil
	}
	return 0, errors.Newf("unknown search mode %q", s)
}

// Search builds the predicate for text under mode.
func Search(mode SearchMode, text string) Predicate {
	if mode == SearchFuzzy {
		return Fuzzy(text)
	}
	return Contains(text)
}
