// Package rules turns operator-supplied exclusion patterns into the
// single predicate the scan engine consumes.
package rules

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Matcher answers whether a path is excluded from monitoring. It is
// immutable once compiled, so one Matcher serves a whole cycle.
//
// The exclusion set must be identical between the baseline run and every
// later verify run: a path excluded only at verify time keeps its stale
// record and is falsely reported deleted.
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// Compile builds a Matcher from shell-style patterns. Patterns are
// matched against the full path with `/` as separator (`**` crosses
// directories) and, as a convenience, against the base name, so
// `*.sqlite3` excludes such files anywhere.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Excluded reports whether path matches any exclusion pattern. It is
// applied to directories (pruning the whole subtree) and files alike.
func (m *Matcher) Excluded(path string) bool {
	path = filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range m.globs {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns, for cycle-start logging.
func (m *Matcher) Patterns() []string {
	return m.patterns
}
