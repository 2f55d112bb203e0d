package fsx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// EntityFunc is invoked once per non-excluded regular file.
type EntityFunc func(path string, info os.FileInfo)

// Walk visits every regular file under roots, skipping any path for which
// excluded returns true. An excluded directory is pruned entirely: nothing
// below it is visited. Traversal order is unspecified.
//
// Errors encountered while descending (an unreadable directory, a root
// that does not exist) never abort the walk; they are collected and
// returned so the caller can report them as a failure class distinct from
// per-file read errors. A file reachable from more than one root is
// visited once.
func Walk(fsys afero.Fs, roots []string, excluded func(string) bool, fn EntityFunc) []error {
	var traversalErrs []error
	seen := make(map[string]bool)

	visit := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			traversalErrs = append(traversalErrs, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}

		if info.IsDir() {
			if excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks, devices and other irregular entries are not hashable
		// content and are skipped.
		if !info.Mode().IsRegular() {
			return nil
		}

		if excluded(path) || seen[path] {
			return nil
		}
		seen[path] = true

		fn(path, info)
		return nil
	}

	for _, root := range roots {
		root = filepath.Clean(root)
		if err := afero.Walk(fsys, root, visit); err != nil {
			traversalErrs = append(traversalErrs, fmt.Errorf("walk root %s: %w", root, err))
		}
	}

	return traversalErrs
}
