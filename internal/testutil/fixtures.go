// Package testutil provides filesystem fixture helpers shared by the
// scan and integrity tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// SeedFile writes content at path on fsys, creating parent directories.
func SeedFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

// SeedTree seeds a whole path→content tree at once.
func SeedTree(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		SeedFile(t, fsys, path, content)
	}
}
