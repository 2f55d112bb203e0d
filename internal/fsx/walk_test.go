package fsx

import (
	"os"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/intact-sh/intact/internal/testutil"
)

func collectWalk(t *testing.T, fsys afero.Fs, roots []string, excluded func(string) bool) ([]string, []error) {
	t.Helper()
	var visited []string
	errs := Walk(fsys, roots, excluded, func(path string, _ os.FileInfo) {
		visited = append(visited, path)
	})
	sort.Strings(visited)
	return visited, errs
}

func none(string) bool { return false }

func TestWalkVisitsRegularFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testutil.SeedTree(t, fsys, map[string]string{
		"/etc/passwd":        "root:x:0:0",
		"/etc/ssh/sshd.conf": "Port 22",
		"/etc/hosts":         "127.0.0.1 localhost",
	})

	visited, errs := collectWalk(t, fsys, []string{"/etc"}, none)
	require.Empty(t, errs)
	require.Equal(t, []string{"/etc/hosts", "/etc/passwd", "/etc/ssh/sshd.conf"}, visited)
}

func TestWalkSkipsExcludedFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testutil.SeedTree(t, fsys, map[string]string{
		"/etc/passwd": "a",
		"/etc/mtab":   "b",
	})

	visited, errs := collectWalk(t, fsys, []string{"/etc"}, func(p string) bool {
		return p == "/etc/mtab"
	})
	require.Empty(t, errs)
	require.Equal(t, []string{"/etc/passwd"}, visited)
}

func TestWalkPrunesExcludedDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testutil.SeedTree(t, fsys, map[string]string{
		"/data/keep/a":      "a",
		"/data/skip/b":      "b",
		"/data/skip/deep/c": "c",
	})

	visited, errs := collectWalk(t, fsys, []string{"/data"}, func(p string) bool {
		return p == "/data/skip"
	})
	require.Empty(t, errs)
	require.Equal(t, []string{"/data/keep/a"}, visited)
}

func TestWalkOverlappingRootsVisitOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testutil.SeedFile(t, fsys, "/data/sub/f", "x")

	var count int
	errs := Walk(fsys, []string{"/data", "/data/sub"}, none, func(string, os.FileInfo) {
		count++
	})
	require.Empty(t, errs)
	require.Equal(t, 1, count)
}

func TestWalkMissingRootIsTraversalError(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testutil.SeedFile(t, fsys, "/data/f", "x")

	visited, errs := collectWalk(t, fsys, []string{"/data", "/absent"}, none)
	require.Equal(t, []string{"/data/f"}, visited)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "/absent")
}
