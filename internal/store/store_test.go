package store

import (
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intact-sh/intact/internal/fsx"
)

func sumOf(content string) fsx.Checksum {
	return fsx.Checksum(sha256.Sum256([]byte(content)))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "baseline.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

// sweepAll drains the sweep sequence into a slice.
func sweepAll(t *testing.T, s *Store) []string {
	t.Helper()
	var paths []string
	for path, err := range s.Sweep() {
		require.NoError(t, err)
		paths = append(paths, path)
	}
	return paths
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("/etc/passwd", sumOf("v1")))

	got, err := s.Get("/etc/passwd")
	require.NoError(t, err)
	require.Equal(t, sumOf("v1"), got)

	// Overwrite
	require.NoError(t, s.Put("/etc/passwd", sumOf("v2")))
	got, err = s.Get("/etc/passwd")
	require.NoError(t, err)
	require.Equal(t, sumOf("v2"), got)

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get("/absent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompareAndClear(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("/a", sumOf("a")))
	require.NoError(t, s.Put("/b", sumOf("b")))
	require.NoError(t, s.MarkAll())

	// Matching clears the mark.
	cmp, err := s.CompareAndClear("/a", sumOf("a"))
	require.NoError(t, err)
	require.Equal(t, Matching, cmp)

	// Mismatch also clears the mark: the path was visited.
	cmp, err = s.CompareAndClear("/b", sumOf("changed"))
	require.NoError(t, err)
	require.Equal(t, Mismatch, cmp)

	// Missing never auto-inserts.
	cmp, err = s.CompareAndClear("/new", sumOf("new"))
	require.NoError(t, err)
	require.Equal(t, Missing, cmp)
	_, err = s.Get("/new")
	require.ErrorIs(t, err, ErrNotFound)

	// Both visited records survived the sweep.
	require.Empty(t, sweepAll(t, s))

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestPutClearsMark(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("/a", sumOf("a")))
	require.NoError(t, s.MarkAll())
	require.NoError(t, s.Put("/a", sumOf("a2")))

	require.Empty(t, sweepAll(t, s))
}

func TestSweepRemovesMarkedRecords(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("/gone", sumOf("gone")))
	require.NoError(t, s.Put("/kept", sumOf("kept")))
	require.NoError(t, s.MarkAll())

	_, err := s.CompareAndClear("/kept", sumOf("kept"))
	require.NoError(t, err)

	require.Equal(t, []string{"/gone"}, sweepAll(t, s))

	// Consume-once: the yielded record is gone from the store, so a
	// second sweep in the same cycle yields nothing.
	require.Empty(t, sweepAll(t, s))
	_, err = s.Get("/gone")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get("/kept")
	require.NoError(t, err)
	require.Equal(t, sumOf("kept"), got)
}

func TestSweepEarlyBreakStillRemovesYielded(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("/a", sumOf("a")))
	require.NoError(t, s.Put("/b", sumOf("b")))
	require.NoError(t, s.MarkAll())

	var first string
	for path, err := range s.Sweep() {
		require.NoError(t, err)
		first = path
		break
	}
	require.NotEmpty(t, first)

	// The yielded record was deleted before the yield; the other is
	// still marked and surfaces on the next sweep.
	_, err := s.Get(first)
	require.ErrorIs(t, err, ErrNotFound)
	require.Len(t, sweepAll(t, s), 1)
}

func TestCompactPreservesRecords(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("/a", sumOf("a")))
	require.NoError(t, s.Put("/b", sumOf("b")))

	// Churn the records the way a cycle does.
	require.NoError(t, s.MarkAll())
	_, err := s.CompareAndClear("/a", sumOf("a"))
	require.NoError(t, err)
	_, err = s.CompareAndClear("/b", sumOf("b"))
	require.NoError(t, err)

	require.NoError(t, s.Compact())

	got, err := s.Get("/a")
	require.NoError(t, err)
	require.Equal(t, sumOf("a"), got)

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "baseline.db"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestOpenRefusesSecondHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, s.Close())
	}()

	// The exclusive file lock is the cross-process single-writer guard;
	// a competing open fails instead of blocking forever.
	_, err = Open(path)
	require.Error(t, err)
}
