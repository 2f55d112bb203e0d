package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatcherExcluded(t *testing.T) {
	m, err := Compile([]string{
		"/var/cache/**",
		"/etc/mtab",
		"*.sqlite3",
		".DS_Store",
	})
	require.NoError(t, err)

	for _, tc := range []struct {
		path     string
		excluded bool
	}{
		{path: "/etc/mtab", excluded: true},
		{path: "/etc/passwd", excluded: false},
		{path: "/var/cache/apt/archives/x.deb", excluded: true},
		{path: "/var/cachet/file", excluded: false},
		{path: "/home/user/app.sqlite3", excluded: true},
		{path: "/home/user/.DS_Store", excluded: true},
		{path: "/home/user/DS_Store", excluded: false},
	} {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.excluded, m.Excluded(tc.path))
		})
	}
}

func TestCompileEmptyMatchesNothing(t *testing.T) {
	m, err := Compile(nil)
	require.NoError(t, err)
	require.False(t, m.Excluded("/anything/at/all"))
}

func TestCompileInvalidPattern(t *testing.T) {
	_, err := Compile([]string{"[unclosed"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "[unclosed")
}

func TestPatternsPreserved(t *testing.T) {
	patterns := []string{"/a/**", "*.tmp"}
	m, err := Compile(patterns)
	require.NoError(t, err)
	require.Equal(t, patterns, m.Patterns())
}
