package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func relPaths(targets []*Target) []string {
	var out []string
	for _, tg := range targets {
		out = append(out, tg.RelPath)
	}
	return out
}

func TestTargetDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.vtx"), "x")
	writeFile(t, filepath.Join(dir, "a.VTX"), "x")
	writeFile(t, filepath.Join(dir, "nested", "c.vtx"), "x")
	writeFile(t, filepath.Join(dir, "readme.md"), "x")
	writeFile(t, filepath.Join(dir, ".git", "objects.vtx"), "x")
	writeFile(t, filepath.Join(dir, "node_modules", "dep.vtx"), "x")

	td := &TargetDiscovery{}
	targets, err := td.Discover(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.VTX", "b.vtx", "nested/c.vtx"}, relPaths(targets))
}

func TestTargetDiscoverySingleFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "plugin.zip")
	writeFile(t, p, "x")

	td := &TargetDiscovery{}
	targets, err := td.Discover(p)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, p, targets[0].Path)
	require.Equal(t, "plugin.zip", targets[0].RelPath)
}

func TestTargetDiscoveryMissingRoot(t *testing.T) {
	td := &TargetDiscovery{}
	_, err := td.Discover(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.vtx"), "x")
	writeFile(t, filepath.Join(dir, "fixtures", "bad.vtx"), "x")
	writeFile(t, filepath.Join(dir, "old-1.vtx"), "x")
	writeFile(t, filepath.Join(dir, IgnoreFile), "# comment\nfixtures/**\n\nold-*.vtx\n")

	td := &TargetDiscovery{}
	targets, err := td.Discover(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"keep.vtx"}, relPaths(targets))
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.vtx", "a.vtx", true},
		{"*.vtx", "dir/a.vtx", true},
		{"dir/*.vtx", "dir/a.vtx", true},
		{"dir/**", "dir/x/y/a.vtx", true},
		{"dir/**", "dir", true},
		{"dir/**", "other/a.vtx", false},
		{"**/test-*.vtx", "a/b/test-1.vtx", true},
		{"**/test-*.vtx", "a/b/prod.vtx", false},
		{"src/**/gen.vtx", "src/a/b/gen.vtx", true},
		{"src/**/gen.vtx", "lib/a/gen.vtx", false},
		{"exact.vtx", "exact.vtx", true},
		{"exact.vtx", "other.vtx", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, matchGlob(tt.pattern, tt.path))
		})
	}
}
