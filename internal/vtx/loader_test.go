package vtx_test

import (
	"strings"
	"testing"

	"github.com/Vtxdeo/vtx-security-cli/internal/testutil/vtxtest"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
	"github.com/stretchr/testify/require"
)

func TestLoadCleanPackage(t *testing.T) {
	dir := t.TempDir()
	data := vtxtest.Archive(t,
		vtxtest.Manifest(vtxtest.CleanManifest),
		vtxtest.Payload(),
		vtxtest.File{Name: "README.md", Body: "# hello\n"},
		vtxtest.File{Name: "assets/"},
	)
	path := vtxtest.Write(t, dir, "hello.vtx", data)

	pkg, err := vtx.Load(path, types.Limits{})
	require.NoError(t, err)
	require.Equal(t, path, pkg.Path)
	require.Equal(t, "hello", pkg.Manifest.Name)
	require.Equal(t, "1.0.0", pkg.Manifest.Version)
	require.Equal(t, "plugin.wasm", pkg.Manifest.Entry)
	require.Len(t, pkg.Digest, 64)
	require.Equal(t, int64(len(data)), pkg.Size)

	require.Len(t, pkg.Manifest.Imports, 2)
	require.Equal(t, "vtx.host.log", pkg.Manifest.Imports[0].Canonical)
	require.Equal(t, "vtx/host/config", pkg.Manifest.Imports[1].Namespace)
	require.Equal(t, "vtx.host.config", pkg.Manifest.Imports[1].Canonical)
	require.Equal(t, types.Location{Path: "manifest.json", Line: 7}, pkg.Manifest.Imports[0].Location)
	require.Equal(t, 8, pkg.Manifest.Imports[1].Location.Line)

	require.Len(t, pkg.Manifest.Exports, 2)
	require.Equal(t, "vtx_plugin_init", pkg.Manifest.Exports[0].Name)
	require.Equal(t, "fn() -> i32", pkg.Manifest.Exports[0].Signature)
	require.Equal(t, 11, pkg.Manifest.Exports[0].Location.Line)
	require.Equal(t, "vtx_plugin_info", pkg.Manifest.Exports[1].Name)
	require.Empty(t, pkg.Manifest.Exports[1].Signature)

	require.Len(t, pkg.Members, 4)
	readme, ok := pkg.Member("README.md")
	require.True(t, ok)
	require.True(t, readme.IsText())
	wasm, ok := pkg.Member("plugin.wasm")
	require.True(t, ok)
	require.False(t, wasm.IsText())
	assets, ok := pkg.Member("assets/")
	require.True(t, ok)
	require.True(t, assets.IsDir())

	text := pkg.TextMembers()
	require.Len(t, text, 1)
	require.Equal(t, "README.md", text[0].Name)

	id := pkg.Identity()
	require.Equal(t, "hello", id.Name)
	require.Equal(t, pkg.Digest, id.Digest)
}

func TestLoadDigestIsStable(t *testing.T) {
	data := vtxtest.Clean(t)
	a, err := vtx.LoadBytes("a.vtx", data, types.Limits{})
	require.NoError(t, err)
	b, err := vtx.LoadBytes("b.vtx", data, types.Limits{})
	require.NoError(t, err)
	require.Equal(t, a.Digest, b.Digest)
}

func TestLoadMalformedArchive(t *testing.T) {
	clean := vtxtest.Clean(t)
	zeros := strings.Repeat("\x00", 2<<20)

	tests := []struct {
		name   string
		data   []byte
		limits types.Limits
		reason string
	}{
		{"truncated", clean[:len(clean)/2], types.Limits{}, "zip container"},
		{"not a zip", []byte("definitely not a zip file"), types.Limits{}, "zip container"},
		{"empty", nil, types.Limits{}, "zip container"},
		{"missing manifest", vtxtest.Archive(t, vtxtest.Payload()), types.Limits{}, "missing manifest.json"},
		{"archive too large", clean, types.Limits{MaxArchiveSize: 16}, "max 16"},
		{"too many members", clean, types.Limits{MaxMembers: 1}, "members, max 1"},
		{
			"decompression bomb",
			vtxtest.Archive(t, vtxtest.Manifest(vtxtest.CleanManifest), vtxtest.File{Name: "bomb.bin", Body: zeros}),
			types.Limits{},
			"compression ratio",
		},
		{
			"member too large",
			vtxtest.Archive(t, vtxtest.Manifest(vtxtest.CleanManifest), vtxtest.File{Name: "big.txt", Body: strings.Repeat("a", 4096)}),
			types.Limits{MaxMemberSize: 1024},
			"max 1024",
		},
		{
			"total too large",
			vtxtest.Archive(t, vtxtest.Manifest(vtxtest.CleanManifest), vtxtest.File{Name: "a.txt", Body: strings.Repeat("a", 4096)}),
			types.Limits{MaxTotalSize: 1024},
			"total uncompressed size",
		},
		{
			"manifest too large",
			vtxtest.Archive(t, vtxtest.Manifest(vtxtest.CleanManifest)),
			types.Limits{MaxManifestSize: 8},
			"manifest is",
		},
		{
			"duplicate member",
			vtxtest.Archive(t, vtxtest.Manifest(vtxtest.CleanManifest), vtxtest.Payload(), vtxtest.Payload()),
			types.Limits{},
			"duplicate member",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vtx.LoadBytes("bad.vtx", tt.data, tt.limits)
			require.Error(t, err)
			require.ErrorIs(t, err, types.ErrMalformedArchive)
			require.NotErrorIs(t, err, types.ErrInvalidManifest)
			require.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestLoadPathErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := vtx.Load(dir+"/missing.vtx", types.Limits{})
	require.ErrorIs(t, err, types.ErrMalformedArchive)

	_, err = vtx.Load(dir, types.Limits{})
	require.ErrorIs(t, err, types.ErrMalformedArchive)
	require.Contains(t, err.Error(), "not a regular file")

	path := vtxtest.Write(t, dir, "big.vtx", vtxtest.Clean(t))
	_, err = vtx.Load(path, types.Limits{MaxArchiveSize: 32})
	require.ErrorIs(t, err, types.ErrMalformedArchive)
}

func TestLoadInvalidManifest(t *testing.T) {
	data := vtxtest.Archive(t, vtxtest.Manifest(`{"name": "x"}`))
	_, err := vtx.LoadBytes("bad.vtx", data, types.Limits{})
	require.ErrorIs(t, err, types.ErrInvalidManifest)
	require.NotErrorIs(t, err, types.ErrMalformedArchive)
	require.Contains(t, err.Error(), "version")
}

func TestLoadSkipsInvalidUTF8Text(t *testing.T) {
	data := vtxtest.Archive(t,
		vtxtest.Manifest(vtxtest.CleanManifest),
		vtxtest.File{Name: "notes.txt", Body: "\xff\xfe\xfd"},
	)
	pkg, err := vtx.LoadBytes("x.vtx", data, types.Limits{})
	require.NoError(t, err)
	m, ok := pkg.Member("notes.txt")
	require.True(t, ok)
	require.False(t, m.IsText())
	require.Equal(t, int64(3), m.Size)
}

func TestNormalizeNamespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"vtx.host.log", "vtx.host.log", false},
		{"vtx/host/log", "vtx.host.log", false},
		{"VTX.Host/Log", "vtx.host.log", false},
		{"wasi_snapshot-preview1", "wasi_snapshot-preview1", false},
		{"", "", true},
		{"vtx..host", "", true},
		{".vtx", "", true},
		{"vtx/", "", true},
		{"vtx host", "", true},
		{"vtx.höst", "", true},
	}
	for _, tt := range tests {
		got, err := vtx.NormalizeNamespace(tt.in)
		if tt.err {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestIsBinaryExt(t *testing.T) {
	require.True(t, vtx.IsBinaryExt("lib/native.SO"))
	require.True(t, vtx.IsBinaryExt("plugin.wasm"))
	require.False(t, vtx.IsBinaryExt("src/main.js"))
	require.False(t, vtx.IsBinaryExt("lib.so/readme.md"))
	require.False(t, vtx.IsBinaryExt("Makefile"))
}
