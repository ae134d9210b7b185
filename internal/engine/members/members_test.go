package members_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vtxdeo/vtx-security-cli/internal/engine/members"
	"github.com/Vtxdeo/vtx-security-cli/internal/testutil/vtxtest"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

func analyze(t *testing.T, manifest string, files ...vtxtest.File) []types.Finding {
	t.Helper()
	pkg := vtxtest.Load(t, manifest, files...)
	findings, err := members.New().Analyze(context.Background(), pkg, types.DefaultScanOptions())
	require.NoError(t, err)
	return findings
}

func categories(findings []types.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Category
	}
	return out
}

func TestCleanMembers(t *testing.T) {
	findings := analyze(t, vtxtest.CleanManifest,
		vtxtest.Payload(),
		vtxtest.File{Name: "assets/"},
		vtxtest.File{Name: "assets/logo.png", Body: "\x89PNG"},
		vtxtest.File{Name: "README.md", Body: "# hi"},
	)
	require.Empty(t, findings)
}

func TestUnsafePaths(t *testing.T) {
	findings := analyze(t, vtxtest.CleanManifest,
		vtxtest.Payload(),
		vtxtest.File{Name: "../../etc/cron.d/x", Body: "x"},
		vtxtest.File{Name: "/abs/path.txt", Body: "x"},
		vtxtest.File{Name: `dir\evil.txt`, Body: "x"},
		vtxtest.File{Name: "C:/Windows/x.txt", Body: "x"},
		vtxtest.File{Name: "ok/..name/file.txt", Body: "x"},
	)
	require.Equal(t, []string{
		members.CategoryUnsafePath,
		members.CategoryUnsafePath,
		members.CategoryUnsafePath,
		members.CategoryUnsafePath,
	}, categories(findings))
	for _, f := range findings {
		require.Equal(t, types.SeverityCritical, f.Severity)
	}
	require.Equal(t, "../../etc/cron.d/x", findings[0].Location.Path)
	require.Contains(t, findings[0].Message, "traverses")
}

func TestSymlinkMember(t *testing.T) {
	findings := analyze(t, vtxtest.CleanManifest,
		vtxtest.Payload(),
		vtxtest.File{Name: "link.so", Body: "/etc/passwd", Mode: fs.ModeSymlink | 0o777},
	)
	require.Len(t, findings, 1, "a link is not also reported as a binary")
	require.Equal(t, members.CategorySymlink, findings[0].Category)
	require.Equal(t, types.SeverityHigh, findings[0].Severity)
}

func TestPayloadTypes(t *testing.T) {
	findings := analyze(t, vtxtest.CleanManifest,
		vtxtest.Payload(),
		vtxtest.File{Name: "lib/native.so", Body: "\x7fELF"},
		vtxtest.File{Name: "bin/tool.EXE", Body: "MZ"},
		vtxtest.File{Name: "vendor/other.vtx", Body: "PK"},
	)
	require.Equal(t, []string{
		members.CategoryNativeBinary,
		members.CategoryNativeBinary,
		members.CategoryNestedArchive,
	}, categories(findings))
	require.Equal(t, types.SeverityMedium, findings[0].Severity)
	require.Equal(t, types.SeverityLow, findings[2].Severity)
}

func TestMissingEntry(t *testing.T) {
	findings := analyze(t, vtxtest.CleanManifest)
	require.Len(t, findings, 1)
	require.Equal(t, members.CategoryMissingEntry, findings[0].Category)
	require.Equal(t, types.SeverityHigh, findings[0].Severity)
	require.Equal(t, vtx.ManifestName, findings[0].Location.Path)
}

func TestNoEntryDeclared(t *testing.T) {
	findings := analyze(t, `{"name": "p", "version": "1.0.0"}`)
	require.Empty(t, findings)
}
