// Package members checks archive hygiene: member paths, links, and payloads
// a plugin package should not carry.
package members

import (
	"context"
	"fmt"
	"strings"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

const (
	Name = "members"

	CategoryUnsafePath    = "unsafe-member-path"
	CategorySymlink       = "symlink-member"
	CategoryMissingEntry  = "missing-entry-member"
	CategoryNativeBinary  = "native-binary-member"
	CategoryNestedArchive = "nested-archive-member"
)

var nativeExts = map[string]bool{".so": true, ".dll": true, ".dylib": true, ".exe": true}

var archiveExts = map[string]bool{
	".zip": true, ".vtx": true, ".jar": true, ".tar": true, ".tgz": true,
	".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
}

// Analyzer inspects the member listing.
type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

func (a *Analyzer) Name() string { return Name }

// Analyze walks members in archive order, then reports a missing entry.
func (a *Analyzer) Analyze(_ context.Context, pkg *vtx.Package, _ types.ScanOptions) ([]types.Finding, error) {
	var findings []types.Finding
	add := func(sev types.Severity, category, member, msg string) {
		findings = append(findings, types.Finding{
			Severity: sev,
			Category: category,
			Message:  msg,
			Location: &types.Location{Path: member},
			Check:    Name,
		})
	}

	for _, m := range pkg.Members {
		if reason := unsafePath(m.Name); reason != "" {
			add(types.SeverityCritical, CategoryUnsafePath, m.Name, fmt.Sprintf("member path %q %s", m.Name, reason))
		}
		if m.IsSymlink() {
			add(types.SeverityHigh, CategorySymlink, m.Name, fmt.Sprintf("member %q is a symbolic link", m.Name))
			continue
		}
		if m.IsDir() {
			continue
		}
		switch ext := m.Ext(); {
		case nativeExts[ext]:
			add(types.SeverityMedium, CategoryNativeBinary, m.Name, fmt.Sprintf("member %q is a native %s binary outside the WebAssembly sandbox", m.Name, ext))
		case archiveExts[ext]:
			add(types.SeverityLow, CategoryNestedArchive, m.Name, fmt.Sprintf("member %q is a nested archive and is not scanned", m.Name))
		}
	}

	if entry := pkg.Manifest.Entry; entry != "" {
		m, ok := pkg.Member(entry)
		if !ok || m.IsDir() {
			findings = append(findings, types.Finding{
				Severity: types.SeverityHigh,
				Category: CategoryMissingEntry,
				Message:  fmt.Sprintf("manifest entry %q is not a file in the archive", entry),
				Location: &types.Location{Path: vtx.ManifestName},
				Check:    Name,
			})
		}
	}
	return findings, nil
}

// unsafePath returns why name could escape the extraction root, or "".
func unsafePath(name string) string {
	switch {
	case strings.HasPrefix(name, "/"):
		return "is absolute"
	case strings.Contains(name, `\`):
		return "contains a backslash"
	case len(name) >= 2 && name[1] == ':' && isASCIILetter(name[0]):
		return "starts with a drive letter"
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "traverses outside the archive root"
		}
	}
	return ""
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
