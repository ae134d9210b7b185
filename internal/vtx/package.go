// Package vtx reads VTX plugin packages: ZIP containers carrying a
// manifest.json plus payload members. Loading is purely descriptive; no
// member is ever executed or linked.
package vtx

import (
	"io/fs"
	"path"
	"strings"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// ManifestName is the archive member holding the package manifest.
const ManifestName = "manifest.json"

// ImportDeclaration is one entry of the manifest "imports" array.
type ImportDeclaration struct {
	// Namespace is the identifier exactly as declared.
	Namespace string
	// Canonical uses "." as the only separator and is lower-cased.
	Canonical string
	Location  types.Location
}

// ExportDeclaration is one entry of the manifest "exports" array.
type ExportDeclaration struct {
	Name      string
	Signature string
	Location  types.Location
}

// Manifest is the typed view of manifest.json.
type Manifest struct {
	Name        string
	Version     string
	Description string
	Entry       string
	Imports     []ImportDeclaration
	Exports     []ExportDeclaration
}

// Member describes one archive entry. Data is populated only for text
// members small enough to scan in memory.
type Member struct {
	Name           string
	Size           int64
	CompressedSize int64
	Mode           fs.FileMode
	Data           []byte
}

func (m Member) IsDir() bool     { return m.Mode.IsDir() || strings.HasSuffix(m.Name, "/") }
func (m Member) IsSymlink() bool { return m.Mode&fs.ModeSymlink != 0 }
func (m Member) IsText() bool    { return m.Data != nil }

// Ext returns the lower-cased extension of the member name.
func (m Member) Ext() string { return strings.ToLower(path.Ext(m.Name)) }

// Lines returns the text content split into lines.
func (m Member) Lines() []string {
	return strings.Split(string(m.Data), "\n")
}

// Package is an immutable in-memory view of a loaded archive. Checks share
// one Package and must treat it as read-only.
type Package struct {
	Path     string
	Digest   string
	Size     int64
	Manifest Manifest
	Members  []Member

	byName map[string]int
}

// Identity returns the name, version and digest reported for this package.
func (p *Package) Identity() types.PackageInfo {
	return types.PackageInfo{
		Name:    p.Manifest.Name,
		Version: p.Manifest.Version,
		Digest:  p.Digest,
	}
}

// Member looks up an archive entry by exact name.
func (p *Package) Member(name string) (Member, bool) {
	i, ok := p.byName[name]
	if !ok {
		return Member{}, false
	}
	return p.Members[i], true
}

// TextMembers returns the members whose content was read for scanning,
// in archive order. The manifest itself is excluded.
func (p *Package) TextMembers() []Member {
	var out []Member
	for _, m := range p.Members {
		if m.IsText() && m.Name != ManifestName {
			out = append(out, m)
		}
	}
	return out
}
