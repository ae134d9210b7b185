package vtx

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tailscale/hujson"
	"golang.org/x/mod/semver"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ParseManifest decodes manifest.json. Comments and trailing commas are
// accepted; every import and export keeps the line it was declared on.
func ParseManifest(data []byte) (Manifest, error) {
	root, err := hujson.Parse(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("syntax: %w", err)
	}
	obj, ok := root.Value.(*hujson.Object)
	if !ok {
		return Manifest{}, fmt.Errorf("top-level value must be an object")
	}

	idx := newLineIndex(data)
	var (
		m    Manifest
		seen = make(map[string]bool, len(obj.Members))
	)
	for _, member := range obj.Members {
		key := member.Name.Value.(hujson.Literal).String()
		if seen[key] {
			return Manifest{}, fmt.Errorf("line %d: duplicate key %q", idx.line(member.Name.StartOffset), key)
		}
		seen[key] = true

		switch key {
		case "name":
			m.Name, err = stringValue(member.Value, key, idx)
		case "version":
			m.Version, err = stringValue(member.Value, key, idx)
		case "description":
			m.Description, err = stringValue(member.Value, key, idx)
		case "entry":
			m.Entry, err = stringValue(member.Value, key, idx)
		case "imports":
			m.Imports, err = parseImports(member.Value, idx)
		case "exports":
			m.Exports, err = parseExports(member.Value, idx)
		}
		if err != nil {
			return Manifest{}, err
		}
	}

	if !seen["name"] {
		return Manifest{}, fmt.Errorf("missing required key %q", "name")
	}
	if !seen["version"] {
		return Manifest{}, fmt.Errorf("missing required key %q", "version")
	}
	if !nameRe.MatchString(m.Name) {
		return Manifest{}, fmt.Errorf("name %q must match %s", m.Name, nameRe)
	}
	if !validVersion(m.Version) {
		return Manifest{}, fmt.Errorf("version %q is not a semantic version", m.Version)
	}
	return m, nil
}

// validVersion accepts MAJOR.MINOR.PATCH with optional pre-release and build
// suffixes and an optional leading "v".
func validVersion(v string) bool {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	// semver.IsValid also accepts the "v1" and "v1.2" shorthands.
	return semver.Canonical(v) == strings.TrimSuffix(v, semver.Build(v))
}

func stringValue(v hujson.Value, key string, idx lineIndex) (string, error) {
	lit, ok := v.Value.(hujson.Literal)
	if !ok || lit.Kind() != '"' {
		return "", fmt.Errorf("line %d: %q must be a string", idx.line(v.StartOffset), key)
	}
	return lit.String(), nil
}

func parseImports(v hujson.Value, idx lineIndex) ([]ImportDeclaration, error) {
	arr, ok := v.Value.(*hujson.Array)
	if !ok {
		return nil, fmt.Errorf("line %d: %q must be an array", idx.line(v.StartOffset), "imports")
	}
	out := make([]ImportDeclaration, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		line := idx.line(el.StartOffset)
		ns, err := stringValue(el, "imports[]", idx)
		if err != nil {
			return nil, err
		}
		canonical, err := NormalizeNamespace(ns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ImportDeclaration{
			Namespace: ns,
			Canonical: canonical,
			Location:  types.Location{Path: ManifestName, Line: line},
		})
	}
	return out, nil
}

func parseExports(v hujson.Value, idx lineIndex) ([]ExportDeclaration, error) {
	arr, ok := v.Value.(*hujson.Array)
	if !ok {
		return nil, fmt.Errorf("line %d: %q must be an array", idx.line(v.StartOffset), "exports")
	}
	out := make([]ExportDeclaration, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		line := idx.line(el.StartOffset)
		decl := ExportDeclaration{Location: types.Location{Path: ManifestName, Line: line}}

		switch val := el.Value.(type) {
		case hujson.Literal:
			if val.Kind() != '"' {
				return nil, fmt.Errorf("line %d: export must be a string or an object", line)
			}
			decl.Name = val.String()
		case *hujson.Object:
			for _, field := range val.Members {
				key := field.Name.Value.(hujson.Literal).String()
				var err error
				switch key {
				case "name":
					decl.Name, err = stringValue(field.Value, "exports[].name", idx)
				case "signature":
					decl.Signature, err = stringValue(field.Value, "exports[].signature", idx)
				}
				if err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("line %d: export must be a string or an object", line)
		}

		if strings.TrimSpace(decl.Name) == "" {
			return nil, fmt.Errorf("line %d: export name must not be empty", line)
		}
		out = append(out, decl)
	}
	return out, nil
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(data []byte) lineIndex {
	var idx lineIndex
	for i, b := range data {
		if b == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

func (idx lineIndex) line(offset int) int {
	return sort.SearchInts(idx, offset) + 1
}
