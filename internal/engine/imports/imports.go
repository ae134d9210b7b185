// Package imports cross-references manifest imports against the namespace
// registry.
package imports

import (
	"context"
	"fmt"

	"github.com/Vtxdeo/vtx-security-cli/internal/registry"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// Check names.
const (
	Name = "imports"

	CategoryUnknown    = "unknown-import"
	CategoryDangerous  = "dangerous-import"
	CategoryDeprecated = "deprecated-import"
	CategoryDuplicate  = "duplicate-import"
)

// Analyzer classifies every declared import.
type Analyzer struct {
	reg *registry.Registry
}

// New creates an imports Analyzer backed by reg.
func New(reg *registry.Registry) *Analyzer {
	return &Analyzer{reg: reg}
}

func (a *Analyzer) Name() string { return Name }

// Analyze emits findings in manifest declaration order. A repeated
// declaration only yields the duplicate finding; the first one carries the
// classification.
func (a *Analyzer) Analyze(_ context.Context, pkg *vtx.Package, opts types.ScanOptions) ([]types.Finding, error) {
	var findings []types.Finding
	firstLine := make(map[string]int, len(pkg.Manifest.Imports))

	for _, decl := range pkg.Manifest.Imports {
		loc := decl.Location
		if line, dup := firstLine[decl.Canonical]; dup {
			findings = append(findings, types.Finding{
				Severity: types.SeverityInfo,
				Category: CategoryDuplicate,
				Message:  fmt.Sprintf("import %q repeats the declaration on line %d", decl.Namespace, line),
				Location: &loc,
				Check:    Name,
			})
			continue
		}
		firstLine[decl.Canonical] = decl.Location.Line

		ns, known := a.reg.Lookup(decl.Canonical)
		if !known {
			findings = append(findings, types.Finding{
				Severity: opts.UnknownImportSeverity(),
				Category: CategoryUnknown,
				Message:  fmt.Sprintf("import %q is not a registered host namespace", decl.Namespace),
				Location: &loc,
				Check:    Name,
			})
			continue
		}
		if ns.Dangerous() {
			msg := fmt.Sprintf("import %q resolves to dangerous namespace %s", decl.Namespace, ns.Name)
			if ns.Description != "" {
				msg += ": " + ns.Description
			}
			findings = append(findings, types.Finding{
				Severity: ns.Level(),
				Category: CategoryDangerous,
				Message:  msg,
				Location: &loc,
				Check:    Name,
			})
		}
		if ns.Deprecated {
			msg := fmt.Sprintf("import %q uses deprecated namespace %s", decl.Namespace, ns.Name)
			if ns.ReplacedBy != "" {
				msg += "; use " + ns.ReplacedBy
			}
			findings = append(findings, types.Finding{
				Severity: types.SeverityLow,
				Category: CategoryDeprecated,
				Message:  msg,
				Location: &loc,
				Check:    Name,
			})
		}
	}
	return findings, nil
}
