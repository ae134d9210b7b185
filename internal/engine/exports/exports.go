// Package exports verifies that a package declares the contract exports the
// host calls on every plugin.
package exports

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Vtxdeo/vtx-security-cli/internal/registry"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

const (
	Name = "exports"

	CategoryMissing     = "missing-contract-export"
	CategoryConflicting = "conflicting-export"
	CategoryDuplicate   = "duplicate-export"
	CategorySignature   = "export-signature-mismatch"
)

// Verifier checks declared exports against the registry's contract.
type Verifier struct {
	reg *registry.Registry
}

// New returns a verifier for the contract exports declared in reg.
func New(reg *registry.Registry) *Verifier {
	return &Verifier{reg: reg}
}

// Name returns the check identifier.
func (v *Verifier) Name() string { return Name }

// Analyze reports missing, conflicting and duplicate export declarations.
func (v *Verifier) Analyze(_ context.Context, pkg *vtx.Package, opts types.ScanOptions) ([]types.Finding, error) {
	var findings []types.Finding
	declared := make(map[string]vtx.ExportDeclaration, len(pkg.Manifest.Exports))

	for _, decl := range pkg.Manifest.Exports {
		loc := decl.Location
		if first, dup := declared[decl.Name]; dup {
			if first.Signature != "" && decl.Signature != "" && !sameSignature(first.Signature, decl.Signature) {
				findings = append(findings, types.Finding{
					Severity: types.SeverityHigh,
					Category: CategoryConflicting,
					Message: fmt.Sprintf("export %q is redeclared with signature %q, conflicting with %q on line %d",
						decl.Name, decl.Signature, first.Signature, first.Location.Line),
					Location: &loc,
					Check:    Name,
				})
			} else {
				findings = append(findings, types.Finding{
					Severity: types.SeverityInfo,
					Category: CategoryDuplicate,
					Message:  fmt.Sprintf("export %q repeats the declaration on line %d", decl.Name, first.Location.Line),
					Location: &loc,
					Check:    Name,
				})
			}
			continue
		}
		declared[decl.Name] = decl

		contract, ok := v.reg.Contract(decl.Name)
		if ok && decl.Signature != "" && contract.Signature != "" && !sameSignature(decl.Signature, contract.Signature) {
			findings = append(findings, types.Finding{
				Severity: types.SeverityHigh,
				Category: CategorySignature,
				Message: fmt.Sprintf("export %q declares signature %q but the host calls it as %q",
					decl.Name, decl.Signature, contract.Signature),
				Location: &loc,
				Check:    Name,
			})
		}
	}

	return append(findings, v.missing(pkg, declared, opts)...), nil
}

// missing reports contract exports absent from the manifest. A manifest
// without any exports gets a single finding naming every missing symbol.
func (v *Verifier) missing(pkg *vtx.Package, declared map[string]vtx.ExportDeclaration, opts types.ScanOptions) []types.Finding {
	sev := opts.MissingExportSeverity()
	contract := v.reg.ContractExports()
	if len(contract) == 0 {
		return nil
	}

	if len(pkg.Manifest.Exports) == 0 {
		names := make([]string, len(contract))
		for i, c := range contract {
			names[i] = c.Name
		}
		return []types.Finding{{
			Severity: sev,
			Category: CategoryMissing,
			Message:  "package declares no exports; the host requires " + strings.Join(names, ", "),
			Location: &types.Location{Path: vtx.ManifestName},
			Check:    Name,
		}}
	}

	var findings []types.Finding
	for _, c := range contract {
		if _, ok := declared[c.Name]; ok {
			continue
		}
		msg := fmt.Sprintf("contract export %q is not declared", c.Name)
		if c.Signature != "" {
			msg += fmt.Sprintf(" (expected %s)", c.Signature)
		}
		findings = append(findings, types.Finding{
			Severity: sev,
			Category: CategoryMissing,
			Message:  msg,
			Location: &types.Location{Path: vtx.ManifestName},
			Check:    Name,
		})
	}
	return findings
}

// sameSignature compares signatures ignoring whitespace.
func sameSignature(a, b string) bool {
	strip := func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}
	return strings.Map(strip, a) == strings.Map(strip, b)
}
