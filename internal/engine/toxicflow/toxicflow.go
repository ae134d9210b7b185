// Package toxicflow detects dangerous capability combinations across the
// namespaces a package imports. When a plugin can both read private data and
// reach the network, for example, it flags the toxic flow as a potential
// exfiltration vector even if each import is acceptable on its own.
package toxicflow

import (
	"context"
	"fmt"

	"github.com/Vtxdeo/vtx-security-cli/internal/registry"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

const (
	Name     = "capabilities"
	Category = "toxic-capability-flow"
)

// toxicPair defines a dangerous combination of capabilities.
type toxicPair struct {
	a, b     registry.Capability
	severity types.Severity
	risk     string
}

var toxicPairs = []toxicPair{
	{
		a:        registry.ReadsPrivateData,
		b:        registry.NetworkEgress,
		severity: types.SeverityHigh,
		risk:     "private data can be exfiltrated over the network",
	},
	{
		a:        registry.ExecutesCode,
		b:        registry.NetworkEgress,
		severity: types.SeverityCritical,
		risk:     "code fetched from the network can be executed on the host",
	},
	{
		a:        registry.WritesFilesystem,
		b:        registry.ExecutesCode,
		severity: types.SeverityHigh,
		risk:     "the plugin can drop a file and then execute it",
	},
}

// Analyzer reports toxic capability pairs.
type Analyzer struct {
	reg *registry.Registry
}

// New creates a toxic flow Analyzer resolving imports through reg.
func New(reg *registry.Registry) *Analyzer {
	return &Analyzer{reg: reg}
}

// Name returns the check name.
func (a *Analyzer) Name() string { return Name }

// Analyze emits at most one finding per pair, in pair order. The location is
// the import that completed the pair.
func (a *Analyzer) Analyze(_ context.Context, pkg *vtx.Package, _ types.ScanOptions) ([]types.Finding, error) {
	detected := make(map[registry.Capability]capSource)
	for _, decl := range pkg.Manifest.Imports {
		ns, ok := a.reg.Lookup(decl.Canonical)
		if !ok {
			continue
		}
		for _, c := range ns.Capabilities {
			if _, seen := detected[c]; !seen {
				detected[c] = capSource{namespace: decl.Namespace, loc: decl.Location}
			}
		}
	}

	var findings []types.Finding
	for _, tp := range toxicPairs {
		srcA, okA := detected[tp.a]
		srcB, okB := detected[tp.b]
		if !okA || !okB {
			continue
		}
		loc := srcA.loc
		if srcB.loc.Line > loc.Line {
			loc = srcB.loc
		}
		findings = append(findings, types.Finding{
			Severity: tp.severity,
			Category: Category,
			Message: fmt.Sprintf("imports combine %s (%s) with %s (%s): %s",
				tp.a, srcA.namespace, tp.b, srcB.namespace, tp.risk),
			Location: &loc,
			Check:    Name,
		})
	}
	return findings, nil
}

type capSource struct {
	namespace string
	loc       types.Location
}
