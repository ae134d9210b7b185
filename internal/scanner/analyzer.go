// Package scanner is the rule engine: it runs every registered check over a
// loaded package and assembles the report.
package scanner

import (
	"context"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// Check is the interface every analysis stage implements. Analyze must treat
// pkg as read-only; it may run concurrently with other checks. An error
// means the check itself failed and aborts the scan; problems with the
// package are reported as findings.
type Check interface {
	Name() string
	Analyze(ctx context.Context, pkg *vtx.Package, opts types.ScanOptions) ([]types.Finding, error)
}
