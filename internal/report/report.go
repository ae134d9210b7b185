// Package report builds scan reports and gives them their stable JSON form.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/Vtxdeo/vtx-security-cli/internal/meta"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// Build assembles a report from findings in the order given. The findings
// slice is copied; a nil or empty input yields an empty, non-nil list so the
// JSON form is always an array.
func Build(pkg types.PackageInfo, findings []types.Finding) *types.Report {
	fs := slices.Clone(findings)
	if fs == nil {
		fs = []types.Finding{}
	}
	return &types.Report{
		Package:     pkg,
		Findings:    fs,
		MaxSeverity: meta.MaxSeverity(fs),
		Summary:     meta.Summarize(fs),
	}
}

// Encode writes r as indented JSON. HTML escaping is disabled so messages
// containing <, > or & appear verbatim.
func Encode(w io.Writer, r *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// Marshal returns the Encode form of r.
func Marshal(r *types.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a report produced by Encode. Unknown fields are rejected and
// derived fields are checked against the findings.
func Decode(rd io.Reader) (*types.Report, error) {
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	var r types.Report
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if r.Findings == nil {
		r.Findings = []types.Finding{}
	}
	if got := meta.MaxSeverity(r.Findings); got != r.MaxSeverity {
		return nil, fmt.Errorf("decoding report: max_severity %s does not match findings (%s)", r.MaxSeverity, got)
	}
	if got := meta.Summarize(r.Findings); got != r.Summary {
		return nil, fmt.Errorf("decoding report: summary does not match findings")
	}
	return &r, nil
}
