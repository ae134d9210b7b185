// Package output renders scan reports as JSON, SARIF, Markdown or styled
// terminal text.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// Scan is the outcome for one package file. Exactly one of Report and Err
// is set.
type Scan struct {
	Path   string
	Report *types.Report
	Err    error
}

// Formatter is the interface for outputting scan results.
type Formatter interface {
	Format(w io.Writer, scans []Scan) error
}

// ForFormat returns the formatter registered under name.
func ForFormat(name string, noColor bool) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return &JSONFormatter{}, nil
	case "sarif":
		return &SARIFFormatter{}, nil
	case "markdown", "md":
		return &MarkdownFormatter{}, nil
	case "terminal", "text":
		return &TerminalFormatter{NoColor: noColor}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json, sarif, markdown or terminal)", name)
	}
}

func filterBySeverity(findings []types.Finding, sev types.Severity) []types.Finding {
	var result []types.Finding
	for _, f := range findings {
		if f.Severity == sev {
			result = append(result, f)
		}
	}
	return result
}

// descending lists severities from most to least severe.
var descending = []types.Severity{
	types.SeverityCritical,
	types.SeverityHigh,
	types.SeverityMedium,
	types.SeverityLow,
	types.SeverityInfo,
}

func location(f types.Finding) string {
	if f.Location == nil {
		return "-"
	}
	return f.Location.String()
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
