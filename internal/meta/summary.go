// Package meta post-processes the findings of all checks into the
// aggregate values a report carries.
package meta

import "github.com/Vtxdeo/vtx-security-cli/internal/types"

// MaxSeverity returns the highest severity in findings, or SeverityInfo
// when there are none.
func MaxSeverity(findings []types.Finding) types.Severity {
	max := types.SeverityInfo
	for _, f := range findings {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

// Summarize counts findings per severity.
func Summarize(findings []types.Finding) types.Summary {
	var s types.Summary
	for _, f := range findings {
		s.Add(f.Severity)
	}
	return s
}

// CountByCategory returns per-category counts in first-seen order.
func CountByCategory(findings []types.Finding) ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, f := range findings {
		if counts[f.Category] == 0 {
			order = append(order, f.Category)
		}
		counts[f.Category]++
	}
	return order, counts
}
