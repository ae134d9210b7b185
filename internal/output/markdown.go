package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/Vtxdeo/vtx-security-cli/internal/meta"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// MarkdownFormatter outputs findings as GitHub-flavored markdown,
// designed for GitHub Actions Job Summaries and PR comments.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, scans []Scan) error {
	for _, s := range scans {
		switch {
		case s.Err != nil:
			fmt.Fprintf(w, "### :x: `%s` could not be scanned\n\n", s.Path)
			fmt.Fprintf(w, "> %s\n\n", escapeMarkdown(s.Err.Error()))
		case len(s.Report.Findings) == 0:
			f.printClean(w, s)
		default:
			f.printSummary(w, s)
			f.printFindings(w, s.Report.Findings)
			f.printCategories(w, s.Report.Findings)
		}
	}
	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "*Scanned by [vtx-security](https://github.com/Vtxdeo/vtx-security-cli) %s*\n", ToolVersion)
	return nil
}

func packageLabel(r *types.Report) string {
	return fmt.Sprintf("%s@%s", r.Package.Name, r.Package.Version)
}

func (f *MarkdownFormatter) printClean(w io.Writer, s Scan) {
	fmt.Fprintf(w, "### :white_check_mark: `%s`: no issues found\n\n", packageLabel(s.Report))
	fmt.Fprintf(w, "> `%s` · digest `%s`\n\n", s.Path, shortDigest(s.Report.Package.Digest))
}

func (f *MarkdownFormatter) printSummary(w io.Writer, s Scan) {
	r := s.Report
	fmt.Fprintf(w, "### :rotating_light: `%s`: %d findings, max %s\n\n", packageLabel(r), len(r.Findings), r.MaxSeverity)
	fmt.Fprintf(w, "> `%s` · digest `%s`\n\n", s.Path, shortDigest(r.Package.Digest))

	var badges []string
	for _, sev := range descending {
		c := r.Summary.Count(sev)
		if c == 0 {
			continue
		}
		badges = append(badges, fmt.Sprintf("%s **%d %s**", severityEmoji(sev), c, sev.String()))
	}
	fmt.Fprintf(w, "%s\n\n", strings.Join(badges, " · "))
}

func (f *MarkdownFormatter) printFindings(w io.Writer, findings []types.Finding) {
	for _, sev := range descending {
		filtered := filterBySeverity(findings, sev)
		if len(filtered) == 0 {
			continue
		}

		fmt.Fprintf(w, "<details%s>\n", openByDefault(sev))
		fmt.Fprintf(w, "<summary>%s <strong>%s (%d)</strong></summary>\n\n", severityEmoji(sev), sev.String(), len(filtered))

		fmt.Fprintf(w, "| Category | Message | Location | Check |\n")
		fmt.Fprintf(w, "|----------|---------|----------|-------|\n")
		for _, finding := range filtered {
			fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n",
				finding.Category, escapeMarkdown(truncate(finding.Message, 120)), location(finding), finding.Check)
		}

		fmt.Fprintf(w, "\n</details>\n\n")
	}
}

func (f *MarkdownFormatter) printCategories(w io.Writer, findings []types.Finding) {
	order, counts := meta.CountByCategory(findings)
	if len(order) < 2 {
		return
	}
	fmt.Fprintf(w, "**By category:**\n\n")
	fmt.Fprintf(w, "| Category | Findings |\n")
	fmt.Fprintf(w, "|----------|----------|\n")
	for _, c := range order {
		fmt.Fprintf(w, "| `%s` | %d |\n", c, counts[c])
	}
	fmt.Fprintf(w, "\n")
}

func severityEmoji(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return ":red_circle:"
	case types.SeverityHigh:
		return ":orange_circle:"
	case types.SeverityMedium:
		return ":yellow_circle:"
	case types.SeverityLow:
		return ":blue_circle:"
	case types.SeverityInfo:
		return ":white_circle:"
	default:
		return ":black_circle:"
	}
}

func openByDefault(sev types.Severity) string {
	if sev >= types.SeverityHigh {
		return " open"
	}
	return ""
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
