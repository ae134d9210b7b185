package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/Vtxdeo/vtx-security-cli/internal/meta"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

const (
	barWidth      = 40
	lineWidth     = 72
	categoryWidth = 26
	messageWidth  = 72
)

var (
	boldStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
	pathStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	severityStyles = map[types.Severity]lipgloss.Style{
		types.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		types.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		types.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		types.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		types.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
)

// TerminalFormatter outputs findings in a triage-optimized format.
type TerminalFormatter struct {
	NoColor bool
	Verbose bool
}

func (f *TerminalFormatter) render(s lipgloss.Style, text string) string {
	if f.NoColor {
		return text
	}
	return s.Render(text)
}

func (f *TerminalFormatter) Format(w io.Writer, scans []Scan) error {
	if os.Getenv("NO_COLOR") != "" {
		f.NoColor = true
	}

	for _, s := range scans {
		f.printHeader(w, s)
		switch {
		case s.Err != nil:
			fmt.Fprintf(w, "\n  %s %s\n", f.render(errorStyle, "✖ scan failed:"), s.Err)
		case len(s.Report.Findings) == 0:
			fmt.Fprintf(w, "\n  %s No security issues found.\n", f.render(okStyle, "✔"))
		default:
			f.printDashboard(w, s.Report)
			for _, sev := range descending {
				if filtered := filterBySeverity(s.Report.Findings, sev); len(filtered) > 0 {
					f.printSeveritySection(w, sev, filtered)
				}
			}
			if f.Verbose {
				f.printCategories(w, s.Report.Findings)
			}
		}
	}
	f.printFooter(w, scans)
	return nil
}

func (f *TerminalFormatter) separator() string {
	return strings.Repeat("─", lineWidth)
}

func (f *TerminalFormatter) sectionHeader(title string) string {
	prefix := "── " + title + " "
	remaining := max(lineWidth-utf8.RuneCountInString(prefix), 0)
	return prefix + strings.Repeat("─", remaining)
}

func (f *TerminalFormatter) printHeader(w io.Writer, s Scan) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.render(dimStyle, sep))
	fmt.Fprintf(w, "  %s\n", f.render(boldStyle, "VTX SECURITY SCAN"))

	parts := []string{s.Path}
	if s.Report != nil {
		pkg := s.Report.Package
		parts = append(parts, fmt.Sprintf("%s@%s", pkg.Name, pkg.Version), "blake3:"+shortDigest(pkg.Digest))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  ·  "))
	fmt.Fprintf(w, "%s\n", f.render(dimStyle, sep))
}

func (f *TerminalFormatter) printDashboard(w io.Writer, r *types.Report) {
	peak := 0
	for _, sev := range descending {
		peak = max(peak, r.Summary.Count(sev))
	}
	if peak == 0 {
		return
	}

	fmt.Fprintln(w)
	for _, sev := range descending {
		c := r.Summary.Count(sev)
		if c == 0 {
			continue
		}
		label := fmt.Sprintf("  %-10s", sev.String())
		fmt.Fprintf(w, "%s %s %4d\n", f.render(boldStyle, label), f.renderBar(c, peak, barWidth, sev), c)
	}

	fmt.Fprintf(w, "\n  %s\n", f.render(boldStyle, fmt.Sprintf("%d findings, max severity %s", len(r.Findings), r.MaxSeverity)))
}

func (f *TerminalFormatter) printSeveritySection(w io.Writer, sev types.Severity, findings []types.Finding) {
	header := f.sectionHeader(fmt.Sprintf("%s (%d)", sev.String(), len(findings)))
	fmt.Fprintf(w, "\n%s\n", f.render(boldStyle, header))

	for _, group := range groupByPath(findings) {
		fmt.Fprintf(w, "\n  %s\n", f.render(pathStyle, group.path))
		for _, finding := range group.findings {
			f.printFinding(w, finding)
		}
	}
}

func (f *TerminalFormatter) printFinding(w io.Writer, finding types.Finding) {
	category := fmt.Sprintf("%-*s", categoryWidth, finding.Category)
	fmt.Fprintf(w, "    %s %s %s\n",
		f.severityIcon(finding.Severity),
		f.render(boldStyle, category),
		f.render(locationStyle, location(finding)),
	)
	fmt.Fprintf(w, "      %s %s\n", f.render(dimStyle, "│"), truncate(finding.Message, messageWidth))
	if f.Verbose {
		fmt.Fprintf(w, "      %s %s\n", f.render(dimStyle, "│"), f.render(dimStyle, "check: "+finding.Check))
	}
}

func (f *TerminalFormatter) printCategories(w io.Writer, findings []types.Finding) {
	order, counts := meta.CountByCategory(findings)
	fmt.Fprintf(w, "\n%s\n\n", f.render(boldStyle, f.sectionHeader("CATEGORIES")))
	for _, c := range order {
		fmt.Fprintf(w, "  %4d  %s\n", counts[c], c)
	}
}

func (f *TerminalFormatter) printFooter(w io.Writer, scans []Scan) {
	var findings, failed int
	for _, s := range scans {
		if s.Err != nil {
			failed++
			continue
		}
		findings += len(s.Report.Findings)
	}

	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.render(dimStyle, sep))
	parts := []string{
		fmt.Sprintf("%d packages scanned", len(scans)),
		fmt.Sprintf("%d findings", findings),
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " · "))
	fmt.Fprintf(w, "%s\n", f.render(dimStyle, sep))
}

func (f *TerminalFormatter) severityIcon(sev types.Severity) string {
	icons := map[types.Severity]string{
		types.SeverityCritical: "✖",
		types.SeverityHigh:     "▲",
		types.SeverityMedium:   "■",
		types.SeverityLow:      "●",
		types.SeverityInfo:     "○",
	}
	icon, ok := icons[sev]
	if !ok {
		return "?"
	}
	return f.render(severityStyles[sev], icon)
}

func (f *TerminalFormatter) renderBar(count, peak, width int, sev types.Severity) string {
	filled := count * width / peak
	if filled == 0 && count > 0 {
		filled = 1
	}
	// keep one empty block so the bar boundary stays visible
	if filled >= width {
		filled = width - 1
	}
	return f.render(severityStyles[sev], strings.Repeat("█", filled)) +
		f.render(dimStyle, strings.Repeat("░", width-filled))
}

type pathGroup struct {
	path     string
	findings []types.Finding
}

// groupByPath groups findings by member path in first-seen order.
func groupByPath(findings []types.Finding) []pathGroup {
	index := make(map[string]int)
	var groups []pathGroup
	for _, f := range findings {
		p := "(package)"
		if f.Location != nil {
			p = f.Location.Path
		}
		i, ok := index[p]
		if !ok {
			i = len(groups)
			index[p] = i
			groups = append(groups, pathGroup{path: p})
		}
		groups[i].findings = append(groups[i].findings, f)
	}
	return groups
}
