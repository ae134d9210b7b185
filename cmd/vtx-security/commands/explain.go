package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	vtxsecurity "github.com/Vtxdeo/vtx-security-cli"
)

var (
	labelStyle    = lipgloss.NewStyle().Faint(true)
	headingStyle  = lipgloss.NewStyle().Bold(true)
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	severityStyles = map[string]lipgloss.Style{
		"CRITICAL": lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		"HIGH":     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"MEDIUM":   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"LOW":      lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"INFO":     lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
)

func newExplainCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <RULE_ID>",
		Short: "Show detailed information about a content rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, g, args[0])
		},
	}
}

func runExplain(cmd *cobra.Command, g *globalFlags, id string) error {
	d, err := vtxsecurity.ExplainRule(id, ruleOptions(g)...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if strings.EqualFold(g.format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	style := func(s lipgloss.Style, text string) string {
		if g.noColor {
			return text
		}
		return s.Render(text)
	}

	fmt.Fprintf(w, "\n%s %s\n", style(labelStyle, "Rule:"), style(headingStyle, d.ID))
	fmt.Fprintf(w, "%s %s\n", style(labelStyle, "Name:"), d.Name)
	fmt.Fprintf(w, "%s %s\n", style(labelStyle, "Severity:"), style(severityStyles[d.Severity], d.Severity))
	fmt.Fprintf(w, "%s %s\n", style(labelStyle, "Category:"), d.Category)
	fmt.Fprintf(w, "%s %s\n", style(labelStyle, "Applies to:"), d.AppliesTo)
	if len(d.Targets) > 0 {
		fmt.Fprintf(w, "%s %s\n", style(labelStyle, "Targets:"), strings.Join(d.Targets, ", "))
	}

	if d.Description != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", style(headingStyle, "Description:"), d.Description)
	}

	printList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s\n", style(headingStyle, title))
		for i, p := range items {
			fmt.Fprintf(w, "  %d. %s\n", i+1, style(labelStyle, p))
		}
	}
	printList("Patterns:", d.Patterns)
	printList("Exclude Patterns:", d.ExcludePatterns)

	if len(d.TruePositives) > 0 {
		fmt.Fprintf(w, "\n%s\n", style(headingStyle, "True Positives:"))
		for _, ex := range d.TruePositives {
			fmt.Fprintf(w, "  %s %s\n", style(positiveStyle, "✖"), ex)
		}
	}
	if len(d.FalsePositives) > 0 {
		fmt.Fprintf(w, "\n%s\n", style(headingStyle, "False Positives:"))
		for _, ex := range d.FalsePositives {
			fmt.Fprintf(w, "  %s %s\n", style(negativeStyle, "✔"), ex)
		}
	}

	fmt.Fprintln(w)
	return nil
}
