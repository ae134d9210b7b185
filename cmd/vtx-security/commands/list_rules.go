package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	vtxsecurity "github.com/Vtxdeo/vtx-security-cli"
)

func newListRulesCommand(g *globalFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list-rules",
		Short: "List all available content rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListRules(cmd, g, category)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}

func ruleOptions(g *globalFlags) []vtxsecurity.Option {
	opts := []vtxsecurity.Option{
		vtxsecurity.WithLogger(g.logger),
		vtxsecurity.WithDisabledRules(g.disableRules...),
	}
	if g.rules != "" {
		opts = append(opts, vtxsecurity.WithCustomRules(g.rules))
	}
	return opts
}

func runListRules(cmd *cobra.Command, g *globalFlags, category string) error {
	opts := ruleOptions(g)
	if category != "" {
		opts = append(opts, vtxsecurity.WithCategory(category))
	}
	infos := vtxsecurity.ListRules(opts...)

	w := cmd.OutOrStdout()
	if strings.EqualFold(g.format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tSEVERITY\tCATEGORY\n")
	fmt.Fprintf(tw, "--\t----\t--------\t--------\n")
	for _, r := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Severity, r.Category)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d rules loaded\n", len(infos))
	return nil
}
