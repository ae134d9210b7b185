package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	vtxsecurity "github.com/Vtxdeo/vtx-security-cli"
)

func newNamespacesCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List the host namespace registry and the contract exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNamespaces(cmd, g)
		},
	}
}

func runNamespaces(cmd *cobra.Command, g *globalFlags) error {
	var opts []vtxsecurity.Option
	if g.registry != "" {
		opts = append(opts, vtxsecurity.WithRegistryFile(g.registry))
	}
	nss, err := vtxsecurity.ListNamespaces(opts...)
	if err != nil {
		return err
	}
	exports, err := vtxsecurity.ContractExports(opts...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if strings.EqualFold(g.format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ContractExports []vtxsecurity.ContractExport `json:"contract_exports"`
			Namespaces      []vtxsecurity.NamespaceInfo  `json:"namespaces"`
		}{exports, nss})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAMESPACE\tRISK\tSEVERITY\tCAPABILITIES\tNOTES\n")
	fmt.Fprintf(tw, "---------\t----\t--------\t------------\t-----\n")
	for _, ns := range nss {
		sev := ns.Severity
		if sev == "" {
			sev = "-"
		}
		caps := strings.Join(ns.Capabilities, ",")
		if caps == "" {
			caps = "-"
		}
		var notes string
		if ns.Deprecated {
			notes = "deprecated"
			if ns.ReplacedBy != "" {
				notes += ", use " + ns.ReplacedBy
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ns.Name, ns.Risk, sev, caps, notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nContract exports:\n")
	for _, e := range exports {
		if e.Signature != "" {
			fmt.Fprintf(w, "  %s  %s\n", e.Name, e.Signature)
		} else {
			fmt.Fprintf(w, "  %s\n", e.Name)
		}
	}
	return nil
}
