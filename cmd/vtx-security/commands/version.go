package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vtxdeo/vtx-security-cli/internal/update"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newVersionCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "vtx-security %s (commit: %s)\n", Version, Commit)
			if !check {
				return
			}
			r := update.CheckLatest(cmd.Context(), Version)
			if r != nil && r.NeedsUpdate() {
				fmt.Fprintf(w, "\nA newer release is available: %s\n  %s\n", r.Latest, r.UpdateURL)
			}
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Look up the latest release on GitHub")
	return cmd
}
