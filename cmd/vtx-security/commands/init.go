package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Vtxdeo/vtx-security-cli/internal/config"
	"github.com/Vtxdeo/vtx-security-cli/internal/scanner"
)

func newInitCommand() *cobra.Command {
	var ciOnly bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize vtx-security configuration files",
		Long:  `Scaffolds .vtx-security.yml, .vtx-securityignore, and a GitHub Actions workflow that scans built packages.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir, ciOnly)
		},
	}
	cmd.Flags().BoolVar(&ciOnly, "ci", false, "Only generate the GitHub Actions workflow")
	return cmd
}

type scaffold struct {
	path    string
	content string
}

func runInit(w io.Writer, dir string, ciOnly bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	workflow := scaffold{filepath.Join(dir, ".github", "workflows", "vtx-security.yml"), workflowTemplate}
	files := []scaffold{workflow}
	if !ciOnly {
		files = []scaffold{
			{filepath.Join(dir, config.FileNames[0]), config.Template},
			{filepath.Join(dir, scanner.IgnoreFile), ignoreTemplate},
			workflow,
		}
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(w, "  skip %s (already exists)\n", f.path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Fprintf(w, "  create %s\n", f.path)
	}
	return nil
}

const ignoreTemplate = `# Packages matching these patterns are skipped by "vtx-security scan <dir>".
# One glob per line, relative to the scanned directory. ** matches any depth.
testdata/**
**/fixtures/*.vtx
`

const workflowTemplate = `name: vtx-security

on:
  push:
    branches: [main]
  pull_request:

permissions:
  contents: read
  security-events: write

jobs:
  scan:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4

      - uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install vtx-security
        run: go install github.com/Vtxdeo/vtx-security-cli/cmd/vtx-security@latest

      - name: Scan plugin packages
        run: vtx-security scan dist/ --format sarif -o vtx-security.sarif --fail-on high

      - name: Upload SARIF
        if: always()
        uses: github/codeql-action/upload-sarif@v3
        with:
          sarif_file: vtx-security.sarif
`
