// Package commands implements the vtx-security command line.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitFindings = 1
	ExitError    = 2
)

// exitError carries a process exit code out of a RunE handler.
type exitError struct {
	Code int
	Err  error
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *exitError) Unwrap() error { return e.Err }

// globalFlags are shared by every subcommand.
type globalFlags struct {
	format       string
	output       string
	workers      int
	rules        string
	registry     string
	noColor      bool
	disableRules []string
	logLevel     string

	logger *log.Logger
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "vtx-security",
		Short: "Static security scanner for VTX plugin packages",
		Long: `vtx-security inspects VTX plugin packages before a host loads them.

It checks declared imports against the host namespace registry, verifies the
mandatory contract exports, audits archive members and matches content rules
against the packaged sources. Nothing in the package is executed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel)
			if err != nil {
				return err
			}
			g.logger = logger
			if os.Getenv("NO_COLOR") != "" {
				g.noColor = true
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.format, "format", "json", "Output format (json, sarif, markdown, terminal)")
	pf.StringVarP(&g.output, "output", "o", "", "Output file path (default: stdout)")
	pf.IntVar(&g.workers, "workers", 0, "Checks run concurrently per package (default: NumCPU)")
	pf.StringVar(&g.rules, "rules", "", "Additional rules directory")
	pf.StringVar(&g.registry, "registry", "", "Namespace registry file replacing the built-in table")
	pf.BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	pf.StringSliceVar(&g.disableRules, "disable-rule", nil, "Rule IDs to disable (comma-separated, repeatable)")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newScanCommand(g),
		newListRulesCommand(g),
		newExplainCommand(g),
		newNamespacesCommand(g),
		newInitCommand(),
		newVersionCommand(),
	)
	return root
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, &exitError{Code: ExitError, Err: fmt.Errorf("invalid --log-level: %w", err)}
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "vtx-security",
		Level:  lvl,
	}), nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(), os.Stderr)
}

func run(root *cobra.Command, stderr io.Writer) int {
	err := root.Execute()
	if err == nil {
		return ExitOK
	}
	logger := log.NewWithOptions(stderr, log.Options{Prefix: "vtx-security"})
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			logger.Error(ee.Err)
		}
		return ee.Code
	}
	logger.Error(err)
	return ExitError
}
