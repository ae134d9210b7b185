package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	vtxsecurity "github.com/Vtxdeo/vtx-security-cli"
	"github.com/Vtxdeo/vtx-security-cli/internal/config"
	"github.com/Vtxdeo/vtx-security-cli/internal/metrics"
	"github.com/Vtxdeo/vtx-security-cli/internal/output"
	"github.com/Vtxdeo/vtx-security-cli/internal/scanner"
)

type scanFlags struct {
	failOn         string
	verbose        bool
	metricsFile    string
	configPath     string
	denyUnknown    bool
	requireExports bool
	disableChecks  []string
}

func newScanCommand(g *globalFlags) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Scan VTX packages for security issues",
		Long: `Scan one or more VTX packages. A directory argument is searched for *.vtx
files, honoring .vtx-securityignore.

Exit codes: 0 when every package was scanned and no finding reached
--fail-on, 1 when one did, 2 when a package could not be scanned or the
invocation was invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, g, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.failOn, "fail-on", "", "Exit with code 1 if findings at or above this severity (critical, high, medium, low, info)")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Show check names and category totals in terminal output")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile-collector format")
	fl.StringVar(&f.configPath, "config", "", "Config file (default: .vtx-security.yml next to the first path)")
	fl.BoolVar(&f.denyUnknown, "deny-unknown-imports", false, "Report unknown import namespaces as HIGH instead of MEDIUM")
	fl.BoolVar(&f.requireExports, "require-contract-exports", true, "Report missing contract exports as CRITICAL (false: INFO)")
	fl.StringSliceVar(&f.disableChecks, "disable-check", nil, "Checks to skip: imports, exports, capabilities, members, pattern")
	return cmd
}

func runScan(cmd *cobra.Command, g *globalFlags, f *scanFlags, args []string) error {
	cfg, err := loadScanConfig(f.configPath, args[0])
	if err != nil {
		return &exitError{Code: ExitError, Err: err}
	}
	applyConfig(cmd, g, f, cfg)

	var threshold vtxsecurity.Severity
	if f.failOn != "" {
		if threshold, err = vtxsecurity.ParseSeverity(f.failOn); err != nil {
			return &exitError{Code: ExitError, Err: fmt.Errorf("invalid --fail-on: %w", err)}
		}
	}

	output.ToolVersion = Version
	formatter, err := output.ForFormat(g.format, g.noColor)
	if err != nil {
		return &exitError{Code: ExitError, Err: err}
	}
	if tf, ok := formatter.(*output.TerminalFormatter); ok {
		tf.Verbose = f.verbose
	}

	opts := scanOptions(cmd, g, f, cfg)
	var reg *prometheus.Registry
	if f.metricsFile != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, vtxsecurity.WithMetrics(vtxsecurity.NewMetrics(reg)))
	}
	s, err := vtxsecurity.NewScanner(opts...)
	if err != nil {
		return &exitError{Code: ExitError, Err: err}
	}
	g.logger.Debug("scanner ready", "checks", strings.Join(s.Checks(), ","), "rules", s.RulesLoaded())

	var targets []*scanner.Target
	for _, arg := range args {
		td := &scanner.TargetDiscovery{IgnorePatterns: cfg.Ignore}
		found, err := td.Discover(arg)
		if err != nil {
			return &exitError{Code: ExitError, Err: fmt.Errorf("discovering packages: %w", err)}
		}
		if len(found) == 0 {
			g.logger.Warn("no packages found", "path", arg)
		}
		targets = append(targets, found...)
	}
	if len(targets) == 0 {
		return &exitError{Code: ExitError, Err: fmt.Errorf("no %s packages to scan", scanner.PackageExt)}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	scans := make([]output.Scan, 0, len(targets))
	failed := 0
	for _, t := range targets {
		r, err := s.Scan(ctx, t.Path)
		if err != nil {
			failed++
			g.logger.Error("scan failed", "path", t.Path, "err", err)
		}
		scans = append(scans, output.Scan{Path: t.Path, Report: r, Err: err})
		if ctx.Err() != nil {
			return &exitError{Code: ExitError, Err: ctx.Err()}
		}
	}

	if err := writeOutput(cmd.OutOrStdout(), g.output, formatter, scans); err != nil {
		return &exitError{Code: ExitError, Err: err}
	}
	if reg != nil {
		if err := metrics.WriteTextfile(f.metricsFile, reg); err != nil {
			return &exitError{Code: ExitError, Err: fmt.Errorf("writing metrics: %w", err)}
		}
	}

	if failed > 0 {
		return &exitError{Code: ExitError, Err: fmt.Errorf("%d of %d packages could not be scanned", failed, len(scans))}
	}
	if f.failOn != "" {
		for _, sc := range scans {
			if sc.Report.HasAtLeast(threshold) {
				return &exitError{Code: ExitFindings, Err: fmt.Errorf("%s: findings at or above %s", sc.Path, threshold)}
			}
		}
	}
	return nil
}

func loadScanConfig(explicit, target string) (config.Config, error) {
	if explicit != "" {
		return config.LoadFile(explicit)
	}
	return config.Load(target)
}

// applyConfig fills flags the user did not set from the config file.
func applyConfig(cmd *cobra.Command, g *globalFlags, f *scanFlags, cfg config.Config) {
	changed := cmd.Flags().Changed
	if !changed("format") && cfg.Format != "" {
		g.format = cfg.Format
	}
	if !changed("fail-on") && cfg.FailOn != "" {
		f.failOn = cfg.FailOn
	}
	if !changed("rules") && cfg.Rules != "" {
		g.rules = cfg.Resolve(cfg.Rules)
	}
	if !changed("registry") && cfg.Registry != "" {
		g.registry = cfg.Resolve(cfg.Registry)
	}
	if !changed("workers") && cfg.Workers > 0 {
		g.workers = cfg.Workers
	}
}

func scanOptions(cmd *cobra.Command, g *globalFlags, f *scanFlags, cfg config.Config) []vtxsecurity.Option {
	policy := cfg.ScanOptions(vtxsecurity.DefaultScanOptions())
	if cmd.Flags().Changed("deny-unknown-imports") {
		policy.AllowUnknownImports = !f.denyUnknown
	}
	if cmd.Flags().Changed("require-contract-exports") {
		policy.RequireContractExports = f.requireExports
	}

	opts := []vtxsecurity.Option{
		vtxsecurity.WithScanOptions(policy),
		vtxsecurity.WithWorkers(g.workers),
		vtxsecurity.WithLogger(g.logger),
		vtxsecurity.WithDisabledRules(slices.Concat(g.disableRules, cfg.DisabledRules)...),
		vtxsecurity.WithDisabledChecks(slices.Concat(f.disableChecks, cfg.DisabledChecks)...),
	}
	if g.rules != "" {
		opts = append(opts, vtxsecurity.WithCustomRules(g.rules))
	}
	if g.registry != "" {
		opts = append(opts, vtxsecurity.WithRegistryFile(g.registry))
	}
	if len(cfg.RuleOverrides) > 0 {
		overrides := make(map[string]vtxsecurity.RuleOverride, len(cfg.RuleOverrides))
		for id, ovr := range cfg.RuleOverrides {
			overrides[id] = vtxsecurity.RuleOverride{Severity: ovr.Severity, Disabled: ovr.Disabled}
		}
		opts = append(opts, vtxsecurity.WithRuleOverrides(overrides))
	}
	return opts
}

func writeOutput(stdout io.Writer, path string, formatter output.Formatter, scans []output.Scan) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return formatter.Format(w, scans)
}
