package vtxsecurity

import "github.com/charmbracelet/log"

// scanConfig holds the resolved configuration for a scan.
type scanConfig struct {
	scan           ScanOptions
	registryFile   string
	customRulesDir string
	disabledRules  []string
	disabledChecks []string
	ruleOverrides  map[string]RuleOverride
	workers        int
	logger         *log.Logger
	metrics        *Metrics
	category       string // only for ListRules
}

// Option configures a scan operation.
type Option func(*scanConfig)

// WithScanOptions replaces the whole policy snapshot.
func WithScanOptions(o ScanOptions) Option {
	return func(c *scanConfig) {
		c.scan = o
	}
}

// WithAllowUnknownImports reports unknown import namespaces as MEDIUM when
// allow is true and HIGH otherwise.
func WithAllowUnknownImports(allow bool) Option {
	return func(c *scanConfig) {
		c.scan.AllowUnknownImports = allow
	}
}

// WithRequireContractExports reports missing contract exports as CRITICAL
// when require is true and INFO otherwise.
func WithRequireContractExports(require bool) Option {
	return func(c *scanConfig) {
		c.scan.RequireContractExports = require
	}
}

// WithLimits sets the archive safeguards. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(c *scanConfig) {
		c.scan.Limits = l.WithDefaults()
	}
}

// WithRegistryFile replaces the built-in namespace registry with a YAML table.
func WithRegistryFile(path string) Option {
	return func(c *scanConfig) {
		c.registryFile = path
	}
}

// WithCustomRules loads additional rules from a directory.
func WithCustomRules(dir string) Option {
	return func(c *scanConfig) {
		c.customRulesDir = dir
	}
}

// WithDisabledRules excludes specific rule IDs from scanning.
func WithDisabledRules(ids ...string) Option {
	return func(c *scanConfig) {
		c.disabledRules = append(c.disabledRules, ids...)
	}
}

// WithDisabledChecks skips whole checks by identifier (see Checks).
func WithDisabledChecks(names ...string) Option {
	return func(c *scanConfig) {
		c.disabledChecks = append(c.disabledChecks, names...)
	}
}

// WithRuleOverrides applies severity overrides or disables rules.
func WithRuleOverrides(overrides map[string]RuleOverride) Option {
	return func(c *scanConfig) {
		c.ruleOverrides = overrides
	}
}

// WithWorkers sets the number of checks run concurrently (default: NumCPU).
func WithWorkers(n int) Option {
	return func(c *scanConfig) {
		c.workers = n
	}
}

// WithLogger routes engine diagnostics and rule warnings to l.
func WithLogger(l *log.Logger) Option {
	return func(c *scanConfig) {
		c.logger = l
	}
}

// WithMetrics records scan metrics on m (see NewMetrics).
func WithMetrics(m *Metrics) Option {
	return func(c *scanConfig) {
		c.metrics = m
	}
}

// WithCategory filters rules by category (only applies to ListRules).
func WithCategory(cat string) Option {
	return func(c *scanConfig) {
		c.category = cat
	}
}
