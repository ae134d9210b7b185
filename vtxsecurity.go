// Package vtxsecurity statically inspects VTX plugin packages before a host
// loads them: manifest imports against the namespace registry, mandatory
// contract exports, archive hygiene and content rules.
//
// This is the library entry point. For the CLI tool, see cmd/vtx-security/.
package vtxsecurity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vtxdeo/vtx-security-cli/internal/engine/exports"
	"github.com/Vtxdeo/vtx-security-cli/internal/engine/imports"
	"github.com/Vtxdeo/vtx-security-cli/internal/engine/members"
	"github.com/Vtxdeo/vtx-security-cli/internal/engine/pattern"
	"github.com/Vtxdeo/vtx-security-cli/internal/engine/toxicflow"
	"github.com/Vtxdeo/vtx-security-cli/internal/metrics"
	"github.com/Vtxdeo/vtx-security-cli/internal/registry"
	"github.com/Vtxdeo/vtx-security-cli/internal/rules"
	"github.com/Vtxdeo/vtx-security-cli/internal/scanner"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// Re-export core types from internal/types so consumers don't need to
// import internal packages.
type (
	Severity    = types.Severity
	Finding     = types.Finding
	Location    = types.Location
	Report      = types.Report
	PackageInfo = types.PackageInfo
	Summary     = types.Summary
	ScanOptions = types.ScanOptions
	Limits      = types.Limits
	LoadError   = types.LoadError
	ScanError   = types.ScanError
	Metrics     = metrics.Metrics
)

const (
	SeverityInfo     = types.SeverityInfo
	SeverityLow      = types.SeverityLow
	SeverityMedium   = types.SeverityMedium
	SeverityHigh     = types.SeverityHigh
	SeverityCritical = types.SeverityCritical
)

// Error kinds, matched with errors.Is.
var (
	ErrMalformedArchive = types.ErrMalformedArchive
	ErrInvalidManifest  = types.ErrInvalidManifest
	ErrInternal         = types.ErrInternal
)

// Check identifiers, in the order the engine reports them.
const (
	CheckImports      = imports.Name
	CheckExports      = exports.Name
	CheckCapabilities = toxicflow.Name
	CheckMembers      = members.Name
	CheckPattern      = pattern.Name
)

// Checks lists every built-in check identifier in report order.
func Checks() []string {
	return []string{CheckImports, CheckExports, CheckCapabilities, CheckMembers, CheckPattern}
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(s string) (Severity, error) { return types.ParseSeverity(s) }

// DefaultScanOptions requires contract exports and allows unknown imports.
func DefaultScanOptions() ScanOptions { return types.DefaultScanOptions() }

// DefaultLimits returns the archive safeguards used when none are set.
func DefaultLimits() Limits { return types.DefaultLimits() }

// NewMetrics registers the scanner metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics { return metrics.NewMetrics(reg) }

// RuleOverride allows changing the severity of a rule or disabling it.
type RuleOverride struct {
	Severity string
	Disabled bool
}

// RuleInfo provides summary metadata about a content rule.
type RuleInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Category string `json:"category"`
}

// RuleDetail provides full information about a rule, including patterns and examples.
type RuleDetail struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Severity        string   `json:"severity"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	AppliesTo       string   `json:"applies_to"`
	Targets         []string `json:"targets,omitempty"`
	Patterns        []string `json:"patterns"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	TruePositives   []string `json:"true_positives"`
	FalsePositives  []string `json:"false_positives"`
}

// NamespaceInfo describes one registry entry.
type NamespaceInfo struct {
	Name         string   `json:"name"`
	Risk         string   `json:"risk"`
	Severity     string   `json:"severity,omitempty"`
	Description  string   `json:"description,omitempty"`
	Deprecated   bool     `json:"deprecated,omitempty"`
	ReplacedBy   string   `json:"replaced_by,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ContractExport is a symbol the host requires every plugin to export.
type ContractExport struct {
	Name        string `json:"name"`
	Signature   string `json:"signature,omitempty"`
	Description string `json:"description,omitempty"`
}

// Scanner is a configured engine that can scan many packages. It is safe
// for concurrent use.
type Scanner struct {
	engine *scanner.Scanner
	opts   ScanOptions
	rules  int
}

// NewScanner loads the registry and rules once and wires every check.
func NewScanner(opts ...Option) (*Scanner, error) {
	cfg := applyOpts(opts)
	s, compiled, err := buildScanner(cfg)
	if err != nil {
		return nil, err
	}
	return &Scanner{engine: s, opts: cfg.scan, rules: len(compiled)}, nil
}

// Scan loads and analyzes the package archive at path. A package with
// findings is still a successful scan; the error is a *ScanError only when
// no report could be produced.
func (s *Scanner) Scan(ctx context.Context, path string) (*Report, error) {
	return s.engine.Scan(ctx, path, s.opts)
}

// ScanBytes analyzes an archive held in memory. name labels it in errors.
func (s *Scanner) ScanBytes(ctx context.Context, name string, data []byte) (*Report, error) {
	return s.engine.ScanBytes(ctx, name, data, s.opts)
}

// Options returns the policy snapshot every scan uses.
func (s *Scanner) Options() ScanOptions { return s.opts }

// Checks returns the enabled check identifiers in report order.
func (s *Scanner) Checks() []string { return s.engine.Checks() }

// RulesLoaded is the number of content rules in effect.
func (s *Scanner) RulesLoaded() int { return s.rules }

// Scan scans the package archive at path.
func Scan(ctx context.Context, path string, opts ...Option) (*Report, error) {
	s, err := NewScanner(opts...)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, path)
}

// ScanBytes scans an in-memory package archive.
func ScanBytes(ctx context.Context, name string, data []byte, opts ...Option) (*Report, error) {
	s, err := NewScanner(opts...)
	if err != nil {
		return nil, err
	}
	return s.ScanBytes(ctx, name, data)
}

// ListRules returns all available content rules.
// Use WithCategory to filter by category.
func ListRules(opts ...Option) []RuleInfo {
	cfg := applyOpts(opts)
	compiled, _ := loadAndCompile(cfg)

	sort.Slice(compiled, func(i, j int) bool {
		return compiled[i].ID < compiled[j].ID
	})

	infos := []RuleInfo{}
	for _, r := range compiled {
		if cfg.category != "" && !strings.EqualFold(r.Category, cfg.category) {
			continue
		}
		infos = append(infos, RuleInfo{
			ID:       r.ID,
			Name:     r.Name,
			Severity: r.Severity.String(),
			Category: r.Category,
		})
	}
	return infos
}

// ExplainRule returns detailed information about a specific rule.
func ExplainRule(id string, opts ...Option) (*RuleDetail, error) {
	cfg := applyOpts(opts)
	compiled, err := loadAndCompile(cfg)
	if err != nil {
		return nil, err
	}

	found := rules.Find(compiled, id)
	if found == nil {
		return nil, fmt.Errorf("rule %q not found", id)
	}

	return &RuleDetail{
		ID:              found.ID,
		Name:            found.Name,
		Severity:        found.Severity.String(),
		Category:        found.Category,
		Description:     found.Description,
		AppliesTo:       string(found.Scope),
		Targets:         found.Targets,
		Patterns:        patternStrings(found.Patterns),
		ExcludePatterns: patternStrings(found.ExcludePatterns),
		TruePositives:   found.Examples.TruePositive,
		FalsePositives:  found.Examples.FalsePositive,
	}, nil
}

// ListNamespaces returns the registry entries sorted by name.
func ListNamespaces(opts ...Option) ([]NamespaceInfo, error) {
	reg, err := loadRegistry(applyOpts(opts))
	if err != nil {
		return nil, err
	}
	var out []NamespaceInfo
	for _, ns := range reg.Namespaces() {
		info := NamespaceInfo{
			Name:        ns.Name,
			Risk:        string(ns.Risk),
			Description: ns.Description,
			Deprecated:  ns.Deprecated,
			ReplacedBy:  ns.ReplacedBy,
		}
		if ns.Dangerous() {
			info.Severity = ns.Level().String()
		}
		for _, c := range ns.Capabilities {
			info.Capabilities = append(info.Capabilities, string(c))
		}
		out = append(out, info)
	}
	return out, nil
}

// ContractExports returns the exports every plugin must declare.
func ContractExports(opts ...Option) ([]ContractExport, error) {
	reg, err := loadRegistry(applyOpts(opts))
	if err != nil {
		return nil, err
	}
	var out []ContractExport
	for _, c := range reg.ContractExports() {
		out = append(out, ContractExport(c))
	}
	return out, nil
}

// --- internal helpers ---

func applyOpts(opts []Option) *scanConfig {
	cfg := &scanConfig{scan: types.DefaultScanOptions()}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func patternStrings(ps []rules.CompiledPattern) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

// warnings go to the configured logger, or charm's default stderr logger.
func (c *scanConfig) warnLogger() *log.Logger {
	if c.logger != nil {
		return c.logger
	}
	return log.Default()
}

func loadRegistry(cfg *scanConfig) (*registry.Registry, error) {
	if cfg.registryFile != "" {
		reg, err := registry.LoadFile(cfg.registryFile)
		if err != nil {
			return nil, fmt.Errorf("loading namespace registry: %w", err)
		}
		return reg, nil
	}
	return registry.Default()
}

// loadAndCompile loads built-in (and optionally custom) rules, compiles them,
// and applies overrides/filters. Used by all public functions.
func loadAndCompile(cfg *scanConfig) ([]*rules.CompiledRule, error) {
	rawRules, err := rules.LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("loading built-in rules: %w", err)
	}

	if cfg.customRulesDir != "" {
		custom, err := rules.LoadDir(cfg.customRulesDir)
		if err != nil {
			return nil, fmt.Errorf("loading custom rules from %s: %w", cfg.customRulesDir, err)
		}
		rawRules = append(rawRules, custom...)
	}

	logger := cfg.warnLogger()
	compiled, compileErrs := rules.CompileAll(rawRules)
	for _, e := range compileErrs {
		logger.Warn("skipping rule", "err", e)
	}

	overrides := make(map[string]rules.RuleOverride, len(cfg.ruleOverrides))
	for id, ovr := range cfg.ruleOverrides {
		overrides[id] = rules.RuleOverride{Severity: ovr.Severity, Disabled: ovr.Disabled}
	}
	compiled, policyErrs := rules.Apply(compiled, overrides, cfg.disabledRules)
	for _, e := range policyErrs {
		logger.Warn("ignoring rule override", "err", e)
	}
	return compiled, nil
}

// buildScanner creates a fully wired engine with all standard checks.
func buildScanner(cfg *scanConfig) (*scanner.Scanner, []*rules.CompiledRule, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := loadAndCompile(cfg)
	if err != nil {
		return nil, nil, err
	}

	s := scanner.New(cfg.workers)
	if cfg.logger != nil {
		s.SetLogger(cfg.logger)
	}
	s.SetMetrics(cfg.metrics)

	for _, c := range []scanner.Check{
		imports.New(reg),
		exports.New(reg),
		toxicflow.New(reg),
		members.New(),
		pattern.NewMatcher(compiled),
	} {
		if err := s.Register(c); err != nil {
			return nil, nil, err
		}
	}

	for _, name := range cfg.disabledChecks {
		name = strings.ToLower(strings.TrimSpace(name))
		if !s.Registered(name) {
			cfg.warnLogger().Warn("unknown check", "check", name)
			continue
		}
		s.Disable(name)
	}

	return s, compiled, nil
}
