// Package config loads .vtx-security.yml files: scan policy, output
// settings and rule overrides for the command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// FileNames are the recognized config file names, in lookup order.
var FileNames = []string{".vtx-security.yml", ".vtx-security.yaml"}

// Formats lists the accepted values of Format.
var Formats = []string{"json", "sarif", "markdown", "terminal"}

const maxConfigSize = 1 << 20

// RuleOverride allows per-rule severity or disable.
type RuleOverride struct {
	Severity string `yaml:"severity,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Config represents the .vtx-security.yml configuration file. Pointer
// fields distinguish "unset" from false.
type Config struct {
	FailOn                 string                  `yaml:"fail_on,omitempty"`
	Format                 string                  `yaml:"format,omitempty"`
	DenyUnknownImports     *bool                   `yaml:"deny_unknown_imports,omitempty"`
	RequireContractExports *bool                   `yaml:"require_contract_exports,omitempty"`
	Registry               string                  `yaml:"registry,omitempty"`
	Rules                  string                  `yaml:"rules,omitempty"`
	DisabledRules          []string                `yaml:"disabled_rules,omitempty"`
	DisabledChecks         []string                `yaml:"disabled_checks,omitempty"`
	RuleOverrides          map[string]RuleOverride `yaml:"rule_overrides,omitempty"`
	Ignore                 []string                `yaml:"ignore,omitempty"`
	Workers                int                     `yaml:"workers,omitempty"`

	// Dir is the directory the file was loaded from; relative paths in the
	// file resolve against it.
	Dir string `yaml:"-"`
}

// Load reads the config file from dir. If dir is a file, its parent
// directory is used. A missing config file yields a zero Config.
func Load(dir string) (Config, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		cfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	return Config{}, nil
}

// LoadFile reads and validates one config file.
func LoadFile(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	if c.FailOn != "" {
		if _, err := types.ParseSeverity(c.FailOn); err != nil {
			return fmt.Errorf("fail_on: %w", err)
		}
	}
	if c.Format != "" && !slices.Contains(Formats, strings.ToLower(c.Format)) {
		return fmt.Errorf("format: unknown format %q (want one of %s)", c.Format, strings.Join(Formats, ", "))
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must not be negative, got %d", c.Workers)
	}
	for id, ov := range c.RuleOverrides {
		if ov.Severity == "" {
			continue
		}
		if _, err := types.ParseSeverity(ov.Severity); err != nil {
			return fmt.Errorf("rule_overrides.%s: %w", id, err)
		}
	}
	return nil
}

// Resolve returns p relative to the config directory unless it is absolute
// or empty.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ScanOptions applies the policy toggles in c on top of base.
func (c Config) ScanOptions(base types.ScanOptions) types.ScanOptions {
	if c.DenyUnknownImports != nil {
		base.AllowUnknownImports = !*c.DenyUnknownImports
	}
	if c.RequireContractExports != nil {
		base.RequireContractExports = *c.RequireContractExports
	}
	return base
}

// Template is the file written by "vtx-security init".
const Template = `# vtx-security configuration
# https://github.com/Vtxdeo/vtx-security-cli

# Exit with code 1 when a finding at or above this severity is reported.
# One of: info, low, medium, high, critical.
fail_on: high

# Output format: json, sarif, markdown or terminal.
format: json

# Report unknown import namespaces as HIGH instead of MEDIUM.
deny_unknown_imports: false

# Missing vtx_plugin_init / vtx_plugin_info exports are CRITICAL when true
# and INFO when false.
require_contract_exports: true

# Replace the built-in namespace registry.
# registry: policy/registry.yaml

# Directory of additional content rules (*.yaml).
# rules: policy/rules/

# disabled_rules:
#   - VTX_NET_002

# disabled_checks:
#   - members

# rule_overrides:
#   VTX_EXEC_004:
#     severity: low
#   VTX_SBX_003:
#     disabled: true

# Globs of package files skipped when scanning a directory.
# ignore:
#   - "testdata/**"
`
