// Package rules loads and compiles the YAML content rules matched against
// the text members of a VTX package.
package rules

import (
	"fmt"
	"regexp"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// MatchMode determines how multiple patterns are combined.
type MatchMode int

const (
	MatchAny MatchMode = iota // any pattern match triggers a finding
	MatchAll                  // every pattern must match somewhere in the member
)

// Scope selects which archive members a rule reads.
type Scope string

const (
	// ScopeAny is every text member, the manifest included.
	ScopeAny Scope = "any"
	// ScopeSource is every text member except the manifest. It is the
	// default when applies_to is omitted.
	ScopeSource Scope = "source"
	// ScopeManifest is manifest.json only.
	ScopeManifest Scope = "manifest"
)

// PatternType represents the type of a pattern.
type PatternType string

const (
	PatternRegex    PatternType = "regex"
	PatternContains PatternType = "contains"
)

// RawPattern is a single pattern as defined in YAML.
type RawPattern struct {
	Type  PatternType `yaml:"type"`
	Value string      `yaml:"value"`
}

// RawExamples are sample lines the rule must and must not match.
type RawExamples struct {
	TruePositive  []string `yaml:"true_positive"`
	FalsePositive []string `yaml:"false_positive"`
}

// RawRule is one YAML rule document.
type RawRule struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	Description     string       `yaml:"description"`
	Severity        string       `yaml:"severity"`
	Category        string       `yaml:"category"`
	AppliesTo       Scope        `yaml:"applies_to"`
	Targets         []string     `yaml:"targets"`
	MatchMode       string       `yaml:"match_mode"`
	Patterns        []RawPattern `yaml:"patterns"`
	ExcludePatterns []RawPattern `yaml:"exclude_patterns"`
	Examples        RawExamples  `yaml:"examples"`

	// Origin is the file and document the rule was read from.
	Origin string `yaml:"-"`
}

// CompiledPattern is a pattern ready for matching.
type CompiledPattern struct {
	Type  PatternType
	Regex *regexp.Regexp // set when Type == PatternRegex
	Value string         // set when Type == PatternContains (lowercased)
}

// CompiledRule is a validated rule ready for the content check.
type CompiledRule struct {
	ID              string
	Name            string
	Description     string
	Severity        types.Severity
	Category        string
	Scope           Scope
	Targets         []string
	MatchMode       MatchMode
	Patterns        []CompiledPattern
	ExcludePatterns []CompiledPattern
	Examples        RawExamples
	Origin          string

	targets []target
}

// String renders the pattern the way list and explain output show it.
func (p CompiledPattern) String() string {
	if p.Type == PatternRegex && p.Regex != nil {
		return "[regex] " + p.Regex.String()
	}
	return fmt.Sprintf("[%s] %s", p.Type, p.Value)
}

// MatchString reports whether the pattern occurs in s.
func (p CompiledPattern) MatchString(s string) bool {
	switch p.Type {
	case PatternRegex:
		return p.Regex != nil && p.Regex.MatchString(s)
	case PatternContains:
		return p.Value != "" && containsFold(s, p.Value)
	}
	return false
}

// containsFold looks for an already lowercased needle, folding ASCII only
// so it agrees with the content check's byte offsets.
func containsFold(s, lowerNeedle string) bool {
	n := len(lowerNeedle)
	for i := 0; i+n <= len(s); i++ {
		j := 0
		for ; j < n; j++ {
			c := s[i+j]
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != lowerNeedle[j] {
				break
			}
		}
		if j == n {
			return true
		}
	}
	return false
}

// MatchLine reports whether a single line of text triggers the rule,
// honoring the match mode and exclude patterns.
func (r *CompiledRule) MatchLine(line string) bool {
	for _, ep := range r.ExcludePatterns {
		if ep.MatchString(line) {
			return false
		}
	}
	if r.MatchMode == MatchAll {
		for _, p := range r.Patterns {
			if !p.MatchString(line) {
				return false
			}
		}
		return len(r.Patterns) > 0
	}
	for _, p := range r.Patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// AppliesTo reports whether the rule reads the archive member at name.
func (r *CompiledRule) AppliesTo(name string) bool {
	switch r.Scope {
	case ScopeManifest:
		if name != manifestName {
			return false
		}
	case ScopeSource:
		if name == manifestName {
			return false
		}
	}
	if len(r.targets) == 0 {
		return true
	}
	for _, t := range r.targets {
		if t.match(name) {
			return true
		}
	}
	return false
}
