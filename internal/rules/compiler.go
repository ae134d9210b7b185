package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// Compile validates raw and prepares it for matching. Targets must be
// usable member selectors, and the rule's own examples must agree with its
// patterns.
func Compile(raw RawRule) (*CompiledRule, error) {
	id := NormalizeID(raw.ID)
	if id == "" {
		return nil, fmt.Errorf("%s: rule missing id", originOf(raw))
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("rule %s (%s): %s", id, originOf(raw), fmt.Sprintf(format, args...))
	}

	sev, err := types.ParseSeverity(raw.Severity)
	if err != nil {
		return nil, fail("%v", err)
	}
	if raw.Category == "" {
		return nil, fail("missing category")
	}
	if len(raw.Patterns) == 0 {
		return nil, fail("no patterns")
	}

	cr := &CompiledRule{
		ID:          id,
		Name:        raw.Name,
		Description: raw.Description,
		Severity:    sev,
		Category:    raw.Category,
		Targets:     raw.Targets,
		Examples:    raw.Examples,
		Origin:      raw.Origin,
	}

	switch strings.ToLower(raw.MatchMode) {
	case "", "any":
		cr.MatchMode = MatchAny
	case "all":
		cr.MatchMode = MatchAll
	default:
		return nil, fail("unknown match_mode %q", raw.MatchMode)
	}

	switch Scope(strings.ToLower(string(raw.AppliesTo))) {
	case "", ScopeSource:
		cr.Scope = ScopeSource
	case ScopeAny:
		cr.Scope = ScopeAny
	case ScopeManifest:
		cr.Scope = ScopeManifest
	default:
		return nil, fail("unknown applies_to %q (want any, source or manifest)", raw.AppliesTo)
	}

	for _, glob := range raw.Targets {
		t, err := parseTarget(glob)
		if err != nil {
			return nil, fail("bad %v", err)
		}
		cr.targets = append(cr.targets, t)
	}
	if cr.Scope == ScopeManifest && len(cr.targets) > 0 && !cr.AppliesTo(manifestName) {
		return nil, fail("targets exclude %s but applies_to is manifest", manifestName)
	}

	if cr.Patterns, err = compilePatterns(raw.Patterns); err != nil {
		return nil, fail("pattern %v", err)
	}
	if cr.ExcludePatterns, err = compilePatterns(raw.ExcludePatterns); err != nil {
		return nil, fail("exclude_pattern %v", err)
	}

	if err := cr.verifyExamples(); err != nil {
		return nil, fail("%v", err)
	}
	return cr, nil
}

func compilePatterns(raws []RawPattern) ([]CompiledPattern, error) {
	out := make([]CompiledPattern, 0, len(raws))
	for i, p := range raws {
		cp := CompiledPattern{Type: p.Type, Value: p.Value}
		switch p.Type {
		case PatternRegex:
			re, err := regexp.Compile(p.Value)
			if err != nil {
				return nil, fmt.Errorf("%d: invalid regex: %w", i, err)
			}
			cp.Regex = re
		case PatternContains:
			if p.Value == "" {
				return nil, fmt.Errorf("%d: empty contains value", i)
			}
			cp.Value = strings.ToLower(p.Value)
		default:
			return nil, fmt.Errorf("%d: unknown type %q", i, p.Type)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (r *CompiledRule) verifyExamples() error {
	var errs []error
	for _, ex := range r.Examples.TruePositive {
		if !r.MatchLine(ex) {
			errs = append(errs, fmt.Errorf("true_positive %q does not match", ex))
		}
	}
	for _, ex := range r.Examples.FalsePositive {
		if r.MatchLine(ex) {
			errs = append(errs, fmt.Errorf("false_positive %q matches", ex))
		}
	}
	return errors.Join(errs...)
}

// CompileAll compiles raws in order. A rule whose id was already compiled
// is rejected, so custom rules cannot shadow built-ins.
func CompileAll(raws []RawRule) ([]*CompiledRule, []error) {
	var out []*CompiledRule
	var errs []error
	first := make(map[string]string, len(raws))
	for _, raw := range raws {
		cr, err := Compile(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := first[cr.ID]; dup {
			errs = append(errs, fmt.Errorf("rule %s (%s): duplicate id, first defined in %s", cr.ID, originOf(raw), prev))
			continue
		}
		first[cr.ID] = originOf(raw)
		out = append(out, cr)
	}
	return out, errs
}

// Find returns the rule with the given id, or nil.
func Find(compiled []*CompiledRule, id string) *CompiledRule {
	id = NormalizeID(id)
	for _, r := range compiled {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// NormalizeID is the canonical form of a rule id: trimmed and upper case.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func originOf(raw RawRule) string {
	if raw.Origin == "" {
		return "inline"
	}
	return raw.Origin
}
