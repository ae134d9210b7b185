package rules

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// RuleOverride changes one rule's severity or disables it.
type RuleOverride struct {
	Severity string
	Disabled bool
}

// Apply returns the rules left after disabling the given ids and applying
// the overrides. Ids are matched case-insensitively. Overridden rules are
// copies, so compiled is never modified. An override naming an unknown rule
// or an invalid severity is reported and otherwise ignored.
func Apply(compiled []*CompiledRule, overrides map[string]RuleOverride, disabled []string) ([]*CompiledRule, []error) {
	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[NormalizeID(id)] = true
	}
	ovr := make(map[string]RuleOverride, len(overrides))
	for id, o := range overrides {
		ovr[NormalizeID(id)] = o
	}

	var errs []error
	out := make([]*CompiledRule, 0, len(compiled))
	for _, r := range compiled {
		o, ok := ovr[r.ID]
		delete(ovr, r.ID)
		if off[r.ID] || (ok && o.Disabled) {
			continue
		}
		if !ok || o.Severity == "" {
			out = append(out, r)
			continue
		}
		sev, err := types.ParseSeverity(o.Severity)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s override: %w", r.ID, err))
			out = append(out, r)
			continue
		}
		cp := *r
		cp.Severity = sev
		out = append(out, &cp)
	}

	for _, id := range slices.Sorted(maps.Keys(ovr)) {
		errs = append(errs, fmt.Errorf("override for unknown rule %s", id))
	}
	return out, errs
}
