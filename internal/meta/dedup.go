package meta

import "github.com/Vtxdeo/vtx-security-cli/internal/types"

// Deduplicate removes exact duplicates (same category, message and location)
// keeping the first occurrence, so the relative order of survivors is the
// order the checks produced them in.
func Deduplicate(findings []types.Finding) []types.Finding {
	seen := make(map[string]struct{}, len(findings))
	result := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		k := f.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, f)
	}
	return result
}
