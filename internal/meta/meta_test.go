package meta_test

import (
	"testing"

	"github.com/Vtxdeo/vtx-security-cli/internal/meta"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/stretchr/testify/require"
)

func TestDeduplicate(t *testing.T) {
	findings := []types.Finding{
		{Category: "unknown-import", Message: "a", Location: types.At("manifest.json", 3), Severity: types.SeverityMedium, Check: "imports"},
		{Category: "duplicate-import", Message: "b", Location: types.At("manifest.json", 4), Severity: types.SeverityInfo, Check: "imports"},
		{Category: "unknown-import", Message: "a", Location: types.At("manifest.json", 3), Severity: types.SeverityMedium, Check: "other"}, // dup from another check
		{Category: "unknown-import", Message: "a", Location: types.At("manifest.json", 9), Severity: types.SeverityMedium, Check: "imports"},
		{Category: "unknown-import", Message: "a", Severity: types.SeverityMedium, Check: "imports"},
	}

	result := meta.Deduplicate(findings)
	require.Len(t, result, 4)
	require.Equal(t, "imports", result[0].Check, "first occurrence wins")
	require.Equal(t, "duplicate-import", result[1].Category)
	require.Equal(t, 9, result[2].Location.Line)
	require.Nil(t, result[3].Location)
}

func TestDeduplicateEmpty(t *testing.T) {
	require.Empty(t, meta.Deduplicate(nil))
}

func TestMaxSeverity(t *testing.T) {
	require.Equal(t, types.SeverityInfo, meta.MaxSeverity(nil))
	require.Equal(t, types.SeverityHigh, meta.MaxSeverity([]types.Finding{
		{Severity: types.SeverityLow},
		{Severity: types.SeverityHigh},
		{Severity: types.SeverityMedium},
	}))
}

func TestSummarize(t *testing.T) {
	s := meta.Summarize([]types.Finding{
		{Severity: types.SeverityCritical},
		{Severity: types.SeverityLow},
		{Severity: types.SeverityLow},
	})
	require.Equal(t, types.Summary{Critical: 1, Low: 2}, s)
}

func TestCountByCategory(t *testing.T) {
	order, counts := meta.CountByCategory([]types.Finding{
		{Category: "b"}, {Category: "a"}, {Category: "b"},
	})
	require.Equal(t, []string{"b", "a"}, order)
	require.Equal(t, 2, counts["b"])
	require.Equal(t, 1, counts["a"])
}
