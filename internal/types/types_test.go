package types_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/stretchr/testify/require"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  types.Severity
		want string
	}{
		{types.SeverityCritical, "CRITICAL"},
		{types.SeverityHigh, "HIGH"},
		{types.SeverityMedium, "MEDIUM"},
		{types.SeverityLow, "LOW"},
		{types.SeverityInfo, "INFO"},
		{types.Severity(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.sev.String())
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  types.Severity
		err   bool
	}{
		{"CRITICAL", types.SeverityCritical, false},
		{"high", types.SeverityHigh, false},
		{"Medium", types.SeverityMedium, false},
		{"  low  ", types.SeverityLow, false},
		{"INFO", types.SeverityInfo, false},
		{"invalid", types.SeverityInfo, true},
	}
	for _, tt := range tests {
		got, err := types.ParseSeverity(tt.input)
		if tt.err {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		}
	}
}

func TestSeverityOrder(t *testing.T) {
	for i := 1; i < len(types.AllSeverities); i++ {
		require.Less(t, types.AllSeverities[i-1], types.AllSeverities[i])
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(types.SeverityHigh)
	require.NoError(t, err)
	require.Equal(t, `"HIGH"`, string(data))

	var sev types.Severity
	require.NoError(t, json.Unmarshal([]byte(`"critical"`), &sev))
	require.Equal(t, types.SeverityCritical, sev)

	require.Error(t, json.Unmarshal([]byte(`"severe"`), &sev))
	_, err = json.Marshal(types.Severity(9))
	require.Error(t, err)
}

func TestDowngradeSeverity(t *testing.T) {
	tests := []struct {
		input types.Severity
		want  types.Severity
	}{
		{types.SeverityCritical, types.SeverityHigh},
		{types.SeverityHigh, types.SeverityMedium},
		{types.SeverityMedium, types.SeverityLow},
		{types.SeverityLow, types.SeverityLow},
		{types.SeverityInfo, types.SeverityInfo},
	}
	for _, tt := range tests {
		got := types.DowngradeSeverity(tt.input)
		require.Equal(t, tt.want, got, "DowngradeSeverity(%s)", tt.input)
	}
}

func TestFindingKeyIgnoresCheck(t *testing.T) {
	a := types.Finding{Category: "c", Message: "m", Location: types.At("manifest.json", 3), Check: "imports"}
	b := a
	b.Check = "exports"
	require.Equal(t, a.Key(), b.Key())

	c := a
	c.Location = types.At("manifest.json", 4)
	require.NotEqual(t, a.Key(), c.Key())

	d := a
	d.Location = nil
	require.NotEqual(t, a.Key(), d.Key())
}

func TestReportHasAtLeast(t *testing.T) {
	empty := &types.Report{}
	for _, sev := range types.AllSeverities {
		require.False(t, empty.HasAtLeast(sev), "empty report must not meet %s", sev)
	}

	r := &types.Report{
		Findings:    []types.Finding{{Severity: types.SeverityMedium}},
		MaxSeverity: types.SeverityMedium,
	}
	require.True(t, r.HasAtLeast(types.SeverityInfo))
	require.True(t, r.HasAtLeast(types.SeverityMedium))
	require.False(t, r.HasAtLeast(types.SeverityHigh))
}

func TestSummary(t *testing.T) {
	var s types.Summary
	s.Add(types.SeverityHigh)
	s.Add(types.SeverityHigh)
	s.Add(types.SeverityInfo)
	require.Equal(t, 2, s.Count(types.SeverityHigh))
	require.Equal(t, 1, s.Count(types.SeverityInfo))
	require.Equal(t, 0, s.Count(types.SeverityCritical))
}

func TestScanOptionsPolicy(t *testing.T) {
	opts := types.DefaultScanOptions()
	require.True(t, opts.RequireContractExports)
	require.True(t, opts.AllowUnknownImports)
	require.Equal(t, types.SeverityMedium, opts.UnknownImportSeverity())
	require.Equal(t, types.SeverityCritical, opts.MissingExportSeverity())

	opts.AllowUnknownImports = false
	opts.RequireContractExports = false
	require.Equal(t, types.SeverityHigh, opts.UnknownImportSeverity())
	require.Equal(t, types.SeverityInfo, opts.MissingExportSeverity())
}

func TestLimitsWithDefaults(t *testing.T) {
	l := types.Limits{MaxMembers: 10}.WithDefaults()
	require.Equal(t, 10, l.MaxMembers)
	require.Equal(t, types.DefaultLimits().MaxArchiveSize, l.MaxArchiveSize)
}

func TestLoadErrorIs(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := types.Malformed("plugin.vtx", "reading zip directory", cause)
	require.ErrorIs(t, err, types.ErrMalformedArchive)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, types.ErrInvalidManifest)
	require.Contains(t, err.Error(), "plugin.vtx")

	scanErr := &types.ScanError{Path: "plugin.vtx", Err: err}
	require.ErrorIs(t, scanErr, types.ErrMalformedArchive)
	require.False(t, scanErr.Internal())

	var loadErr *types.LoadError
	require.ErrorAs(t, scanErr, &loadErr)
	require.Equal(t, "reading zip directory", loadErr.Reason)
}

func TestInternalError(t *testing.T) {
	err := types.InternalError("plugin.vtx", "imports", errors.New("boom"))
	require.True(t, err.Internal())
	require.ErrorIs(t, err, types.ErrInternal)
	require.Contains(t, err.Error(), "check imports")
}
