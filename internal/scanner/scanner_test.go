package scanner_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Vtxdeo/vtx-security-cli/internal/metrics"
	"github.com/Vtxdeo/vtx-security-cli/internal/scanner"
	"github.com/Vtxdeo/vtx-security-cli/internal/testutil/vtxtest"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// mockCheck is a configurable check for testing the orchestrator.
type mockCheck struct {
	name     string
	findings []types.Finding
	delay    time.Duration
	err      error
	panicMsg string
	calls    atomic.Int32
}

func (m *mockCheck) Name() string { return m.name }

func (m *mockCheck) Analyze(ctx context.Context, _ *vtx.Package, _ types.ScanOptions) ([]types.Finding, error) {
	m.calls.Add(1)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return append([]types.Finding(nil), m.findings...), nil
}

func finding(category, msg string, sev types.Severity) types.Finding {
	return types.Finding{Severity: sev, Category: category, Message: msg, Location: types.At("manifest.json", 1)}
}

func scanClean(t *testing.T, s *scanner.Scanner) *types.Report {
	t.Helper()
	r, err := s.ScanBytes(context.Background(), "test.vtx", vtxtest.Clean(t), types.DefaultScanOptions())
	require.NoError(t, err)
	return r
}

func TestScannerOrchestrator(t *testing.T) {
	s := scanner.New(2)
	require.NoError(t, s.Register(&mockCheck{
		name:     "one",
		findings: []types.Finding{finding("c1", "m1", types.SeverityHigh)},
	}))

	r := scanClean(t, s)
	require.Len(t, r.Findings, 1)
	require.Equal(t, "c1", r.Findings[0].Category)
	require.Equal(t, "one", r.Findings[0].Check, "check name is stamped on findings")
	require.Equal(t, types.SeverityHigh, r.MaxSeverity)
	require.Equal(t, "hello", r.Package.Name)
	require.Equal(t, "1.0.0", r.Package.Version)
	require.NotEmpty(t, r.Package.Digest)
}

func TestScannerKeepsRegistrationOrder(t *testing.T) {
	s := scanner.New(4)
	require.NoError(t, s.Register(&mockCheck{
		name:     "slow",
		delay:    50 * time.Millisecond,
		findings: []types.Finding{finding("slow", "a", types.SeverityLow), finding("slow", "b", types.SeverityLow)},
	}))
	require.NoError(t, s.Register(&mockCheck{
		name:     "fast",
		findings: []types.Finding{finding("fast", "c", types.SeverityCritical)},
	}))

	r := scanClean(t, s)
	require.Len(t, r.Findings, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{r.Findings[0].Message, r.Findings[1].Message, r.Findings[2].Message})
}

func TestScannerDeduplicatesAcrossChecks(t *testing.T) {
	dup := finding("same", "same message", types.SeverityMedium)
	s := scanner.New(2)
	require.NoError(t, s.Register(&mockCheck{name: "a", findings: []types.Finding{dup, dup}}))
	require.NoError(t, s.Register(&mockCheck{name: "b", findings: []types.Finding{dup}}))

	r := scanClean(t, s)
	require.Len(t, r.Findings, 1)
	require.Equal(t, "a", r.Findings[0].Check)
	require.Equal(t, 1, r.Summary.Medium)
}

func TestScannerRejectsDuplicateRegistration(t *testing.T) {
	s := scanner.New(1)
	require.NoError(t, s.Register(&mockCheck{name: "x"}))
	err := s.Register(&mockCheck{name: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func TestScannerDisable(t *testing.T) {
	skipped := &mockCheck{name: "skipped", findings: []types.Finding{finding("c", "m", types.SeverityHigh)}}
	s := scanner.New(1)
	require.NoError(t, s.Register(&mockCheck{name: "kept"}))
	require.NoError(t, s.Register(skipped))
	s.Disable("skipped")

	r := scanClean(t, s)
	require.Empty(t, r.Findings)
	require.Zero(t, skipped.calls.Load())
	require.Equal(t, []string{"kept"}, s.Checks())
	require.True(t, s.Registered("skipped"))
	require.False(t, s.Registered("missing"))
}

func TestScannerNoChecks(t *testing.T) {
	r := scanClean(t, scanner.New(0))
	require.NotNil(t, r.Findings)
	require.Empty(t, r.Findings)
	require.False(t, r.HasAtLeast(types.SeverityInfo))
}

func TestScannerCheckErrorIsInternal(t *testing.T) {
	s := scanner.New(2)
	require.NoError(t, s.Register(&mockCheck{name: "ok", findings: []types.Finding{finding("c", "m", types.SeverityLow)}}))
	require.NoError(t, s.Register(&mockCheck{name: "broken", err: errors.New("boom")}))

	r, err := s.ScanBytes(context.Background(), "test.vtx", vtxtest.Clean(t), types.DefaultScanOptions())
	require.Nil(t, r)
	require.ErrorIs(t, err, types.ErrInternal)

	var se *types.ScanError
	require.ErrorAs(t, err, &se)
	require.True(t, se.Internal())
	require.Equal(t, "broken", se.Check)
	require.Equal(t, "test.vtx", se.Path)
	require.Contains(t, err.Error(), "boom")
}

func TestScannerPanicIsInternal(t *testing.T) {
	s := scanner.New(2)
	require.NoError(t, s.Register(&mockCheck{name: "panicky", panicMsg: "index out of range"}))

	_, err := s.ScanBytes(context.Background(), "test.vtx", vtxtest.Clean(t), types.DefaultScanOptions())
	require.ErrorIs(t, err, types.ErrInternal)
	require.Contains(t, err.Error(), "panic: index out of range")
	require.Contains(t, err.Error(), "panicky")
}

func TestScannerContextCancelled(t *testing.T) {
	s := scanner.New(1)
	require.NoError(t, s.Register(&mockCheck{name: "slow", delay: time.Minute}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ScanBytes(ctx, "test.vtx", vtxtest.Clean(t), types.DefaultScanOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, types.ErrInternal)
}

func TestScannerLoadErrors(t *testing.T) {
	check := &mockCheck{name: "never"}
	s := scanner.New(1)
	require.NoError(t, s.Register(check))

	_, err := s.ScanBytes(context.Background(), "broken.vtx", []byte("not a zip"), types.DefaultScanOptions())
	require.ErrorIs(t, err, types.ErrMalformedArchive)
	var se *types.ScanError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "broken.vtx", se.Path)
	var le *types.LoadError
	require.ErrorAs(t, err, &le)

	data := vtxtest.Archive(t, vtxtest.Manifest(`{"name": "x"}`))
	_, err = s.ScanBytes(context.Background(), "bad.vtx", data, types.DefaultScanOptions())
	require.ErrorIs(t, err, types.ErrInvalidManifest)

	_, err = s.Scan(context.Background(), "/nonexistent/plugin.vtx", types.DefaultScanOptions())
	require.ErrorIs(t, err, types.ErrMalformedArchive)

	require.Zero(t, check.calls.Load(), "checks never run on a package that failed to load")
}

func TestScannerScanFile(t *testing.T) {
	p := vtxtest.Write(t, t.TempDir(), "hello.vtx", vtxtest.Clean(t))
	s := scanner.New(1)
	r, err := s.Scan(context.Background(), p, types.DefaultScanOptions())
	require.NoError(t, err)
	require.Equal(t, "hello", r.Package.Name)
}

func TestScannerLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	s := scanner.New(1)
	s.SetLogger(logger)
	require.NoError(t, s.Register(&mockCheck{name: "logged"}))
	scanClean(t, s)

	out := buf.String()
	require.Contains(t, out, "check finished")
	require.Contains(t, out, "logged")
	require.Contains(t, out, "scan finished")
}

func TestScannerMetrics(t *testing.T) {
	_, m := metrics.NewRegistry()
	s := scanner.New(1)
	s.SetMetrics(m)
	require.NoError(t, s.Register(&mockCheck{
		name:     "m",
		findings: []types.Finding{finding("cat", "x", types.SeverityHigh), finding("cat", "y", types.SeverityHigh)},
	}))

	scanClean(t, s)
	_, err := s.ScanBytes(context.Background(), "bad.vtx", []byte("junk"), types.DefaultScanOptions())
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Scans.WithLabelValues("findings_high")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Scans.WithLabelValues("malformed_archive")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Findings.WithLabelValues("HIGH", "cat")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CheckFindings.WithLabelValues("m")))
}
