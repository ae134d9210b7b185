package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/Vtxdeo/vtx-security-cli/internal/meta"
	"github.com/Vtxdeo/vtx-security-cli/internal/metrics"
	"github.com/Vtxdeo/vtx-security-cli/internal/report"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// Scanner orchestrates the checks. Configure it before the first scan; a
// configured Scanner is safe for concurrent scans.
type Scanner struct {
	checks   []Check
	disabled map[string]bool
	workers  int
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// New creates a new Scanner running up to workers checks at once.
// If workers <= 0, it defaults to runtime.NumCPU().
func New(workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{
		workers:  workers,
		disabled: make(map[string]bool),
		logger:   log.New(io.Discard),
	}
}

// Register appends a check. Registration order is report order.
func (s *Scanner) Register(c Check) error {
	for _, existing := range s.checks {
		if existing.Name() == c.Name() {
			return fmt.Errorf("check %q already registered", c.Name())
		}
	}
	s.checks = append(s.checks, c)
	return nil
}

// Disable skips the named checks.
func (s *Scanner) Disable(names ...string) {
	for _, n := range names {
		s.disabled[n] = true
	}
}

// SetLogger routes engine diagnostics to l.
func (s *Scanner) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetMetrics records scan metrics on m.
func (s *Scanner) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Checks returns the names of the enabled checks in run order.
func (s *Scanner) Checks() []string {
	var names []string
	for _, c := range s.active() {
		names = append(names, c.Name())
	}
	return names
}

// Registered reports whether a check called name is registered, enabled or not.
func (s *Scanner) Registered(name string) bool {
	return slices.ContainsFunc(s.checks, func(c Check) bool { return c.Name() == name })
}

func (s *Scanner) active() []Check {
	var out []Check
	for _, c := range s.checks {
		if !s.disabled[c.Name()] {
			out = append(out, c)
		}
	}
	return out
}

// Scan loads the archive at path and runs every enabled check on it.
// Errors are *types.ScanError.
func (s *Scanner) Scan(ctx context.Context, path string, opts types.ScanOptions) (*types.Report, error) {
	start := time.Now()
	pkg, err := vtx.Load(path, opts.Limits)
	if err != nil {
		return nil, s.fail(path, err, start)
	}
	return s.scanPackage(ctx, pkg, opts, start)
}

// ScanBytes is Scan for an archive already in memory; name labels the
// package in errors.
func (s *Scanner) ScanBytes(ctx context.Context, name string, data []byte, opts types.ScanOptions) (*types.Report, error) {
	start := time.Now()
	pkg, err := vtx.LoadBytes(name, data, opts.Limits)
	if err != nil {
		return nil, s.fail(name, err, start)
	}
	return s.scanPackage(ctx, pkg, opts, start)
}

func (s *Scanner) scanPackage(ctx context.Context, pkg *vtx.Package, opts types.ScanOptions, start time.Time) (*types.Report, error) {
	s.logger.Debug("package loaded", "path", pkg.Path, "name", pkg.Manifest.Name, "version", pkg.Manifest.Version, "members", len(pkg.Members))

	findings, err := s.Run(ctx, pkg, opts)
	if err != nil {
		return nil, s.fail(pkg.Path, err, start)
	}

	r := report.Build(pkg.Identity(), findings)
	s.metrics.ObserveReport(r, pkg.Size, time.Since(start))
	s.logger.Debug("scan finished", "path", pkg.Path, "findings", len(r.Findings), "max_severity", r.MaxSeverity, "duration", time.Since(start))
	return r, nil
}

// Run executes the enabled checks concurrently and returns their findings
// concatenated in registration order, with exact duplicates removed.
func (s *Scanner) Run(ctx context.Context, pkg *vtx.Package, opts types.ScanOptions) ([]types.Finding, error) {
	checks := s.active()
	results := make([][]types.Finding, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range checks {
		g.Go(func() (err error) {
			name := c.Name()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("check panicked", "check", name, "panic", r, "stack", string(debug.Stack()))
					err = types.InternalError(pkg.Path, name, fmt.Errorf("panic: %v", r))
				}
			}()

			checkStart := time.Now()
			found, err := c.Analyze(gctx, pkg, opts)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return types.InternalError(pkg.Path, name, err)
			}
			for j := range found {
				if found[j].Check == "" {
					found[j].Check = name
				}
			}
			results[i] = found

			elapsed := time.Since(checkStart)
			s.metrics.ObserveCheck(name, elapsed, len(found))
			s.logger.Debug("check finished", "check", name, "findings", len(found), "duration", elapsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []types.Finding
	for _, r := range results {
		all = append(all, r...)
	}
	return meta.Deduplicate(all), nil
}

// fail normalizes err into a *types.ScanError and records it.
func (s *Scanner) fail(path string, err error, start time.Time) error {
	var se *types.ScanError
	if !errors.As(err, &se) {
		se = &types.ScanError{Path: path, Err: err}
	}
	s.metrics.ObserveError(se, time.Since(start))
	s.logger.Debug("scan failed", "path", path, "err", se)
	return se
}
