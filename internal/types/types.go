// Package types defines shared data structures (Severity, Finding, Report,
// ScanOptions) used across the loader, scanner, engine and output packages
// to prevent import cycles.
package types

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// AllSeverities lists every severity from lowest to highest.
var AllSeverities = []Severity{
	SeverityInfo,
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	case SeverityInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a string to a Severity level.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical, nil
	case "HIGH":
		return SeverityHigh, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "LOW":
		return SeverityLow, nil
	case "INFO":
		return SeverityInfo, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity: %q", s)
	}
}

// MarshalText encodes the severity as its upper-case name.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityInfo || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity value %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts any casing of a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// DowngradeSeverity drops severity by one level, flooring at LOW.
// INFO is left unchanged (it's a different class, not part of the severity ladder).
func DowngradeSeverity(sev Severity) Severity {
	switch sev {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	case SeverityMedium:
		return SeverityLow
	default:
		return sev
	}
}

// Location points at the place a finding was detected: a member path inside
// the package and an optional 1-based line.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	}
	return l.Path
}

// Finding represents a single security finding. Findings are values; checks
// build them once and nothing downstream mutates a stored finding.
type Finding struct {
	Severity Severity  `json:"severity"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
	Check    string    `json:"check"`
}

// Key identifies a finding for exact-duplicate detection. The emitting check
// is not part of the key.
func (f Finding) Key() string {
	loc := ""
	if f.Location != nil {
		loc = f.Location.String()
	}
	return f.Category + "\x00" + f.Message + "\x00" + loc
}

// At returns a Location pointer for use in finding literals.
func At(path string, line int) *Location {
	return &Location{Path: path, Line: line}
}
