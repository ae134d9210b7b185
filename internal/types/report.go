package types

// PackageInfo identifies the scanned package.
type PackageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Digest  string `json:"digest"`
}

// Summary counts findings per severity.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Add counts one finding of the given severity.
func (s *Summary) Add(sev Severity) {
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	default:
		s.Info++
	}
}

// Count returns the number of findings recorded at sev.
func (s Summary) Count(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return s.Critical
	case SeverityHigh:
		return s.High
	case SeverityMedium:
		return s.Medium
	case SeverityLow:
		return s.Low
	default:
		return s.Info
	}
}

// Report is the outcome of one scan. MaxSeverity floors at INFO when there
// are no findings; use HasAtLeast rather than comparing MaxSeverity directly.
type Report struct {
	Package     PackageInfo `json:"package"`
	Findings    []Finding   `json:"findings"`
	MaxSeverity Severity    `json:"max_severity"`
	Summary     Summary     `json:"summary"`
}

// HasAtLeast reports whether any finding is at or above threshold.
// An empty report never meets any threshold.
func (r *Report) HasAtLeast(threshold Severity) bool {
	return len(r.Findings) > 0 && r.MaxSeverity >= threshold
}
