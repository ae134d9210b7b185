package types

// Limits bound the resources the loader is willing to spend on one archive.
type Limits struct {
	MaxArchiveSize      int64   `json:"max_archive_size" yaml:"max_archive_size,omitempty"`
	MaxMembers          int     `json:"max_members" yaml:"max_members,omitempty"`
	MaxMemberSize       int64   `json:"max_member_size" yaml:"max_member_size,omitempty"`
	MaxTotalSize        int64   `json:"max_total_size" yaml:"max_total_size,omitempty"`
	MaxCompressionRatio float64 `json:"max_compression_ratio" yaml:"max_compression_ratio,omitempty"`
	MaxManifestSize     int64   `json:"max_manifest_size" yaml:"max_manifest_size,omitempty"`
	MaxTextMemberSize   int64   `json:"max_text_member_size" yaml:"max_text_member_size,omitempty"`
}

// DefaultLimits returns the loader safeguards used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveSize:      64 << 20,
		MaxMembers:          4096,
		MaxMemberSize:       32 << 20,
		MaxTotalSize:        256 << 20,
		MaxCompressionRatio: 200,
		MaxManifestSize:     1 << 20,
		MaxTextMemberSize:   1 << 20,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxArchiveSize <= 0 {
		l.MaxArchiveSize = d.MaxArchiveSize
	}
	if l.MaxMembers <= 0 {
		l.MaxMembers = d.MaxMembers
	}
	if l.MaxMemberSize <= 0 {
		l.MaxMemberSize = d.MaxMemberSize
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = d.MaxTotalSize
	}
	if l.MaxCompressionRatio <= 0 {
		l.MaxCompressionRatio = d.MaxCompressionRatio
	}
	if l.MaxManifestSize <= 0 {
		l.MaxManifestSize = d.MaxManifestSize
	}
	if l.MaxTextMemberSize <= 0 {
		l.MaxTextMemberSize = d.MaxTextMemberSize
	}
	return l
}

// ScanOptions is the policy snapshot for one scan. It is passed by value and
// never modified once a scan starts.
type ScanOptions struct {
	RequireContractExports bool
	AllowUnknownImports    bool
	Limits                 Limits
}

// DefaultScanOptions requires contract exports and reports unknown imports
// as warnings.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		RequireContractExports: true,
		AllowUnknownImports:    true,
		Limits:                 DefaultLimits(),
	}
}

// UnknownImportSeverity is the severity of an unknown-import finding under
// this policy.
func (o ScanOptions) UnknownImportSeverity() Severity {
	if o.AllowUnknownImports {
		return SeverityMedium
	}
	return SeverityHigh
}

// MissingExportSeverity is the severity of a missing-contract-export finding
// under this policy.
func (o ScanOptions) MissingExportSeverity() Severity {
	if o.RequireContractExports {
		return SeverityCritical
	}
	return SeverityInfo
}
