package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedArchive marks a container that is truncated, unreadable or
	// exceeds a loader safeguard.
	ErrMalformedArchive = errors.New("malformed archive")
	// ErrInvalidManifest marks a manifest that violates the schema.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrInternal marks a scanner fault rather than a property of the package.
	ErrInternal = errors.New("internal scanner error")
)

// LoadError reports why a package could not be loaded. Kind is one of
// ErrMalformedArchive or ErrInvalidManifest.
type LoadError struct {
	Kind   error
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %v: %s", e.Path, e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Malformed builds a LoadError of kind ErrMalformedArchive.
func Malformed(path, reason string, err error) *LoadError {
	return &LoadError{Kind: ErrMalformedArchive, Path: path, Reason: reason, Err: err}
}

// InvalidManifest builds a LoadError of kind ErrInvalidManifest.
func InvalidManifest(path, reason string, err error) *LoadError {
	return &LoadError{Kind: ErrInvalidManifest, Path: path, Reason: reason, Err: err}
}

// ScanError is returned by a scan that produced no report. It wraps either a
// *LoadError or an internal fault tagged with ErrInternal.
type ScanError struct {
	Path  string
	Check string
	Err   error
}

func (e *ScanError) Error() string {
	if e.Check != "" {
		return fmt.Sprintf("scan %s: check %s: %v", e.Path, e.Check, e.Err)
	}
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Internal reports whether the scan failed because of a scanner fault.
func (e *ScanError) Internal() bool { return errors.Is(e.Err, ErrInternal) }

// InternalError tags err as a scanner fault raised by check.
func InternalError(path, check string, err error) *ScanError {
	return &ScanError{Path: path, Check: check, Err: fmt.Errorf("%w: %w", ErrInternal, err)}
}
