package domain

import "fmt"

// ValidationError rejects a malformed URL or request shape before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StateError rejects an operation that is not valid in the current session
// state, such as beginning a download while one is already active. It is
// always raised synchronously at the call boundary.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

// ResolutionKind classifies extractor failures.
type ResolutionKind string

const (
	// ResolutionPrivate marks access-restricted content.
	ResolutionPrivate ResolutionKind = "private"
	// ResolutionUnavailable is the fallback for every other extractor error.
	ResolutionUnavailable ResolutionKind = "unavailable"
)

// ResolutionError is a classified extractor failure. No session exists when
// it is raised; it terminates the metadata fetch only.
type ResolutionError struct {
	Kind ResolutionKind
	URL  string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolution failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("resolution failed (%s)", e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchKind classifies stream fetch failures.
type FetchKind string

const (
	// FetchNetwork is a transfer interruption; the only retryable kind.
	FetchNetwork FetchKind = "network"
	// FetchDisk is a local write failure. Fatal.
	FetchDisk FetchKind = "disk"
	// FetchFormat is a stale or unknown format id, surfaced before any
	// transfer starts. Fatal.
	FetchFormat FetchKind = "format"
)

// FetchError is a classified stream fetch failure.
type FetchError struct {
	Kind     FetchKind
	FormatID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s, format %s): %v", e.Kind, e.FormatID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the fetch. Retrying is a
// policy decision above the core; classification alone is mandatory.
func (e *FetchError) Retryable() bool { return e.Kind == FetchNetwork }

// MergeError is a muxing failure. Fatal; both source files are preserved.
type MergeError struct {
	Err error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
