package domain

import "context"

// ProgressFunc reports phase-local progress as a fraction in [0,1]. A
// negative fraction signals an indeterminate total.
type ProgressFunc func(fraction float64)

// Resolver wraps the extractor capability: it turns a URL into a
// VideoMetadata record or a classified failure. Implementations cache the
// most recent resolution so stream URLs can be looked up by format id.
type Resolver interface {
	// Resolve validates the URL locally, then asks the extractor for
	// metadata. Errors are always classified (*ValidationError or
	// *ResolutionError); nothing leaks past this boundary unclassified.
	Resolve(ctx context.Context, url string) (*VideoMetadata, error)

	// StreamURL returns the transfer URL for a format of the cached
	// resolution. Unknown ids yield a *FetchError of kind FetchFormat.
	StreamURL(videoID, formatID string) (string, error)

	// Clear drops any cached resolution.
	Clear()
}

// StreamFetcher downloads one selected format to local storage.
type StreamFetcher interface {
	// Fetch streams the format to destPath, emitting monotonic progress.
	// destPath must live under the session's working area, never the
	// user-visible destination. Errors are *FetchError.
	Fetch(ctx context.Context, videoID, formatID, destPath string, progress ProgressFunc) error
}

// Merger combines a downloaded video file and audio file into one
// container.
type Merger interface {
	// Merge writes the merged container to outputPath, emitting
	// phase-local progress. Source files are left untouched; deleting
	// them afterwards is the orchestrator's decision. Errors are
	// *MergeError.
	Merge(ctx context.Context, videoPath, audioPath, outputPath string, progress ProgressFunc) error
}
