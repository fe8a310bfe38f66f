package domain

import "strings"

// unsafeTitleChars are stripped from titles before they are used as file
// names. Single explicit denylist, applied nowhere else.
const unsafeTitleChars = "&/\\#,+()$~%.'\":*?<>{}|"

// SanitizeTitle strips filesystem-unsafe characters from a video title and
// trims surrounding whitespace. An empty result falls back to "video".
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if !strings.ContainsRune(unsafeTitleChars, r) {
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return "video"
	}
	return s
}

// DownloadRequest is the value object a caller submits to begin a download.
// It is a snapshot of the caller's selections at submission time; live UI
// state is never threaded into the orchestrator.
type DownloadRequest struct {
	VideoID        string `json:"video_id"`
	Title          string `json:"title"`
	DestinationDir string `json:"save_path"`
	WantVideo      bool   `json:"want_video"`
	WantAudio      bool   `json:"want_audio"`
	VideoFormatID  string `json:"video_format,omitempty"`
	AudioFormatID  string `json:"audio_format,omitempty"`
	Merge          bool   `json:"merge"`
	KeepFiles      bool   `json:"keep_files"`
}

// Validate checks the request shape. It returns a *ValidationError so
// callers can reject bad requests synchronously, before any I/O.
func (r *DownloadRequest) Validate() error {
	if r.VideoID == "" {
		return &ValidationError{Field: "video_id", Reason: "must not be empty"}
	}
	if r.DestinationDir == "" {
		return &ValidationError{Field: "save_path", Reason: "must not be empty"}
	}
	if !r.WantVideo && !r.WantAudio {
		return &ValidationError{Field: "want_video", Reason: "at least one of video or audio must be selected"}
	}
	if r.WantVideo && r.VideoFormatID == "" {
		return &ValidationError{Field: "video_format", Reason: "required when video is selected"}
	}
	if r.WantAudio && r.AudioFormatID == "" {
		return &ValidationError{Field: "audio_format", Reason: "required when audio is selected"}
	}
	return nil
}

// MergeRequired reports whether the effective policy calls for the merger.
// A request with only one stream selected never merges, regardless of the
// merge flag.
func (r *DownloadRequest) MergeRequired() bool {
	return r.WantVideo && r.WantAudio && r.Merge
}

// SanitizedTitle returns the title made safe for file naming.
func (r *DownloadRequest) SanitizedTitle() string {
	return SanitizeTitle(r.Title)
}
