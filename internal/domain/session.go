package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase names a stage of the download session.
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhaseMerging    Phase = "merging"
	PhaseFinalizing Phase = "finalizing"
)

// StreamKind identifies one of the two fetchable streams.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
)

// FetchWeight is the share of the overall progress bar budgeted to the
// fetch phase when a merge follows; the merge phase gets the remainder.
// Merging is typically much faster than downloading. Tunable, but the
// mapping must stay monotonic.
const FetchWeight = 0.8

// DownloadSession tracks one in-flight download from request acceptance to
// terminal signal. It is owned exclusively by the orchestrator; all progress
// writes arrive through a single goroutine.
type DownloadSession struct {
	ID        string
	Request   DownloadRequest
	Phase     Phase
	StartedAt time.Time

	// Temp file paths created by this session; reconciled on every exit.
	TempVideoPath string
	TempAudioPath string
	MergedPath    string

	videoFrac float64
	audioFrac float64
	mergeFrac float64
}

// NewDownloadSession creates a session for an accepted request.
func NewDownloadSession(req DownloadRequest) *DownloadSession {
	return &DownloadSession{
		ID:        uuid.New().String(),
		Request:   req,
		Phase:     PhaseFetching,
		StartedAt: time.Now(),
	}
}

// SetStreamProgress records fetch progress for one stream as a fraction in
// [0,1]. Negative fractions mean the total size is unknown and hold the
// previous value steady rather than fabricating precision. Regressions are
// ignored so per-stream progress is monotonically non-decreasing.
func (s *DownloadSession) SetStreamProgress(stream StreamKind, frac float64) {
	if frac < 0 {
		return
	}
	if frac > 1 {
		frac = 1
	}
	switch stream {
	case StreamVideo:
		if frac > s.videoFrac {
			s.videoFrac = frac
		}
	case StreamAudio:
		if frac > s.audioFrac {
			s.audioFrac = frac
		}
	}
}

// SetMergeProgress records phase-local merge progress as a fraction in [0,1].
func (s *DownloadSession) SetMergeProgress(frac float64) {
	if frac < 0 {
		return
	}
	if frac > 1 {
		frac = 1
	}
	if frac > s.mergeFrac {
		s.mergeFrac = frac
	}
}

// MarkStreamComplete pins a stream's fraction to 1.
func (s *DownloadSession) MarkStreamComplete(stream StreamKind) {
	s.SetStreamProgress(stream, 1)
}

// fetchFrac folds the per-stream fractions into one fetch-phase fraction.
// Both streams are weighted equally; this is a simplifying policy, not a
// byte-accurate weighting.
func (s *DownloadSession) fetchFrac() float64 {
	switch {
	case s.Request.WantVideo && s.Request.WantAudio:
		return (s.videoFrac + s.audioFrac) / 2
	case s.Request.WantVideo:
		return s.videoFrac
	default:
		return s.audioFrac
	}
}

// OverallPercent maps phase-local progress into the single 0-100 bar the
// caller sees. With a merge pending, fetch progress is scaled into the
// 0-80 band and merge progress into 80-100; without one, fetch progress
// spans the whole bar. Finalizing pins 100.
func (s *DownloadSession) OverallPercent() float64 {
	if s.Phase == PhaseFinalizing {
		return 100
	}
	if s.Request.MergeRequired() {
		return (s.fetchFrac()*FetchWeight + s.mergeFrac*(1-FetchWeight)) * 100
	}
	return s.fetchFrac() * 100
}
