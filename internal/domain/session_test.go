package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadSession_SingleStreamProgress(t *testing.T) {
	req := validRequest()
	req.WantAudio = false
	req.AudioFormatID = ""
	req.Merge = false
	s := NewDownloadSession(req)

	assert.Equal(t, float64(0), s.OverallPercent())

	s.SetStreamProgress(StreamVideo, 0.5)
	assert.InDelta(t, 50, s.OverallPercent(), 0.001)

	s.MarkStreamComplete(StreamVideo)
	assert.InDelta(t, 100, s.OverallPercent(), 0.001)
}

func TestDownloadSession_TwoStreamsNoMerge_Averages(t *testing.T) {
	req := validRequest()
	req.Merge = false
	s := NewDownloadSession(req)

	s.SetStreamProgress(StreamVideo, 1)
	s.SetStreamProgress(StreamAudio, 0)
	assert.InDelta(t, 50, s.OverallPercent(), 0.001)

	s.SetStreamProgress(StreamAudio, 0.5)
	assert.InDelta(t, 75, s.OverallPercent(), 0.001)
}

func TestDownloadSession_MergeBands(t *testing.T) {
	s := NewDownloadSession(validRequest())

	// Fetch progress stays in the 0-80 band.
	s.SetStreamProgress(StreamVideo, 1)
	s.SetStreamProgress(StreamAudio, 1)
	assert.InDelta(t, 80, s.OverallPercent(), 0.001)

	// Merge progress fills 80-100.
	s.Phase = PhaseMerging
	s.SetMergeProgress(0.5)
	assert.InDelta(t, 90, s.OverallPercent(), 0.001)

	s.SetMergeProgress(1)
	assert.InDelta(t, 100, s.OverallPercent(), 0.001)
}

func TestDownloadSession_ProgressMonotonic(t *testing.T) {
	s := NewDownloadSession(validRequest())

	s.SetStreamProgress(StreamVideo, 0.6)
	before := s.OverallPercent()

	// Regressions and indeterminate updates hold the bar steady.
	s.SetStreamProgress(StreamVideo, 0.2)
	assert.Equal(t, before, s.OverallPercent())

	s.SetStreamProgress(StreamVideo, -1)
	assert.Equal(t, before, s.OverallPercent())

	// Values above 1 clamp rather than overflow.
	s.SetStreamProgress(StreamVideo, 1.5)
	s.SetStreamProgress(StreamAudio, 1.5)
	s.SetMergeProgress(2)
	assert.LessOrEqual(t, s.OverallPercent(), float64(100))
}

func TestDownloadSession_FinalizingPinsFull(t *testing.T) {
	s := NewDownloadSession(validRequest())
	s.SetStreamProgress(StreamVideo, 0.3)
	s.Phase = PhaseFinalizing
	assert.Equal(t, float64(100), s.OverallPercent())
}

func TestNewDownloadSession(t *testing.T) {
	req := validRequest()
	s := NewDownloadSession(req)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, PhaseFetching, s.Phase)
	assert.Equal(t, req, s.Request)
	assert.False(t, s.StartedAt.IsZero())
}
