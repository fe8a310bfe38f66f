package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() DownloadRequest {
	return DownloadRequest{
		VideoID:        "abc123",
		Title:          "Some Video",
		DestinationDir: "/tmp/out",
		WantVideo:      true,
		WantAudio:      true,
		VideoFormatID:  "v1",
		AudioFormatID:  "a1",
		Merge:          true,
	}
}

func TestDownloadRequest_Validate(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Validate())
}

func TestDownloadRequest_Validate_NoStreams(t *testing.T) {
	req := validRequest()
	req.WantVideo = false
	req.WantAudio = false

	err := req.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "at least one")
}

func TestDownloadRequest_Validate_MissingFormatIDs(t *testing.T) {
	req := validRequest()
	req.VideoFormatID = ""
	require.Error(t, req.Validate())

	req = validRequest()
	req.WantVideo = false
	req.VideoFormatID = ""
	require.NoError(t, req.Validate())

	req = validRequest()
	req.AudioFormatID = ""
	require.Error(t, req.Validate())
}

func TestDownloadRequest_Validate_MissingDestination(t *testing.T) {
	req := validRequest()
	req.DestinationDir = ""
	require.Error(t, req.Validate())

	req = validRequest()
	req.VideoID = ""
	require.Error(t, req.Validate())
}

func TestDownloadRequest_MergeRequired(t *testing.T) {
	tests := []struct {
		name      string
		wantVideo bool
		wantAudio bool
		merge     bool
		expected  bool
	}{
		{"both streams with merge", true, true, true, true},
		{"both streams without merge", true, true, false, false},
		{"video only ignores merge", true, false, true, false},
		{"audio only ignores merge", false, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			req.WantVideo = tt.wantVideo
			req.WantAudio = tt.wantAudio
			req.Merge = tt.merge
			assert.Equal(t, tt.expected, req.MergeRequired())
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Plain Title", "Plain Title"},
		{"What? A/B #1: the *best* (so far)", "What AB 1 the best so far"},
		{`path\to"nowhere"`, "pathtonowhere"},
		{"dots.and.commas,everywhere", "dotsandcommaseverywhere"},
		{"  padded  ", "padded"},
		{"?*<>|", "video"},
		{"", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeTitle(tt.input))
		})
	}
}
