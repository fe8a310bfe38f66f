package infrastructure

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationLine(t *testing.T) {
	d, ok := parseDurationLine("  Duration: 00:03:15.21, start: 0.000000, bitrate: 1205 kb/s")
	require.True(t, ok)
	assert.Equal(t, 3*time.Minute+15*time.Second+210*time.Millisecond, d)

	d, ok = parseDurationLine("  Duration: 01:00:00.00, start: 0.000000")
	require.True(t, ok)
	assert.Equal(t, time.Hour, d)

	_, ok = parseDurationLine("Input #0, mov,mp4,m4a, from 'video.mp4':")
	assert.False(t, ok)

	_, ok = parseDurationLine("  Duration: N/A, bitrate: N/A")
	assert.False(t, ok)
}

func TestParseOutTime(t *testing.T) {
	d, ok := parseOutTime("out_time_ms=97650000")
	require.True(t, ok)
	assert.Equal(t, 97650*time.Millisecond, d)

	_, ok = parseOutTime("frame=1234")
	assert.False(t, ok)

	_, ok = parseOutTime("out_time_ms=N/A")
	assert.False(t, ok)
}

func TestScanForDuration_ReportsLongestInput(t *testing.T) {
	stderr := strings.NewReader(strings.Join([]string{
		"Input #0, mov,mp4,m4a, from 'video.mp4':",
		"  Duration: 00:03:15.00, start: 0.000000, bitrate: 1205 kb/s",
		"Input #1, webm, from 'audio.webm':",
		"  Duration: 00:03:16.00, start: 0.000000, bitrate: 130 kb/s",
		"Output #0, mp4, to 'merged.mp4':",
		"frame=  100",
	}, "\n"))

	ch := make(chan time.Duration, 1)
	scanForDuration(stderr, ch)

	d, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, 3*time.Minute+16*time.Second, d)

	// Channel closes after the single report.
	_, ok = <-ch
	assert.False(t, ok)
}

func TestConsumeProgress(t *testing.T) {
	ch := make(chan time.Duration, 1)
	ch <- 100 * time.Second
	close(ch)

	stdout := strings.NewReader(strings.Join([]string{
		"frame=1",
		"out_time_ms=25000000",
		"progress=continue",
		"out_time_ms=50000000",
		"progress=continue",
		"out_time_ms=100000000",
		"progress=end",
	}, "\n"))

	var fractions []float64
	consumeProgress(stdout, ch, func(frac float64) {
		fractions = append(fractions, frac)
	})

	// Initial indeterminate marker, then determinate fractions.
	require.GreaterOrEqual(t, len(fractions), 4)
	assert.Equal(t, float64(-1), fractions[0])
	assert.InDelta(t, 0.25, fractions[1], 0.001)
	assert.InDelta(t, 0.5, fractions[2], 0.001)
	assert.InDelta(t, 1.0, fractions[3], 0.001)
}
