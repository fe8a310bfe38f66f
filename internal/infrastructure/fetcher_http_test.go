package infrastructure

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/domain"
)

// mapSource is a fixed formatID -> URL lookup for tests.
type mapSource map[string]string

func (m mapSource) StreamURL(videoID, formatID string) (string, error) {
	if u, ok := m[formatID]; ok {
		return u, nil
	}
	return "", &domain.FetchError{Kind: domain.FetchFormat, FormatID: formatID}
}

func TestHTTPStreamFetcher_Fetch(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 64*1024) // 512 KiB, several chunks

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "stream.mp4")
	f := NewHTTPStreamFetcher(mapSource{"137": server.URL}, zap.NewNop())

	var fractions []float64
	err := f.Fetch(context.Background(), "vid", "137", dest, func(frac float64) {
		fractions = append(fractions, frac)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// Progress is monotonically non-decreasing and ends at 1.
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, float64(1), fractions[len(fractions)-1])
}

func TestHTTPStreamFetcher_UnknownLength_Indeterminate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		// Chunked response, no Content-Length.
		w.Write([]byte("some bytes"))
		flusher.Flush()
		w.Write([]byte(" and some more"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "stream.webm")
	f := NewHTTPStreamFetcher(mapSource{"251": server.URL}, zap.NewNop())

	var fractions []float64
	err := f.Fetch(context.Background(), "vid", "251", dest, func(frac float64) {
		fractions = append(fractions, frac)
	})
	require.NoError(t, err)

	// One indeterminate marker, then the terminal full report.
	require.Len(t, fractions, 2)
	assert.Equal(t, float64(-1), fractions[0])
	assert.Equal(t, float64(1), fractions[1])
}

func TestHTTPStreamFetcher_StaleURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "stream.mp4")
	f := NewHTTPStreamFetcher(mapSource{"137": server.URL}, zap.NewNop())

	err := f.Fetch(context.Background(), "vid", "137", dest, nil)
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchFormat, ferr.Kind)
	assert.False(t, ferr.Retryable())
	assert.NoFileExists(t, dest)
}

func TestHTTPStreamFetcher_TruncatedTransfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte("x"), 1000))
		// Connection closes with most of the body missing.
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "stream.mp4")
	f := NewHTTPStreamFetcher(mapSource{"137": server.URL}, zap.NewNop())

	err := f.Fetch(context.Background(), "vid", "137", dest, nil)
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchNetwork, ferr.Kind)
	assert.True(t, ferr.Retryable())

	// No partial file survives the failure.
	assert.NoFileExists(t, dest)
}

func TestHTTPStreamFetcher_UnknownFormat(t *testing.T) {
	f := NewHTTPStreamFetcher(mapSource{}, zap.NewNop())

	err := f.Fetch(context.Background(), "vid", "nope", filepath.Join(t.TempDir(), "x"), nil)
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.FetchFormat, ferr.Kind)
}

func TestHTTPStreamFetcher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTPStreamFetcher(mapSource{"137": server.URL}, zap.NewNop())
	err := f.Fetch(ctx, "vid", "137", filepath.Join(t.TempDir(), "x"), nil)
	require.ErrorIs(t, err, context.Canceled)
}
