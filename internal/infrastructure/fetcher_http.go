package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/domain"
)

// StreamSource looks up the transfer URL for a resolved format.
type StreamSource interface {
	StreamURL(videoID, formatID string) (string, error)
}

// HTTPStreamFetcher implements domain.StreamFetcher over plain HTTP.
type HTTPStreamFetcher struct {
	source StreamSource
	client *http.Client
	logger *zap.Logger
}

// copyChunkSize is the transfer buffer size; progress is reported once per
// chunk at most.
const copyChunkSize = 128 * 1024

// NewHTTPStreamFetcher creates a new HTTP stream fetcher
func NewHTTPStreamFetcher(source StreamSource, logger *zap.Logger) *HTTPStreamFetcher {
	return &HTTPStreamFetcher{
		source: source,
		client: &http.Client{}, // no overall timeout; transfers are long-lived, ctx governs
		logger: logger,
	}
}

// Fetch streams the format to destPath. Progress is a monotonically
// non-decreasing fraction of the expected total; if the total is unknown a
// single negative report marks the transfer indeterminate.
func (f *HTTPStreamFetcher) Fetch(ctx context.Context, videoID, formatID, destPath string, progress domain.ProgressFunc) error {
	streamURL, err := f.source.StreamURL(videoID, formatID)
	if err != nil {
		return err
	}
	if progress == nil {
		progress = func(float64) {}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return &domain.FetchError{Kind: domain.FetchFormat, FormatID: formatID, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("Stream request failed",
			zap.String("format", formatID),
			zap.Bool("timeout", isTimeout(err)),
			zap.Error(err))
		return &domain.FetchError{Kind: domain.FetchNetwork, FormatID: formatID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		kind := domain.FetchNetwork
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// The upstream URL went stale; retrying will not help.
			kind = domain.FetchFormat
		}
		return &domain.FetchError{
			Kind:     kind,
			FormatID: formatID,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return &domain.FetchError{Kind: domain.FetchDisk, FormatID: formatID, Err: err}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return &domain.FetchError{Kind: domain.FetchDisk, FormatID: formatID, Err: err}
	}

	total := resp.ContentLength
	if total <= 0 {
		progress(-1)
	}

	start := time.Now()
	written, copyErr := f.copyWithProgress(ctx, out, resp.Body, total, progress)

	if closeErr := out.Close(); copyErr == nil && closeErr != nil {
		copyErr = &domain.FetchError{Kind: domain.FetchDisk, FormatID: formatID, Err: closeErr}
	}
	if copyErr != nil {
		os.Remove(destPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ferr *domain.FetchError
		if errors.As(copyErr, &ferr) {
			ferr.FormatID = formatID
			return ferr
		}
		return &domain.FetchError{Kind: domain.FetchNetwork, FormatID: formatID, Err: copyErr}
	}

	if total > 0 && written < total {
		os.Remove(destPath)
		return &domain.FetchError{
			Kind:     domain.FetchNetwork,
			FormatID: formatID,
			Err:      fmt.Errorf("transfer truncated at %d of %d bytes", written, total),
		}
	}

	progress(1)
	f.logger.Info("Stream fetched",
		zap.String("format", formatID),
		zap.String("file", destPath),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// copyWithProgress copies body to out, reporting a progress fraction after
// every chunk when the total size is known.
func (f *HTTPStreamFetcher) copyWithProgress(ctx context.Context, out *os.File, body io.Reader, total int64, progress domain.ProgressFunc) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, &domain.FetchError{Kind: domain.FetchDisk, Err: writeErr}
			}
			written += int64(n)
			if total > 0 {
				progress(float64(written) / float64(total))
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &domain.FetchError{Kind: domain.FetchNetwork, Err: readErr}
		}
	}
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
