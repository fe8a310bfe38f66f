package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/domain"
)

// YTDLPResolver implements domain.Resolver by shelling out to yt-dlp for
// metadata extraction. The extractor's own network protocol with the video
// host stays its business; only the shape of the returned data matters here.
type YTDLPResolver struct {
	config *domain.ExtractorConfig
	logger *zap.Logger

	mu     sync.RWMutex
	cached *resolution
}

// resolution pairs the public metadata record with the transfer URLs the
// fetcher needs. URLs never leave this package.
type resolution struct {
	meta    *domain.VideoMetadata
	sources map[string]string
}

// NewYTDLPResolver creates a new yt-dlp backed resolver
func NewYTDLPResolver(config *domain.ExtractorConfig, logger *zap.Logger) *YTDLPResolver {
	return &YTDLPResolver{
		config: config,
		logger: logger,
	}
}

// Resolve validates the URL, runs the extractor and caches the result.
func (r *YTDLPResolver) Resolve(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	if err := ValidateVideoURL(rawURL); err != nil {
		return nil, err
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	args := []string{"-J", "--no-download", rawURL}
	r.logger.Info("Resolving video metadata",
		zap.String("url", rawURL),
		zap.String("cmd", ShellEscapeCommand(r.config.Binary, args...)))

	cmd := exec.CommandContext(ctx, r.config.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		rerr := classifyExtractorError(rawURL, stderr.String(), err)
		r.logger.Warn("Extractor failed",
			zap.String("url", rawURL),
			zap.String("kind", string(rerr.Kind)),
			zap.Error(err))
		return nil, rerr
	}

	meta, sources, err := parseExtractorInfo(stdout.Bytes())
	if err != nil {
		return nil, &domain.ResolutionError{Kind: domain.ResolutionUnavailable, URL: rawURL, Err: err}
	}
	if !meta.HasFormats() {
		return nil, &domain.ResolutionError{
			Kind: domain.ResolutionUnavailable,
			URL:  rawURL,
			Err:  fmt.Errorf("no downloadable formats"),
		}
	}

	r.mu.Lock()
	r.cached = &resolution{meta: meta, sources: sources}
	r.mu.Unlock()

	r.logger.Info("Video resolved",
		zap.String("id", meta.ID),
		zap.String("title", meta.Title),
		zap.Int("video_formats", len(meta.Formats.Video)),
		zap.Int("audio_formats", len(meta.Formats.Audio)))

	return meta, nil
}

// StreamURL returns the transfer URL for a cached format.
func (r *YTDLPResolver) StreamURL(videoID, formatID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cached == nil || r.cached.meta.ID != videoID {
		return "", &domain.FetchError{
			Kind:     domain.FetchFormat,
			FormatID: formatID,
			Err:      fmt.Errorf("no resolution cached for video %s", videoID),
		}
	}
	u, ok := r.cached.sources[formatID]
	if !ok {
		return "", &domain.FetchError{
			Kind:     domain.FetchFormat,
			FormatID: formatID,
			Err:      fmt.Errorf("unknown format id"),
		}
	}
	return u, nil
}

// Clear drops the cached resolution.
func (r *YTDLPResolver) Clear() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

// videoHosts are the hosts the service accepts. Anything else is rejected
// locally, before the extractor runs.
var videoHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// ValidateVideoURL rejects empty and foreign-host URLs as a local
// validation failure.
func ValidateVideoURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &domain.ValidationError{Field: "url", Reason: "must not be empty"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return &domain.ValidationError{Field: "url", Reason: "not a valid URL"}
	}
	if !videoHosts[strings.ToLower(u.Hostname())] {
		return &domain.ValidationError{Field: "url", Reason: "only YouTube videos are supported"}
	}
	return nil
}

// classifyExtractorError maps extractor stderr onto the resolution
// taxonomy. Access-restricted content is distinguished from the generic
// unavailable fallback.
func classifyExtractorError(rawURL, stderr string, err error) *domain.ResolutionError {
	kind := domain.ResolutionUnavailable
	if strings.Contains(strings.ToLower(stderr), "private video") {
		kind = domain.ResolutionPrivate
	}
	msg := strings.TrimSpace(stderr)
	if msg != "" {
		err = fmt.Errorf("%s: %w", firstLine(msg), err)
	}
	return &domain.ResolutionError{Kind: kind, URL: rawURL, Err: err}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// extractorInfo mirrors the slice of yt-dlp's info JSON this service reads.
type extractorInfo struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Thumbnail string            `json:"thumbnail"`
	Formats   []extractorFormat `json:"formats"`
}

type extractorFormat struct {
	FormatID   string  `json:"format_id"`
	URL        string  `json:"url"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	Height     int     `json:"height"`
	ABR        float64 `json:"abr"`
	FormatNote string  `json:"format_note"`
}

func (f *extractorFormat) isVideoOnly() bool {
	return f.VCodec != "" && f.VCodec != "none" && (f.ACodec == "" || f.ACodec == "none")
}

func (f *extractorFormat) isAudioOnly() bool {
	return f.ACodec != "" && f.ACodec != "none" && (f.VCodec == "" || f.VCodec == "none")
}

func (f *extractorFormat) label() string {
	if f.isVideoOnly() {
		if f.Height > 0 {
			return fmt.Sprintf("%dp", f.Height)
		}
	} else if f.ABR > 0 {
		return fmt.Sprintf("%.0fkbps", f.ABR)
	}
	if f.FormatNote != "" {
		return f.FormatNote
	}
	return f.FormatID
}

// parseExtractorInfo splits the extractor's format table into the ordered
// video-only and audio-only catalogs. Lists are ordered best-first so the
// first entry is the default selection.
func parseExtractorInfo(data []byte) (*domain.VideoMetadata, map[string]string, error) {
	var info extractorInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, nil, fmt.Errorf("failed to parse extractor output: %w", err)
	}
	if info.ID == "" {
		return nil, nil, fmt.Errorf("extractor output missing video id")
	}

	var video, audio []extractorFormat
	sources := make(map[string]string)
	for _, f := range info.Formats {
		if f.FormatID == "" || f.URL == "" {
			continue
		}
		switch {
		case f.isVideoOnly():
			video = append(video, f)
		case f.isAudioOnly():
			audio = append(audio, f)
		default:
			continue
		}
		sources[f.FormatID] = f.URL
	}

	sort.SliceStable(video, func(i, j int) bool { return video[i].Height > video[j].Height })
	sort.SliceStable(audio, func(i, j int) bool { return audio[i].ABR > audio[j].ABR })

	meta := &domain.VideoMetadata{
		ID:           info.ID,
		Title:        info.Title,
		ThumbnailURL: info.Thumbnail,
	}
	for _, f := range video {
		meta.Formats.Video = append(meta.Formats.Video, domain.FormatOption{ID: f.FormatID, Label: f.label()})
	}
	for _, f := range audio {
		meta.Formats.Audio = append(meta.Formats.Audio, domain.FormatOption{ID: f.FormatID, Label: f.label()})
	}

	return meta, sources, nil
}
