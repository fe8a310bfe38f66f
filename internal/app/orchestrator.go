package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anventec/dlpal/internal/domain"
	"github.com/anventec/dlpal/internal/infrastructure"
	"go.uber.org/zap"
)

// Orchestrator coordinates one download session at a time: it resolves
// metadata, runs the stream fetches, the optional merge, and the final move
// into the destination directory, and reports progress on the bus. It is
// the sole owner of the active DownloadSession and of every temp file the
// session creates.
type Orchestrator struct {
	resolver domain.Resolver
	fetcher  domain.StreamFetcher
	merger   domain.Merger
	repo     domain.HistoryRepository
	notifier *infrastructure.NotificationService
	bus      *ProgressBus
	config   *domain.DownloadConfig
	logger   *zap.Logger

	mu       sync.Mutex
	active   *domain.DownloadSession
	workerWg sync.WaitGroup

	// progressMu serializes session progress writes and bus publishes; the
	// two fetch goroutines report concurrently.
	progressMu sync.Mutex
}

// SessionSnapshot is a read-only view of the active session.
type SessionSnapshot struct {
	ID        string       `json:"id"`
	VideoID   string       `json:"video_id"`
	Title     string       `json:"title"`
	Phase     domain.Phase `json:"phase"`
	Percent   float64      `json:"percent"`
	StartedAt time.Time    `json:"started_at"`
}

// NewOrchestrator creates an orchestrator wired to its collaborators.
func NewOrchestrator(
	resolver domain.Resolver,
	fetcher domain.StreamFetcher,
	merger domain.Merger,
	repo domain.HistoryRepository,
	notifier *infrastructure.NotificationService,
	bus *ProgressBus,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		fetcher:  fetcher,
		merger:   merger,
		repo:     repo,
		notifier: notifier,
		bus:      bus,
		config:   config,
		logger:   logger,
	}
}

// FetchMetadata resolves a URL into video metadata. It is independent of
// the session lifecycle; errors come back classified from the resolver.
func (o *Orchestrator) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	return o.resolver.Resolve(ctx, url)
}

// Begin accepts a download request and schedules the session in the
// background. It fails fast, before any I/O: a *domain.ValidationError for
// a bad request, a *domain.StateError while another session is active. All
// further feedback arrives on the progress bus.
func (o *Orchestrator) Begin(ctx context.Context, req domain.DownloadRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return "", &domain.StateError{Reason: "a download session is already active"}
	}
	sess := domain.NewDownloadSession(req)
	o.active = sess
	o.mu.Unlock()

	o.logger.Info("Session accepted",
		zap.String("session_id", sess.ID),
		zap.String("video_id", req.VideoID),
		zap.Bool("want_video", req.WantVideo),
		zap.Bool("want_audio", req.WantAudio),
		zap.Bool("merge", req.MergeRequired()))

	record := domain.NewHistoryRecord(sess.ID, req)
	if err := o.repo.Create(record); err != nil {
		o.logger.Error("Failed to create history record", zap.Error(err))
	}

	o.workerWg.Add(1)
	go func() {
		defer o.workerWg.Done()
		o.run(ctx, sess, record)
	}()

	return sess.ID, nil
}

// ResetSession clears cached metadata. Valid only while idle.
func (o *Orchestrator) ResetSession() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != nil {
		return &domain.StateError{Reason: "cannot reset while a session is active"}
	}
	o.resolver.Clear()
	return nil
}

// CurrentSession returns a snapshot of the active session, or nil when idle.
func (o *Orchestrator) CurrentSession() *SessionSnapshot {
	o.mu.Lock()
	sess := o.active
	o.mu.Unlock()

	if sess == nil {
		return nil
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	return &SessionSnapshot{
		ID:        sess.ID,
		VideoID:   sess.Request.VideoID,
		Title:     sess.Request.Title,
		Phase:     sess.Phase,
		Percent:   sess.OverallPercent(),
		StartedAt: sess.StartedAt,
	}
}

// Wait blocks until any in-flight session has finished.
func (o *Orchestrator) Wait() {
	o.workerWg.Wait()
}

// run drives one session from fetching to its terminal signal. Every exit
// path releases the active slot, reconciles temp files, records the
// outcome and delivers exactly one terminal signal.
func (o *Orchestrator) run(ctx context.Context, sess *domain.DownloadSession, record *domain.HistoryRecord) {
	err := o.execute(ctx, sess)

	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()

	title := sess.Request.SanitizedTitle()
	if err != nil {
		o.cleanupOnFailure(sess, err)
		record.MarkFailed(err)
		o.logger.Error("Session failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		o.bus.Publish(domain.ProgressEvent{
			Phase:   sess.Phase,
			Percent: sess.OverallPercent(),
			Label:   fmt.Sprintf("Download failed: %v", err),
			Color:   domain.ColorError,
		})
		o.notifier.NotifySessionFailed(title, err)
	} else {
		record.MarkCompleted(sess.MergedPath)
		o.logger.Info("Session completed",
			zap.String("session_id", sess.ID),
			zap.String("output", sess.MergedPath),
			zap.Duration("elapsed", time.Since(sess.StartedAt)))
		o.notifier.NotifySessionCompleted(title, sess.MergedPath)
	}

	if uerr := o.repo.Update(record); uerr != nil {
		o.logger.Error("Failed to update history record", zap.Error(uerr))
	}
	o.bus.Finish(sess.ID, err)
}

// execute runs the fetch, merge and finalize phases. On success
// sess.MergedPath holds the user-visible output file.
func (o *Orchestrator) execute(ctx context.Context, sess *domain.DownloadSession) error {
	if err := os.MkdirAll(o.config.TempDir(), 0o755); err != nil {
		return &domain.FetchError{Kind: domain.FetchDisk, Err: err}
	}

	o.emit(sess, "Downloading", domain.ColorInfo)

	if err := o.fetchStreams(ctx, sess); err != nil {
		return err
	}

	if sess.Request.MergeRequired() {
		if err := o.mergeStreams(ctx, sess); err != nil {
			return err
		}
	}

	return o.finalize(sess)
}

// fetchStreams runs the requested fetches concurrently. The first failure
// cancels the sibling transfer; the sibling is abandoned, not awaited to
// completion before the cancel is issued.
func (o *Orchestrator) fetchStreams(ctx context.Context, sess *domain.DownloadSession) error {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		errMu.Unlock()
	}

	if sess.Request.WantVideo {
		sess.TempVideoPath = o.tempPath(sess, "video.mp4")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.fetchOne(fetchCtx, sess, domain.StreamVideo, sess.Request.VideoFormatID, sess.TempVideoPath); err != nil {
				fail(err)
			}
		}()
	}
	if sess.Request.WantAudio {
		sess.TempAudioPath = o.tempPath(sess, "audio.m4a")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.fetchOne(fetchCtx, sess, domain.StreamAudio, sess.Request.AudioFormatID, sess.TempAudioPath); err != nil {
				fail(err)
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// fetchOne downloads a single stream, retrying retryable failures up to the
// configured limit. Zero retries means one attempt only.
func (o *Orchestrator) fetchOne(ctx context.Context, sess *domain.DownloadSession, stream domain.StreamKind, formatID, destPath string) error {
	var lastErr error
	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			o.logger.Info("Retrying stream fetch",
				zap.String("session_id", sess.ID),
				zap.String("stream", string(stream)),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", o.config.MaxRetries))

			select {
			case <-time.After(o.config.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := o.fetcher.Fetch(ctx, sess.Request.VideoID, formatID, destPath, func(frac float64) {
			o.onStreamProgress(sess, stream, frac)
		})
		if err == nil {
			o.progressMu.Lock()
			sess.MarkStreamComplete(stream)
			o.progressMu.Unlock()
			o.emit(sess, fetchLabel(sess), domain.ColorInfo)
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return err
		}
		var fe *domain.FetchError
		if !(errors.As(err, &fe) && fe.Retryable()) {
			return err
		}
		o.logger.Warn("Stream fetch attempt failed",
			zap.String("session_id", sess.ID),
			zap.String("stream", string(stream)),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return lastErr
}

// mergeStreams muxes the two fetched sources into one container in the
// working area.
func (o *Orchestrator) mergeStreams(ctx context.Context, sess *domain.DownloadSession) error {
	o.progressMu.Lock()
	sess.Phase = domain.PhaseMerging
	o.progressMu.Unlock()
	o.emit(sess, "Merging streams", domain.ColorWarning)

	outputPath := o.tempPath(sess, "merged.mp4")
	err := o.merger.Merge(ctx, sess.TempVideoPath, sess.TempAudioPath, outputPath, func(frac float64) {
		o.onMergeProgress(sess, frac)
	})
	if err != nil {
		os.Remove(outputPath)
		return err
	}
	sess.MergedPath = outputPath
	return nil
}

// finalize moves the session's output into the destination directory under
// the sanitized title and reconciles the working area. On return
// sess.MergedPath points at the destination file.
func (o *Orchestrator) finalize(sess *domain.DownloadSession) error {
	o.progressMu.Lock()
	sess.Phase = domain.PhaseFinalizing
	o.progressMu.Unlock()
	o.emit(sess, "Finishing up", domain.ColorSuccess)

	destDir := sess.Request.DestinationDir
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &domain.FetchError{Kind: domain.FetchDisk, Err: err}
	}
	title := sess.Request.SanitizedTitle()

	if sess.Request.MergeRequired() {
		dest := filepath.Join(destDir, title+".mp4")
		if err := moveFile(sess.MergedPath, dest); err != nil {
			return &domain.FetchError{Kind: domain.FetchDisk, Err: err}
		}
		sess.MergedPath = dest
		if !sess.Request.KeepFiles {
			os.Remove(sess.TempVideoPath)
			os.Remove(sess.TempAudioPath)
			sess.TempVideoPath = ""
			sess.TempAudioPath = ""
		}
		return nil
	}

	if sess.TempVideoPath != "" {
		dest := filepath.Join(destDir, title+".mp4")
		if err := moveFile(sess.TempVideoPath, dest); err != nil {
			return &domain.FetchError{Kind: domain.FetchDisk, Err: err}
		}
		sess.TempVideoPath = ""
		sess.MergedPath = dest
	}
	if sess.TempAudioPath != "" {
		dest := filepath.Join(destDir, title+".m4a")
		if err := moveFile(sess.TempAudioPath, dest); err != nil {
			return &domain.FetchError{Kind: domain.FetchDisk, Err: err}
		}
		sess.TempAudioPath = ""
		if sess.MergedPath == "" {
			sess.MergedPath = dest
		}
	}
	return nil
}

// cleanupOnFailure removes whatever the session left in the working area,
// except that a merge failure preserves both fetched sources so nothing
// already downloaded is lost.
func (o *Orchestrator) cleanupOnFailure(sess *domain.DownloadSession, err error) {
	var me *domain.MergeError
	if errors.As(err, &me) {
		o.logger.Info("Merge failed, fetched sources preserved",
			zap.String("session_id", sess.ID),
			zap.String("video", sess.TempVideoPath),
			zap.String("audio", sess.TempAudioPath))
		return
	}
	for _, p := range []string{sess.TempVideoPath, sess.TempAudioPath, sess.MergedPath} {
		if p != "" {
			os.Remove(p)
		}
	}
}

func (o *Orchestrator) onStreamProgress(sess *domain.DownloadSession, stream domain.StreamKind, frac float64) {
	o.progressMu.Lock()
	sess.SetStreamProgress(stream, frac)
	ev := domain.ProgressEvent{
		Phase:   sess.Phase,
		Percent: sess.OverallPercent(),
		Label:   fetchLabel(sess),
		Color:   domain.ColorInfo,
	}
	o.progressMu.Unlock()
	o.bus.Publish(ev)
}

func (o *Orchestrator) onMergeProgress(sess *domain.DownloadSession, frac float64) {
	o.progressMu.Lock()
	sess.SetMergeProgress(frac)
	ev := domain.ProgressEvent{
		Phase:   sess.Phase,
		Percent: sess.OverallPercent(),
		Label:   "Merging streams",
		Color:   domain.ColorWarning,
	}
	o.progressMu.Unlock()
	o.bus.Publish(ev)
}

// emit publishes a snapshot event for the session's current phase.
func (o *Orchestrator) emit(sess *domain.DownloadSession, label string, color domain.ColorHint) {
	o.progressMu.Lock()
	ev := domain.ProgressEvent{
		Phase:   sess.Phase,
		Percent: sess.OverallPercent(),
		Label:   label,
		Color:   color,
	}
	o.progressMu.Unlock()
	o.bus.Publish(ev)
}

func (o *Orchestrator) tempPath(sess *domain.DownloadSession, suffix string) string {
	return filepath.Join(o.config.TempDir(), fmt.Sprintf("%s-%s", sess.ID, suffix))
}

func fetchLabel(sess *domain.DownloadSession) string {
	switch {
	case sess.Request.WantVideo && sess.Request.WantAudio:
		return "Downloading video and audio"
	case sess.Request.WantVideo:
		return "Downloading video"
	default:
		return "Downloading audio"
	}
}

// moveFile renames src to dest, falling back to a copy when the rename
// crosses filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}
