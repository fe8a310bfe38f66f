package infrastructure

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anventec/dlpal/internal/domain"
)

// FFmpegMerger implements domain.Merger by shelling out to ffmpeg. Streams
// are copied, not re-encoded, so a merge is mostly container I/O.
type FFmpegMerger struct {
	config  *domain.MergerConfig
	logsDir string
	logger  *zap.Logger
}

// NewFFmpegMerger creates a new ffmpeg merger
func NewFFmpegMerger(config *domain.MergerConfig, logsDir string, logger *zap.Logger) *FFmpegMerger {
	return &FFmpegMerger{
		config:  config,
		logsDir: logsDir,
		logger:  logger,
	}
}

// Merge combines videoPath and audioPath into outputPath. Source files are
// never touched. Phase-local progress comes from ffmpeg's machine-readable
// progress stream measured against the input duration; without a known
// duration the progress is indeterminate.
func (m *FFmpegMerger) Merge(ctx context.Context, videoPath, audioPath, outputPath string, progress domain.ProgressFunc) error {
	if progress == nil {
		progress = func(float64) {}
	}
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}

	mergeLog, err := m.openLogFile()
	if err != nil {
		return &domain.MergeError{Err: fmt.Errorf("failed to open merge log: %w", err)}
	}
	defer mergeLog.Close()

	cmdLine := ShellEscapeCommand(m.config.Binary, args...)
	writeLogHeader(mergeLog, filepath.Base(outputPath), cmdLine)
	m.logger.Info("Merging streams",
		zap.String("video", videoPath),
		zap.String("audio", audioPath),
		zap.String("output", outputPath))

	cmd := exec.CommandContext(ctx, m.config.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &domain.MergeError{Err: err}
	}
	// ffmpeg prints input analysis, including Duration lines, on stderr.
	stderrReader, stderrWriter := io.Pipe()
	cmd.Stderr = io.MultiWriter(mergeLog, stderrWriter)

	if err := cmd.Start(); err != nil {
		writeLogFooter(mergeLog, false, fmt.Sprintf("ffmpeg failed to start: %v", err))
		return &domain.MergeError{Err: err}
	}

	durationCh := make(chan time.Duration, 1)
	go scanForDuration(stderrReader, durationCh)
	go consumeProgress(stdout, durationCh, progress)

	err = cmd.Wait()
	stderrWriter.Close()

	if err != nil {
		writeLogFooter(mergeLog, false, fmt.Sprintf("ffmpeg failed: %v", err))
		if ctx.Err() != nil {
			return &domain.MergeError{Err: ctx.Err()}
		}
		return &domain.MergeError{Err: fmt.Errorf("ffmpeg: %w", err)}
	}

	progress(1)
	writeLogFooter(mergeLog, true, fmt.Sprintf("Merged: %s", outputPath))
	return nil
}

// openLogFile opens the merge log file for today.
func (m *FFmpegMerger) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(m.logsDir, 0755); err != nil {
		return nil, err
	}
	dateStr := time.Now().Format("20060102")
	return os.OpenFile(filepath.Join(m.logsDir, "merge-"+dateStr+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the operation start marker
func writeLogHeader(file *os.File, name, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	file.WriteString(fmt.Sprintf("\n=== [%s] Merge: %s ===\n", timestamp, name))
	file.WriteString(fmt.Sprintf("$ %s\n", cmdLine))
}

// writeLogFooter writes the operation end marker
func writeLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	file.WriteString(fmt.Sprintf("[%s] %s: %s\n", timestamp, status, message))
	file.WriteString("=== END ===\n\n")
}

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)

// parseDurationLine extracts an input duration from an ffmpeg stderr line.
func parseDurationLine(line string) (time.Duration, bool) {
	match := durationPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.ParseFloat(match[3], 64)
	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return d, true
}

// scanForDuration reads ffmpeg's stderr until it sees the longest input
// duration, then reports it once. The remainder is drained so the pipe
// never blocks the process.
func scanForDuration(r io.Reader, out chan<- time.Duration) {
	scanner := bufio.NewScanner(r)
	var longest time.Duration
	reported := false
	for scanner.Scan() {
		line := scanner.Text()
		if d, ok := parseDurationLine(line); ok && d > longest {
			longest = d
		}
		// Input analysis ends when the output section starts.
		if !reported && (strings.HasPrefix(line, "Output #") || strings.Contains(line, "Press [q] to stop")) {
			if longest > 0 {
				out <- longest
			}
			reported = true
		}
	}
	if !reported && longest > 0 {
		out <- longest
	}
	close(out)
}

// parseOutTime extracts processed time from a key=value progress line.
func parseOutTime(line string) (time.Duration, bool) {
	const key = "out_time_ms="
	if !strings.HasPrefix(line, key) {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(line[len(key):]), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	// Despite the name, out_time_ms is in microseconds.
	return time.Duration(us) * time.Microsecond, true
}

// consumeProgress turns ffmpeg's -progress stream into fractions of the
// input duration. Until the duration is known the transfer reports
// indeterminate progress once.
func consumeProgress(r io.Reader, durationCh <-chan time.Duration, progress domain.ProgressFunc) {
	var total time.Duration
	progress(-1)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if total == 0 {
			select {
			case d, ok := <-durationCh:
				if ok {
					total = d
				}
			default:
			}
		}
		line := scanner.Text()
		if t, ok := parseOutTime(line); ok && total > 0 {
			progress(float64(t) / float64(total))
		}
		if line == "progress=end" && total > 0 {
			progress(1)
		}
	}
}
