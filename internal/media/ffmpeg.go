package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoVideoPaths is returned when no video paths are provided for joining.
	ErrNoVideoPaths = errors.New("media: no video paths provided")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// Compile-time checks that FFmpegProcessor implements the media ports.
var (
	_ Segmenter = (*FFmpegProcessor)(nil)
	_ Stitcher  = (*FFmpegProcessor)(nil)
)

// FFmpegProcessor implements Segmenter and Stitcher using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH). ffprobe is
// looked up next to ffmpeg when an explicit path is given.
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	ffprobePath := "ffprobe"
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	} else if dir := filepath.Dir(ffmpegPath); dir != "." {
		ffprobePath = filepath.Join(dir, "ffprobe")
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// SegmentationError reports a failed or rejected segment extraction.
type SegmentationError struct {
	Segment string
	Err     error
}

func (e *SegmentationError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("segmentation failed: %v", e.Err)
	}
	return fmt.Sprintf("segmentation failed on %s: %v", e.Segment, e.Err)
}

func (e *SegmentationError) Unwrap() error {
	return e.Err
}

// StitchError reports a failed concatenation.
type StitchError struct {
	Err error
}

func (e *StitchError) Error() string {
	return fmt.Sprintf("stitching failed: %v", e.Err)
}

func (e *StitchError) Unwrap() error {
	return e.Err
}

// Split extracts the four ranges of spec from videoPath with stream copy.
// The spec is validated before ffmpeg is invoked. On any failure the segments
// written so far are removed.
func (p *FFmpegProcessor) Split(ctx context.Context, videoPath string, spec SegmentSpec) ([]Segment, error) {
	if err := spec.Validate(); err != nil {
		return nil, &SegmentationError{Err: err}
	}

	dir := filepath.Dir(videoPath)
	segments := make([]Segment, 0, 4)
	for _, nr := range spec.Ranges() {
		out := filepath.Join(dir, "segment_"+nr.Name+".mp4")
		args := []string{
			"-y",            // Overwrite output file
			"-i", videoPath, // Input file
			"-ss", formatSeconds(nr.Range.Start), // Exact start, after -i for accurate seek
			"-t", formatSeconds(nr.Range.Duration()),
			"-c", "copy", // Copy streams without re-encoding
			out,
		}
		if err := p.runFFmpeg(ctx, args); err != nil {
			removeSegments(segments)
			_ = os.Remove(out)
			return nil, &SegmentationError{Segment: nr.Name, Err: err}
		}
		segments = append(segments, Segment{Name: nr.Name, Path: out, Swap: nr.Swap})
	}

	return segments, nil
}

// Concat concatenates videoPaths in order into output using the concat
// demuxer with stream copy. The manifest is written next to output and
// removed afterwards.
func (p *FFmpegProcessor) Concat(ctx context.Context, videoPaths []string, output string) error {
	if len(videoPaths) == 0 {
		return &StitchError{Err: ErrNoVideoPaths}
	}

	manifest := strings.TrimSuffix(output, filepath.Ext(output)) + "_concat.txt"
	if err := writeConcatList(manifest, videoPaths); err != nil {
		return &StitchError{Err: fmt.Errorf("create concat list: %w", err)}
	}
	defer func() { _ = os.Remove(manifest) }()

	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", manifest, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		output,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return &StitchError{Err: err}
	}
	return nil
}

// writeConcatList writes the file list in the format required by ffmpeg's
// concat demuxer.
func writeConcatList(path string, videoPaths []string) error {
	f, err := os.Create(path) // #nosec G304 - path is derived from the job workspace
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, vp := range videoPaths {
		absPath, err := filepath.Abs(vp)
		if err != nil {
			return fmt.Errorf("get absolute path for %s: %w", vp, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return fmt.Errorf("write to concat list: %w", err)
		}
	}
	return f.Close()
}

func removeSegments(segments []Segment) {
	for _, s := range segments {
		_ = os.Remove(s.Path)
	}
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// ProbeDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}
