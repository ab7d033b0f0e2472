package faceswap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PreprocessError reports a failed or timed-out preprocessing stage.
type PreprocessError struct {
	Result RunResult
	Err    error
}

func (e *PreprocessError) Error() string {
	return stageMessage("preprocessing", e.Result, e.Err)
}

func (e *PreprocessError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed or timed-out generation stage.
type GenerationError struct {
	Result RunResult
	Err    error
}

func (e *GenerationError) Error() string {
	return stageMessage("generation", e.Result, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func stageMessage(stage string, res RunResult, err error) string {
	if err != nil {
		return fmt.Sprintf("%s failed: %v: %s", stage, err, res.Stderr)
	}
	return fmt.Sprintf("%s failed (exit code %d): %s", stage, res.ExitCode, res.Stderr)
}

// Replacer composites an avatar's face into videos through a ModelRunner.
type Replacer struct {
	runner    ModelRunner
	modelPath string
	logger    *slog.Logger
}

// NewReplacer creates a Replacer. modelPath is the checkpoint directory used
// by ReplaceSegment.
func NewReplacer(runner ModelRunner, modelPath string, logger *slog.Logger) *Replacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replacer{runner: runner, modelPath: modelPath, logger: logger}
}

// ReplaceSegment face-swaps a single segment using the default checkpoint.
func (r *Replacer) ReplaceSegment(ctx context.Context, segmentPath, avatarPath string) (string, error) {
	return r.replace(ctx, segmentPath, avatarPath, r.modelPath)
}

// ReplaceWholeVideo face-swaps an entire video in one pass against modelPath.
func (r *Replacer) ReplaceWholeVideo(ctx context.Context, videoPath, avatarPath, modelPath string) (string, error) {
	if modelPath == "" {
		modelPath = r.modelPath
	}
	return r.replace(ctx, videoPath, avatarPath, modelPath)
}

// replace runs preprocess then generate in a scratch directory beside the
// input, moves the discovered output to <input>_swapped.mp4 and removes the
// scratch directory on every path.
func (r *Replacer) replace(ctx context.Context, inputPath, avatarPath, modelPath string) (string, error) {
	scratch := filepath.Join(filepath.Dir(inputPath), "wan_process_"+filepath.Base(inputPath))
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_swapped.mp4"
	logger := r.logger.With(slog.String("input", inputPath), slog.String("scratch", scratch))

	if err := os.MkdirAll(scratch, 0750); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory", slog.String("error", err.Error()))
		}
	}()

	logger.Info("running preprocessing")
	pre := NewPreprocessArgs(filepath.Join(modelPath, "process_checkpoint"), inputPath, avatarPath, scratch)
	res, err := r.runner.Preprocess(ctx, pre)
	if err != nil || res.ExitCode != 0 {
		logger.Error("preprocessing failed",
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", res.Stderr),
			slog.String("stdout", res.Stdout),
		)
		return "", &PreprocessError{Result: res, Err: err}
	}

	logger.Info("running generation")
	res, err = r.runner.Generate(ctx, NewGenerateArgs(modelPath, scratch))
	if err != nil || res.ExitCode != 0 {
		logger.Error("generation failed",
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", res.Stderr),
			slog.String("stdout", res.Stdout),
		)
		return "", &GenerationError{Result: res, Err: err}
	}

	listing, err := listDir(scratch)
	if err != nil {
		logger.Error("failed to list generated output", slog.String("error", err.Error()))
		return "", &OutputNotFoundError{Dir: scratch, Err: err}
	}
	found, err := DiscoverOutput(listing, inputPath)
	if err != nil {
		var nf *OutputNotFoundError
		if errors.As(err, &nf) && nf.Dir == "" {
			nf.Dir = scratch
		}
		logger.Error("generated output not found", slog.String("error", err.Error()))
		return "", err
	}

	if err := moveFile(found.Path, outputPath); err != nil {
		return "", fmt.Errorf("move generated output: %w", err)
	}

	logger.Info("face swap complete",
		slog.String("output", outputPath),
		slog.Int64("bytes", found.Size),
	)
	return outputPath, nil
}

// moveFile renames src to dst, copying when they live on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) // #nosec G304 - src is a file inside the job scratch dir
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
