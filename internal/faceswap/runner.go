// Package faceswap drives the external face-generation model: a preprocess
// entry point followed by a generate entry point, both run as subprocesses,
// and the discovery of the video the model leaves behind.
package faceswap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// ErrTimeout is returned when a model stage exceeds its wall-clock limit.
var ErrTimeout = errors.New("faceswap: stage timed out")

// Default stage limits.
const (
	DefaultPreprocessTimeout = 5 * time.Minute
	DefaultGenerateTimeout   = 10 * time.Minute
)

// waitDelay bounds how long output pipes are drained after a kill.
const waitDelay = 5 * time.Second

// RunResult is what a model stage reports back.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// PreprocessArgs is the argument bundle of the preprocessing entry point.
type PreprocessArgs struct {
	CheckpointPath string
	VideoPath      string
	ReferencePath  string
	SavePath       string
	ResolutionW    int
	ResolutionH    int
	Iterations     int
	K              int
	WLen           int
	HLen           int
	Replace        bool
}

// NewPreprocessArgs returns the fixed hyperparameters used for face
// replacement: 1280x720, 3 iterations, k=7, 1x1 tiling, replace mode.
func NewPreprocessArgs(checkpointPath, videoPath, referencePath, savePath string) PreprocessArgs {
	return PreprocessArgs{
		CheckpointPath: checkpointPath,
		VideoPath:      videoPath,
		ReferencePath:  referencePath,
		SavePath:       savePath,
		ResolutionW:    1280,
		ResolutionH:    720,
		Iterations:     3,
		K:              7,
		WLen:           1,
		HLen:           1,
		Replace:        true,
	}
}

// Argv renders the command-line flags, script excluded.
func (a PreprocessArgs) Argv() []string {
	argv := []string{
		"--ckpt_path", a.CheckpointPath,
		"--video_path", a.VideoPath,
		"--refer_path", a.ReferencePath,
		"--save_path", a.SavePath,
		"--resolution_area", strconv.Itoa(a.ResolutionW), strconv.Itoa(a.ResolutionH),
		"--iterations", strconv.Itoa(a.Iterations),
		"--k", strconv.Itoa(a.K),
		"--w_len", strconv.Itoa(a.WLen),
		"--h_len", strconv.Itoa(a.HLen),
	}
	if a.Replace {
		argv = append(argv, "--replace_flag")
	}
	return argv
}

// GenerateArgs is the argument bundle of the generation entry point.
type GenerateArgs struct {
	Task          string
	CheckpointDir string
	SourceRoot    string
	ReferNum      int
	Replace       bool
	Relighting    bool
}

// NewGenerateArgs returns the generation flags for replacement mode with
// relighting compensation.
func NewGenerateArgs(checkpointDir, sourceRoot string) GenerateArgs {
	return GenerateArgs{
		Task:          "animate-14B",
		CheckpointDir: checkpointDir,
		SourceRoot:    sourceRoot,
		ReferNum:      1,
		Replace:       true,
		Relighting:    true,
	}
}

// Argv renders the command-line flags, script excluded.
func (a GenerateArgs) Argv() []string {
	argv := []string{
		"--task", a.Task,
		"--ckpt_dir", a.CheckpointDir,
		"--src_root_path", a.SourceRoot,
		"--refert_num", strconv.Itoa(a.ReferNum),
	}
	if a.Replace {
		argv = append(argv, "--replace_flag")
	}
	if a.Relighting {
		argv = append(argv, "--use_relighting_lora")
	}
	return argv
}

// ModelRunner runs the two model entry points. A non-zero exit is reported
// through RunResult.ExitCode with a nil error; the error is reserved for
// launch failures and timeouts.
type ModelRunner interface {
	Preprocess(ctx context.Context, args PreprocessArgs) (RunResult, error)
	Generate(ctx context.Context, args GenerateArgs) (RunResult, error)
}

// ExecRunner runs the model entry points as local subprocesses.
type ExecRunner struct {
	pythonBin         string
	preprocessScript  string
	generateScript    string
	preprocessTimeout time.Duration
	generateTimeout   time.Duration
}

// Compile-time check that ExecRunner implements ModelRunner.
var _ ModelRunner = (*ExecRunner)(nil)

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithPythonBin sets the interpreter used to launch both scripts.
func WithPythonBin(bin string) ExecOption {
	return func(r *ExecRunner) {
		if bin != "" {
			r.pythonBin = bin
		}
	}
}

// WithTimeouts sets the per-stage wall-clock limits. Zero keeps the default.
func WithTimeouts(preprocess, generate time.Duration) ExecOption {
	return func(r *ExecRunner) {
		if preprocess > 0 {
			r.preprocessTimeout = preprocess
		}
		if generate > 0 {
			r.generateTimeout = generate
		}
	}
}

// NewExecRunner creates an ExecRunner for the given entry point scripts.
func NewExecRunner(preprocessScript, generateScript string, opts ...ExecOption) *ExecRunner {
	r := &ExecRunner{
		pythonBin:         "python3",
		preprocessScript:  preprocessScript,
		generateScript:    generateScript,
		preprocessTimeout: DefaultPreprocessTimeout,
		generateTimeout:   DefaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Preprocess runs the preprocessing entry point.
func (r *ExecRunner) Preprocess(ctx context.Context, args PreprocessArgs) (RunResult, error) {
	return r.run(ctx, r.preprocessTimeout, r.preprocessScript, args.Argv())
}

// Generate runs the generation entry point.
func (r *ExecRunner) Generate(ctx context.Context, args GenerateArgs) (RunResult, error) {
	return r.run(ctx, r.generateTimeout, r.generateScript, args.Argv())
}

// run launches script with argv. The subprocess is detached from the
// caller's cancellation: once started it ends by exiting or by timeout.
func (r *ExecRunner) run(ctx context.Context, timeout time.Duration, script string, argv []string) (RunResult, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	// #nosec G204 - interpreter and scripts come from configuration
	cmd := exec.CommandContext(runCtx, r.pythonBin, append([]string{script}, argv...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := RunResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, nil
		}
		return res, fmt.Errorf("faceswap: start %s: %w", script, err)
	}
	return res, nil
}
