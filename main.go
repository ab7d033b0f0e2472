// Package main provides a one-shot runner for the face-swap worker: it reads a
// single job event, runs it, and prints the result as JSON.
//
// The event has the shape {"input": {...}} where input carries the same
// fields as the POST /process body. It is read from the file named by
// -event, or from stdin when the flag is absent.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maauso/faceswap-api/internal/bootstrap"
	"github.com/maauso/faceswap-api/internal/config"
	"github.com/maauso/faceswap-api/internal/job"
	"github.com/maauso/faceswap-api/internal/server"
)

// ErrMissingInput is returned when the event has no "input" object.
var ErrMissingInput = errors.New("event has no input")

// event is the serverless-handler envelope around a job request.
type event struct {
	Input *server.ProcessRequest `json:"input"`
}

func main() {
	eventPath := flag.String("event", "", "path to a JSON job event (default: stdin)")
	flag.Parse()

	if err := run(*eventPath, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run processes one event. A failed job is not an error: its result is
// printed like any other and the process exits 0.
func run(eventPath string, stdin io.Reader, stdout io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr so stdout carries only the result.
	logger := cfg.NewLoggerTo(os.Stderr)
	slog.SetDefault(logger)

	req, err := readEvent(eventPath, stdin)
	if err != nil {
		return err
	}

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("processing job event", slog.String("job_id", req.RecordID))
	result := deps.JobService.Run(ctx, req.Input())

	return writeResult(stdout, result)
}

func readEvent(path string, stdin io.Reader) (*server.ProcessRequest, error) {
	r := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open event: %w", err)
		}
		defer f.Close()
		r = f
	}

	var ev event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Input == nil {
		return nil, ErrMissingInput
	}
	return ev.Input, nil
}

func writeResult(w io.Writer, result job.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
