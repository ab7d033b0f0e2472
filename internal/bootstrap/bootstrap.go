// Package bootstrap provides dependency initialization for the face-swap worker.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/faceswap-api/internal/config"
	"github.com/maauso/faceswap-api/internal/faceswap"
	"github.com/maauso/faceswap-api/internal/job"
	"github.com/maauso/faceswap-api/internal/media"
	"github.com/maauso/faceswap-api/internal/notify"
	"github.com/maauso/faceswap-api/internal/storage"
	"github.com/maauso/faceswap-api/internal/transfer"
)

// Dependencies holds all initialized dependencies for the entrypoints.
type Dependencies struct {
	JobService *job.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// One ffmpeg processor serves as segmenter, stitcher and prober.
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)

	runner := faceswap.NewExecRunner(cfg.PreprocessScript, cfg.GenerateScript,
		faceswap.WithPythonBin(cfg.PythonBin),
		faceswap.WithTimeouts(cfg.PreprocessTimeout, cfg.GenerateTimeout),
	)
	replacer := faceswap.NewReplacer(runner, cfg.ModelPath, logger)

	fetcher := transfer.NewHTTPFetcher(transfer.WithTimeout(cfg.DownloadTimeout))
	publisher := transfer.NewPublisher(store, cfg.S3OutputPrefix)
	notifier := notify.New(logger, notify.WithTimeout(cfg.WebhookTimeout))

	svc := job.NewService(
		job.NewMemoryRepository(),
		store,
		fetcher,
		processor,
		processor,
		replacer,
		publisher,
		notifier,
		logger,
		job.WithSettings(settingsFromConfig(cfg)),
		job.WithProber(processor),
	)

	logger.Info("job service configured",
		slog.String("mode", cfg.ProcessingMode),
		slog.String("model_path", cfg.ModelPath),
		slog.Bool("swap_originals", cfg.SwapOriginals),
	)

	return &Dependencies{
		JobService: svc,
	}, nil
}

func settingsFromConfig(cfg *config.Config) job.Settings {
	return job.Settings{
		Mode:              job.Mode(cfg.ProcessingMode),
		Segments:          cfg.Segments(),
		SwapOriginals:     cfg.SwapOriginals,
		ModelPath:         cfg.ModelPath,
		DefaultWebhookURL: cfg.DefaultWebhookURL,
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Warn("S3 not configured, publishing to local disk",
		slog.String("temp_dir", localStore.BaseDir()),
	)
	return localStore, nil
}
