// Package bootstrap provides dependency initialization for commcut.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/commcut/commcut/internal/audio"
	"github.com/commcut/commcut/internal/config"
	"github.com/commcut/commcut/internal/extractor"
	"github.com/commcut/commcut/internal/fingerprint"
	"github.com/commcut/commcut/internal/segment"
	"github.com/commcut/commcut/internal/storage"
)

// Dependencies holds all initialized dependencies for an extraction run.
type Dependencies struct {
	Extractor  *extractor.Extractor
	Dispatcher *fingerprint.Dispatcher // nil when fingerprinting is disabled
	Jobs       fingerprint.Repository  // nil when fingerprinting is disabled
	Store      storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	window, err := segment.NewWindow(cfg.MinSegment(), cfg.MaxSegment())
	if err != nil {
		return nil, fmt.Errorf("build duration window: %w", err)
	}

	ffmpeg := audio.NewFFmpeg(cfg.FFmpegPath)

	deps := &Dependencies{Store: store}

	var sinks []extractor.Sink

	if cfg.FingerprintEnabled() {
		client, err := fingerprint.NewClient(cfg.FingerprintEndpoint,
			fingerprint.WithAPIKey(cfg.FingerprintAPIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("create fingerprint client: %w", err)
		}
		repo := fingerprint.NewMemoryRepository()
		dispatcher := fingerprint.NewDispatcher(client, repo, logger,
			fingerprint.WithMaxConcurrent(cfg.MaxConcurrentJobs),
		)
		deps.Dispatcher = dispatcher
		deps.Jobs = repo
		sinks = append(sinks, extractor.SinkFunc(func(ctx context.Context, seg segment.Segment, filePath string) error {
			_, err := dispatcher.Dispatch(ctx, seg.Index, filePath)
			return err
		}))
		logger.Info("fingerprint dispatch configured",
			slog.String("endpoint", cfg.FingerprintEndpoint),
			slog.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		)
	}

	if cfg.S3Enabled() {
		sinks = append(sinks, archiveSink(store, logger))
	}

	deps.Extractor = extractor.New(ffmpeg, ffmpeg, window, logger,
		extractor.WithDetectOpts(audio.DetectOpts{
			NoiseDB:       cfg.SilenceNoiseDB,
			MinSilenceSec: cfg.MinSilenceSec,
		}),
		extractor.WithSinks(sinks...),
	)

	return deps, nil
}

// archiveSink uploads each accepted segment file to the archive backend.
func archiveSink(store storage.Storage, logger *slog.Logger) extractor.Sink {
	return extractor.SinkFunc(func(ctx context.Context, seg segment.Segment, filePath string) error {
		f, err := store.LoadTemp(ctx, filePath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		url, err := store.Archive(ctx, seg.OutputName(), f)
		if err != nil {
			return err
		}
		logger.Info("segment archived",
			slog.Int("index", seg.Index),
			slog.String("url", url),
		)
		return nil
	})
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 archive configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
