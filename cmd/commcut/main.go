// Package main provides the commcut command-line entry point.
//
// Usage:
//
//	commcut <input-recording> <output-directory>
//
// Detection thresholds and the segment duration window come from the
// environment (see internal/config); the command line carries only the two
// positional paths.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/commcut/commcut/internal/bootstrap"
	"github.com/commcut/commcut/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) != 3 {
		return fmt.Errorf("usage: %s <input-recording> <output-directory>", os.Args[0])
	}
	input, outputDir := os.Args[1], os.Args[2]

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting commcut",
		slog.String("input", input),
		slog.String("output_dir", outputDir),
		slog.Float64("min_segment_sec", cfg.MinSegmentSec),
		slog.Float64("max_segment_sec", cfg.MaxSegmentSec),
		slog.Int("silence_noise_db", cfg.SilenceNoiseDB),
		slog.Float64("min_silence_sec", cfg.MinSilenceSec),
		slog.Bool("fingerprint_enabled", cfg.FingerprintEnabled()),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Cancel the run on SIGINT/SIGTERM; the in-flight extraction's partial
	// output is removed by the extractor.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := deps.Extractor.Run(ctx, input, outputDir)

	// Drain in-flight fingerprint jobs before reporting.
	if deps.Dispatcher != nil {
		logger.Info("waiting for fingerprint jobs to drain")
		deps.Dispatcher.Wait()
	}

	if err != nil {
		return err
	}

	logger.Info("done",
		slog.Int("segments", sum.Total),
		slog.Int("accepted", sum.Accepted),
		slog.Int("rejected", sum.Rejected),
		slog.Int("failed", sum.Failed),
	)
	return nil
}
