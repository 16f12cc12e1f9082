package fingerprint

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher submits accepted segment files to the fingerprint service with
// bounded concurrency. Each segment is an independent job: one failed
// submission is recorded and never aborts the stream.
type Dispatcher struct {
	client Client
	repo   Repository
	logger *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxConcurrent limits how many submissions run in parallel. Default: 3.
func WithMaxConcurrent(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = make(chan struct{}, n)
		}
	}
}

// NewDispatcher creates a Dispatcher backed by the given client and repository.
func NewDispatcher(client Client, repo Repository, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		client: client,
		repo:   repo,
		logger: logger,
		sem:    make(chan struct{}, 3),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues a segment file for fingerprinting and returns the tracking
// job. Submission happens asynchronously; call Wait to drain in-flight work.
func (d *Dispatcher) Dispatch(ctx context.Context, segmentIndex int, filePath string) (*Job, error) {
	job := NewJob(segmentIndex, filePath)

	d.logger.Info("queueing segment for fingerprinting",
		slog.String("job_id", job.ID),
		slog.Int("segment_index", segmentIndex),
		slog.String("file", filePath),
	)

	if err := d.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		select {
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
		case <-ctx.Done():
			d.fail(job, ctx.Err().Error())
			return
		}

		d.run(ctx, job)
	}()

	return job, nil
}

// run performs one job's submission and records the outcome.
func (d *Dispatcher) run(ctx context.Context, job *Job) {
	if err := job.Start(); err != nil {
		d.logger.Error("job start transition failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.save(ctx, job)

	remoteID, err := d.client.Submit(ctx, job.FilePath)
	if err != nil {
		d.logger.Warn("fingerprint submission failed",
			slog.String("job_id", job.ID),
			slog.Int("segment_index", job.SegmentIndex),
			slog.String("error", err.Error()),
		)
		d.fail(job, err.Error())
		return
	}

	if err := job.Complete(remoteID); err != nil {
		d.logger.Error("job complete transition failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.save(ctx, job)

	d.logger.Info("segment fingerprinted",
		slog.String("job_id", job.ID),
		slog.Int("segment_index", job.SegmentIndex),
		slog.String("remote_id", remoteID),
	)
}

func (d *Dispatcher) fail(job *Job, msg string) {
	if err := job.Fail(msg); err != nil {
		return
	}
	// Persist outcome even when the run context is gone.
	d.save(context.Background(), job)
}

func (d *Dispatcher) save(ctx context.Context, job *Job) {
	if err := d.repo.Save(ctx, job); err != nil {
		d.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Wait blocks until all dispatched jobs have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
