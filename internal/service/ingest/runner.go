package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"librarian/internal/datatypes"
	models "librarian/internal/domain/models/library"
	libSvc "librarian/internal/domain/services/library"
)

// ErrRunnerStopped is returned by Dispatch once the runner shut down
var ErrRunnerStopped = errors.New("ingest runner stopped")

// Analyzer derives the datatype and peek from stored bytes
type Analyzer interface {
	Analyze(ctx context.Context, storageRef, declaredExt string, size int64) (*datatypes.Analysis, error)
}

// EventSink receives the outcome of a job
type EventSink interface {
	Advance(ctx context.Context, datasetID string, event models.Event) (*models.Dataset, error)
}

// RunnerConfig holds worker pool settings
type RunnerConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Runner is the local job backend: a fixed pool of workers pulling
// analysis jobs from a bounded queue. Every job ends in AnalysisCompleted
// or Failed, including jobs that exceed JobTimeout.
type Runner struct {
	cfg      RunnerConfig
	analyzer Analyzer
	logger   *slog.Logger

	queue chan libSvc.Job
	sink  EventSink

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a runner; call Start before dispatching
func NewRunner(cfg RunnerConfig, analyzer Analyzer, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &Runner{
		cfg:      cfg,
		analyzer: analyzer,
		logger:   logger,
		queue:    make(chan libSvc.Job, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
}

// Start launches the workers. Results are reported to sink.
func (r *Runner) Start(sink EventSink) {
	r.sink = sink
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.logger.Info("ingest runner started", "workers", r.cfg.Workers, "queue_size", r.cfg.QueueSize)
}

// Dispatch queues a job, waiting for room while ctx allows
func (r *Runner) Dispatch(ctx context.Context, job libSvc.Job) error {
	select {
	case <-r.stop:
		return ErrRunnerStopped
	default:
	}

	select {
	case r.queue <- job:
		return nil
	case <-r.stop:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops the workers after their current job. Queued jobs are dropped.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Runner) work(id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case job := <-r.queue:
			r.run(id, job)
		}
	}
}

type analysisResult struct {
	analysis *datatypes.Analysis
	err      error
}

func (r *Runner) run(worker int, job libSvc.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.JobTimeout)
	defer cancel()

	done := make(chan analysisResult, 1)
	go func() {
		a, err := r.analyzer.Analyze(ctx, job.StorageRef, job.FileExt, job.Size)
		done <- analysisResult{analysis: a, err: err}
	}()

	var event models.Event
	select {
	case res := <-done:
		switch {
		case res.err != nil && ctx.Err() != nil:
			event = models.Failed{Detail: fmt.Sprintf("analysis timed out after %s", r.cfg.JobTimeout)}
		case res.err != nil:
			event = models.Failed{Detail: fmt.Sprintf("analysis failed: %v", res.err)}
		default:
			event = models.AnalysisCompleted{
				Peek:     res.analysis.Peek,
				DataType: res.analysis.DataType,
				FileExt:  res.analysis.FileExt,
			}
		}
	case <-ctx.Done():
		event = models.Failed{Detail: fmt.Sprintf("analysis timed out after %s", r.cfg.JobTimeout)}
	}

	reportCtx, reportCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer reportCancel()
	if _, err := r.sink.Advance(reportCtx, job.DatasetID, event); err != nil {
		r.logger.Error("reporting job result", "dataset_id", job.DatasetID, "error", err)
		return
	}

	r.logger.Info("ingest job finished",
		"worker", worker,
		"dataset_id", job.DatasetID,
		"event", models.EventName(event),
		"size", humanize.Bytes(uint64(job.Size)),
		"elapsed", time.Since(start).String(),
	)
}

// StoredContentAnalyzer reads stored bytes back and runs them through the
// datatype registry.
type StoredContentAnalyzer struct {
	storage  libSvc.StorageBackend
	registry *datatypes.Registry
}

// NewStoredContentAnalyzer creates an analyzer over storage
func NewStoredContentAnalyzer(storage libSvc.StorageBackend, registry *datatypes.Registry) *StoredContentAnalyzer {
	return &StoredContentAnalyzer{storage: storage, registry: registry}
}

// Analyze implements Analyzer
func (a *StoredContentAnalyzer) Analyze(ctx context.Context, storageRef, declaredExt string, size int64) (*datatypes.Analysis, error) {
	rc, err := a.storage.Open(ctx, storageRef)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return a.registry.Analyze(rc, declaredExt, size)
}
