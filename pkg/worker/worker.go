// Package worker runs queued re-ingest jobs one at a time.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wouteroostervld/atlas/pkg/ingest"
)

// Ingester starts ingest runs
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) <-chan ingest.Event
}

// Config holds worker configuration
type Config struct {
	Ingester   Ingester
	MaxRetries int           // Attempts per job (default: 3)
	Backoff    time.Duration // Delay after the first failure, doubled each retry (default: 2s)
	QueueSize  int           // Pending job capacity (default: 16)
	OnResult   func(Job, *ingest.Result, error)
}

// Job is one queued re-ingest
type Job struct {
	ID     string
	Source string
}

// IngestWorker processes re-ingest jobs sequentially. A source already
// waiting in the queue is not queued twice.
type IngestWorker struct {
	ingester   Ingester
	maxRetries int
	backoff    time.Duration
	onResult   func(Job, *ingest.Result, error)

	queue   chan Job
	mu      sync.Mutex
	pending map[string]bool
}

// New creates an ingest worker
func New(cfg *Config) *IngestWorker {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}

	return &IngestWorker{
		ingester:   cfg.Ingester,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		onResult:   cfg.OnResult,
		queue:      make(chan Job, cfg.QueueSize),
		pending:    make(map[string]bool),
	}
}

// Enqueue schedules a forced re-ingest of source. It returns false when the
// source is already queued or the queue is full.
func (w *IngestWorker) Enqueue(source string) (Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending[source] {
		slog.Debug("Ingest already queued", "source", source)
		return Job{}, false
	}

	job := Job{ID: uuid.New().String(), Source: source}
	select {
	case w.queue <- job:
		w.pending[source] = true
		slog.Debug("Queued ingest", "job", job.ID, "source", source)
		return job, true
	default:
		slog.Warn("Ingest queue full, dropping job", "source", source)
		return Job{}, false
	}
}

// Start processes jobs until ctx is done
func (w *IngestWorker) Start(ctx context.Context) error {
	slog.Info("Ingest worker started", "max_retries", w.maxRetries)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Ingest worker stopped")
			return ctx.Err()
		case job := <-w.queue:
			w.mu.Lock()
			delete(w.pending, job.Source)
			w.mu.Unlock()

			res, err := w.process(ctx, job)
			if w.onResult != nil {
				w.onResult(job, res, err)
			}
		}
	}
}

// process runs one job, retrying failures with exponential backoff
func (w *IngestWorker) process(ctx context.Context, job Job) (*ingest.Result, error) {
	delay := w.backoff
	var lastErr error

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		slog.Debug("Processing ingest job", "job", job.ID, "source", job.Source, "attempt", attempt)

		res, err := ingest.Wait(w.ingester.Run(ctx, ingest.Request{Source: job.Source, Force: true}), func(ev ingest.Event) {
			slog.Debug("Ingest progress", "job", job.ID, "step", ev.Step, "message", ev.Message)
		})
		if err == nil {
			slog.Info("Re-ingested repository", "job", job.ID, "repo_id", res.RepoID, "files", res.Files, "chunks", res.Chunks)
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, errors.Join(err, ctx.Err())
		}
		if attempt == w.maxRetries {
			break
		}

		slog.Warn("Ingest failed, will retry", "job", job.ID, "retry", attempt, "max_retries", w.maxRetries, "error", err)
		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	slog.Error("Ingest failed permanently", "job", job.ID, "source", job.Source, "retries", w.maxRetries, "error", lastErr)
	return nil, lastErr
}
