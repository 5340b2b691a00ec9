// Package jobs runs background work (timetable exports, notification
// delivery) on an in-process worker pool with bounded retries.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job kinds handled by the API process.
const (
	KindExport       = "export"
	KindNotification = "notification"
)

const maxBackoff = time.Minute

// ErrStopped is returned by Enqueue once the queue is stopped or not started.
var ErrStopped = errors.New("queue is not running")

// Job is one unit of background work.
type Job struct {
	ID         string
	Kind       string
	Payload    json.RawMessage
	Attempt    int
	EnqueuedAt time.Time
}

// NewJob encodes payload as the job body.
func NewJob(kind, id string, payload interface{}) (Job, error) {
	job := Job{ID: id, Kind: kind}
	if payload == nil {
		return job, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s job payload: %w", kind, err)
	}
	job.Payload = raw
	return job, nil
}

// Decode unmarshals the payload into dest.
func (j Job) Decode(dest interface{}) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("%s job %s has no payload", j.Kind, j.ID)
	}
	return json.Unmarshal(j.Payload, dest)
}

// Handler processes a job.
type Handler func(ctx context.Context, job Job) error

// ExhaustedHandler is called once a job will not be retried again.
type ExhaustedHandler func(ctx context.Context, job Job, err error)

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Config tunes the worker pool.
type Config struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	// Backoff is the delay before the first retry, doubled on every further attempt.
	Backoff     time.Duration
	OnExhausted ExhaustedHandler
	Logger      *zap.Logger
}

// Queue dispatches jobs to a fixed number of goroutines.
type Queue struct {
	name    string
	handler Handler
	cfg     Config
	logger  *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds a queue. Call Start before enqueueing.
func New(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and pending retries and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.retries.Wait()
	q.logger.Info("queue stopped")
}

// Pending returns the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Enqueue buffers a job, blocking while the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	qctx := q.ctx
	started := q.started
	q.mu.Unlock()
	if !started {
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-qctx.Done():
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			job.Attempt++
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

// delay returns the wait before retrying a job that failed attempt times.
func (q *Queue) delay(attempt int) time.Duration {
	d := q.cfg.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (q *Queue) handleFailure(job Job, err error) {
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if IsPermanent(err) || job.Attempt >= q.cfg.MaxAttempts {
		q.logger.Error("job failed permanently", fields...)
		if q.cfg.OnExhausted != nil {
			q.cfg.OnExhausted(q.ctx, job, err)
		}
		return
	}
	wait := q.delay(job.Attempt)
	q.logger.Warn("job failed, retrying", append(fields, zap.Duration("retry_in", wait))...)

	q.retries.Add(1)
	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			select {
			case <-q.ctx.Done():
			case q.jobs <- j:
			}
		}
	}(job)
}
