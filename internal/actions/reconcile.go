package actions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a pending repair for a half-applied dual write. Run retries the
// failed second step; Compensate, when set, rolls back the committed first
// step once retries are exhausted.
type Job struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Reconciler drains a bounded queue of repair jobs on a single worker so a
// failed profile write never leaves a silent inconsistency between the auth
// identity and the system_users row.
type Reconciler struct {
	jobs    chan Job
	logger  zerolog.Logger
	retries int
	backoff time.Duration

	startOnce sync.Once
	done      chan struct{}
}

func NewReconciler(logger zerolog.Logger, buffer int) *Reconciler {
	if buffer <= 0 {
		buffer = 64
	}
	return &Reconciler{
		jobs:    make(chan Job, buffer),
		logger:  logger,
		retries: 5,
		backoff: 2 * time.Second,
		done:    make(chan struct{}),
	}
}

// Start launches the worker. ctx cancellation stops it after the current job.
func (r *Reconciler) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run(ctx)
	})
}

// Enqueue hands a job to the worker. Returns false when the queue is full;
// the caller logs and the inconsistency stays visible in its error message.
func (r *Reconciler) Enqueue(job Job) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		return false
	}
}

// Done closes when the worker has exited.
func (r *Reconciler) Done() <-chan struct{} {
	return r.done
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			r.process(ctx, job)
		}
	}
}

func (r *Reconciler) process(ctx context.Context, job Job) {
	var err error
	for attempt := 1; attempt <= r.retries; attempt++ {
		if err = job.Run(ctx); err == nil {
			r.logger.Info().Str("job", job.Name).Int("attempt", attempt).Msg("reconciliation succeeded")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	r.logger.Error().Err(err).Str("job", job.Name).Msg("reconciliation retries exhausted")

	if job.Compensate == nil {
		return
	}
	if cerr := job.Compensate(ctx); cerr != nil {
		r.logger.Error().Err(cerr).Str("job", job.Name).Msg("compensation failed, manual repair required")
		return
	}
	r.logger.Warn().Str("job", job.Name).Msg("first step rolled back after failed reconciliation")
}
