package queue

import (
	"context"
	"time"

	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/pkg/logger"
	"github.com/ehsaniara/jobqueue/routine"
	"github.com/ehsaniara/jobqueue/store"
)

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithPoolSize sets the number of worker goroutines. The default is 4.
func WithPoolSize(n int) Option {
	return func(q *Queue) { q.poolSize = n }
}

// WithBackend sets the store backend used from the first Start call
// onward. The default is the in-memory backend from package store.
func WithBackend(b store.Backend) Option {
	return func(q *Queue) { q.backend = b }
}

// WithNotificationHandler registers the callback invoked synchronously
// for every error, status transition, and progression update.
func WithNotificationHandler(h notify.Handler) Option {
	return func(q *Queue) { q.notify = h }
}

// WithRegistry supplies the routine registry used to dispatch a job's
// Routine.Kind to the Func that executes it. The default is an empty
// registry; callers normally register their own kinds before Start.
func WithRegistry(r *routine.Registry) Option {
	return func(q *Queue) { q.registry = r }
}

// WithUserContext supplies an arbitrary value passed through to every
// routine invocation, mirroring request-scoped context a routine
// might need (a database handle, a test harness hook, and so on).
func WithUserContext(ctx any) Option {
	return func(q *Queue) { q.userCtx = ctx }
}

// WithSweepInterval sets how often the background sweeper asks the
// backend to purge expired records. The default is one second; this
// option exists mainly so tests can shorten it.
func WithSweepInterval(d time.Duration) Option {
	return func(q *Queue) { q.sweepInterval = d }
}

// WithLogger overrides the internal ambient logger used for the
// queue's own operational messages, distinct from the notification
// handler.
func WithLogger(l *logger.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithContext supplies the parent context passed as rctx to every
// routine.Func. Canceling it is not equivalent to Stop: the dispatcher
// doesn't select on it, so admission and scheduling continue
// regardless; only a routine that itself checks rctx.Done() reacts to
// the cancellation.
func WithContext(ctx context.Context) Option {
	return func(q *Queue) { q.parentCtx = ctx }
}
