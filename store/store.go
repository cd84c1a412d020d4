// Package store defines the Backend capability the dispatcher and
// worker pool use to persist job records, and provides the default
// in-memory implementation.
package store

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

import (
	"context"
	"time"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/routine"
)

//counterfeiter:generate . Backend

// Backend is the concurrency-safe job store the queue delegates all
// lifecycle bookkeeping to. Implementations: the default in-memory
// backend, and optional adapters such as store/dynamodb.
//
// Every method must be safe to call from the dispatcher's control
// thread and from worker goroutines concurrently; implementations own
// whatever locking that requires.
type Backend interface {
	// Schedule admits job into the store as a fresh Pending record.
	// It fails with queueerrors.KindAlreadyExists if the id is
	// already present.
	Schedule(j job.Job, now time.Time) error

	// SetStatus transitions id to status. It fails with
	// queueerrors.KindIllegalTransition if the move isn't legal per
	// job.CanTransition, and queueerrors.KindUnknownJob if id isn't
	// present.
	SetStatus(id job.ID, status job.Status, resultStatus job.ResultStatus, now time.Time) error

	// SetStep sets the record's current progression step, clamped to
	// its configured Steps.
	SetStep(id job.ID, step uint64) error

	// SetSteps sets the record's total progression steps.
	SetSteps(id job.ID, steps uint64) error

	// SetResult stores a successful routine's output bytes.
	SetResult(id job.ID, result []byte) error

	// Result returns the stored result bytes. It fails with
	// queueerrors.KindNotFinished if the job hasn't reached
	// Finished(Success) yet, and marks the record's OnResultFetch
	// clock running on first successful call.
	Result(id job.ID, now time.Time) ([]byte, error)

	// Status returns the job's current status.
	Status(id job.ID) (job.Status, error)

	// Progression returns the job's current progression.
	Progression(id job.ID) (job.Progression, error)

	// Routine returns the job's routine descriptor (kind and args).
	Routine(id job.ID) (job.Routine, error)

	// PrivateData returns the job's opaque private data blob.
	PrivateData(id job.ID) ([]byte, error)

	// Jobs returns a snapshot copy of every record currently held.
	Jobs() ([]job.Record, error)

	// Remove deletes id from the store. It fails with
	// queueerrors.KindBusy if the job is Ready or Running.
	Remove(id job.ID) error

	// Run invokes the routine registered for id's kind, outside any
	// store lock, and returns its result bytes and error verbatim.
	// The caller (the worker pool) is responsible for recording the
	// resulting status.
	Run(rctx context.Context, id job.ID, reg *routine.Registry, userCtx any, sender routine.Sender) ([]byte, error)

	// Sweep removes every record whose expiration deadline has
	// passed as of now, and returns how many were removed. The queue's
	// sweeper invokes this once per sweep interval (one second by
	// default).
	Sweep(now time.Time) int

	// Close releases any resources held by the backend.
	Close() error
}
