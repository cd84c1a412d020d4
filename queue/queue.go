// Package queue implements the in-process asynchronous job queue: a
// single-consumer dispatcher that admits jobs and applies progression
// commands against a store.Backend, and a fixed-size worker pool that
// invokes each job's registered routine.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/pkg/logger"
	"github.com/ehsaniara/jobqueue/pkg/queueerrors"
	"github.com/ehsaniara/jobqueue/routine"
	"github.com/ehsaniara/jobqueue/store"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// Queue is the public facade: construct with New, register routines
// into the Registry passed via WithRegistry (or Queue.Registry()),
// then Start, Enqueue, and eventually Stop/Join.
type Queue struct {
	stateMu sync.Mutex
	state   State

	backend       store.Backend
	activeBackend store.Backend
	registry      *routine.Registry
	notify        notify.Handler
	userCtx       any

	poolSize      int
	sweepInterval time.Duration
	log           *logger.Logger
	parentCtx     context.Context

	messages *msgQueue

	// routineCtx is passed to every routine invocation; it is never
	// canceled by Stop, only by the caller canceling parentCtx. Stop
	// only asks the dispatcher to stop admitting new jobs — in-flight
	// routines always run to completion, and Join waits for them with
	// no forced timeout.
	routineCtx context.Context
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New constructs a Queue. It fails with queueerrors.KindInvalidThreadPoolSize
// if the configured pool size is less than 1.
func New(opts ...Option) (*Queue, error) {
	q := &Queue{
		state:         StateIdle,
		backend:       store.NewMemory(),
		registry:      routine.NewRegistry(),
		notify:        func(notify.Notification) {},
		poolSize:      4,
		sweepInterval: time.Second,
		log:           logger.New().WithField("component", "jobqueue"),
		parentCtx:     context.Background(),
		messages:      newMsgQueue(),
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.poolSize < 1 {
		return nil, queueerrors.New(queueerrors.KindInvalidThreadPoolSize, "pool size must be >= 1")
	}

	return q, nil
}

// State returns the queue's current lifecycle state.
func (q *Queue) State() State {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	return q.state
}

// Registry returns the routine registry routines are bound into.
// Register every Routine.Kind a caller intends to enqueue before
// calling Start.
func (q *Queue) Registry() *routine.Registry {
	return q.registry
}

// SetBackend replaces the store backend. It only affects Start calls
// that happen afterward: swapping backends on a running queue doesn't
// migrate in-flight dispatcher/worker goroutines, which keep the
// backend they captured at Start.
func (q *Queue) SetBackend(b store.Backend) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	q.backend = b
}

func (q *Queue) tryStarting() error {
	switch q.state {
	case StateRunning:
		return queueerrors.New(queueerrors.KindAlreadyRunning, "queue is already running")
	case StateStopping:
		return queueerrors.New(queueerrors.KindStopped, "queue is stopping")
	default:
		return nil
	}
}

func (q *Queue) tryStopping() error {
	switch q.state {
	case StateIdle:
		return queueerrors.New(queueerrors.KindNotStarted, "queue has not been started")
	case StateStopping:
		return queueerrors.New(queueerrors.KindStopped, "queue is already stopping")
	default:
		return nil
	}
}

func (q *Queue) tryJoining() error {
	switch q.state {
	case StateIdle:
		return queueerrors.New(queueerrors.KindNotStarted, "queue has not been started")
	case StateRunning:
		return queueerrors.New(queueerrors.KindNotStopping, "queue has not been asked to stop")
	default:
		return nil
	}
}

// Start spawns the dispatcher, the worker pool, and the expiry
// sweeper, and transitions the queue to StateRunning.
func (q *Queue) Start() error {
	q.stateMu.Lock()
	if err := q.tryStarting(); err != nil {
		q.stateMu.Unlock()
		return err
	}

	q.routineCtx = q.parentCtx
	q.stopCh = make(chan struct{})
	q.state = StateRunning

	backend := q.backend
	q.activeBackend = backend
	q.stateMu.Unlock()

	ready := make(chan job.ID, 4096)

	q.wg.Add(1)
	go q.runDispatcher(backend, ready)

	for i := 0; i < q.poolSize; i++ {
		q.wg.Add(1)
		go q.runWorker(backend, ready)
	}

	q.wg.Add(1)
	go q.runSweeper(backend)

	q.log.Info("queue started", "poolSize", q.poolSize)
	return nil
}

// Stop asks the dispatcher to stop accepting further messages once
// its current backlog drains. It returns without waiting: the
// dispatcher goroutine processes the Stop marker after every message
// pushed before it, and Join waits for that to happen.
func (q *Queue) Stop() error {
	q.stateMu.Lock()
	if err := q.tryStopping(); err != nil {
		q.stateMu.Unlock()
		return err
	}
	q.state = StateStopping
	q.stateMu.Unlock()

	q.messages.push(stopMessage())

	q.log.Info("queue stopping")
	return nil
}

// Join blocks until the dispatcher, every worker, and the sweeper
// have returned, then resets the queue to StateIdle so it can be
// started again. There's no forced timeout: a routine that never
// returns holds Join open indefinitely.
func (q *Queue) Join() error {
	q.stateMu.Lock()
	if err := q.tryJoining(); err != nil {
		q.stateMu.Unlock()
		return err
	}
	q.stateMu.Unlock()

	q.wg.Wait()

	q.stateMu.Lock()
	q.state = StateIdle
	q.stateMu.Unlock()

	q.log.Info("queue joined")
	return nil
}

// Enqueue admits job for processing. It never blocks, but it only
// succeeds while the queue is StateRunning: once Stop has been called
// new admissions are rejected with queueerrors.KindStopped, and a
// queue that was never Started is rejected with queueerrors.KindNotStarted.
func (q *Queue) Enqueue(j job.Job) (job.ID, error) {
	q.stateMu.Lock()
	state := q.state
	q.stateMu.Unlock()

	switch state {
	case StateIdle:
		return "", queueerrors.New(queueerrors.KindNotStarted, "queue has not been started")
	case StateStopping:
		return "", queueerrors.New(queueerrors.KindStopped, "queue is stopping")
	}

	q.messages.push(jobMessage(j))
	return j.ID, nil
}

// JobStatus returns id's current status.
func (q *Queue) JobStatus(id job.ID) (job.Status, error) {
	return q.currentBackend().Status(id)
}

// JobResult returns id's stored result. It fails with
// queueerrors.KindNotFinished until the job reaches Finished(Success).
func (q *Queue) JobResult(id job.ID) ([]byte, error) {
	return q.currentBackend().Result(id, time.Now())
}

// JobProgression returns id's current (step, steps) pair.
func (q *Queue) JobProgression(id job.ID) (job.Progression, error) {
	return q.currentBackend().Progression(id)
}

// JobRoutine returns id's routine descriptor.
func (q *Queue) JobRoutine(id job.ID) (job.Routine, error) {
	return q.currentBackend().Routine(id)
}

// Jobs returns a snapshot of every record currently in the store.
func (q *Queue) Jobs() ([]job.Record, error) {
	return q.currentBackend().Jobs()
}

// RemoveJob deletes id from the store. It fails with
// queueerrors.KindBusy if the job is Ready or Running.
func (q *Queue) RemoveJob(id job.ID) error {
	return q.currentBackend().Remove(id)
}

func (q *Queue) currentBackend() store.Backend {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if q.activeBackend != nil {
		return q.activeBackend
	}
	return q.backend
}
