// Package routine defines the contract a unit of asynchronous work
// must satisfy to run on the worker pool, and the registry that maps
// a Job's Routine.Kind to the Func that executes it.
package routine

import (
	"context"
	"sync"

	"github.com/ehsaniara/jobqueue/job"
)

// Sender lets a running Func report progression by sending
// SetStep/SetSteps commands back onto the dispatcher's message
// channel — the same channel user code enqueues jobs on. A Func must
// never write progression anywhere else: routing it through the
// channel keeps every progression update on the dispatcher's single
// control thread.
type Sender interface {
	SendSetStep(id job.ID, step uint64) error
	SendSetSteps(id job.ID, steps uint64) error
}

// Func is a user-defined unit of asynchronous work. rctx is the
// queue's parent context, not canceled by Stop — an in-flight Func
// always runs to completion; userCtx is the optional value supplied
// at queue construction (nil if none was given).
type Func func(rctx context.Context, j job.Job, sender Sender, userCtx any) ([]byte, error)

// Registry maps a Routine.Kind to the Func that executes it. Looking
// up an unregistered kind is a routine-authoring error, not a runtime
// one: callers should register every kind they enqueue before Start.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds kind to fn, replacing any previous binding.
func (r *Registry) Register(kind string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[kind] = fn
}

// Lookup returns the Func bound to kind, if any.
func (r *Registry) Lookup(kind string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[kind]
	return fn, ok
}
