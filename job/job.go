// Package job defines the data model shared by the queue facade, the
// worker pool, and every store backend: job identity, the routine a
// worker must invoke, progression reporting, and expiration policy.
package job

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier assigned at job construction.
// It never changes for the lifetime of the record.
type ID string

// NewID generates a fresh, collision-safe job id.
func NewID() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string { return string(id) }

// Status is the job's position in the lifecycle DAG:
// Pending -> Ready -> Running -> Finished(Success|Error).
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusReady    Status = "READY"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
)

// ResultStatus distinguishes a Finished job's outcome.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultError   ResultStatus = "ERROR"
)

// rank orders statuses along the DAG so transitions can be validated
// with a single comparison; Finished has no further successor.
var rank = map[Status]int{
	StatusPending:  0,
	StatusReady:    1,
	StatusRunning:  2,
	StatusFinished: 3,
}

// CanTransition reports whether moving from `from` to `to` is legal
// per the DAG in spec §3: no back-transitions, and Pending may jump
// straight to Finished(Error) on admission-time failures.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusPending && to == StatusFinished {
		return true
	}
	return rank[to] == rank[from]+1
}

// Progression is the (step, steps) pair a routine reports as it runs.
// The invariant 0 <= step <= steps holds at every observable moment.
type Progression struct {
	Step  uint64
	Steps uint64
}

// Clamped returns a copy of p with Step bounded to [0, Steps].
func (p Progression) Clamped() Progression {
	if p.Step > p.Steps {
		p.Step = p.Steps
	}
	return p
}

// ExpireKind selects the retention rule applied to a finished or
// timed-out record.
type ExpireKind int

const (
	// ExpireNever keeps the record until an explicit RemoveJob.
	ExpireNever ExpireKind = iota
	// ExpireOnResultFetch schedules removal `After` the first
	// successful result read.
	ExpireOnResultFetch
	// ExpireTimeout removes the record `After` it entered the store,
	// regardless of completion.
	ExpireTimeout
)

// ExpirePolicy is the rule determining when a record is purged.
type ExpirePolicy struct {
	Kind  ExpireKind
	After time.Duration
}

// Never never schedules removal.
func Never() ExpirePolicy { return ExpirePolicy{Kind: ExpireNever} }

// OnResultFetch schedules removal `d` after the first successful
// result read; d may be zero for immediate removal.
func OnResultFetch(d time.Duration) ExpirePolicy {
	return ExpirePolicy{Kind: ExpireOnResultFetch, After: d}
}

// Timeout schedules removal `d` after admission, regardless of
// completion.
func Timeout(d time.Duration) ExpirePolicy {
	return ExpirePolicy{Kind: ExpireTimeout, After: d}
}

// Job is the immutable descriptor a caller submits to the queue.
type Job struct {
	ID ID

	// Routine identifies the user-defined async routine to invoke and
	// carries its per-variant arguments as an opaque payload.
	Routine Routine

	// PrivateData is a self-describing byte string the routine may
	// read; the queue never inspects or serializes it.
	PrivateData []byte

	Expire ExpirePolicy
}

// New builds a Job with a freshly generated ID.
func New(routine Routine, privateData []byte, expire ExpirePolicy) Job {
	return Job{
		ID:          NewID(),
		Routine:     routine,
		PrivateData: privateData,
		Expire:      expire,
	}
}

// Routine is the user-defined discriminated union of async work a
// worker invokes: a Kind tag plus an opaque per-variant argument blob.
type Routine struct {
	Kind string
	Args []byte
}
