// Package notify defines the notification sink surface: the single
// synchronous callback the queue uses to tell the caller about
// errors, status transitions, and progression updates, as they
// happen rather than through polling.
package notify

import "github.com/ehsaniara/jobqueue/job"

// Kind tags which field of a Notification is populated.
type Kind int

const (
	KindError Kind = iota
	KindStatus
	KindProgression
)

// Notification is emitted on every status transition and every
// accepted progression update, plus any error the dispatcher or a
// worker encounters that has no other way to surface.
type Notification struct {
	Kind Kind

	// JobID is the zero value for queue-level errors that aren't
	// attributable to a specific job.
	JobID job.ID

	Err          error
	Status       job.Status
	ResultStatus job.ResultStatus
	Progression  job.Progression
}

// Handler is the caller-supplied callback invoked synchronously from
// whichever goroutine emits the notification: the dispatcher's control
// thread or a pool worker. It must not block: a slow handler delays
// every other message the dispatcher would otherwise process, and it
// may be called concurrently.
type Handler func(Notification)

// Error builds an error notification not attributable to a job.
func Error(err error) Notification {
	return Notification{Kind: KindError, Err: err}
}

// JobError builds an error notification attributable to id.
func JobError(id job.ID, err error) Notification {
	return Notification{Kind: KindError, JobID: id, Err: err}
}

// Status builds a status-transition notification.
func Status(id job.ID, status job.Status, resultStatus job.ResultStatus) Notification {
	return Notification{Kind: KindStatus, JobID: id, Status: status, ResultStatus: resultStatus}
}

// Progression builds a progression-update notification.
func Progression(id job.ID, p job.Progression) Notification {
	return Notification{Kind: KindProgression, JobID: id, Progression: p}
}
