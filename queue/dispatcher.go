package queue

import (
	"time"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/store"
)

// runDispatcher is the queue's single control thread: it owns every
// store mutation driven by admission (Schedule, the Pending->Ready
// transition) and by progression commands (SetStep/SetSteps),
// handing Ready jobs off to the worker pool over ready. It returns
// once it pops the Stop command pushed by Stop.
func (q *Queue) runDispatcher(backend store.Backend, ready chan<- job.ID) {
	defer q.wg.Done()

	for {
		msg := q.messages.pop()

		if msg.cmd != nil && msg.cmd.kind == cmdStop {
			close(ready)
			close(q.stopCh)
			return
		}

		if msg.job != nil {
			q.admit(backend, *msg.job, ready)
			continue
		}

		q.applyCmd(backend, *msg.cmd)
	}
}

func (q *Queue) admit(backend store.Backend, j job.Job, ready chan<- job.ID) {
	now := time.Now()

	if err := backend.Schedule(j, now); err != nil {
		q.notify(notify.JobError(j.ID, err))
		return
	}

	if err := backend.SetStatus(j.ID, job.StatusReady, "", now); err != nil {
		q.notify(notify.JobError(j.ID, err))
		return
	}
	q.notify(notify.Status(j.ID, job.StatusReady, ""))

	ready <- j.ID
}

func (q *Queue) applyCmd(backend store.Backend, c cmd) {
	switch c.kind {
	case cmdSetStep:
		if err := backend.SetStep(c.jobID, c.n); err != nil {
			q.notify(notify.JobError(c.jobID, err))
			return
		}
	case cmdSetSteps:
		if err := backend.SetSteps(c.jobID, c.n); err != nil {
			q.notify(notify.JobError(c.jobID, err))
			return
		}
	default:
		return
	}

	p, err := backend.Progression(c.jobID)
	if err != nil {
		q.notify(notify.JobError(c.jobID, err))
		return
	}
	q.notify(notify.Progression(c.jobID, p))
}
