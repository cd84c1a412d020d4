package queue

import (
	"time"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/pkg/queueerrors"
	"github.com/ehsaniara/jobqueue/store"
)

// runWorker is one of the queue's fixed P cooperative executors: it
// pulls a Ready job id at a time from ready, runs it to completion,
// and records the outcome, until ready is closed by the dispatcher.
func (q *Queue) runWorker(backend store.Backend, ready <-chan job.ID) {
	defer q.wg.Done()

	sender := channelSender{push: q.messages.push}

	for id := range ready {
		q.runJob(backend, id, sender)
	}
}

func (q *Queue) runJob(backend store.Backend, id job.ID, sender channelSender) {
	now := time.Now()

	if err := backend.SetStatus(id, job.StatusRunning, "", now); err != nil {
		q.notify(notify.JobError(id, err))
		return
	}
	q.notify(notify.Status(id, job.StatusRunning, ""))

	result, err := backend.Run(q.routineCtx, id, q.registry, q.userCtx, sender)

	now = time.Now()
	if err != nil {
		classified := queueerrors.Custom(err)
		q.notify(notify.JobError(id, classified))

		if sErr := backend.SetStatus(id, job.StatusFinished, job.ResultError, now); sErr != nil {
			q.notify(notify.JobError(id, sErr))
			return
		}
		q.notify(notify.Status(id, job.StatusFinished, job.ResultError))
		return
	}

	if err := backend.SetResult(id, result); err != nil {
		q.notify(notify.JobError(id, err))
		return
	}
	if err := backend.SetStatus(id, job.StatusFinished, job.ResultSuccess, now); err != nil {
		q.notify(notify.JobError(id, err))
		return
	}
	q.notify(notify.Status(id, job.StatusFinished, job.ResultSuccess))
}
