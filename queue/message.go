package queue

import "github.com/ehsaniara/jobqueue/job"

// cmdKind tags the control commands the dispatcher accepts alongside
// job submissions.
type cmdKind int

const (
	cmdSetStep cmdKind = iota
	cmdSetSteps
	cmdStop
)

// cmd is the command half of a dispatcher message: a state change
// that isn't a new job submission.
type cmd struct {
	kind  cmdKind
	jobID job.ID
	n     uint64
}

// message is the multi-producer/single-consumer envelope carried on
// the dispatcher's message queue: either a job to admit, or a
// command to apply. Exactly one of the two fields is set.
type message struct {
	job *job.Job
	cmd *cmd
}

func jobMessage(j job.Job) message {
	return message{job: &j}
}

func cmdMessage(c cmd) message {
	return message{cmd: &c}
}

func stopMessage() message {
	return message{cmd: &cmd{kind: cmdStop}}
}
