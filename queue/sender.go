package queue

import "github.com/ehsaniara/jobqueue/job"

// channelSender implements routine.Sender by pushing SetStep/SetSteps
// commands back onto the dispatcher's own message queue, so every
// store mutation — whether triggered by a new job or by a running
// routine's progress report — happens on the single control thread.
type channelSender struct {
	push func(message)
}

func (s channelSender) SendSetStep(id job.ID, step uint64) error {
	s.push(cmdMessage(cmd{kind: cmdSetStep, jobID: id, n: step}))
	return nil
}

func (s channelSender) SendSetSteps(id job.ID, steps uint64) error {
	s.push(cmdMessage(cmd{kind: cmdSetSteps, jobID: id, n: steps}))
	return nil
}
