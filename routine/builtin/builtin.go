// Package builtin provides small, dependency-free routines useful for
// exercising a queue end to end: a no-op, a timed sleep, a routine
// that always fails, and one that demonstrates mid-run progression
// reporting.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/routine"
)

// Kind tags for the routines this package registers.
const (
	KindNop     = "builtin.nop"
	KindSleep   = "builtin.sleep"
	KindFail    = "builtin.fail"
	KindSetFlag = "builtin.set_flag"
)

// Register binds every routine in this package into reg under its
// Kind constant.
func Register(reg *routine.Registry) {
	reg.Register(KindNop, Nop)
	reg.Register(KindSleep, Sleep)
	reg.Register(KindFail, Fail)
	reg.Register(KindSetFlag, SetFlag)
}

// Nop returns immediately with an empty result.
func Nop(_ context.Context, _ job.Job, _ routine.Sender, _ any) ([]byte, error) {
	return nil, nil
}

// SleepArgs is the JSON payload a Sleep job carries in job.Routine.Args.
type SleepArgs struct {
	Duration time.Duration `json:"duration"`
}

// Sleep blocks for the duration encoded in the job's args, or until
// rctx is canceled, whichever comes first.
func Sleep(rctx context.Context, j job.Job, _ routine.Sender, _ any) ([]byte, error) {
	var args SleepArgs
	if err := json.Unmarshal(j.Routine.Args, &args); err != nil {
		return nil, fmt.Errorf("decode sleep args: %w", err)
	}

	timer := time.NewTimer(args.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil, nil
	case <-rctx.Done():
		return nil, rctx.Err()
	}
}

// FailArgs is the JSON payload a Fail job carries in job.Routine.Args.
type FailArgs struct {
	Message string `json:"message"`
}

// Fail always returns an error, built from the job's args if present.
func Fail(_ context.Context, j job.Job, _ routine.Sender, _ any) ([]byte, error) {
	var args FailArgs
	_ = json.Unmarshal(j.Routine.Args, &args)
	if args.Message == "" {
		args.Message = "routine failed"
	}
	return nil, fmt.Errorf("%s", args.Message)
}

// SetFlagArgs is the JSON payload a SetFlag job carries.
type SetFlagArgs struct {
	Value bool `json:"value"`
}

// SetFlagResult is the JSON result SetFlag reports on success.
type SetFlagResult struct {
	Result string `json:"result"`
}

// SetFlag demonstrates mid-run progression reporting: it applies the
// flag through the caller-supplied setter carried in the user
// context, reports two steps of progress over the channel, and
// returns a small JSON result.
func SetFlag(_ context.Context, j job.Job, sender routine.Sender, userCtx any) ([]byte, error) {
	var args SetFlagArgs
	if err := json.Unmarshal(j.Routine.Args, &args); err != nil {
		return nil, fmt.Errorf("decode set_flag args: %w", err)
	}

	if setter, ok := userCtx.(interface{ SetFlag(bool) }); ok {
		setter.SetFlag(args.Value)
	}

	if err := sender.SendSetSteps(j.ID, 2); err != nil {
		return nil, err
	}
	if err := sender.SendSetStep(j.ID, 1); err != nil {
		return nil, err
	}

	result, err := json.Marshal(SetFlagResult{Result: "SET_FLAG_OK"})
	if err != nil {
		return nil, err
	}

	if err := sender.SendSetStep(j.ID, 2); err != nil {
		return nil, err
	}

	return result, nil
}
