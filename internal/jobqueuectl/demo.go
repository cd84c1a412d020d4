package jobqueuectl

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/routine/builtin"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Submit a representative mix of jobs and report on their outcomes",
		Long: `demo submits a sleeping job, several quick no-ops, a
progression-reporting job, and a job that always fails, then waits
for all of them to reach Finished and prints a summary. It exists to
exercise concurrency (the sleeper shouldn't block the no-ops) and the
notification path in one pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

func runDemo() error {
	var mu sync.Mutex
	counts := map[notify.Kind]int{}

	notifier := func(n notify.Notification) {
		mu.Lock()
		counts[n.Kind]++
		mu.Unlock()
		if n.Kind == notify.KindError {
			fmt.Printf("[%s] error: %v\n", n.JobID, n.Err)
		}
	}

	q, _, err := buildQueue(notifier)
	if err != nil {
		return err
	}
	defer shutdown(q)

	sleepArgs, _ := json.Marshal(builtin.SleepArgs{Duration: 500 * time.Millisecond})
	sleeper, err := q.Enqueue(job.New(job.Routine{Kind: builtin.KindSleep, Args: sleepArgs}, nil, job.Never()))
	if err != nil {
		return fmt.Errorf("enqueue sleeper: %w", err)
	}

	var nops []job.ID
	for i := 0; i < 5; i++ {
		id, err := q.Enqueue(job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Never()))
		if err != nil {
			return fmt.Errorf("enqueue nop: %w", err)
		}
		nops = append(nops, id)
	}

	setFlagArgs, _ := json.Marshal(builtin.SetFlagArgs{Value: true})
	progressor, err := q.Enqueue(job.New(job.Routine{Kind: builtin.KindSetFlag, Args: setFlagArgs}, nil, job.Never()))
	if err != nil {
		return fmt.Errorf("enqueue set_flag: %w", err)
	}

	failArgs, _ := json.Marshal(builtin.FailArgs{Message: "demo failure"})
	failer, err := q.Enqueue(job.New(job.Routine{Kind: builtin.KindFail, Args: failArgs}, nil, job.Never()))
	if err != nil {
		return fmt.Errorf("enqueue fail: %w", err)
	}

	ids := append(append([]job.ID{sleeper, progressor, failer}, nops...))
	deadline := time.Now().Add(5 * time.Second)
	for _, id := range ids {
		for time.Now().Before(deadline) {
			status, err := q.JobStatus(id)
			if err == nil && status == job.StatusFinished {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	records, err := q.Jobs()
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	fmt.Printf("%d jobs finished; %d status notifications, %d progression notifications, %d errors\n",
		len(records), counts[notify.KindStatus], counts[notify.KindProgression], counts[notify.KindError])
	return nil
}
