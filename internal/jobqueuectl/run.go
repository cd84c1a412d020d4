package jobqueuectl

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
)

func newRunCmd() *cobra.Command {
	var kind, args, privateData string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a single job and wait for it to finish",
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			return runOne(kind, args, privateData, timeout)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "builtin.nop", "routine kind to run (builtin.nop, builtin.sleep, builtin.fail, builtin.set_flag)")
	cmd.Flags().StringVar(&args, "args", "", "JSON arguments passed to the routine")
	cmd.Flags().StringVar(&privateData, "private-data", "", "opaque bytes attached to the job, echoed back verbatim by the store")
	cmd.Flags().DurationVar(&timeout, "wait", 10*time.Second, "how long to wait for the job to finish before giving up")

	return cmd
}

func runOne(kind, args, privateData string, timeout time.Duration) error {
	notifier := func(n notify.Notification) {
		switch n.Kind {
		case notify.KindStatus:
			fmt.Printf("[%s] status=%s result=%s\n", n.JobID, n.Status, n.ResultStatus)
		case notify.KindProgression:
			fmt.Printf("[%s] progress=%d/%d\n", n.JobID, n.Progression.Step, n.Progression.Steps)
		case notify.KindError:
			fmt.Printf("[%s] error=%v\n", n.JobID, n.Err)
		}
	}

	q, defaultExpire, err := buildQueue(notifier)
	if err != nil {
		return err
	}
	defer shutdown(q)

	j := job.New(job.Routine{Kind: kind, Args: []byte(args)}, []byte(privateData), defaultExpire)
	id, err := q.Enqueue(j)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := q.JobStatus(id)
		if err == nil && status == job.StatusFinished {
			result, rErr := q.JobResult(id)
			if rErr != nil {
				return fmt.Errorf("job %s finished with error: %w", id, rErr)
			}
			printResult(result)
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("job %s did not finish within %s", id, timeout)
}

func printResult(raw []byte) {
	if len(raw) == 0 {
		fmt.Println("result: (empty)")
		return
	}
	var pretty map[string]any
	if json.Unmarshal(raw, &pretty) == nil {
		encoded, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("result:\n%s\n", encoded)
		return
	}
	fmt.Printf("result: %s\n", raw)
}
