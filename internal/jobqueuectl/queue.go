package jobqueuectl

import (
	"context"
	"fmt"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/pkg/config"
	"github.com/ehsaniara/jobqueue/queue"
	"github.com/ehsaniara/jobqueue/routine/builtin"
)

// buildQueue loads configPath (falling back to defaults), builds a
// queue wired per its store/notify sections, registers the builtin
// demo routines, and starts it. It returns the job.ExpirePolicy the
// config's pool section designates as the default for jobs that
// don't specify their own.
func buildQueue(handler notify.Handler) (*queue.Queue, job.ExpirePolicy, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, job.ExpirePolicy{}, fmt.Errorf("load config: %w", err)
	}

	q, err := queue.Build(context.Background(), cfg, handler)
	if err != nil {
		return nil, job.ExpirePolicy{}, fmt.Errorf("build queue: %w", err)
	}

	builtin.Register(q.Registry())

	if err := q.Start(); err != nil {
		return nil, job.ExpirePolicy{}, fmt.Errorf("start queue: %w", err)
	}
	return q, queue.DefaultExpirePolicy(cfg), nil
}

// shutdown stops and joins q, logging but not failing on either error
// since the caller has already reported its own result.
func shutdown(q *queue.Queue) {
	if err := q.Stop(); err != nil {
		fmt.Printf("stop: %v\n", err)
		return
	}
	if err := q.Join(); err != nil {
		fmt.Printf("join: %v\n", err)
	}
}
