package queue

import (
	"time"

	"github.com/ehsaniara/jobqueue/store"
)

// runSweeper wakes at most once per sweepInterval to purge expired
// records, per the Timeout and OnResultFetch policies in job.ExpirePolicy.
func (q *Queue) runSweeper(backend store.Backend) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case now := <-ticker.C:
			if n := backend.Sweep(now); n > 0 {
				q.log.Debug("swept expired records", "count", n)
			}
		}
	}
}
