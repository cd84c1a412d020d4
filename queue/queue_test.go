package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/notify"
	"github.com/ehsaniara/jobqueue/routine"
	"github.com/ehsaniara/jobqueue/routine/builtin"
)

func waitForStatus(t *testing.T, q *Queue, id job.ID, want job.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := q.JobStatus(id)
		if err == nil && status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
}

func mustEnqueue(t *testing.T, q *Queue, j job.Job) job.ID {
	t.Helper()
	id, err := q.Enqueue(j)
	require.NoError(t, err)
	return id
}

func newStartedQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	q, err := New(opts...)
	require.NoError(t, err)
	builtin.Register(q.Registry())
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		_ = q.Stop()
		_ = q.Join()
	})
	return q
}

func TestNominalSetFlag(t *testing.T) {
	var mu sync.Mutex
	flag := false
	setter := flagSetter{set: func(v bool) { mu.Lock(); flag = v; mu.Unlock() }}

	q := newStartedQueue(t, WithUserContext(setter))
	assert.Equal(t, StateRunning, q.State())

	args, _ := json.Marshal(builtin.SetFlagArgs{Value: true})
	j := job.New(job.Routine{Kind: builtin.KindSetFlag, Args: args}, nil, job.Never())
	id := mustEnqueue(t, q, j)

	waitForStatus(t, q, id, job.StatusFinished)

	mu.Lock()
	assert.True(t, flag)
	mu.Unlock()

	result, err := q.JobResult(id)
	require.NoError(t, err)

	var parsed builtin.SetFlagResult
	require.NoError(t, json.Unmarshal(result, &parsed))
	assert.Equal(t, "SET_FLAG_OK", parsed.Result)

	progression, err := q.JobProgression(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), progression.Step)
	assert.Equal(t, uint64(2), progression.Steps)

	require.NoError(t, q.RemoveJob(id))
	_, err = q.JobStatus(id)
	assert.Error(t, err)
}

type flagSetter struct {
	set func(bool)
}

func (f flagSetter) SetFlag(v bool) { f.set(v) }

func TestNopWithSingleWorker(t *testing.T) {
	q := newStartedQueue(t, WithPoolSize(1))

	j := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Never())
	id := mustEnqueue(t, q, j)

	waitForStatus(t, q, id, job.StatusFinished)

	status, err := q.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFinished, status)
}

func TestSleepDoesNotBlockOtherWorkers(t *testing.T) {
	q := newStartedQueue(t)

	sleepArgs, _ := json.Marshal(builtin.SleepArgs{Duration: 200 * time.Millisecond})
	sleeper := job.New(job.Routine{Kind: builtin.KindSleep, Args: sleepArgs}, nil, job.Never())
	mustEnqueue(t, q, sleeper)

	nop := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Never())
	id := mustEnqueue(t, q, nop)

	waitForStatus(t, q, id, job.StatusFinished)

	status, err := q.JobStatus(sleeper.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, status)
}

func TestPrivateDataRoundTrips(t *testing.T) {
	q := newStartedQueue(t)
	q.Registry().Register("echo_private", func(_ context.Context, j job.Job, _ routine.Sender, _ any) ([]byte, error) {
		return j.PrivateData, nil
	})

	j := job.New(job.Routine{Kind: "echo_private"}, []byte("secret"), job.Never())
	id := mustEnqueue(t, q, j)

	waitForStatus(t, q, id, job.StatusFinished)

	result, err := q.JobResult(id)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(result))
}

func TestExpireOnResultFetch(t *testing.T) {
	q := newStartedQueue(t)

	j := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.OnResultFetch(50*time.Millisecond))
	id := mustEnqueue(t, q, j)

	waitForStatus(t, q, id, job.StatusFinished)

	_, err := q.JobResult(id)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := q.JobStatus(id)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExpireOnTimeout(t *testing.T) {
	q := newStartedQueue(t, WithSweepInterval(20*time.Millisecond))

	j := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Timeout(100*time.Millisecond))
	id := mustEnqueue(t, q, j)

	status, err := q.JobStatus(id)
	require.NoError(t, err)
	assert.NotEmpty(t, status)

	assert.Eventually(t, func() bool {
		_, err := q.JobStatus(id)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentAccessDoesNotBlockOnBusyWorker(t *testing.T) {
	q := newStartedQueue(t)

	sleepArgs, _ := json.Marshal(builtin.SleepArgs{Duration: time.Second})
	sleeper := job.New(job.Routine{Kind: builtin.KindSleep, Args: sleepArgs}, nil, job.Never())
	mustEnqueue(t, q, sleeper)

	nop := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Never())
	id := mustEnqueue(t, q, nop)

	waitForStatus(t, q, id, job.StatusFinished)
}

func TestEnqueueManyJobsAllComplete(t *testing.T) {
	q := newStartedQueue(t)

	var counterMu sync.Mutex
	counter := 0
	q.Registry().Register("count", func(_ context.Context, _ job.Job, _ routine.Sender, _ any) ([]byte, error) {
		counterMu.Lock()
		counter++
		counterMu.Unlock()
		return nil, nil
	})

	ids := make([]job.ID, 0, 50)
	for i := 0; i < 50; i++ {
		j := job.New(job.Routine{Kind: "count"}, nil, job.Never())
		ids = append(ids, mustEnqueue(t, q, j))
	}

	for _, id := range ids {
		waitForStatus(t, q, id, job.StatusFinished)
	}

	counterMu.Lock()
	assert.Equal(t, 50, counter)
	counterMu.Unlock()
}

func TestJobsListsEveryRecord(t *testing.T) {
	q := newStartedQueue(t)

	ids := make(map[job.ID]bool)
	for i := 0; i < 5; i++ {
		j := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Never())
		ids[mustEnqueue(t, q, j)] = true
	}

	require.Eventually(t, func() bool {
		records, err := q.Jobs()
		return err == nil && len(records) == 5
	}, 2*time.Second, 10*time.Millisecond)

	records, err := q.Jobs()
	require.NoError(t, err)
	for _, rec := range records {
		assert.True(t, ids[rec.Job.ID])
	}
}

func TestErrorRoutineFinishesWithError(t *testing.T) {
	q := newStartedQueue(t)

	var captured error
	q.notify = func(n notify.Notification) {
		if n.Kind == notify.KindError && n.Err != nil {
			captured = n.Err
		}
	}

	failArgs, _ := json.Marshal(builtin.FailArgs{Message: "boom"})
	j := job.New(job.Routine{Kind: builtin.KindFail, Args: failArgs}, nil, job.Never())
	id := mustEnqueue(t, q, j)

	waitForStatus(t, q, id, job.StatusFinished)

	status, err := q.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFinished, status)

	_, err = q.JobResult(id)
	assert.Error(t, err)
	assert.Error(t, captured)
}

func TestNotStartable(t *testing.T) {
	q, err := New()
	require.NoError(t, err)
	require.NoError(t, q.Start())
	defer func() { _ = q.Stop(); _ = q.Join() }()

	assert.Error(t, q.Start())
}

func TestNotJoinable(t *testing.T) {
	q, err := New()
	require.NoError(t, err)
	assert.Error(t, q.Join())

	require.NoError(t, q.Start())
	assert.Error(t, q.Join())

	require.NoError(t, q.Stop())
	require.NoError(t, q.Join())
}

func TestNotStoppable(t *testing.T) {
	q, err := New()
	require.NoError(t, err)
	assert.Error(t, q.Stop())

	require.NoError(t, q.Start())
	require.NoError(t, q.Stop())
	assert.Error(t, q.Stop())
	require.NoError(t, q.Join())
}

func TestNewRejectsZeroPoolSize(t *testing.T) {
	_, err := New(WithPoolSize(0))
	assert.Error(t, err)
}

func TestEnqueueRequiresRunning(t *testing.T) {
	q, err := New()
	require.NoError(t, err)

	j := job.New(job.Routine{Kind: builtin.KindNop}, nil, job.Never())
	_, err = q.Enqueue(j)
	assert.Error(t, err)

	require.NoError(t, q.Start())
	id, err := q.Enqueue(j)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, q.Stop())
	_, err = q.Enqueue(j)
	assert.Error(t, err)

	require.NoError(t, q.Join())
}
