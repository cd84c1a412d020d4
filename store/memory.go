package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/pkg/queueerrors"
	"github.com/ehsaniara/jobqueue/routine"
)

// memoryBackend is the default Backend: a mutex-protected map, with
// every read and write going through a copy so callers outside the
// lock can never observe or mutate store-owned state. All data is
// lost when the process exits.
type memoryBackend struct {
	mu   sync.RWMutex
	jobs map[job.ID]*job.Record
}

// NewMemory returns a fresh, empty in-memory backend.
func NewMemory() Backend {
	return &memoryBackend{jobs: make(map[job.ID]*job.Record)}
}

func (m *memoryBackend) Schedule(j job.Job, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID]; exists {
		return queueerrors.New(queueerrors.KindAlreadyExists, string(j.ID))
	}

	m.jobs[j.ID] = job.NewRecord(j, now)
	return nil
}

func (m *memoryBackend) get(id job.ID) (*job.Record, error) {
	rec, exists := m.jobs[id]
	if !exists {
		return nil, queueerrors.New(queueerrors.KindUnknownJob, string(id))
	}
	return rec, nil
}

func (m *memoryBackend) SetStatus(id job.ID, status job.Status, resultStatus job.ResultStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.get(id)
	if err != nil {
		return err
	}

	if !job.CanTransition(rec.Status, status) {
		return queueerrors.New(queueerrors.KindIllegalTransition, string(rec.Status)+" -> "+string(status))
	}

	rec.Status = status
	if status == job.StatusFinished {
		rec.ResultStatus = resultStatus
	}

	return nil
}

func (m *memoryBackend) SetStep(id job.ID, step uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.get(id)
	if err != nil {
		return err
	}

	rec.Progression.Step = step
	rec.Progression = rec.Progression.Clamped()
	return nil
}

func (m *memoryBackend) SetSteps(id job.ID, steps uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.get(id)
	if err != nil {
		return err
	}

	rec.Progression.Steps = steps
	rec.Progression = rec.Progression.Clamped()
	return nil
}

func (m *memoryBackend) SetResult(id job.ID, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.get(id)
	if err != nil {
		return err
	}

	rec.Result = append([]byte(nil), result...)
	return nil
}

func (m *memoryBackend) Result(id job.ID, now time.Time) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}

	if rec.Status != job.StatusFinished || rec.ResultStatus != job.ResultSuccess {
		return nil, queueerrors.New(queueerrors.KindNotFinished, string(id))
	}

	if rec.ResultFetchedAt.IsZero() {
		rec.ResultFetchedAt = now
		if rec.Job.Expire.Kind == job.ExpireOnResultFetch {
			rec.ExpiresAt = now.Add(rec.Job.Expire.After)
		}
	}

	return append([]byte(nil), rec.Result...), nil
}

func (m *memoryBackend) Status(id job.ID) (job.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.get(id)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

func (m *memoryBackend) Progression(id job.ID) (job.Progression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.get(id)
	if err != nil {
		return job.Progression{}, err
	}
	return rec.Progression, nil
}

func (m *memoryBackend) Routine(id job.ID) (job.Routine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.get(id)
	if err != nil {
		return job.Routine{}, err
	}
	return rec.Job.Routine, nil
}

func (m *memoryBackend) PrivateData(id job.ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), rec.Job.PrivateData...), nil
}

func (m *memoryBackend) Jobs() ([]job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]job.Record, 0, len(m.jobs))
	for _, rec := range m.jobs {
		out = append(out, rec.Copy())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (m *memoryBackend) Remove(id job.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.get(id)
	if err != nil {
		return err
	}
	if rec.IsRunning() {
		return queueerrors.New(queueerrors.KindBusy, string(id))
	}

	delete(m.jobs, id)
	return nil
}

// Run fetches a copy of id's job descriptor, looks up the Func
// registered for its Routine.Kind, and invokes it outside the store
// lock so a slow or blocked routine never stalls other store access.
func (m *memoryBackend) Run(rctx context.Context, id job.ID, reg *routine.Registry, userCtx any, sender routine.Sender) ([]byte, error) {
	m.mu.RLock()
	rec, err := m.get(id)
	if err != nil {
		m.mu.RUnlock()
		return nil, err
	}
	j := rec.Job
	m.mu.RUnlock()

	fn, ok := reg.Lookup(j.Routine.Kind)
	if !ok {
		return nil, queueerrors.Custom(errUnregisteredKind(j.Routine.Kind))
	}

	return fn(rctx, j, sender, userCtx)
}

func (m *memoryBackend) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.jobs {
		if rec.Job.Expire.Kind == job.ExpireNever {
			continue
		}
		if rec.ExpiresAt.IsZero() || rec.ExpiresAt.After(now) {
			continue
		}
		delete(m.jobs, id)
		removed++
	}
	return removed
}

func (m *memoryBackend) Close() error { return nil }

type unregisteredKindError string

func (e unregisteredKindError) Error() string { return "no routine registered for kind " + string(e) }

func errUnregisteredKind(kind string) error { return unregisteredKindError(kind) }
