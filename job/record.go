package job

import "time"

// Record is the store-owned aggregate: the immutable Job descriptor
// plus everything that changes over the job's lifetime. Only the
// store mutates a Record in place; callers only ever see copies.
type Record struct {
	Job Job

	Status      Status
	Progression Progression

	// Result holds the routine's success payload; empty until
	// Status is Finished(Success).
	Result       []byte
	ResultStatus ResultStatus

	CreatedAt time.Time

	// ExpiresAt is set once the record's ExpirePolicy has a concrete
	// deadline (on admission for Timeout, on first result fetch for
	// OnResultFetch). Zero means "no deadline yet".
	ExpiresAt time.Time

	// ResultFetchedAt records the instant job_result first succeeded;
	// zero if the result has never been read.
	ResultFetchedAt time.Time
}

// NewRecord admits j into the store as a fresh Pending record.
func NewRecord(j Job, now time.Time) *Record {
	r := &Record{
		Job:       j,
		Status:    StatusPending,
		CreatedAt: now,
	}
	if j.Expire.Kind == ExpireTimeout {
		r.ExpiresAt = now.Add(j.Expire.After)
	}
	return r
}

// Copy returns a value copy safe to hand to callers outside the
// store's lock, duplicating the result slice so neither side can
// mutate the other's view.
func (r *Record) Copy() Record {
	cp := *r
	if r.Result != nil {
		cp.Result = append([]byte(nil), r.Result...)
	}
	return cp
}

// IsRunning reports whether the record cannot currently be removed.
func (r *Record) IsRunning() bool {
	return r.Status == StatusReady || r.Status == StatusRunning
}
