package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to ready", StatusPending, StatusReady, true},
		{"ready to running", StatusReady, StatusRunning, true},
		{"running to finished", StatusRunning, StatusFinished, true},
		{"pending to finished (admission failure)", StatusPending, StatusFinished, true},
		{"no self transition", StatusRunning, StatusRunning, false},
		{"no back transition", StatusRunning, StatusReady, false},
		{"no skip transition", StatusPending, StatusRunning, false},
		{"finished is terminal", StatusFinished, StatusReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestProgressionClamped(t *testing.T) {
	p := Progression{Step: 7, Steps: 3}.Clamped()
	assert.Equal(t, uint64(3), p.Step)

	p = Progression{Step: 2, Steps: 5}.Clamped()
	assert.Equal(t, uint64(2), p.Step)
}

func TestNewIDUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a.String())
}

func TestExpirePolicyConstructors(t *testing.T) {
	assert.Equal(t, ExpirePolicy{Kind: ExpireNever}, Never())
	assert.Equal(t, ExpirePolicy{Kind: ExpireOnResultFetch, After: time.Second}, OnResultFetch(time.Second))
	assert.Equal(t, ExpirePolicy{Kind: ExpireTimeout, After: time.Minute}, Timeout(time.Minute))
}

func TestNewRecordSetsTimeoutDeadline(t *testing.T) {
	now := time.Now()
	j := New(Routine{Kind: "nop"}, nil, Timeout(time.Second))

	r := NewRecord(j, now)

	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, now.Add(time.Second), r.ExpiresAt)
}

func TestNewRecordNoDeadlineForNeverOrOnFetch(t *testing.T) {
	now := time.Now()

	r := NewRecord(New(Routine{Kind: "nop"}, nil, Never()), now)
	assert.True(t, r.ExpiresAt.IsZero())

	r = NewRecord(New(Routine{Kind: "nop"}, nil, OnResultFetch(time.Second)), now)
	assert.True(t, r.ExpiresAt.IsZero())
}

func TestRecordCopyIsIndependent(t *testing.T) {
	r := NewRecord(New(Routine{Kind: "nop"}, nil, Never()), time.Now())
	r.Result = []byte("hello")

	cp := r.Copy()
	cp.Result[0] = 'H'

	assert.Equal(t, byte('h'), r.Result[0])
}

func TestRecordIsRunning(t *testing.T) {
	r := NewRecord(New(Routine{Kind: "nop"}, nil, Never()), time.Now())
	assert.False(t, r.IsRunning())

	r.Status = StatusReady
	assert.True(t, r.IsRunning())

	r.Status = StatusRunning
	assert.True(t, r.IsRunning())

	r.Status = StatusFinished
	assert.False(t, r.IsRunning())
}
