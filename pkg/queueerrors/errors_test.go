package queueerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := New(KindUnknownJob, "job abc not found")
	assert.Equal(t, "UNKNOWN_JOB: job abc not found", err.Error())

	wrapped := Wrap(KindBusy, "job running", errors.New("io timeout"))
	assert.Equal(t, "BUSY: job running: io timeout", wrapped.Error())
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New(KindUnknownJob, "first message")
	b := New(KindUnknownJob, "a completely different message")
	c := New(KindBusy, "first message")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(New(KindAlreadyExists, "dup"))
	assert.True(t, ok)
	assert.Equal(t, KindAlreadyExists, k)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestCustomPreservesExistingKind(t *testing.T) {
	original := New(KindUnknownJob, "nope")
	assert.Same(t, original, Custom(original))
}

func TestCustomWrapsPlainError(t *testing.T) {
	plain := errors.New("routine blew up")
	wrapped := Custom(plain)

	assert.True(t, Is(wrapped, KindCustom))
	assert.ErrorIs(t, wrapped, plain)
}

func TestCustomNil(t *testing.T) {
	assert.Nil(t, Custom(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(KindSendFailed, "send failed", cause)
	assert.ErrorIs(t, wrapped, cause)
}
