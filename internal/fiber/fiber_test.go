package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiberRunsToCompletionWithoutSuspend(t *testing.T) {
	ran := false
	f := New(0)
	f.Start(func(f *Fiber) {
		ran = true
	})
	assert.True(t, ran)
	assert.Equal(t, Terminated, f.State())
}

func TestFiberSuspendResumeAlternation(t *testing.T) {
	var trace []string
	f := New(0)
	f.Start(func(f *Fiber) {
		trace = append(trace, "a")
		f.Suspend()
		trace = append(trace, "b")
		f.Suspend()
		trace = append(trace, "c")
	})
	assert.Equal(t, Suspended, f.State())
	assert.Equal(t, []string{"a"}, trace)

	f.Resume()
	assert.Equal(t, Suspended, f.State())
	assert.Equal(t, []string{"a", "b"}, trace)

	f.Resume()
	assert.Equal(t, Terminated, f.State())
	assert.Equal(t, []string{"a", "b", "c"}, trace)
}

func TestFiberResumeOnSuspendedOnlyPanicsOtherwise(t *testing.T) {
	f := New(0)
	assert.Panics(t, func() { f.Resume() }) // NotStarted

	f.Start(func(f *Fiber) {})
	require.Equal(t, Terminated, f.State())
	assert.Panics(t, func() { f.Resume() }) // Terminated
}

func TestFiberSuspendOutsideExecutingPanics(t *testing.T) {
	f := New(0)
	assert.Panics(t, func() { f.Suspend() })
}
