package endpoint

import (
	"bufio"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xynqdb/xynq/internal/slang"
	"github.com/xynqdb/xynq/internal/storage"
	"github.com/xynqdb/xynq/internal/task"
	"github.com/xynqdb/xynq/internal/types"
)

func newTestDeps() (*slang.Env, *slang.Deps) {
	s := storage.NewStorage()
	tm := types.NewTypeManager(types.Int64Schema, types.Uint64Schema, types.Float64Schema, types.StringSchema)
	deps := &slang.Deps{
		Storage:     s,
		Types:       tm.CreateVault(),
		TypeManager: tm,
		NopCount:    slang.NewNopCounter(),
	}
	env := slang.NewDefaultEnv(slang.NewJSONPayloadHandler(s))
	return env, deps
}

// withTestContext starts a single-thread TaskManager just long enough
// to hand fn a real *task.Context, the way task_test.go does for every
// test that needs one.
func withTestContext(t *testing.T, fn func(tc *task.Context)) {
	t.Helper()
	m, err := task.New(task.Config{NumThreads: 1, MaxEventsAtOnce: 16})
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, m.AddEntryPoint(func(tc *task.Context) {
		defer close(done)
		fn(tc)
	}))

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = m.Run()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("entry point never finished")
	}

	m.Stop()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("TaskManager.Run did not return after Stop")
	}
}

func TestServeReplEchoesArithmeticResult(t *testing.T) {
	env, deps := newTestDeps()
	client, server := net.Pipe()
	defer client.Close()

	var stopped atomic.Bool
	withTestContext(t, func(tc *task.Context) {
		ep := New("tcp://test", server, env, deps)
		go func() {
			ep.Serve(tc)
			stopped.Store(true)
		}()

		_, err := client.Write([]byte("(+ 1 2)\n"))
		require.NoError(t, err)

		line, err := bufio.NewReader(client).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "3\n", line)

		client.Close()
	})
}

func TestServeReplSwitchesToNoneOnClose(t *testing.T) {
	env, deps := newTestDeps()
	client, server := net.Pipe()

	withTestContext(t, func(tc *task.Context) {
		ep := New("tcp://test", server, env, deps)
		client.Close()
		ep.Serve(tc)
		assert.Equal(t, ModeNone, ep.Mode())
	})
}

func TestServeReplRunsMultipleRequestsSequentially(t *testing.T) {
	env, deps := newTestDeps()
	client, server := net.Pipe()
	defer client.Close()

	withTestContext(t, func(tc *task.Context) {
		ep := New("tcp://test", server, env, deps)
		go ep.Serve(tc)

		reader := bufio.NewReader(client)

		_, err := client.Write([]byte("(nop)\n"))
		require.NoError(t, err)
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "[]\n", line)

		_, err = client.Write([]byte("(nop)\n"))
		require.NoError(t, err)
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "[]\n", line)

		assert.Equal(t, int64(2), deps.NopCount.Load())
		client.Close()
	})
}
