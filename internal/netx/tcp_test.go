package netx

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xynqdb/xynq/internal/task"
)

// dialWithRetry dials addr, retrying briefly while the accept loop's
// task has not yet reached Bind/Listen.
func dialWithRetry(t *testing.T, addr string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func echoHandler(tc *task.Context, name string, s *Stream) {
	buf := make([]byte, 64)
	for {
		n, err := s.Read(buf)
		if err != nil {
			return
		}
		if _, werr := s.Write(buf[:n]); werr != nil {
			return
		}
	}
}

func TestListenAcceptsAndEchoes(t *testing.T) {
	m, err := task.New(task.Config{NumThreads: 1, MaxEventsAtOnce: 16})
	require.NoError(t, err)

	require.NoError(t, Listen(m, []string{"127.0.0.1:18534"}, echoHandler, DefaultParameters()))

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = m.Run()
	}()
	defer func() {
		m.Stop()
		select {
		case <-runDone:
		case <-time.After(2 * time.Second):
			t.Fatal("TaskManager.Run did not return after Stop")
		}
	}()

	conn := dialWithRetry(t, "127.0.0.1:18534")
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestListenRejectsInvalidAddress(t *testing.T) {
	m, err := task.New(task.Config{NumThreads: 1, MaxEventsAtOnce: 16})
	require.NoError(t, err)

	err = Listen(m, []string{"not-an-address"}, echoHandler, DefaultParameters())
	require.Error(t, err)
}

func TestStreamReadReturnsEOFOnPeerClose(t *testing.T) {
	m, err := task.New(task.Config{NumThreads: 1, MaxEventsAtOnce: 16})
	require.NoError(t, err)

	closed := make(chan struct{})
	handler := func(tc *task.Context, name string, s *Stream) {
		buf := make([]byte, 64)
		_, err := s.Read(buf)
		assert.True(t, errors.Is(err, io.EOF))
		close(closed)
	}
	require.NoError(t, Listen(m, []string{"127.0.0.1:18535"}, handler, DefaultParameters()))

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = m.Run()
	}()
	defer func() {
		m.Stop()
		select {
		case <-runDone:
		case <-time.After(2 * time.Second):
			t.Fatal("TaskManager.Run did not return after Stop")
		}
	}()

	conn := dialWithRetry(t, "127.0.0.1:18535")
	conn.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never observed peer close")
	}
}
