package xlog

import (
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureWriter records every emitted event's raw JSON line, the way
// example_test.go's ExampleEvent_Bytes_customWriterImplementation does
// with a fmt.Printf writer - but collecting instead of printing, so
// assertions can inspect it.
type captureWriter struct {
	lines []string
}

func (w *captureWriter) Write(e *stumpy.Event) error {
	w.lines = append(w.lines, string(e.Bytes()))
	return nil
}

func newTestLogger(w *captureWriter) *Logger {
	return &Logger{
		Logger: stumpy.L.New(
			stumpy.L.WithLevel(logiface.LevelTrace),
			stumpy.L.WithStumpy(stumpy.WithTimeField("")),
			stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](w.Write)),
		),
	}
}

func TestLoggerEmitsMessageAndFields(t *testing.T) {
	w := &captureWriter{}
	log := newTestLogger(w)

	log.Info().Str("addr", "127.0.0.1:9090").Log("listening")

	require.Len(t, w.lines, 1)
	assert.Contains(t, w.lines[0], `"msg":"listening"`)
	assert.Contains(t, w.lines[0], `"addr"`)
	assert.Contains(t, w.lines[0], "127.0.0.1:9090")
}

func TestComponentTagsEveryEvent(t *testing.T) {
	w := &captureWriter{}
	log := newTestLogger(w)
	tcp := log.Component("tcp")

	tcp.Warning().Log("accept backlog full")
	log.Info().Log("untagged line")

	require.Len(t, w.lines, 2)
	assert.Contains(t, w.lines[0], `"component"`)
	assert.Contains(t, w.lines[0], "tcp")
	assert.NotContains(t, w.lines[1], `"component"`)
}

func TestTaskAdapterForwardsLevelsAndFields(t *testing.T) {
	w := &captureWriter{}
	adapter := TaskAdapter{Log: newTestLogger(w)}

	adapter.Info("worker started", "threadIndex", 3)
	adapter.Warn("slow poll", "elapsedMs", 42)
	adapter.Error("fiber panic", "err", errors.New("boom"))

	require.Len(t, w.lines, 3)
	assert.Contains(t, w.lines[0], `"msg":"worker started"`)
	assert.Contains(t, w.lines[0], "threadIndex")
	assert.Contains(t, w.lines[1], `"msg":"slow poll"`)
	assert.Contains(t, w.lines[2], `"msg":"fiber panic"`)
	assert.Contains(t, w.lines[2], "boom")
}

func TestTaskAdapterIgnoresOddTrailingKey(t *testing.T) {
	w := &captureWriter{}
	adapter := TaskAdapter{Log: newTestLogger(w)}

	adapter.Info("no value for this key", "dangling")

	require.Len(t, w.lines, 1)
	assert.Contains(t, w.lines[0], `"msg":"no value for this key"`)
	assert.NotContains(t, w.lines[0], "dangling")
}
