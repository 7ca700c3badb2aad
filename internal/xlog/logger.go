// Package xlog is the structured logging facade every other package
// logs through. It wraps github.com/joeycumines/logiface (the generic,
// chainable event builder) with github.com/joeycumines/stumpy (a
// zero-allocation-leaning JSON event backend) - both are the teacher's
// own sibling logging packages, used here in place of the original's
// bare stderr fprintf calls.
//
// Grounded on eventloop/logging.go's "every component tags its log
// lines with a category" shape and sql/export/export.go's chain-call
// usage (`x.Logger.Debug().Log(...)`), but built on the teacher's own
// real logging stack rather than its hand-rolled LogEntry/Logger pair.
package xlog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type every xynqd component holds. It
// embeds *logiface.Logger[*stumpy.Event] so the full Build/Emerg/Alert/
// .../Trace chain-call surface is available directly.
type Logger struct {
	*logiface.Logger[*stumpy.Event]
}

// Option configures a Logger, mirroring the functional-options idiom
// the teacher uses throughout (eventloop/options.go).
type Option func(*config)

type config struct {
	writer     io.Writer
	level      logiface.Level
	timeField  string
	levelField string
}

// WithWriter sets the destination for log output. Defaults to
// os.Stderr, matching stumpy.WithStumpy's own default.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// WithLevel sets the minimum enabled level. Defaults to
// logiface.LevelInformational.
func WithLevel(level logiface.Level) Option {
	return func(c *config) { c.level = level }
}

// WithTimeField sets the JSON field name stumpy uses for the event
// timestamp. An empty string (the zero value) disables the time
// field entirely, matching stumpy.WithTimeField(``).
func WithTimeField(field string) Option {
	return func(c *config) { c.timeField = field }
}

// WithLevelField sets the JSON field name stumpy uses for the level.
// Defaults to "lvl".
func WithLevelField(field string) Option {
	return func(c *config) { c.levelField = field }
}

// New builds a Logger writing newline-delimited JSON via stumpy.
func New(opts ...Option) *Logger {
	c := config{
		writer:     os.Stderr,
		level:      logiface.LevelInformational,
		levelField: "lvl",
	}
	for _, o := range opts {
		o(&c)
	}

	stumpyOpts := []stumpy.Option{
		stumpy.WithWriter(c.writer),
		stumpy.WithTimeField(c.timeField),
		stumpy.WithLevelField(c.levelField),
	}

	return &Logger{
		Logger: stumpy.L.New(
			stumpy.L.WithLevel(c.level),
			stumpy.L.WithStumpy(stumpyOpts...),
		),
	}
}

// Component returns a sub-logger that stamps every event it emits
// with a "component" field set to name, the tagging mechanism that
// replaces the original's ad-hoc per-file log prefixes (e.g. "[tcp]",
// "[reactor]"). Built on logiface's own Clone/Context mechanism - a
// sub-logger is just a Logger with a baked-in modifier.
func (l *Logger) Component(name string) *Logger {
	ctx := l.Logger.Clone()
	if ctx == nil {
		return l
	}
	return &Logger{Logger: ctx.Str("component", name).Logger()}
}

// TaskAdapter adapts a Logger to internal/task.Logger's minimal
// Info/Warn/Error surface, so a Logger can be handed into
// task.Config.Log without internal/task importing
// internal/xlog (which would be a backwards dependency: task is a
// lower layer than logging policy).
type TaskAdapter struct {
	Log *Logger
}

func (a TaskAdapter) Info(msg string, kv ...any)  { a.log(a.Log.Info(), msg, kv) }
func (a TaskAdapter) Warn(msg string, kv ...any)  { a.log(a.Log.Warning(), msg, kv) }
func (a TaskAdapter) Error(msg string, kv ...any) { a.log(a.Log.Err(), msg, kv) }

func (a TaskAdapter) log(b *logiface.Builder[*stumpy.Event], msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if err, isErr := kv[i+1].(error); isErr {
			b = b.Str(key, err.Error())
			continue
		}
		b = b.Any(key, kv[i+1])
	}
	b.Log(msg)
}
