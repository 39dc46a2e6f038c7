package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the CLI logger. Every line carries a centisecond
// timestamp so fetch and resolve durations can be read off the output.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// stage times one phase of a run (fetch, resolve, workspace index).
// Starting it logs at debug; done logs the outcome at info with the
// phase name and elapsed time as fields:
//
//	INFO Resolved instances stage=resolve count=3 elapsed=12ms
type stage struct {
	logger *log.Logger
	name   string
	start  time.Time
}

func startStage(l *log.Logger, name string) *stage {
	l.Debug("stage started", "stage", name)
	return &stage{logger: l, name: name, start: time.Now()}
}

func (s *stage) done(msg string, keyvals ...any) {
	fields := append([]any{"stage", s.name}, keyvals...)
	fields = append(fields, "elapsed", time.Since(s.start).Round(time.Millisecond))
	s.logger.Info(msg, fields...)
}

type loggerKey struct{}

// withLogger attaches l to ctx for the subcommands run under it.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFromContext returns the logger set by withLogger, or log.Default
// when a command runs outside the root command's PersistentPreRun.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
