// Package cli implements the pyllemi command-line interface.
//
// The root command resolves the Python imports of the given BUILD package
// directories and rewrites the deps of their python rules. Further commands
// export the resolved dependency graph, watch packages for changes and
// manage the query cache. The CLI is built using cobra and logs through
// charmbracelet/log.
//
// # Commands
//
//   - resolve: sync the deps of BUILD packages (the root default)
//   - graph: emit the package dependency graph as JSON, DOT or SVG
//   - watch: re-resolve packages when their sources change
//   - cache: manage the persistent query cache
//
// # Logging
//
// Warnings and errors are logged by default. Repeat -v for more: -v logs at
// info level, -vv at debug level. Without -v, PYLLEMI_LOG_LEVEL or the
// logLevel config key selects the level. Loggers are passed through
// context.Context.
package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// levelForVerbosity maps the number of -v flags to a log level.
func levelForVerbosity(n int) log.Level {
	switch {
	case n <= 0:
		return log.WarnLevel
	case n == 1:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

// parseLevel accepts level names ("debug", "WARNING") and the numeric
// levels of Python's logging module ("10", "30").
func parseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning", "30":
		return log.WarnLevel, nil
	case "critical", "50":
		return log.FatalLevel, nil
	case "10":
		return log.DebugLevel, nil
	case "20":
		return log.InfoLevel, nil
	case "40":
		return log.ErrorLevel, nil
	}
	return log.ParseLevel(s)
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg at debug level along with the elapsed time since progress
// was created, rounded to the millisecond.
func (p *progress) done(msg string) {
	p.logger.Debugf("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
