// Package logging is the receiver-side logger. The collector's fault path
// never logs — logging allocates — so everything here runs in the receiver
// process or on the collector's normal path.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Logger wraps slog.Logger with report-scoped helpers and redaction.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
}

// DefaultConfig logs to stderr: stdout belongs to the handoff protocol and
// file-endpoint reports.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "auto", Output: os.Stderr}
}

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New creates a logger. Every record passes through the sanitizer so an
// API key embedded in an endpoint URL or env dump never reaches the log.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level, ok := levelNames[cfg.Level]
	if !ok {
		level = slog.LevelInfo
	}
	sanitizer := NewSanitizer()
	return &Logger{
		Logger:    slog.New(newRedactingHandler(buildHandler(cfg.Format, out, level, cfg.AddSource), sanitizer)),
		sanitizer: sanitizer,
	}
}

func buildHandler(format string, out io.Writer, level slog.Level, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	useText := format == "text"
	if format != "json" && format != "text" {
		// auto: human-readable on a terminal, json when redirected
		useText = isTerminal(out)
	}
	if useText {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
	}
}

func (l *Logger) scoped(inner *slog.Logger) *Logger {
	return &Logger{Logger: inner, sanitizer: l.sanitizer}
}

// WithReport returns a logger scoped to one crash report.
func (l *Logger) WithReport(uuid string) *Logger {
	return l.scoped(l.Logger.With("report_uuid", uuid))
}

// WithSection returns a logger scoped to a handoff stream section.
func (l *Logger) WithSection(section string) *Logger {
	return l.scoped(l.Logger.With("section", section))
}

// WithCrashedPID returns a logger scoped to the monitored process.
func (l *Logger) WithCrashedPID(pid int32) *Logger {
	return l.scoped(l.Logger.With("crashed_pid", pid))
}

// With returns a logger with custom fields.
func (l *Logger) With(args ...any) *Logger {
	return l.scoped(l.Logger.With(args...))
}

// Sanitize redacts sensitive material using the logger's sanitizer.
func (l *Logger) Sanitize(input string) string {
	return l.sanitizer.Sanitize(input)
}
