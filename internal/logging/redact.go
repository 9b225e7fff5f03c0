package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// Sanitizer redacts credentials from log output. Crash handling touches
// endpoint URLs, environment dumps, and attached files; any of those can
// carry secrets that must not survive into receiver logs.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// Intake keys are 32 hex chars; the rest are the usual suspects found in
// environments and URLs.
var defaultPatternSources = []string{
	`(?i)dd[_-]?api[_-]?key["'\s:=]+[a-f0-9]{32}`,
	`(?i)api_key=[a-f0-9]{32}`,
	`AKIA[0-9A-Z]{16}`,
	`gh[pous]_[A-Za-z0-9]{36}`,
	`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
	`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	`(?i)(secret|token)["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	`(?i)password["'\s:=]+[^\s"']{8,}`,
}

// NewSanitizer creates a sanitizer with the default pattern set.
func NewSanitizer() *Sanitizer {
	s := &Sanitizer{redacted: "[REDACTED]"}
	for _, src := range defaultPatternSources {
		s.patterns = append(s.patterns, regexp.MustCompile(src))
	}
	return s
}

// Sanitize replaces every pattern match in input with the placeholder.
func (s *Sanitizer) Sanitize(input string) string {
	for _, re := range s.patterns {
		input = re.ReplaceAllString(input, s.redacted)
	}
	return input
}

// AddPattern registers an extra redaction pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// SetRedactedPlaceholder replaces the default "[REDACTED]" marker.
func (s *Sanitizer) SetRedactedPlaceholder(placeholder string) {
	s.redacted = placeholder
}

// redactingHandler runs every message and string attribute through the
// sanitizer before the wrapped handler writes it.
type redactingHandler struct {
	next slog.Handler
	red  *Sanitizer
}

func newRedactingHandler(next slog.Handler, red *Sanitizer) redactingHandler {
	return redactingHandler{next: next, red: red}
}

func (h redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.red.Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.clean(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return redactingHandler{next: h.next.WithAttrs(h.cleanAll(attrs)), red: h.red}
}

func (h redactingHandler) WithGroup(name string) slog.Handler {
	return redactingHandler{next: h.next.WithGroup(name), red: h.red}
}

func (h redactingHandler) clean(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.red.Sanitize(a.Value.String()))
	case slog.KindGroup:
		a.Value = slog.GroupValue(h.cleanAll(a.Value.Group())...)
	}
	return a
}

func (h redactingHandler) cleanAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.clean(a)
	}
	return out
}
