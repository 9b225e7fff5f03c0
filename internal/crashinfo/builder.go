package crashinfo

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ErrBuilderConsumed is returned by every method once Build has been called.
var ErrBuilderConsumed = errors.New("crash report builder already consumed")

// Builder assembles a CrashInfo incrementally. Every With* method is
// additive and individually fallible: a bad field is reported to the caller
// but never aborts the report as a whole. Build is a one-shot transfer —
// the builder is invalid afterwards.
//
// A Builder is owned by exactly one logical writer at a time (the faulting
// thread, then the receiver) and is not safe for concurrent use.
type Builder struct {
	consumed bool

	uuid      string
	timestamp Timestamp

	errorKind ErrorKind
	message   string
	metadata  *Metadata
	counters  map[string]int64
	tags      map[string]string
	procInfo  *ProcInfo
	osInfo    *OSInfo
	sigInfo   *SigInfo
	spanIDs   []Span
	traceIDs  []Span
	threads   []ThreadData
	stack     *StackTrace
	files     map[string][]string
	logs      []string
}

// NewBuilder creates a builder. UUID and timestamp are assigned exactly
// once, here, so retries and partial uploads stay correlated.
func NewBuilder() *Builder {
	return &Builder{
		uuid:      uuid.NewString(),
		timestamp: TimestampNow(),
	}
}

func (b *Builder) checkLive() error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	return nil
}

// WithErrorKind records what kind of fault terminated the process.
func (b *Builder) WithErrorKind(kind ErrorKind) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.errorKind = kind
	return nil
}

// WithMessage records a human-readable description of the fault.
func (b *Builder) WithMessage(message string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.message = message
	return nil
}

// WithMetadata records the library identity.
func (b *Builder) WithMetadata(m Metadata) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.metadata = &m
	return nil
}

// WithCounter adds a single named counter.
func (b *Builder) WithCounter(name string, value int64) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if name == "" {
		return errors.New("empty counter name")
	}
	if b.counters == nil {
		b.counters = make(map[string]int64)
	}
	b.counters[name] = value
	return nil
}

// WithTag adds a single key=value tag.
func (b *Builder) WithTag(key, value string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("empty tag key")
	}
	if b.tags == nil {
		b.tags = make(map[string]string)
	}
	b.tags[key] = value
	return nil
}

// WithProcInfo records the crashed process identity.
func (b *Builder) WithProcInfo(p ProcInfo) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.procInfo = &p
	return nil
}

// WithOSInfo records host information.
func (b *Builder) WithOSInfo(o OSInfo) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.osInfo = &o
	return nil
}

// WithSigInfo records the fatal signal details.
func (b *Builder) WithSigInfo(s SigInfo) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.sigInfo = &s
	return nil
}

// WithSpanID appends an in-flight span identifier.
func (b *Builder) WithSpanID(s Span) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.spanIDs = append(b.spanIDs, s)
	return nil
}

// WithTraceID appends an in-flight trace identifier.
func (b *Builder) WithTraceID(s Span) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.traceIDs = append(b.traceIDs, s)
	return nil
}

// WithThread appends a thread record.
func (b *Builder) WithThread(t ThreadData) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.threads = append(b.threads, t)
	return nil
}

// WithStack sets the crashing thread's stack trace.
func (b *Builder) WithStack(s *StackTrace) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.stack = s
	return nil
}

// WithStackFrame appends one frame to the crashing thread's stack,
// creating the stack on first use.
func (b *Builder) WithStackFrame(frame StackFrame) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if b.stack == nil {
		b.stack = NewStackTrace()
	}
	return b.stack.PushFrame(frame)
}

// WithStackComplete seals the crashing thread's stack.
func (b *Builder) WithStackComplete() error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if b.stack == nil {
		return errors.New("no stack to mark complete")
	}
	b.stack.SetComplete()
	return nil
}

// WithFileContents attaches auxiliary file contents by path.
func (b *Builder) WithFileContents(path string, lines []string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if b.files == nil {
		b.files = make(map[string][]string)
	}
	b.files[path] = lines
	return nil
}

// WithFile reads a file from disk and attaches its contents.
func (b *Builder) WithFile(path string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("attaching %s: %w", path, err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return b.WithFileContents(path, lines)
}

// WithLogMessage appends a diagnostic message to ship with the report.
func (b *Builder) WithLogMessage(msg string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.logs = append(b.logs, msg)
	return nil
}

// WithTimestamp overrides the creation timestamp. Used by the receiver when
// reconstructing a report whose collector recorded the fault instant.
func (b *Builder) WithTimestamp(ts Timestamp) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	b.timestamp = ts
	return nil
}

// WithUUID overrides the assigned UUID. Used by the receiver when the
// collector already assigned one.
func (b *Builder) WithUUID(id string) error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid report uuid: %w", err)
	}
	b.uuid = id
	return nil
}

// HasCrashData reports whether anything fault-specific was recorded. The
// receiver uses this to distinguish "parent exited cleanly" from a crash.
func (b *Builder) HasCrashData() bool {
	return b.sigInfo != nil || b.stack != nil || b.errorKind != "" || b.message != ""
}

// Build consumes the builder and yields the immutable report. incomplete
// marks reports that had to be emitted before the collector finished —
// partial data still beats no data.
func (b *Builder) Build(incomplete bool) (*CrashInfo, error) {
	if err := b.checkLive(); err != nil {
		return nil, err
	}
	b.consumed = true

	metadata := UnknownMetadata()
	if b.metadata != nil {
		metadata = *b.metadata
	}
	osInfo := UnknownOSInfo()
	if b.osInfo != nil {
		osInfo = *b.osInfo
	}
	kind := b.errorKind
	if kind == "" {
		kind = ErrorKindSignal
	}

	threads := b.threads
	if b.stack != nil {
		// The crashing thread leads the list.
		crashed := ThreadData{Name: "main", Crashed: true, Stack: b.stack}
		threads = append([]ThreadData{crashed}, threads...)
	}

	return &CrashInfo{
		DataSchemaVersion: DataSchemaVersion,
		UUID:              b.uuid,
		Timestamp:         b.timestamp,
		Incomplete:        incomplete,
		ErrorKind:         kind,
		Message:           b.message,
		Metadata:          metadata,
		Counters:          b.counters,
		Tags:              b.tags,
		ProcInfo:          b.procInfo,
		OSInfo:            osInfo,
		SigInfo:           b.sigInfo,
		SpanIDs:           b.spanIDs,
		TraceIDs:          b.traceIDs,
		Threads:           threads,
		Files:             b.files,
		LogMessages:       b.logs,
	}, nil
}
