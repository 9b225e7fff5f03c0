package crashinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// DataSchemaVersion identifies the wire format of serialized reports.
// Bump when the JSON layout changes in a way receivers must know about.
const DataSchemaVersion = "1.4"

// ErrorKind classifies what terminated the monitored process.
type ErrorKind string

const (
	ErrorKindPanic              ErrorKind = "Panic"
	ErrorKindUnhandledException ErrorKind = "UnhandledException"
	ErrorKindSignal             ErrorKind = "Signal"
	ErrorKindUserRequested      ErrorKind = "UserRequested"
)

// Metadata describes the library producing the report.
type Metadata struct {
	LibraryName    string   `json:"library_name"`
	LibraryVersion string   `json:"library_version"`
	Family         string   `json:"family"`
	Tags           []string `json:"tags,omitempty"`
}

// UnknownMetadata is used when a report must be emitted before the
// embedder ever supplied metadata.
func UnknownMetadata() Metadata {
	return Metadata{
		LibraryName:    "unknown",
		LibraryVersion: "unknown",
		Family:         "unknown",
	}
}

// ProcInfo identifies the crashed process.
type ProcInfo struct {
	PID int32 `json:"pid"`
}

// OSInfo describes the host the crash occurred on.
type OSInfo struct {
	OSType       string `json:"os_type"`
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
	Bitness      string `json:"bitness"`
}

// UnknownOSInfo fills in what the runtime knows without touching the OS.
func UnknownOSInfo() OSInfo {
	bitness := "32"
	if strconv.IntSize == 64 {
		bitness = "64"
	}
	return OSInfo{
		OSType:       runtime.GOOS,
		Version:      "unknown",
		Architecture: runtime.GOARCH,
		Bitness:      bitness,
	}
}

// Timestamp is a POSIX epoch instant with nanosecond precision.
type Timestamp struct {
	Secs  int64 `json:"secs"`
	Nanos int64 `json:"nanos"`
}

// TimestampNow captures the current instant.
func TimestampNow() Timestamp {
	return TimestampFromTime(time.Now())
}

// TimestampFromTime converts a time.Time.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Secs: t.Unix(), Nanos: int64(t.Nanosecond())}
}

// Time converts back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Secs, ts.Nanos).UTC()
}

// IsZero reports whether the timestamp was never assigned.
func (ts Timestamp) IsZero() bool {
	return ts.Secs == 0 && ts.Nanos == 0
}

// Span is a 128-bit trace or span identifier, rendered as a hex string so it
// survives JSON number precision limits. Values wider than 64 bits are
// supplied as a high/low pair.
type Span struct {
	ID         string `json:"id"`
	ThreadName string `json:"thread_name,omitempty"`
}

// SpanID formats a high/low pair the way the recorder stores them.
func SpanID(high, low uint64) string {
	if high == 0 {
		return fmt.Sprintf("0x%016x", low)
	}
	return fmt.Sprintf("0x%016x%016x", high, low)
}

// ThreadData is one thread's contribution to the report: its identity and
// the stack it was executing when the process died.
type ThreadData struct {
	Name    string      `json:"name"`
	Crashed bool        `json:"crashed"`
	State   string      `json:"state,omitempty"`
	Stack   *StackTrace `json:"stack"`
}

// CrashInfo is the finished crash report. It is immutable once built; the
// only sanctioned way to create one is Builder.Build.
type CrashInfo struct {
	DataSchemaVersion string              `json:"data_schema_version"`
	UUID              string              `json:"uuid"`
	Timestamp         Timestamp           `json:"timestamp"`
	Incomplete        bool                `json:"incomplete"`
	ErrorKind         ErrorKind           `json:"error_kind"`
	Message           string              `json:"message,omitempty"`
	Metadata          Metadata            `json:"metadata"`
	Counters          map[string]int64    `json:"counters,omitempty"`
	Tags              map[string]string   `json:"tags,omitempty"`
	ProcInfo          *ProcInfo           `json:"proc_info,omitempty"`
	OSInfo            OSInfo              `json:"os_info"`
	SigInfo           *SigInfo            `json:"sig_info,omitempty"`
	SpanIDs           []Span              `json:"span_ids,omitempty"`
	TraceIDs          []Span              `json:"trace_ids,omitempty"`
	Threads           []ThreadData        `json:"threads,omitempty"`
	Files             map[string][]string `json:"files,omitempty"`
	LogMessages       []string            `json:"log_messages,omitempty"`
}

// MarshalJSONBytes serializes the report for transport.
func (c *CrashInfo) MarshalJSONBytes() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling crash report: %w", err)
	}
	return data, nil
}

// ParseCrashInfo deserializes a report previously produced by
// MarshalJSONBytes.
func ParseCrashInfo(data []byte) (*CrashInfo, error) {
	var c CrashInfo
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing crash report: %w", err)
	}
	return &c, nil
}

// WriteFile writes the serialized report to path, appending if it exists.
func (c *CrashInfo) WriteFile(path string) error {
	data, err := c.MarshalJSONBytes()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// CrashedThread returns the thread flagged as crashed, or nil.
func (c *CrashInfo) CrashedThread() *ThreadData {
	for i := range c.Threads {
		if c.Threads[i].Crashed {
			return &c.Threads[i]
		}
	}
	return nil
}
