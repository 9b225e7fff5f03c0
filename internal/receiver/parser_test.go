package receiver

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/libdatadog/internal/crashinfo"
)

// blockingReader stands in for a parent that wedged mid-write: reads hang
// until the test releases them.
type blockingReader struct {
	release chan struct{}
}

func (r blockingReader) Read([]byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

func wedgedStream(t *testing.T, head string) io.Reader {
	t.Helper()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	return io.MultiReader(strings.NewReader(head), blockingReader{release: release})
}

func sampleStream() string {
	return strings.Join([]string{
		"DD_CRASHTRACK_BEGIN_CONFIG",
		`{"endpoint":"file:///tmp/crash.json","resolve_frames":"disabled","timeout_ms":5000}`,
		"DD_CRASHTRACK_END_CONFIG",
		"DD_CRASHTRACK_BEGIN_METADATA",
		`{"library_name":"dd-trace-go","library_version":"1.62.0","family":"go"}`,
		"DD_CRASHTRACK_END_METADATA",
		"DD_CRASHTRACK_BEGIN_ERROR_KIND",
		`"Signal"`,
		"DD_CRASHTRACK_END_ERROR_KIND",
		"DD_CRASHTRACK_BEGIN_SIGINFO",
		`{"si_signo":11,"si_code":1,"si_addr":"0x0000000000000010"}`,
		"DD_CRASHTRACK_END_SIGINFO",
		"DD_CRASHTRACK_BEGIN_PROCINFO",
		`{"pid":4242}`,
		"DD_CRASHTRACK_END_PROCINFO",
		"DD_CRASHTRACK_BEGIN_COUNTERS",
		`{"collecting_sample":1}`,
		`{"unwinding":0}`,
		"DD_CRASHTRACK_END_COUNTERS",
		"DD_CRASHTRACK_BEGIN_TAGS",
		`"service:billing"`,
		"DD_CRASHTRACK_END_TAGS",
		"DD_CRASHTRACK_BEGIN_SPAN_IDS",
		`"0x00000000deadbeef"`,
		"DD_CRASHTRACK_END_SPAN_IDS",
		"DD_CRASHTRACK_BEGIN_STACKTRACE",
		`{"ip":"0x0000000000401000"}`,
		`{"ip":"0x0000000000402000"}`,
		`{"ip":"0x0000000000403000"}`,
		"DD_CRASHTRACK_END_STACKTRACE",
		"DD_CRASHTRACK_DONE",
	}, "\n") + "\n"
}

// A complete stream with three raw frames yields a complete report whose
// crashed thread carries exactly those frames, unresolved.
func TestParseCompleteStream(t *testing.T) {
	report, err := NewParser(nil).Parse(strings.NewReader(sampleStream()))
	require.NoError(t, err)

	assert.True(t, report.Complete)
	assert.Equal(t, int32(4242), report.PID)
	assert.Equal(t, "file:///tmp/crash.json", report.Config.Endpoint)
	assert.Equal(t, int64(5000), report.Config.TimeoutMS)

	info := report.Info
	assert.False(t, info.Incomplete)
	assert.Equal(t, crashinfo.ErrorKindSignal, info.ErrorKind)
	assert.Equal(t, "dd-trace-go", info.Metadata.LibraryName)
	assert.Equal(t, int64(1), info.Counters["collecting_sample"])
	assert.Equal(t, "billing", info.Tags["service"])
	require.Len(t, info.SpanIDs, 1)
	assert.Equal(t, "0x00000000deadbeef", info.SpanIDs[0].ID)

	require.NotNil(t, info.SigInfo)
	assert.Equal(t, crashinfo.SigSEGV, info.SigInfo.SigName)
	assert.Equal(t, crashinfo.SegvMaperr, info.SigInfo.CodeName)

	crashed := info.CrashedThread()
	require.NotNil(t, crashed)
	require.Len(t, crashed.Stack.Frames, 3)
	assert.False(t, crashed.Stack.Incomplete)
	assert.Equal(t, "0x0000000000401000", crashed.Stack.Frames[0].IP)
	assert.False(t, crashed.Stack.Frames[0].IsResolved())
}

// Truncation mid-section: every section that closed before the stream died
// survives, and the report is marked incomplete.
func TestParseTruncatedStream(t *testing.T) {
	full := sampleStream()
	cut := strings.Index(full, `{"ip":"0x0000000000402000"}`)
	require.Positive(t, cut)

	report, err := NewParser(nil).Parse(strings.NewReader(full[:cut]))
	require.NoError(t, err)

	assert.False(t, report.Complete)
	info := report.Info
	assert.True(t, info.Incomplete)

	// Closed sections are intact.
	assert.Equal(t, crashinfo.ErrorKindSignal, info.ErrorKind)
	assert.Equal(t, "dd-trace-go", info.Metadata.LibraryName)
	assert.Equal(t, "billing", info.Tags["service"])

	// The stack section never closed, so its trace stays incomplete with
	// the frames that made it through.
	crashed := info.CrashedThread()
	require.NotNil(t, crashed)
	assert.True(t, crashed.Stack.Incomplete)
	assert.Len(t, crashed.Stack.Frames, 1)
}

// A parent that wedges after its first lines must not pin the receiver:
// the read deadline starts at the first received line and expiry salvages
// every section that closed.
func TestParseWedgedStreamSalvages(t *testing.T) {
	head := "DD_CRASHTRACK_BEGIN_ERROR_KIND\n\"Panic\"\nDD_CRASHTRACK_END_ERROR_KIND\n"

	p := NewParser(nil).WithReadTimeout(50 * time.Millisecond)
	report, err := p.Parse(wedgedStream(t, head))
	require.NoError(t, err)

	assert.False(t, report.Complete)
	assert.True(t, report.Info.Incomplete)
	assert.Equal(t, crashinfo.ErrorKindPanic, report.Info.ErrorKind)
}

// The collector's own timeout_ms replaces the receiver's default deadline
// once the CONFIG section lands.
func TestParseConfigTimeoutOverridesDeadline(t *testing.T) {
	head := "DD_CRASHTRACK_BEGIN_CONFIG\n" +
		`{"resolve_frames":"disabled","timeout_ms":50}` + "\n" +
		"DD_CRASHTRACK_END_CONFIG\n"

	p := NewParser(nil).WithReadTimeout(time.Hour)
	start := time.Now()
	report, err := p.Parse(wedgedStream(t, head))
	require.NoError(t, err)

	assert.False(t, report.Complete)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestParseEmptyStream(t *testing.T) {
	_, err := NewParser(nil).Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseIgnoresForeignLines(t *testing.T) {
	stream := "some unrelated stdout chatter\n" +
		"DD_CRASHTRACK_BEGIN_ERROR_KIND\n\"Panic\"\nDD_CRASHTRACK_END_ERROR_KIND\n" +
		"more chatter\n" +
		"DD_CRASHTRACK_DONE\n"

	report, err := NewParser(nil).Parse(strings.NewReader(stream))
	require.NoError(t, err)
	assert.True(t, report.Complete)
	assert.Equal(t, crashinfo.ErrorKindPanic, report.Info.ErrorKind)
}

// A garbled payload line costs that line, never the report.
func TestParseSkipsMalformedLines(t *testing.T) {
	stream := "DD_CRASHTRACK_BEGIN_COUNTERS\n" +
		"{not json at all\n" +
		`{"unwinding":2}` + "\n" +
		"DD_CRASHTRACK_END_COUNTERS\n" +
		"DD_CRASHTRACK_DONE\n"

	report, err := NewParser(nil).Parse(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Info.Counters["unwinding"])
}

func TestParseRuntimeStack(t *testing.T) {
	stream := "DD_CRASHTRACK_BEGIN_RUNTIME_STACK\n" +
		`{"ip":"0x0000000000401000","function":"rb_vm_exec","file":"vm.c","line":2200}` + "\n" +
		"DD_CRASHTRACK_END_RUNTIME_STACK\n" +
		"DD_CRASHTRACK_DONE\n"

	report, err := NewParser(nil).Parse(strings.NewReader(stream))
	require.NoError(t, err)

	require.Len(t, report.Info.Threads, 1)
	rt := report.Info.Threads[0]
	assert.Equal(t, "runtime", rt.Name)
	assert.False(t, rt.Crashed)
	require.Len(t, rt.Stack.Frames, 1)
	assert.Equal(t, "rb_vm_exec", rt.Stack.Frames[0].Function)
}

func TestParseFileSection(t *testing.T) {
	stream := "DD_CRASHTRACK_BEGIN_FILE\n" +
		`"/proc/4242/maps"` + "\n" +
		`"00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/app"` + "\n" +
		"DD_CRASHTRACK_END_FILE\n" +
		"DD_CRASHTRACK_DONE\n"

	report, err := NewParser(nil).Parse(strings.NewReader(stream))
	require.NoError(t, err)

	lines := report.Info.Files["/proc/4242/maps"]
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "/usr/bin/app")
}

func TestParseTagWithoutSeparator(t *testing.T) {
	stream := "DD_CRASHTRACK_BEGIN_TAGS\n" +
		`"separatorless"` + "\n" +
		`"env:prod"` + "\n" +
		"DD_CRASHTRACK_END_TAGS\n" +
		"DD_CRASHTRACK_DONE\n"

	report, err := NewParser(nil).Parse(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"env": "prod"}, report.Info.Tags)
}
