package crashinfo

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsIdentityOnce(t *testing.T) {
	b := NewBuilder()
	require.NotEmpty(t, b.uuid)
	require.False(t, b.timestamp.IsZero())

	info, err := b.Build(false)
	require.NoError(t, err)
	assert.Equal(t, b.uuid, info.UUID)
	assert.Equal(t, b.timestamp, info.Timestamp)
}

func TestBuilderIsOneShot(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(false)
	require.NoError(t, err)

	assert.ErrorIs(t, b.WithMessage("late"), ErrBuilderConsumed)
	assert.ErrorIs(t, b.WithTag("k", "v"), ErrBuilderConsumed)
	_, err = b.Build(false)
	assert.ErrorIs(t, err, ErrBuilderConsumed)
}

func TestBuilderDefaults(t *testing.T) {
	info, err := NewBuilder().Build(true)
	require.NoError(t, err)

	assert.Equal(t, DataSchemaVersion, info.DataSchemaVersion)
	assert.True(t, info.Incomplete)
	assert.Equal(t, ErrorKindSignal, info.ErrorKind)
	assert.Equal(t, UnknownMetadata(), info.Metadata)
	assert.Equal(t, UnknownOSInfo(), info.OSInfo)
	assert.Empty(t, info.Threads)
}

func TestBuilderCrashedThreadLeads(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.WithThread(ThreadData{Name: "runtime"}))
	require.NoError(t, b.WithStackFrame(StackFrame{IP: "0x00000000004011a0"}))
	require.NoError(t, b.WithStackComplete())

	info, err := b.Build(false)
	require.NoError(t, err)

	require.Len(t, info.Threads, 2)
	assert.True(t, info.Threads[0].Crashed)
	assert.Equal(t, "main", info.Threads[0].Name)
	assert.False(t, info.Threads[0].Stack.Incomplete)
	assert.Equal(t, "runtime", info.Threads[1].Name)
	assert.Same(t, &info.Threads[0], info.CrashedThread())
}

func TestBuilderRejectsBadInput(t *testing.T) {
	b := NewBuilder()
	assert.Error(t, b.WithCounter("", 1))
	assert.Error(t, b.WithTag("", "v"))
	assert.Error(t, b.WithUUID("not-a-uuid"))
	assert.Error(t, b.WithStackComplete())

	// Individually fallible: a rejected field never poisons the builder.
	require.NoError(t, b.WithCounter("unwinding", 1))
	_, err := b.Build(false)
	assert.NoError(t, err)
}

func TestBuilderHasCrashData(t *testing.T) {
	b := NewBuilder()
	assert.False(t, b.HasCrashData())
	require.NoError(t, b.WithMetadata(Metadata{LibraryName: "dd-trace-go"}))
	assert.False(t, b.HasCrashData())
	require.NoError(t, b.WithErrorKind(ErrorKindPanic))
	assert.True(t, b.HasCrashData())
}

func TestCrashInfoRoundTrip(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.WithErrorKind(ErrorKindSignal))
	require.NoError(t, b.WithMessage("segmentation fault"))
	require.NoError(t, b.WithMetadata(Metadata{
		LibraryName:    "dd-trace-go",
		LibraryVersion: "1.62.0",
		Family:         "go",
	}))
	require.NoError(t, b.WithSigInfo(NewSigInfo(11, 1, "0x0000000000000010")))
	require.NoError(t, b.WithProcInfo(ProcInfo{PID: 4242}))
	require.NoError(t, b.WithCounter("collecting_sample", 1))
	require.NoError(t, b.WithTag("service", "billing"))
	require.NoError(t, b.WithSpanID(Span{ID: SpanID(0, 0xdeadbeef)}))
	require.NoError(t, b.WithStackFrame(StackFrame{IP: "0x00000000004011a0"}))
	require.NoError(t, b.WithStackComplete())
	require.NoError(t, b.WithFileContents("/proc/4242/maps", []string{"00400000-00452000 r-xp"}))

	info, err := b.Build(false)
	require.NoError(t, err)

	data, err := info.MarshalJSONBytes()
	require.NoError(t, err)

	parsed, err := ParseCrashInfo(data)
	require.NoError(t, err)
	assert.Equal(t, info, parsed)
}

func TestSpanIDFormatting(t *testing.T) {
	assert.Equal(t, "0x00000000deadbeef", SpanID(0, 0xdeadbeef))
	assert.Equal(t, "0x00000000000000010000000000000002", SpanID(1, 2))
}

func TestWriteFileAppends(t *testing.T) {
	path := t.TempDir() + "/crash.json"

	first, err := NewBuilder().Build(false)
	require.NoError(t, err)
	require.NoError(t, first.WriteFile(path))
	require.NoError(t, first.WriteFile(path))

	// Two appended documents double the size of one.
	single, err := first.MarshalJSONBytes()
	require.NoError(t, err)
	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2*len(single)), stat.Size())
}
