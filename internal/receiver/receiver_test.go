package receiver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/libdatadog/internal/config"
	"github.com/DataDog/libdatadog/internal/crashinfo"
)

func TestRunDeliversToFileEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	stream := strings.Replace(sampleStream(),
		"file:///tmp/crash.json", "file://"+path, 1)

	rcv := New(nil, nil, nil)
	require.NoError(t, rcv.Run(context.Background(), strings.NewReader(stream)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := crashinfo.ParseCrashInfo(data)
	require.NoError(t, err)

	assert.Equal(t, crashinfo.ErrorKindSignal, info.ErrorKind)
	assert.False(t, info.Incomplete)
	// Finalization filled in host identity.
	assert.NotEmpty(t, info.OSInfo.OSType)
	assert.NotEmpty(t, info.OSInfo.Architecture)
}

func TestRunTruncatedStreamStillDelivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	stream := strings.Replace(sampleStream(),
		"file:///tmp/crash.json", "file://"+path, 1)
	// Drop everything from the stack section on, including DONE.
	cut := strings.Index(stream, "DD_CRASHTRACK_BEGIN_STACKTRACE")
	require.Positive(t, cut)

	rcv := New(nil, nil, nil)
	require.NoError(t, rcv.Run(context.Background(), strings.NewReader(stream[:cut])))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := crashinfo.ParseCrashInfo(data)
	require.NoError(t, err)
	assert.True(t, info.Incomplete)
	assert.Equal(t, "dd-trace-go", info.Metadata.LibraryName)
}

// A wedged parent must not pin the receiver: the read deadline fires and
// the salvaged report is still delivered.
func TestRunWedgedStreamStillDelivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	head := "DD_CRASHTRACK_BEGIN_ERROR_KIND\n\"Panic\"\nDD_CRASHTRACK_END_ERROR_KIND\n"

	rt := &config.ReceiverRuntime{Endpoint: "file://" + path, Timeout: 50 * time.Millisecond}
	rcv := New(nil, rt, nil)
	require.NoError(t, rcv.Run(context.Background(), wedgedStream(t, head)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := crashinfo.ParseCrashInfo(data)
	require.NoError(t, err)
	assert.True(t, info.Incomplete)
	assert.Equal(t, crashinfo.ErrorKindPanic, info.ErrorKind)
}

func TestRunFailsWithoutEndpoint(t *testing.T) {
	stream := "DD_CRASHTRACK_BEGIN_ERROR_KIND\n\"Panic\"\nDD_CRASHTRACK_END_ERROR_KIND\nDD_CRASHTRACK_DONE\n"

	rcv := New(nil, nil, nil)
	err := rcv.Run(context.Background(), strings.NewReader(stream))
	assert.ErrorContains(t, err, "no endpoint")
}

func TestRunFallsBackToEnvironmentEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	stream := "DD_CRASHTRACK_BEGIN_ERROR_KIND\n\"Panic\"\nDD_CRASHTRACK_END_ERROR_KIND\nDD_CRASHTRACK_DONE\n"

	rt := &config.ReceiverRuntime{Endpoint: "file://" + path}
	rcv := New(nil, rt, nil)
	require.NoError(t, rcv.Run(context.Background(), strings.NewReader(stream)))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPickEndpointPrecedence(t *testing.T) {
	rt := &config.ReceiverRuntime{Endpoint: "file:///from/env", APIKey: "env-key"}
	rcv := New(nil, rt, nil)

	// Handoff config wins.
	ep, err := rcv.pickEndpoint(&Report{Config: HandoffConfig{Endpoint: "file:///from/handoff"}})
	require.NoError(t, err)
	assert.Equal(t, "/from/handoff", ep.Path)

	// Environment fills the gap, including the API key.
	ep, err = rcv.pickEndpoint(&Report{})
	require.NoError(t, err)
	assert.Equal(t, "/from/env", ep.Path)
	assert.Equal(t, "env-key", ep.APIKey)
}

func TestDeliveryTimeout(t *testing.T) {
	rcv := New(nil, &config.ReceiverRuntime{Timeout: 9 * time.Second}, nil)

	assert.Equal(t, 3*time.Second,
		rcv.deliveryTimeout(&Report{Config: HandoffConfig{TimeoutMS: 3000}}))
	assert.Equal(t, 9*time.Second, rcv.deliveryTimeout(&Report{}))

	bare := New(nil, nil, nil)
	assert.Equal(t, config.DefaultTimeout, bare.deliveryTimeout(&Report{}))
}

type upcaseResolver struct{}

func (upcaseResolver) Resolve(_ int32, frames []crashinfo.StackFrame) []crashinfo.StackFrame {
	for i := range frames {
		frames[i].Function = "resolved_" + frames[i].IP
	}
	return frames
}

func TestResolverRunsForViaReceiverPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	stream := strings.Replace(sampleStream(),
		"file:///tmp/crash.json", "file://"+path, 1)
	stream = strings.Replace(stream, `"resolve_frames":"disabled"`,
		`"resolve_frames":"via_receiver"`, 1)

	rcv := New(nil, nil, upcaseResolver{})
	require.NoError(t, rcv.Run(context.Background(), strings.NewReader(stream)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := crashinfo.ParseCrashInfo(data)
	require.NoError(t, err)

	crashed := info.CrashedThread()
	require.NotNil(t, crashed)
	assert.Equal(t, "resolved_0x0000000000401000", crashed.Stack.Frames[0].Function)
}
