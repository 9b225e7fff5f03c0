//go:build unix

package crashtracker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crashtracker "github.com/DataDog/libdatadog"
)

func TestInitRejectsMissingReceiver(t *testing.T) {
	err := crashtracker.Init(
		crashtracker.Config{Endpoint: "file:///tmp/crash.json"},
		crashtracker.ReceiverConfig{BinaryPath: "/does/not/exist"},
		crashtracker.Metadata{LibraryName: "dd-trace-go", Family: "go"},
	)
	assert.Error(t, err)
}

func TestInitRejectsBadEndpoint(t *testing.T) {
	err := crashtracker.Init(
		crashtracker.Config{Endpoint: "ftp://nope"},
		crashtracker.ReceiverConfig{BinaryPath: "/bin/cat"},
		crashtracker.Metadata{},
	)
	assert.Error(t, err)
}

func TestLifecycle(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("/bin/cat not available")
	}
	endpoint := "file://" + filepath.Join(t.TempDir(), "crash.json")

	require.NoError(t, crashtracker.Init(
		crashtracker.Config{Endpoint: endpoint},
		crashtracker.ReceiverConfig{BinaryPath: "/bin/cat"},
		crashtracker.Metadata{LibraryName: "dd-trace-go", Family: "go"},
	))
	defer crashtracker.Shutdown()

	g := crashtracker.BeginOp(crashtracker.OpCollectingSample)
	assert.Equal(t, int64(1), crashtracker.CounterSnapshot()["collecting_sample"])
	g.End()

	crashtracker.InsertTag("service", "billing")
	slot, ok := crashtracker.InsertSpanID(0, 42)
	require.True(t, ok)
	assert.True(t, crashtracker.RemoveSpanID(slot, 0, 42))

	require.NoError(t, crashtracker.ReportUnhandledException("RuntimeError", "top-level failure",
		[]crashtracker.StackFrame{{Function: "main", File: "app.rb", Line: 3}}))
	require.NoError(t, crashtracker.ReportUserRequested("pipeline check"))
	require.NoError(t, crashtracker.Shutdown())
}
