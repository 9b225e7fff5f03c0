package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/DataDog/libdatadog/internal/config"
	"github.com/DataDog/libdatadog/internal/crashinfo"
)

// State tracks the interceptor's lifecycle. Transitions only move forward
// within one fault: Armed -> Handling -> HandedOff -> Chained.
type State int32

const (
	StateDisarmed State = iota
	StateArmed
	StateHandling
	StateHandedOff
	StateChained
)

func (s State) String() string {
	switch s {
	case StateDisarmed:
		return "disarmed"
	case StateArmed:
		return "armed"
	case StateHandling:
		return "handling"
	case StateHandedOff:
		return "handed_off"
	case StateChained:
		return "chained"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrNotInitialized is returned by operations that require a prior Init.
var ErrNotInitialized = errors.New("crash tracker not initialized")

// scratchSize is the fault-path formatting buffer. Large enough for any
// single frame or counter line.
const scratchSize = 4096

// crashState is the single process-wide mutable state of the interceptor,
// reached only through the accessor functions below so tests can reset it
// between runs. Initialization-once, teardown-once.
type crashState struct {
	state   atomic.Int32
	entries atomic.Uint64

	cfg          atomic.Pointer[config.Config]
	cfgJSON      atomic.Pointer[[]byte]
	metadata     atomic.Pointer[crashinfo.Metadata]
	metadataJSON atomic.Pointer[[]byte]

	receiver    atomic.Pointer[managedReceiver]
	receiverCfg atomic.Pointer[config.ReceiverConfig]

	// sigCh is written before arming and read only by Shutdown.
	sigCh chan os.Signal

	stacks  atomic.Pointer[StackCollector]
	scratch []byte
	pid     int

	// mapsFile is /proc/self/maps, opened at init so the fault path only
	// has to seek and read. Nil where procfs doesn't exist.
	mapsFile  *os.File
	fileChunk []byte
	fileLine  []byte
}

var global = newCrashState()

func newCrashState() *crashState {
	return &crashState{
		scratch:   make([]byte, 0, scratchSize),
		pid:       os.Getpid(),
		fileChunk: make([]byte, 4096),
		fileLine:  make([]byte, 0, 1024),
	}
}

// CurrentState reads the interceptor state machine.
func CurrentState() State {
	return State(global.state.Load())
}

func setState(s State) {
	global.state.Store(int32(s))
}

// enterHandler is the first-fault-wins guard. Exactly one concurrent entry
// proceeds; producing two interleaved reports is strictly worse than one.
func enterHandler() bool {
	return global.entries.Add(1) == 1
}

// UpdateConfig stores the configuration and its pre-serialized form. The
// fault path writes the serialized bytes verbatim; serialization happens
// here, on the normal path, where allocation is fine.
func UpdateConfig(cfg *config.Config) error {
	data, err := json.Marshal(configWireFrom(cfg))
	if err != nil {
		return fmt.Errorf("serializing crash tracker config: %w", err)
	}
	global.cfg.Store(cfg)
	global.cfgJSON.Store(&data)
	return nil
}

// UpdateMetadata stores the library metadata and its pre-serialized form.
func UpdateMetadata(md crashinfo.Metadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("serializing crash tracker metadata: %w", err)
	}
	global.metadata.Store(&md)
	global.metadataJSON.Store(&data)
	return nil
}

// Configuration returns the active config, nil before Init.
func Configuration() *config.Config {
	return global.cfg.Load()
}

// Metadata returns the active metadata, nil before Init.
func Metadata() *crashinfo.Metadata {
	return global.metadata.Load()
}

// configWire is the subset of config the receiver needs, shipped in the
// CONFIG section of the handoff stream.
type configWire struct {
	AdditionalFiles []string `json:"additional_files,omitempty"`
	Endpoint        string   `json:"endpoint,omitempty"`
	ResolveFrames   string   `json:"resolve_frames"`
	TimeoutMS       int64    `json:"timeout_ms"`
}

func configWireFrom(cfg *config.Config) configWire {
	w := configWire{
		AdditionalFiles: cfg.AdditionalFiles,
		ResolveFrames:   cfg.ResolveFrames.String(),
		TimeoutMS:       cfg.Timeout.Milliseconds(),
	}
	if cfg.Endpoint != nil {
		w.Endpoint = cfg.Endpoint.String()
	}
	return w
}

// ResetForTesting restores the interceptor to its pristine state. Tests
// only; never valid while a fault is in flight.
func ResetForTesting() {
	if r := global.receiver.Swap(nil); r != nil {
		r.kill()
	}
	if global.mapsFile != nil {
		global.mapsFile.Close()
	}
	resetRuntimeCallback()
	global = newCrashState()
}
