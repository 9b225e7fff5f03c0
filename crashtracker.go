// Package crashtracker captures fatal process faults and hands them to an
// out-of-process receiver for finishing and delivery.
//
// The monitored process calls Init once, early, while everything still
// works: configuration is validated, the report's storage is pre-allocated,
// and the receiver process is spawned. From then on the library sits idle
// until a monitored signal, a reported panic, or an unhandled runtime
// exception arrives; the fault path then streams what it knows to the
// receiver and gets out of the way so the process can die honestly.
package crashtracker

import (
	"os"
	"time"

	"github.com/DataDog/libdatadog/internal/collector"
	"github.com/DataDog/libdatadog/internal/config"
	"github.com/DataDog/libdatadog/internal/crashinfo"
	"github.com/DataDog/libdatadog/internal/upload"
)

// ResolvePolicy selects where stack frames are symbolized.
type ResolvePolicy = config.ResolvePolicy

const (
	// ResolveDisabled ships raw instruction pointers only.
	ResolveDisabled = config.ResolveDisabled
	// ResolveInProcess symbolizes in the crashing process.
	ResolveInProcess = config.ResolveInProcess
	// ResolveViaReceiver lets the receiver symbolize.
	ResolveViaReceiver = config.ResolveViaReceiver
)

// Metadata identifies the library on whose behalf reports are emitted.
type Metadata = crashinfo.Metadata

// StackFrame is one frame of a report's stacktrace. Embedding runtimes
// build these when reporting an exception they already unwound.
type StackFrame = crashinfo.StackFrame

// Config controls the capture pipeline.
type Config struct {
	// Endpoint receives the finished report: file:///path or http(s) URL.
	Endpoint string
	// ResolveFrames selects the symbolization tier.
	ResolveFrames ResolvePolicy
	// Timeout bounds the post-fault wait for the receiver.
	Timeout time.Duration
	// Signals overrides the monitored signal set.
	Signals []os.Signal
	// AdditionalFiles are attached to every report.
	AdditionalFiles []string
	// CreateAltStack and UseAltStack describe the alternate signal stack
	// policy. The runtime owns its signal stacks; the flags are validated
	// and carried for configuration compatibility.
	CreateAltStack bool
	UseAltStack    bool
}

// ReceiverConfig describes how to launch the receiver process.
type ReceiverConfig = config.ReceiverConfig

// Init validates the configuration, arms the fault interceptor, and spawns
// the receiver. It is strict: a receiver that cannot be launched now could
// not have been launched during a crash either, so Init fails instead of
// arming a pipeline that would lose its one report.
func Init(cfg Config, rc ReceiverConfig, md Metadata) error {
	internal, err := buildInternalConfig(cfg)
	if err != nil {
		return err
	}
	rcfg, err := config.NewReceiverConfig(rc)
	if err != nil {
		return err
	}
	return collector.Init(internal, rcfg, md)
}

// Shutdown disarms the interceptor and reaps the idle receiver.
func Shutdown() error {
	return collector.Shutdown()
}

// UpdateConfig replaces the active configuration. The serialized form the
// fault path ships is refreshed here, atomically.
func UpdateConfig(cfg Config) error {
	internal, err := buildInternalConfig(cfg)
	if err != nil {
		return err
	}
	return collector.UpdateConfig(internal)
}

// UpdateMetadata replaces the active library metadata.
func UpdateMetadata(md Metadata) error {
	return collector.UpdateMetadata(md)
}

// RecoverAndReport is a defer helper for the program's outermost frames:
// it reports an in-flight panic and re-raises it.
func RecoverAndReport() {
	collector.RecoverAndReport()
}

// ReportUnhandledException synchronously reports a crash surfaced by an
// embedded runtime: the exception class, its message, and the stacktrace
// the runtime unwound (nil to fall back to the native capture). When it
// returns without error, the report was handed off; the caller chooses
// whether the process survives.
func ReportUnhandledException(exceptionType, message string, stack []StackFrame) error {
	return collector.ReportUnhandledException(exceptionType, message, stack)
}

// ReportUserRequested emits a report on explicit request, without any
// fault. Useful for verifying the pipeline end to end in a live process.
func ReportUserRequested(message string) error {
	return collector.ReportUserRequested(message)
}

// RuntimeFrameEmit and RuntimeStackCallback let an embedded runtime
// contribute its own stack frames to a report.
type (
	RuntimeFrameEmit     = collector.RuntimeFrameEmit
	RuntimeStackCallback = collector.RuntimeStackCallback
)

// ErrCallbackRegistered rejects a second runtime stack callback.
var ErrCallbackRegistered = collector.ErrCallbackRegistered

// RegisterRuntimeStackCallback claims the process's single callback slot.
// The callback runs on the fault path and must not allocate or block.
func RegisterRuntimeStackCallback(cb RuntimeStackCallback) error {
	return collector.RegisterRuntimeStackCallback(cb)
}

func buildInternalConfig(cfg Config) (*config.Config, error) {
	internal := config.Config{
		AdditionalFiles: cfg.AdditionalFiles,
		CreateAltStack:  cfg.CreateAltStack,
		UseAltStack:     cfg.UseAltStack,
		ResolveFrames:   cfg.ResolveFrames,
		Timeout:         cfg.Timeout,
		Signals:         cfg.Signals,
	}
	if cfg.Endpoint != "" {
		endpoint, err := upload.ParseEndpoint(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		internal.Endpoint = endpoint
	}
	return config.NewConfig(internal)
}
