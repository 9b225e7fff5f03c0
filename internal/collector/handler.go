package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/DataDog/libdatadog/internal/config"
	"github.com/DataDog/libdatadog/internal/crashinfo"
	"github.com/DataDog/libdatadog/internal/recorder"
	"github.com/DataDog/libdatadog/internal/upload"
)

// ErrAlreadyInitialized rejects a second Init without an intervening
// Shutdown.
var ErrAlreadyInitialized = errors.New("crash tracker already initialized")

// errFaultInProgress means another fault won the first-fault race.
var errFaultInProgress = errors.New("another fault is already being handled")

// Init arms the interceptor: pre-serializes config and metadata, allocates
// the stack capture buffer, spawns the receiver, and installs the signal
// watcher. Init is strict about the receiver — a missing or unlaunchable
// binary fails here, while the process is healthy, rather than at the one
// moment the receiver was needed.
func Init(cfg *config.Config, rc *config.ReceiverConfig, md crashinfo.Metadata) error {
	if CurrentState() != StateDisarmed {
		return ErrAlreadyInitialized
	}
	if err := UpdateConfig(cfg); err != nil {
		return err
	}
	if err := UpdateMetadata(md); err != nil {
		return err
	}
	global.stacks.Store(NewStackCollector(cfg.ResolveFrames))
	global.mapsFile = openProcMaps()

	if err := EnsureReceiver(rc); err != nil {
		return fmt.Errorf("spawning crash receiver: %w", err)
	}
	global.receiverCfg.Store(rc)

	if len(cfg.Signals) > 0 {
		ch := make(chan os.Signal, len(cfg.Signals))
		signal.Notify(ch, cfg.Signals...)
		global.sigCh = ch
		go watchSignals(ch)
	}

	setState(StateArmed)
	return nil
}

// Shutdown disarms the interceptor and reaps the idle receiver. Safe to
// call once; a second call reports ErrNotInitialized.
func Shutdown() error {
	if CurrentState() == StateDisarmed {
		return ErrNotInitialized
	}
	if global.sigCh != nil {
		signal.Stop(global.sigCh)
		close(global.sigCh)
		global.sigCh = nil
	}
	if r := global.receiver.Swap(nil); r != nil {
		r.kill()
	}
	if global.mapsFile != nil {
		global.mapsFile.Close()
		global.mapsFile = nil
	}
	setState(StateDisarmed)
	return nil
}

func watchSignals(ch chan os.Signal) {
	for sig := range ch {
		handleSignal(sig)
	}
}

// handleSignal runs one monitored signal through the pipeline and then
// chains: the signal's previous disposition is restored and the signal
// re-raised, so the process still dies the way it would have without us.
func handleSignal(sig os.Signal) {
	fc := faultContext{
		kind:      crashinfo.ErrorKindSignal,
		hasSignal: true,
		signum:    config.SignalNumber(sig),
		siCode:    crashinfo.SiCodeUnavailable,
	}
	dispatchFault(&fc)
	setState(StateChained)
	chainSignal(sig)
}

// dispatchFault is the shared fault path. First fault wins: a concurrent
// second fault returns immediately, because two interleaved reports are
// strictly worse than one.
func dispatchFault(fc *faultContext) error {
	if CurrentState() != StateArmed {
		return ErrNotInitialized
	}
	if !enterHandler() {
		return errFaultInProgress
	}
	setState(StateHandling)

	// The native capture reflects the goroutine running the interceptor;
	// embedded runtimes contribute the faulting stack through the
	// registered callback.
	if sc := global.stacks.Load(); sc != nil {
		sc.Capture(1)
	}

	var err error
	if r := activeReceiver(); r != nil {
		err = emitReport(r.stdin, fc)
		cfg := Configuration()
		if werr := r.finish(cfg.Timeout); err == nil {
			err = werr
		}
	} else {
		err = writeReportDirect(fc)
	}
	setState(StateHandedOff)
	return err
}

// RecoverAndReport is a defer helper: it captures an in-flight panic,
// ships a report, and re-raises so the panic still crashes the process.
// Unlike a signal context, the panic machinery runs in an intact runtime,
// so ordinary allocation is fine here.
func RecoverAndReport() {
	r := recover()
	if r == nil {
		return
	}
	fc := faultContext{
		kind:    crashinfo.ErrorKindPanic,
		message: fmt.Sprint(r),
	}
	dispatchFault(&fc)
	panic(r)
}

// ReportUnhandledException ships a report for a crash surfaced by an
// embedded runtime: the exception class, its message, and the stacktrace
// the runtime already unwound. It is synchronous: when it returns, the
// handoff has completed or failed, and the caller decides whether the
// process dies.
func ReportUnhandledException(exceptionType, message string, stack []crashinfo.StackFrame) error {
	fc := faultContext{
		kind:    crashinfo.ErrorKindUnhandledException,
		message: message,
	}
	if exceptionType != "" {
		fc.message = exceptionType + ": " + message
	}
	if err := attachExceptionStack(&fc, stack); err != nil {
		return err
	}
	return reportAndRearm(&fc)
}

// ReportUserRequested ships a report without any fault, on explicit
// request. It exercises the full pipeline end to end.
func ReportUserRequested(message string) error {
	fc := faultContext{
		kind:    crashinfo.ErrorKindUserRequested,
		message: message,
	}
	return reportAndRearm(&fc)
}

// attachExceptionStack serializes the runtime's own frames before dispatch,
// so the emitter only has to copy bytes.
func attachExceptionStack(fc *faultContext, stack []crashinfo.StackFrame) error {
	if len(stack) == 0 {
		return nil
	}
	fc.frames = stack
	fc.framesJSON = make([][]byte, len(stack))
	for i := range stack {
		data, err := json.Marshal(&stack[i])
		if err != nil {
			return fmt.Errorf("serializing exception frame: %w", err)
		}
		fc.framesJSON[i] = data
	}
	return nil
}

// reportAndRearm dispatches a synchronous, non-terminal report and restores
// the armed state so a later fault still gets its own report.
func reportAndRearm(fc *faultContext) error {
	if err := dispatchFault(fc); err != nil {
		return err
	}
	global.entries.Store(0)
	setState(StateArmed)
	if rc := global.receiverCfg.Load(); rc != nil {
		if err := EnsureReceiver(rc); err != nil {
			return fmt.Errorf("respawning crash receiver: %w", err)
		}
	}
	return nil
}

// writeReportDirect is the degraded path for a dead receiver: build the
// report in-process and deliver it ourselves. It allocates freely; with no
// receiver, a best-effort report beats no report.
func writeReportDirect(fc *faultContext) error {
	cfg := Configuration()
	if cfg == nil || cfg.Endpoint == nil {
		return ErrReceiverUnavailable
	}
	info, err := buildLocalReport(fc)
	if err != nil {
		return err
	}
	data, err := info.MarshalJSONBytes()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	return upload.NewUploader().Deliver(ctx, cfg.Endpoint, data)
}

// buildLocalReport assembles a CrashInfo from in-process state, for the
// degraded direct-write path.
func buildLocalReport(fc *faultContext) (*crashinfo.CrashInfo, error) {
	b := crashinfo.NewBuilder()
	if err := b.WithErrorKind(fc.kind); err != nil {
		return nil, err
	}
	if fc.message != "" {
		if err := b.WithMessage(fc.message); err != nil {
			return nil, err
		}
	}
	if md := Metadata(); md != nil {
		if err := b.WithMetadata(*md); err != nil {
			return nil, err
		}
	}
	if fc.hasSignal {
		addr := ""
		if fc.faultAddr != 0 {
			addr = fmt.Sprintf("0x%016x", uint64(fc.faultAddr))
		}
		if err := b.WithSigInfo(crashinfo.NewSigInfo(fc.signum, fc.siCode, addr)); err != nil {
			return nil, err
		}
	}
	if err := b.WithProcInfo(crashinfo.ProcInfo{PID: int32(global.pid)}); err != nil {
		return nil, err
	}
	for name, value := range recorder.CounterSnapshot() {
		if err := b.WithCounter(name, value); err != nil {
			return nil, err
		}
	}
	for key, value := range recorder.TagSnapshot() {
		if err := b.WithTag(key, value); err != nil {
			return nil, err
		}
	}
	var visitErr error
	recorder.VisitSpanIDs(func(high, low uint64) {
		if err := b.WithSpanID(crashinfo.Span{ID: crashinfo.SpanID(high, low)}); err != nil {
			visitErr = err
		}
	})
	recorder.VisitTraceIDs(func(high, low uint64) {
		if err := b.WithTraceID(crashinfo.Span{ID: crashinfo.SpanID(high, low)}); err != nil {
			visitErr = err
		}
	})
	if visitErr != nil {
		return nil, visitErr
	}
	if len(fc.frames) > 0 {
		for _, frame := range fc.frames {
			if err := b.WithStackFrame(frame); err != nil {
				return nil, err
			}
		}
		if err := b.WithStackComplete(); err != nil {
			return nil, err
		}
	} else if sc := global.stacks.Load(); sc != nil {
		frames := sc.Frames()
		for _, fr := range frames {
			frame := crashinfo.StackFrame{
				IP:       fmt.Sprintf("0x%016x", uint64(fr.IP)),
				Function: fr.Function,
				File:     fr.File,
				Line:     uint32(fr.Line),
			}
			if err := b.WithStackFrame(frame); err != nil {
				return nil, err
			}
		}
		if len(frames) > 0 {
			if err := b.WithStackComplete(); err != nil {
				return nil, err
			}
		}
	}
	return b.Build(false)
}
