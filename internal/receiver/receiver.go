package receiver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DataDog/libdatadog/internal/config"
	"github.com/DataDog/libdatadog/internal/crashinfo"
	"github.com/DataDog/libdatadog/internal/logging"
	"github.com/DataDog/libdatadog/internal/upload"
)

// FrameResolver finishes symbolization for reports whose collector asked
// for via_receiver resolution. Implementations may consult the crashed
// process's binary and the memory map attached to the report.
type FrameResolver interface {
	Resolve(pid int32, frames []crashinfo.StackFrame) []crashinfo.StackFrame
}

// passthroughResolver leaves frames as shipped. Raw instruction pointers
// plus the attached memory map are enough for offline symbolization, which
// is where the heavy tooling lives.
type passthroughResolver struct{}

func (passthroughResolver) Resolve(_ int32, frames []crashinfo.StackFrame) []crashinfo.StackFrame {
	return frames
}

// Receiver drives one report through parse, finalize, and delivery.
type Receiver struct {
	log      *logging.Logger
	runtime  *config.ReceiverRuntime
	uploader *upload.Uploader
	resolver FrameResolver
}

// New creates a receiver. A nil resolver gets the passthrough resolver.
func New(log *logging.Logger, rt *config.ReceiverRuntime, resolver FrameResolver) *Receiver {
	if log == nil {
		log = logging.NewNop()
	}
	if resolver == nil {
		resolver = passthroughResolver{}
	}
	return &Receiver{
		log:      log,
		runtime:  rt,
		uploader: upload.NewUploader(),
		resolver: resolver,
	}
}

// Run processes a single handoff stream from r: parse, finalize, deliver.
// It returns an error when no report could be produced or delivery failed;
// a truncated or wedged stream that still yielded a report is success.
func (rcv *Receiver) Run(ctx context.Context, r io.Reader) error {
	report, err := NewParser(rcv.log).WithReadTimeout(rcv.readDeadline()).Parse(r)
	if err != nil {
		return err
	}
	log := rcv.log.WithReport(report.Info.UUID).WithCrashedPID(report.PID)
	if !report.Complete {
		log.Warn("report is incomplete, delivering what arrived")
	}

	rcv.finalize(report, log)

	endpoint, err := rcv.pickEndpoint(report)
	if err != nil {
		return err
	}
	data, err := report.Info.MarshalJSONBytes()
	if err != nil {
		return fmt.Errorf("serializing crash report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, rcv.deliveryTimeout(report))
	defer cancel()
	if err := rcv.uploader.Deliver(ctx, endpoint, data); err != nil {
		return fmt.Errorf("delivering crash report: %w", err)
	}
	log.Info("crash report delivered",
		"endpoint", endpoint.String(), "complete", report.Complete)
	return nil
}

// finalize does everything the collector could not: wall-clock sanity, OS
// identification, memory map and file attachment, and symbolization. All
// failures here degrade the report instead of losing it.
func (rcv *Receiver) finalize(report *Report, log *logging.Logger) {
	info := report.Info

	if info.Timestamp.IsZero() {
		info.Timestamp = crashinfo.TimestampNow()
	}
	info.OSInfo = crashinfo.CollectOSInfo()

	rcv.attachMemoryMap(report, log)
	for _, path := range report.Config.AdditionalFiles {
		if err := attachFile(info, path); err != nil {
			log.Warn("attaching file failed", "path", path, "error", err.Error())
		}
	}

	if report.Config.ResolveFrames == config.ResolveViaReceiver.String() {
		if crashed := info.CrashedThread(); crashed != nil && crashed.Stack != nil {
			crashed.Stack.Frames = rcv.resolver.Resolve(report.PID, crashed.Stack.Frames)
		}
	}
}

// pickEndpoint prefers the endpoint the collector handed over; the
// receiver's own environment is the fallback for reports whose CONFIG
// section was lost.
func (rcv *Receiver) pickEndpoint(report *Report) (*upload.Endpoint, error) {
	raw := report.Config.Endpoint
	if raw == "" && rcv.runtime != nil {
		raw = rcv.runtime.Endpoint
	}
	if raw == "" {
		return nil, fmt.Errorf("no endpoint: handoff config and environment are both empty")
	}
	endpoint, err := upload.ParseEndpoint(raw)
	if err != nil {
		return nil, err
	}
	if endpoint.APIKey == "" && rcv.runtime != nil {
		endpoint.APIKey = rcv.runtime.APIKey
	}
	return endpoint, nil
}

// readDeadline bounds the wait for the handoff stream itself. The handoff
// CONFIG timeout takes over inside the parser once it arrives.
func (rcv *Receiver) readDeadline() time.Duration {
	if rcv.runtime != nil && rcv.runtime.Timeout > 0 {
		return rcv.runtime.Timeout
	}
	return config.DefaultTimeout
}

func (rcv *Receiver) deliveryTimeout(report *Report) time.Duration {
	if report.Config.TimeoutMS > 0 {
		return time.Duration(report.Config.TimeoutMS) * time.Millisecond
	}
	if rcv.runtime != nil && rcv.runtime.Timeout > 0 {
		return rcv.runtime.Timeout
	}
	return config.DefaultTimeout
}
