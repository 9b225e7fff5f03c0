package collector

import (
	"runtime"

	"github.com/DataDog/libdatadog/internal/config"
)

// stackDepth bounds the captured call stack. Deeper frames are dropped;
// the frames nearest the fault are the ones that matter.
const stackDepth = 256

// StackCollector captures the crashing goroutine's program counters into
// storage allocated before any fault can occur. Capture itself is a single
// runtime.Callers walk into the pre-allocated buffer.
type StackCollector struct {
	policy config.ResolvePolicy
	pcs    [stackDepth]uintptr
	n      int
}

// NewStackCollector allocates the capture buffer up front.
func NewStackCollector(policy config.ResolvePolicy) *StackCollector {
	return &StackCollector{policy: policy}
}

// Capture records the current goroutine's stack, skipping the interceptor's
// own frames. Safe on the fault path: it writes only into s.pcs.
func (s *StackCollector) Capture(skip int) {
	s.n = runtime.Callers(skip+2, s.pcs[:])
}

// visitFrames emits each captured frame. Under ResolveInProcess the frames
// are symbolized here via the runtime's own tables, which reads data the
// process already has mapped; every other policy ships bare counters and
// leaves symbolization to whoever consumes the report.
func (s *StackCollector) visitFrames(e *emitter) {
	if s.n == 0 {
		return
	}
	if s.policy != config.ResolveInProcess {
		for i := 0; i < s.n; i++ {
			e.emitFrame(s.pcs[i], 0, "", "", 0)
		}
		return
	}
	frames := runtime.CallersFrames(s.pcs[:s.n])
	for {
		fr, more := frames.Next()
		e.emitFrame(fr.PC, 0, fr.Function, fr.File, fr.Line)
		if !more {
			break
		}
	}
}

// Frames resolves the captured stack for normal-path callers, such as the
// synchronous unhandled-exception report.
func (s *StackCollector) Frames() []resolvedFrame {
	if s.n == 0 {
		return nil
	}
	out := make([]resolvedFrame, 0, s.n)
	frames := runtime.CallersFrames(s.pcs[:s.n])
	for {
		fr, more := frames.Next()
		out = append(out, resolvedFrame{
			IP:       fr.PC,
			Function: fr.Function,
			File:     fr.File,
			Line:     fr.Line,
		})
		if !more {
			break
		}
	}
	return out
}

type resolvedFrame struct {
	IP       uintptr
	Function string
	File     string
	Line     int
}
