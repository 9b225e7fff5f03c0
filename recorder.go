package crashtracker

import "github.com/DataDog/libdatadog/internal/recorder"

// OpType tags a profiler operation whose in-flight count appears in crash
// reports, answering "what was the profiler doing when the process died".
type OpType = recorder.OpType

const (
	OpNotProfiling     = recorder.OpNotProfiling
	OpCollectingSample = recorder.OpCollectingSample
	OpUnwinding        = recorder.OpUnwinding
	OpSerializing      = recorder.OpSerializing
)

// OpGuard ends an operation begun with BeginOp.
type OpGuard = recorder.OpGuard

// BeginOp marks entry into a risk-point operation. Fault-safe: it never
// allocates or blocks. End the returned guard on the same goroutine.
func BeginOp(op OpType) *OpGuard {
	return recorder.BeginOp(op)
}

// CounterSnapshot reads the current op counters. Normal-path only.
func CounterSnapshot() map[string]int64 {
	return recorder.CounterSnapshot()
}

// InsertTag records a tag to be attached to any future crash report. The
// storage is fixed-capacity; once full, new tags are dropped silently —
// a crash report with most of its tags beats no crash report.
func InsertTag(key, value string) {
	recorder.InsertTag(key, value)
}

// InsertSpanID marks a span as in flight. Returns a slot token for
// RemoveSpanID. Wider-than-64-bit ids are passed as a high/low pair; pass
// high 0 for 64-bit ids.
func InsertSpanID(high, low uint64) (int, bool) {
	return recorder.InsertSpanID(high, low)
}

// RemoveSpanID clears a span previously inserted at slot.
func RemoveSpanID(slot int, high, low uint64) bool {
	return recorder.RemoveSpanID(slot, high, low)
}

// InsertTraceID marks a trace as in flight.
func InsertTraceID(high, low uint64) (int, bool) {
	return recorder.InsertTraceID(high, low)
}

// RemoveTraceID clears a trace previously inserted at slot.
func RemoveTraceID(slot int, high, low uint64) bool {
	return recorder.RemoveTraceID(slot, high, low)
}
