package recorder

import "sync/atomic"

// OpType tags a risk-point operation the profiler may be in the middle of
// when a crash happens.
type OpType int32

const (
	OpNotProfiling OpType = iota
	OpCollectingSample
	OpUnwinding
	OpSerializing

	numOpTypes
)

var opNames = [numOpTypes]string{
	"not_profiling",
	"collecting_sample",
	"unwinding",
	"serializing",
}

func (op OpType) String() string {
	if op < 0 || op >= numOpTypes {
		return "unknown"
	}
	return opNames[op]
}

// Valid reports whether op is a defined operation type.
func (op OpType) Valid() bool {
	return op >= 0 && op < numOpTypes
}

var counters [numOpTypes]atomic.Int64

// BeginOp marks entry into a risk point. It never allocates or blocks.
// The returned guard must be ended by the same goroutine.
func BeginOp(op OpType) *OpGuard {
	if !op.Valid() {
		return &OpGuard{slot: -1}
	}
	counters[op].Add(1)
	slot := opStack.push(op)
	return &OpGuard{op: op, slot: slot}
}

// OpGuard undoes a BeginOp. End is idempotent.
type OpGuard struct {
	op    OpType
	slot  int32
	ended bool
}

// End marks exit from the risk point.
func (g *OpGuard) End() {
	if g.ended {
		return
	}
	g.ended = true
	if g.slot >= 0 {
		counters[g.op].Add(-1)
		opStack.pop(g.slot, g.op)
	}
}

// CounterSnapshot reads all op counters into a fresh map. This allocates,
// so it is for normal-path callers; the fault path iterates CounterValue.
func CounterSnapshot() map[string]int64 {
	snap := make(map[string]int64, numOpTypes)
	for op := OpType(0); op < numOpTypes; op++ {
		snap[op.String()] = counters[op].Load()
	}
	return snap
}

// VisitCounters walks every op counter without allocating, fault-path safe.
func VisitCounters(fn func(op OpType, value int64)) {
	for op := OpType(0); op < numOpTypes; op++ {
		fn(op, counters[op].Load())
	}
}

// CounterValue reads one counter without allocating.
func CounterValue(op OpType) int64 {
	if !op.Valid() {
		return 0
	}
	return counters[op].Load()
}

// ResetCounters zeroes all counters. Called on init and between tests.
func ResetCounters() {
	for op := OpType(0); op < numOpTypes; op++ {
		counters[op].Store(0)
	}
	opStack.clear()
}
