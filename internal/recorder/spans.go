package recorder

import (
	"math/rand/v2"
	"sync/atomic"
)

// spanCap bounds each of the span and trace id sets, half-filled at most.
const spanCap = 2048

func probeStart(capacity int) int {
	// Random probe start keeps insertion amortized constant time when the
	// set is at most half full. Normal-path only.
	return rand.IntN(capacity)
}

// idSlot holds one 128-bit identifier behind a state word so readers never
// observe a half-written pair. Identifiers wider than 64 bits are supplied
// split into high/low halves because that is the widest native atomic.
type idSlot struct {
	state atomic.Int32 // 0 empty, 1 claimed, 2 ready
	high  uint64
	low   uint64
}

const (
	slotEmpty int32 = iota
	slotClaimed
	slotReady
)

type idSet struct {
	used  atomic.Int64
	slots [spanCap]idSlot
}

var (
	activeSpans  idSet
	activeTraces idSet
)

func (s *idSet) insert(high, low uint64) (int, bool) {
	if high == 0 && low == 0 {
		return 0, false
	}
	if s.used.Add(1) > spanCap/2 {
		s.used.Add(-1)
		return 0, false
	}
	start := probeStart(spanCap)
	for i := 0; i < spanCap; i++ {
		idx := (start + i) % spanCap
		slot := &s.slots[idx]
		if slot.state.CompareAndSwap(slotEmpty, slotClaimed) {
			slot.high, slot.low = high, low
			slot.state.Store(slotReady)
			return idx, true
		}
	}
	s.used.Add(-1)
	return 0, false
}

func (s *idSet) remove(idx int, high, low uint64) bool {
	if idx < 0 || idx >= spanCap {
		return false
	}
	slot := &s.slots[idx]
	if slot.state.Load() != slotReady || slot.high != high || slot.low != low {
		return false
	}
	if slot.state.CompareAndSwap(slotReady, slotClaimed) {
		slot.high, slot.low = 0, 0
		slot.state.Store(slotEmpty)
		s.used.Add(-1)
		return true
	}
	return false
}

// visit walks ready slots without allocating.
func (s *idSet) visit(fn func(high, low uint64)) {
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.state.Load() == slotReady {
			fn(slot.high, slot.low)
		}
	}
}

func (s *idSet) clear() {
	for i := range s.slots {
		s.slots[i].state.Store(slotEmpty)
		s.slots[i].high, s.slots[i].low = 0, 0
	}
	s.used.Store(0)
}

func (s *idSet) len() int {
	return int(s.used.Load())
}

// InsertSpanID records an in-flight span id. Returns the slot index for the
// matching RemoveSpanID, and false when the set is full (dropped silently).
func InsertSpanID(high, low uint64) (int, bool) {
	return activeSpans.insert(high, low)
}

// RemoveSpanID clears a span id previously inserted at idx.
func RemoveSpanID(idx int, high, low uint64) bool {
	return activeSpans.remove(idx, high, low)
}

// InsertTraceID records an in-flight trace id.
func InsertTraceID(high, low uint64) (int, bool) {
	return activeTraces.insert(high, low)
}

// RemoveTraceID clears a trace id previously inserted at idx.
func RemoveTraceID(idx int, high, low uint64) bool {
	return activeTraces.remove(idx, high, low)
}

// VisitSpanIDs walks the active span ids, fault-path safe.
func VisitSpanIDs(fn func(high, low uint64)) { activeSpans.visit(fn) }

// VisitTraceIDs walks the active trace ids, fault-path safe.
func VisitTraceIDs(fn func(high, low uint64)) { activeTraces.visit(fn) }

// SpanIDCount returns the number of active span ids.
func SpanIDCount() int { return activeSpans.len() }

// TraceIDCount returns the number of active trace ids.
func TraceIDCount() int { return activeTraces.len() }

// ResetSpans clears both id sets. Called on init and between tests.
func ResetSpans() {
	activeSpans.clear()
	activeTraces.clear()
}

// ResetAll restores the recorder to its initial state. Tests use this to
// isolate runs; production calls it once at init.
func ResetAll() {
	ResetCounters()
	ResetTags()
	ResetSpans()
}
