package recorder

import "sync/atomic"

// tagCap bounds the process-wide tag map. Only half the slots are ever
// filled so random-probe insertion stays amortized constant time.
const tagCap = 256

type tagEntry struct {
	key, value string
}

type tagSet struct {
	used  atomic.Int64
	slots [tagCap]atomic.Pointer[tagEntry]
}

var tags tagSet

// InsertTag records a key=value tag for inclusion in any future crash
// report. On exhaustion the insert is dropped silently; the return value
// exists for tests, not for error handling.
func InsertTag(key, value string) bool {
	if key == "" {
		return false
	}
	return tags.insert(&tagEntry{key: key, value: value})
}

func (s *tagSet) insert(e *tagEntry) bool {
	// Replace an existing key in place.
	for i := range s.slots {
		if old := s.slots[i].Load(); old != nil && old.key == e.key {
			s.slots[i].Store(e)
			return true
		}
	}
	if s.used.Add(1) > tagCap/2 {
		s.used.Add(-1)
		return false
	}
	start := probeStart(tagCap)
	for i := 0; i < tagCap; i++ {
		idx := (start + i) % tagCap
		if s.slots[idx].CompareAndSwap(nil, e) {
			return true
		}
	}
	s.used.Add(-1)
	return false
}

// TagSnapshot copies the current tags into a map. Normal-path only.
func TagSnapshot() map[string]string {
	snap := make(map[string]string)
	for i := range tags.slots {
		if e := tags.slots[i].Load(); e != nil {
			snap[e.key] = e.value
		}
	}
	return snap
}

// VisitTags walks the tags without allocating, for the fault-path emitter.
func VisitTags(visit func(key, value string)) {
	for i := range tags.slots {
		if e := tags.slots[i].Load(); e != nil {
			visit(e.key, e.value)
		}
	}
}

// ResetTags clears the tag set. Called on init and between tests.
func ResetTags() {
	for i := range tags.slots {
		tags.slots[i].Store(nil)
	}
	tags.used.Store(0)
}
