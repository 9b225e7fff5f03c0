// Package wire defines the framing of the collector-to-receiver handoff
// channel. The stream is line-delimited: each section is bracketed by
// BEGIN/END markers with one JSON payload per line in between, and the
// whole report ends with a DONE marker. The framing is self-delimiting on
// purpose — if the collector dies mid-write, every section the receiver
// finished reading is still usable.
//
// Markers are versioned through the section set itself: receivers ignore
// unknown sections, so collectors and receivers can evolve independently.
package wire

// Section names a block of the handoff stream.
type Section string

const (
	SectionConfig       Section = "CONFIG"
	SectionMetadata     Section = "METADATA"
	SectionSigInfo      Section = "SIGINFO"
	SectionProcInfo     Section = "PROCINFO"
	SectionCounters     Section = "COUNTERS"
	SectionTags         Section = "TAGS"
	SectionSpanIDs      Section = "SPAN_IDS"
	SectionTraceIDs     Section = "TRACE_IDS"
	SectionStackTrace   Section = "STACKTRACE"
	SectionRuntimeStack Section = "RUNTIME_STACK"
	SectionFile         Section = "FILE"
	SectionErrorKind    Section = "ERROR_KIND"
	SectionMessage      Section = "MESSAGE"
)

// Sections lists every section a collector may emit.
var Sections = []Section{
	SectionConfig, SectionMetadata, SectionSigInfo, SectionProcInfo,
	SectionCounters, SectionTags, SectionSpanIDs, SectionTraceIDs,
	SectionStackTrace, SectionRuntimeStack, SectionFile,
	SectionErrorKind, SectionMessage,
}

const markerPrefix = "DD_CRASHTRACK_"

// Done terminates a complete report.
const Done = markerPrefix + "DONE"

// Markers are built once here. The emitter runs inside a fault handler and
// must not concatenate strings per line.
var (
	beginMarkers = make(map[Section]string, len(Sections))
	endMarkers   = make(map[Section]string, len(Sections))
)

func init() {
	for _, s := range Sections {
		beginMarkers[s] = markerPrefix + "BEGIN_" + string(s)
		endMarkers[s] = markerPrefix + "END_" + string(s)
	}
}

// Begin returns the opening marker for a section.
func Begin(s Section) string {
	return beginMarkers[s]
}

// End returns the closing marker for a section.
func End(s Section) string {
	return endMarkers[s]
}
