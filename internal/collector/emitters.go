package collector

import (
	"io"
	"strconv"

	"github.com/DataDog/libdatadog/internal/crashinfo"
	"github.com/DataDog/libdatadog/internal/recorder"
	"github.com/DataDog/libdatadog/internal/wire"
)

// faultContext carries everything the fault knows about itself into the
// emitters. Strings here are pre-existing (constants or pre-built on the
// normal path); nothing in this struct is allocated at fault time.
type faultContext struct {
	kind    crashinfo.ErrorKind
	message string

	hasSignal bool
	signum    int32
	siCode    int32
	faultAddr uintptr

	// Caller-built stack for exception reports. The JSON lines are
	// pre-serialized before dispatch; they replace the native capture.
	frames     []crashinfo.StackFrame
	framesJSON [][]byte
}

// emitter serializes the handoff stream. It formats into the pre-allocated
// scratch buffer and writes whole lines, so a partially written line never
// reaches the receiver and the first write error latches.
type emitter struct {
	w   io.Writer
	buf []byte
	err error
}

func newEmitter(w io.Writer) *emitter {
	return &emitter{w: w, buf: global.scratch[:0]}
}

func (e *emitter) flushLine() {
	if e.err != nil {
		e.buf = e.buf[:0]
		return
	}
	e.buf = append(e.buf, '\n')
	_, e.err = e.w.Write(e.buf)
	e.buf = e.buf[:0]
}

func (e *emitter) marker(m string) {
	e.buf = append(e.buf, m...)
	e.flushLine()
}

func (e *emitter) rawLine(data []byte) {
	e.buf = append(e.buf, data...)
	e.flushLine()
}

// quotedLine writes s as a single JSON string line.
func (e *emitter) quotedLine(s string) {
	e.buf = strconv.AppendQuote(e.buf, s)
	e.flushLine()
}

// appendHex writes v as 0x-prefixed zero-padded 16-digit hex.
func appendHex(buf []byte, v uint64) []byte {
	buf = append(buf, '0', 'x')
	for shift := 60; shift >= 0; shift -= 4 {
		buf = append(buf, "0123456789abcdef"[(v>>uint(shift))&0xf])
	}
	return buf
}

func (e *emitter) emitConfig() {
	if data := global.cfgJSON.Load(); data != nil {
		e.marker(wire.Begin(wire.SectionConfig))
		e.rawLine(*data)
		e.marker(wire.End(wire.SectionConfig))
	}
}

func (e *emitter) emitMetadata() {
	if data := global.metadataJSON.Load(); data != nil {
		e.marker(wire.Begin(wire.SectionMetadata))
		e.rawLine(*data)
		e.marker(wire.End(wire.SectionMetadata))
	}
}

func (e *emitter) emitProcInfo() {
	e.marker(wire.Begin(wire.SectionProcInfo))
	e.buf = append(e.buf, `{"pid":`...)
	e.buf = strconv.AppendInt(e.buf, int64(global.pid), 10)
	e.buf = append(e.buf, '}')
	e.flushLine()
	e.marker(wire.End(wire.SectionProcInfo))
}

func (e *emitter) emitErrorKind(fc *faultContext) {
	e.marker(wire.Begin(wire.SectionErrorKind))
	e.quotedLine(string(fc.kind))
	e.marker(wire.End(wire.SectionErrorKind))
}

func (e *emitter) emitMessage(fc *faultContext) {
	if fc.message == "" {
		return
	}
	e.marker(wire.Begin(wire.SectionMessage))
	e.quotedLine(fc.message)
	e.marker(wire.End(wire.SectionMessage))
}

// emitSigInfo ships the raw numbers; the receiver owns translation to
// names, which keeps the fault path down to three integer formats.
func (e *emitter) emitSigInfo(fc *faultContext) {
	if !fc.hasSignal {
		return
	}
	e.marker(wire.Begin(wire.SectionSigInfo))
	e.buf = append(e.buf, `{"si_signo":`...)
	e.buf = strconv.AppendInt(e.buf, int64(fc.signum), 10)
	e.buf = append(e.buf, `,"si_code":`...)
	e.buf = strconv.AppendInt(e.buf, int64(fc.siCode), 10)
	if fc.faultAddr != 0 {
		e.buf = append(e.buf, `,"si_addr":"`...)
		e.buf = appendHex(e.buf, uint64(fc.faultAddr))
		e.buf = append(e.buf, '"')
	}
	e.buf = append(e.buf, '}')
	e.flushLine()
	e.marker(wire.End(wire.SectionSigInfo))
}

func (e *emitter) emitCounters() {
	e.marker(wire.Begin(wire.SectionCounters))
	recorder.VisitCounters(func(op recorder.OpType, value int64) {
		e.buf = append(e.buf, `{"`...)
		e.buf = append(e.buf, op.String()...)
		e.buf = append(e.buf, `":`...)
		e.buf = strconv.AppendInt(e.buf, value, 10)
		e.buf = append(e.buf, '}')
		e.flushLine()
	})
	e.marker(wire.End(wire.SectionCounters))
}

// appendEscaped appends s JSON-escaped but without surrounding quotes, so
// callers can join several values inside one string.
func appendEscaped(buf []byte, s string) []byte {
	n := len(buf)
	buf = strconv.AppendQuote(buf, s)
	inner := buf[n+1 : len(buf)-1]
	copy(buf[n:], inner)
	return buf[:n+len(inner)]
}

func (e *emitter) emitTags() {
	e.marker(wire.Begin(wire.SectionTags))
	recorder.VisitTags(func(key, value string) {
		e.buf = append(e.buf, '"')
		e.buf = appendEscaped(e.buf, key)
		e.buf = append(e.buf, ':')
		e.buf = appendEscaped(e.buf, value)
		e.buf = append(e.buf, '"')
		e.flushLine()
	})
	e.marker(wire.End(wire.SectionTags))
}

func (e *emitter) emitIDSection(section wire.Section, visit func(func(high, low uint64))) {
	e.marker(wire.Begin(section))
	visit(func(high, low uint64) {
		e.buf = append(e.buf, '"')
		if high != 0 {
			e.buf = appendHex(e.buf, high)
			// Low half without the 0x prefix.
			for shift := 60; shift >= 0; shift -= 4 {
				e.buf = append(e.buf, "0123456789abcdef"[(low>>uint(shift))&0xf])
			}
		} else {
			e.buf = appendHex(e.buf, low)
		}
		e.buf = append(e.buf, '"')
		e.flushLine()
	})
	e.marker(wire.End(section))
}

// emitFrame writes one raw stack frame. Resolved fields are absent on the
// fault path; the receiver adds them when the policy says so.
func (e *emitter) emitFrame(ip, sp uintptr, function, file string, line int) {
	e.buf = append(e.buf, `{"ip":"`...)
	e.buf = appendHex(e.buf, uint64(ip))
	e.buf = append(e.buf, '"')
	if sp != 0 {
		e.buf = append(e.buf, `,"sp":"`...)
		e.buf = appendHex(e.buf, uint64(sp))
		e.buf = append(e.buf, '"')
	}
	if function != "" {
		e.buf = append(e.buf, `,"function":`...)
		e.buf = strconv.AppendQuote(e.buf, function)
	}
	if file != "" {
		e.buf = append(e.buf, `,"file":`...)
		e.buf = strconv.AppendQuote(e.buf, file)
	}
	if line > 0 {
		e.buf = append(e.buf, `,"line":`...)
		e.buf = strconv.AppendInt(e.buf, int64(line), 10)
	}
	e.buf = append(e.buf, '}')
	e.flushLine()
}

func (e *emitter) emitStackTrace(fc *faultContext, sc *StackCollector) {
	e.marker(wire.Begin(wire.SectionStackTrace))
	if len(fc.framesJSON) > 0 {
		for _, data := range fc.framesJSON {
			e.rawLine(data)
		}
	} else if sc != nil {
		sc.visitFrames(e)
	}
	e.marker(wire.End(wire.SectionStackTrace))
}

// appendJSONBytes appends b as JSON string content (no surrounding quotes)
// without allocating. Only the escapes a memory map can need.
func appendJSONBytes(buf []byte, b []byte) []byte {
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			buf = append(buf, '\\', c)
		case c < 0x20:
			buf = append(buf, '\\', 'u', '0', '0',
				"0123456789abcdef"[c>>4], "0123456789abcdef"[c&0xf])
		default:
			buf = append(buf, c)
		}
	}
	return buf
}

// emitMemoryMap streams the pre-opened /proc/self/maps through a FILE
// section. The fd was opened at init; the fault path only seeks, reads
// into pre-allocated buffers, and writes one quoted line at a time.
func (e *emitter) emitMemoryMap() {
	f := global.mapsFile
	if f == nil {
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	e.marker(wire.Begin(wire.SectionFile))
	e.quotedLine(procMapsPath)

	chunk := global.fileChunk
	line := global.fileLine[:0]
	for {
		n, err := f.Read(chunk)
		for _, c := range chunk[:n] {
			if c == '\n' {
				e.buf = append(e.buf, '"')
				e.buf = appendJSONBytes(e.buf, line)
				e.buf = append(e.buf, '"')
				e.flushLine()
				line = line[:0]
			} else if len(line) < cap(line) {
				line = append(line, c)
			}
		}
		if err != nil || n == 0 {
			break
		}
	}
	if len(line) > 0 {
		e.buf = append(e.buf, '"')
		e.buf = appendJSONBytes(e.buf, line)
		e.buf = append(e.buf, '"')
		e.flushLine()
	}
	e.marker(wire.End(wire.SectionFile))
}

func (e *emitter) emitRuntimeStack() {
	cb := loadRuntimeCallback()
	if cb == nil {
		return
	}
	e.marker(wire.Begin(wire.SectionRuntimeStack))
	cb(func(ip uintptr, function, file string, line int) {
		e.emitFrame(ip, 0, function, file, line)
	})
	e.marker(wire.End(wire.SectionRuntimeStack))
}

// emitReport writes the full handoff stream: every completed section is
// independently usable by the receiver, and the DONE marker only appears
// if everything before it was written.
func emitReport(w io.Writer, fc *faultContext) error {
	e := newEmitter(w)
	e.emitConfig()
	e.emitMetadata()
	e.emitErrorKind(fc)
	e.emitMessage(fc)
	e.emitSigInfo(fc)
	e.emitProcInfo()
	e.emitCounters()
	e.emitTags()
	e.emitIDSection(wire.SectionSpanIDs, recorder.VisitSpanIDs)
	e.emitIDSection(wire.SectionTraceIDs, recorder.VisitTraceIDs)
	e.emitStackTrace(fc, global.stacks.Load())
	e.emitRuntimeStack()
	e.emitMemoryMap()
	e.marker(wire.Done)
	return e.err
}
