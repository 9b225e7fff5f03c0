// Package receiver implements the out-of-process half of the crash
// pipeline. It reads the handoff stream from stdin, rebuilds the crash
// report, finishes the work the collector could not safely do in a
// crashing process (symbolization, OS info, file attachment), and
// delivers the result.
//
// The parser is deliberately forgiving: the stream comes from a process
// that was dying while it wrote. Every section that arrived complete is
// used; a truncated stream yields a report marked incomplete rather than
// no report at all.
package receiver
