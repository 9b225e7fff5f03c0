// Package collector is the in-process half of the crash pipeline: the
// fault interceptor, the stack collector, and the receiver handoff.
//
// Code on the fault path runs after the process has already broken. The
// rules there are strict: no heap allocation, no locks that arbitrary
// other code might hold, no non-reentrant calls, and nothing unbounded.
// Every buffer the fault path touches is pre-allocated at init time, and
// every value it serializes was either pre-serialized on the normal path
// or is formatted into the pre-allocated scratch buffer.
package collector
