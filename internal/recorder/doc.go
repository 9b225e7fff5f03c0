// Package recorder tracks low-overhead forensic context on the normal path
// so the fault interceptor has something to read when a crash happens.
//
// Everything here lives in fixed-capacity, pre-allocated storage and is
// updated with plain atomics. The fault handler only ever reads: it takes
// no locks (any lock could already be held by the code that just crashed)
// and allocates nothing. When capacity runs out, inserts are dropped
// silently — the recorder must never be the cause of a secondary fault.
package recorder
