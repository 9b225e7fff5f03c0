package collector

import (
	"errors"
	"sync/atomic"
)

// RuntimeFrameEmit is handed to the runtime stack callback; the callback
// calls it once per frame, innermost first.
type RuntimeFrameEmit func(ip uintptr, function, file string, line int)

// RuntimeStackCallback lets a language runtime embedded in this process
// contribute its own view of the crashing stack (interpreter frames, JIT
// frames) alongside the native capture. It runs on the fault path and must
// follow the same discipline: no allocation, no locks, no blocking.
type RuntimeStackCallback func(emit RuntimeFrameEmit)

// ErrCallbackRegistered rejects a second runtime stack callback; exactly
// one runtime owns the slot for the life of the process.
var ErrCallbackRegistered = errors.New("runtime stack callback already registered")

var runtimeCB atomic.Pointer[RuntimeStackCallback]

// RegisterRuntimeStackCallback claims the single callback slot.
func RegisterRuntimeStackCallback(cb RuntimeStackCallback) error {
	if cb == nil {
		return errors.New("nil runtime stack callback")
	}
	if !runtimeCB.CompareAndSwap(nil, &cb) {
		return ErrCallbackRegistered
	}
	return nil
}

func loadRuntimeCallback() RuntimeStackCallback {
	p := runtimeCB.Load()
	if p == nil {
		return nil
	}
	return *p
}

func resetRuntimeCallback() {
	runtimeCB.Store(nil)
}
