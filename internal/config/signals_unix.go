//go:build unix

package config

import (
	"os"
	"syscall"
)

// DefaultSignals is the monitored set when the embedder doesn't choose one:
// the faults that indicate memory corruption or a deliberate abort.
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGABRT}
}

// SignalNumber extracts the numeric value for wire encoding.
func SignalNumber(sig os.Signal) int32 {
	if s, ok := sig.(syscall.Signal); ok {
		return int32(s)
	}
	return -1
}
