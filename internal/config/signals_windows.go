//go:build windows

package config

import "os"

// DefaultSignals is empty on Windows; crashes arrive through the
// unhandled-exception entry point instead of POSIX signals.
func DefaultSignals() []os.Signal {
	return nil
}

// SignalNumber has no meaning on Windows.
func SignalNumber(os.Signal) int32 {
	return -1
}
