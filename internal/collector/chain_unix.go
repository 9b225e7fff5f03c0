//go:build unix

package collector

import (
	"os"
	"os/signal"
	"syscall"
)

// chainSignal restores the signal's previous disposition and re-raises it
// at the whole process, so whatever would have handled the crash without
// us still gets its turn and the exit status stays truthful.
func chainSignal(sig os.Signal) {
	signal.Reset(sig)
	if s, ok := sig.(syscall.Signal); ok {
		syscall.Kill(os.Getpid(), s)
	}
}
