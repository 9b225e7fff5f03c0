//go:build windows

package collector

import (
	"os"
	"os/signal"
)

// chainSignal on Windows can only restore the default disposition; there
// is no raise-at-process equivalent for the console events Go surfaces as
// signals.
func chainSignal(sig os.Signal) {
	signal.Reset(sig)
}
