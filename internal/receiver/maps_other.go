//go:build !linux

package receiver

import "github.com/DataDog/libdatadog/internal/logging"

// attachMemoryMap is a no-op off Linux; there is no procfs to read.
func (rcv *Receiver) attachMemoryMap(*Report, *logging.Logger) {}
