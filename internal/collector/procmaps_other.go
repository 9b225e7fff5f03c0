//go:build !linux

package collector

import "os"

const procMapsPath = ""

// openProcMaps reports no memory map off Linux.
func openProcMaps() *os.File {
	return nil
}
