//go:build linux

package collector

import "os"

// procMapsPath is emitted with the report so consumers know what the
// attached file is.
const procMapsPath = "/proc/self/maps"

// openProcMaps opens the process memory map at init time. Some kernels
// restrict who may read another process's maps, so the collector reads its
// own and ships the contents rather than hoping the receiver is allowed to.
func openProcMaps() *os.File {
	f, err := os.Open(procMapsPath)
	if err != nil {
		return nil
	}
	return f
}
