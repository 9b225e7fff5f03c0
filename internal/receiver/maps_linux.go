//go:build linux

package receiver

import (
	"fmt"
	"strings"

	"github.com/DataDog/libdatadog/internal/logging"
)

// attachMemoryMap is the fallback for reports whose collector could not
// ship its own memory map. The parent blocks on our exit, so
// /proc/<pid>/maps is usually still readable here; the mapping is what
// offline symbolization needs to turn raw instruction pointers into
// symbols.
func (rcv *Receiver) attachMemoryMap(report *Report, log *logging.Logger) {
	for path := range report.Info.Files {
		if strings.HasSuffix(path, "/maps") {
			return
		}
	}
	if report.PID == 0 {
		return
	}
	path := fmt.Sprintf("/proc/%d/maps", report.PID)
	if err := attachFile(report.Info, path); err != nil {
		log.Warn("attaching memory map failed", "error", err.Error())
	}
}
