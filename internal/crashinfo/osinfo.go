package crashinfo

import (
	"strconv"

	"github.com/shirou/gopsutil/v3/host"
)

// CollectOSInfo queries the host for OS identity. This allocates and may
// touch the filesystem, so it runs only in the receiver (or other normal
// execution contexts), never in the fault path.
func CollectOSInfo() OSInfo {
	info := UnknownOSInfo()
	h, err := host.Info()
	if err != nil {
		return info
	}
	if h.OS != "" {
		info.OSType = h.OS
	}
	if h.PlatformVersion != "" {
		info.Version = h.Platform + " " + h.PlatformVersion
	} else if h.KernelVersion != "" {
		info.Version = h.KernelVersion
	}
	if h.KernelArch != "" {
		info.Architecture = h.KernelArch
	}
	info.Bitness = strconv.Itoa(strconv.IntSize)
	return info
}
