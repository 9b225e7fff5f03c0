package receiver

import (
	"bufio"
	"fmt"
	"os"

	"github.com/DataDog/libdatadog/internal/crashinfo"
)

// maxAttachedLines caps any attached file. Memory maps of large processes
// run to thousands of lines; past that the tail is noise.
const maxAttachedLines = 10000

// attachFile reads path line by line into the report's file map.
func attachFile(info *crashinfo.CrashInfo, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() && len(lines) < maxAttachedLines {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Files == nil {
		info.Files = make(map[string][]string)
	}
	info.Files[path] = lines
	return nil
}
