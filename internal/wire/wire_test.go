package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkers(t *testing.T) {
	assert.Equal(t, "DD_CRASHTRACK_BEGIN_SIGINFO", Begin(SectionSigInfo))
	assert.Equal(t, "DD_CRASHTRACK_END_SIGINFO", End(SectionSigInfo))
	assert.Equal(t, "DD_CRASHTRACK_DONE", Done)
}

func TestMarkersAreUnique(t *testing.T) {
	seen := map[string]bool{Done: true}
	for _, s := range Sections {
		for _, m := range []string{Begin(s), End(s)} {
			assert.False(t, seen[m], m)
			seen[m] = true
		}
	}
}

func TestMarkersDoNotAllocate(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		for _, s := range Sections {
			_ = Begin(s)
			_ = End(s)
		}
	})
	assert.Zero(t, allocs)
}
