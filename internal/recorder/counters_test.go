package recorder

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginOpEnd(t *testing.T) {
	ResetAll()

	g := BeginOp(OpCollectingSample)
	assert.Equal(t, int64(1), CounterValue(OpCollectingSample))

	g.End()
	assert.Equal(t, int64(0), CounterValue(OpCollectingSample))

	// End is idempotent.
	g.End()
	assert.Equal(t, int64(0), CounterValue(OpCollectingSample))
}

// A crash mid-operation must show that operation as in flight: this is the
// whole point of the counters.
func TestCounterSnapshotMidOperation(t *testing.T) {
	ResetAll()

	g := BeginOp(OpCollectingSample)
	defer g.End()

	snap := CounterSnapshot()
	require.Equal(t, int64(1), snap["collecting_sample"])
	assert.Equal(t, int64(0), snap["unwinding"])
	assert.Equal(t, int64(0), snap["serializing"])
	assert.Equal(t, int64(0), snap["not_profiling"])
}

func TestVisitCountersMatchesSnapshot(t *testing.T) {
	ResetAll()

	g1 := BeginOp(OpUnwinding)
	g2 := BeginOp(OpUnwinding)
	defer g1.End()
	defer g2.End()

	seen := map[string]int64{}
	VisitCounters(func(op OpType, value int64) {
		seen[op.String()] = value
	})
	assert.Equal(t, CounterSnapshot(), seen)
	assert.Equal(t, int64(2), seen["unwinding"])
}

func TestBeginOpInvalid(t *testing.T) {
	ResetAll()

	g := BeginOp(OpType(99))
	g.End() // must not panic or underflow anything

	VisitCounters(func(_ OpType, value int64) {
		assert.Equal(t, int64(0), value)
	})
}

func TestInflightOps(t *testing.T) {
	ResetAll()

	g := BeginOp(OpSerializing)
	inflight := InflightOps()
	assert.True(t, inflight[OpSerializing])
	assert.False(t, inflight[OpCollectingSample])

	g.End()
	inflight = InflightOps()
	assert.False(t, inflight[OpSerializing])
}

func TestCountersConcurrent(t *testing.T) {
	ResetAll()

	const goroutines = 32
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				g := BeginOp(OpCollectingSample)
				g.End()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), CounterValue(OpCollectingSample))
}
