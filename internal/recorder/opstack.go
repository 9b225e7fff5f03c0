package recorder

import "sync/atomic"

// opStackCap bounds the number of concurrently in-flight operations we can
// attribute. Overflow is dropped, not grown: the stack is read inside the
// fault handler.
const opStackCap = 128

// inflightStack is a fixed array of CAS slots holding in-flight op tags.
// Slots hold opTag+1 so zero means empty. Only the owning goroutine pops
// its slot; the fault handler is a pure reader.
type inflightStack struct {
	slots [opStackCap]atomic.Int32
}

var opStack inflightStack

func (s *inflightStack) push(op OpType) int32 {
	tagged := int32(op) + 1
	for i := range s.slots {
		if s.slots[i].CompareAndSwap(0, tagged) {
			return int32(i)
		}
	}
	// Full. The counter still recorded the op; we just can't attribute a
	// slot, which is acceptable degradation.
	return -1
}

func (s *inflightStack) pop(slot int32, op OpType) {
	if slot < 0 || int(slot) >= opStackCap {
		return
	}
	s.slots[slot].CompareAndSwap(int32(op)+1, 0)
}

func (s *inflightStack) clear() {
	for i := range s.slots {
		s.slots[i].Store(0)
	}
}

// InflightOps reports which op types currently have at least one in-flight
// operation. The result array is indexed by OpType and is allocation-free.
func InflightOps() [numOpTypes]bool {
	var present [numOpTypes]bool
	for i := range opStack.slots {
		v := opStack.slots[i].Load()
		if v > 0 && OpType(v-1).Valid() {
			present[v-1] = true
		}
	}
	return present
}
