package session

import "sync/atomic"

// sequenceCounter produces monotonically increasing 16-bit sequence
// numbers, starting at 0 and wrapping to 1 at 65536 - it never returns 0,
// since 0 is reserved to mean "no sequence" in the Pending Command Table.
type sequenceCounter struct {
	n atomic.Uint32
}

func (c *sequenceCounter) next() uint16 {
	for {
		v := uint16(c.n.Add(1))
		if v != 0 {
			return v
		}
		// wrapped to exactly 0: bump again to skip it
	}
}
