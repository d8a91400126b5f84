package learner

import "sync/atomic"

// IDAllocator hands out process-unique learner ids. Share one instance across
// every call site that creates learners.
type IDAllocator struct {
	next atomic.Int64
}

// NewIDAllocator returns an allocator whose first id is start.
func NewIDAllocator(start int64) *IDAllocator {
	a := &IDAllocator{}
	a.next.Store(start)
	return a
}

// Next returns a fresh id.
func (a *IDAllocator) Next() int64 {
	return a.next.Add(1) - 1
}

// Peek returns the id the next call to Next will return.
func (a *IDAllocator) Peek() int64 {
	return a.next.Load()
}

// DefaultIDs is the process-wide allocator used when callers do not inject one.
var DefaultIDs = NewIDAllocator(0)

func ensureIDs(ids *IDAllocator) *IDAllocator {
	if ids != nil {
		return ids
	}
	return DefaultIDs
}
