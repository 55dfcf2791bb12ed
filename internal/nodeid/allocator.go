// internal/nodeid/allocator.go
package nodeid

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxID is the largest id an allocator hands out or accepts on restore. It is
// the largest integer a float64 holds exactly, so ids survive any JSON reader.
const MaxID int64 = 1<<53 - 1

// ErrIDOutOfRange is returned when restoring an id outside [0, MaxID].
var ErrIDOutOfRange = errors.New("node id out of range")

// Allocator produces monotonically increasing node ids. The zero value is
// ready to use and starts at 0.
type Allocator struct {
	// next is the id the following call to Next returns.
	next atomic.Int64
}

// NewAllocator creates an allocator whose first id is start.
func NewAllocator(start int) *Allocator {
	a := &Allocator{}
	if start > 0 {
		a.next.Store(int64(start))
	}
	return a
}

// Next returns an id strictly greater than every id previously returned or
// restored by this allocator. It panics once MaxID has been handed out or
// restored, since no larger id exists.
func (a *Allocator) Next() int {
	id := a.next.Add(1) - 1
	if id > MaxID {
		panic(fmt.Sprintf("nodeid: id space exhausted after %d", MaxID))
	}
	return int(id)
}

// Restore records that id is in use, advancing the counter to
// max(current, id+1). Ids outside [0, MaxID] are rejected and leave the
// counter untouched.
func (a *Allocator) Restore(id int) error {
	if id < 0 || int64(id) > MaxID {
		return fmt.Errorf("%w: %d", ErrIDOutOfRange, id)
	}
	want := int64(id) + 1
	for {
		cur := a.next.Load()
		if cur >= want {
			return nil
		}
		if a.next.CompareAndSwap(cur, want) {
			return nil
		}
	}
}

// Peek returns the id the next call to Next will return without consuming it.
func (a *Allocator) Peek() int {
	return int(a.next.Load())
}
