package kb

import (
	"sync/atomic"

	"github.com/roach88/akl/internal/ir"
)

// Allocator issues entity ids. The first id is 1 and every call returns
// the previous value plus one, so replaying the same op stream against a
// fresh Allocator reproduces the same ids.
type Allocator struct {
	last atomic.Int64
}

// NewAllocator creates an allocator whose first id is 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns a fresh id.
func (a *Allocator) Next() ir.EntityID {
	return ir.EntityID(a.last.Add(1))
}

// Last returns the most recently issued id, or 0 if none was issued.
func (a *Allocator) Last() ir.EntityID {
	return ir.EntityID(a.last.Load())
}
