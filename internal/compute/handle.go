package compute

import "sync/atomic"

// Memory is a runtime-specific device allocation (host bytes, GPU buffer, ...).
type Memory interface {
	// Size returns the allocated size in bytes.
	Size() int
}

// resource is the reference-counted allocation shared by every Handle clone.
type resource struct {
	memory   Memory
	refCount atomic.Int32
	free     func(Memory)
}

// Handle is one reference to device memory.
//
// A tensor and every view derived from it (reshape, permute, expand) hold
// their own Handle over the same resource. Exclusive mutation is allowed only
// while a single reference is alive, which is what CanMut reports.
type Handle struct {
	res      *resource
	released atomic.Bool
}

// NewHandle wraps memory in a Handle with a single reference.
// free is called once, when the last reference is released (may be nil).
func NewHandle(memory Memory, free func(Memory)) *Handle {
	res := &resource{memory: memory, free: free}
	res.refCount.Store(1)
	return &Handle{res: res}
}

// Clone returns a new reference to the same memory.
// Cloning a released handle panics: its memory may already be reused.
func (h *Handle) Clone() *Handle {
	if h.released.Load() {
		panic("compute: clone of released handle")
	}
	h.res.refCount.Add(1)
	return &Handle{res: h.res}
}

// Release drops this reference. Releasing the same Handle twice is a no-op.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if h.res.refCount.Add(-1) == 0 && h.res.free != nil {
		h.res.free(h.res.memory)
	}
}

// CanMut reports whether this is the only live reference to the memory,
// so a kernel may overwrite it in place.
func (h *Handle) CanMut() bool {
	return !h.released.Load() && h.res.refCount.Load() == 1
}

// Memory returns the underlying allocation.
func (h *Handle) Memory() Memory {
	return h.res.memory
}

// Size returns the allocation size in bytes.
func (h *Handle) Size() int {
	return h.res.memory.Size()
}

// SameMemory reports whether both handles reference the same allocation.
func (h *Handle) SameMemory(other *Handle) bool {
	return other != nil && h.res == other.res
}

// RefCount returns the number of live references (for diagnostics and tests).
func (h *Handle) RefCount() int {
	return int(h.res.refCount.Load())
}
