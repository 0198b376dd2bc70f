// Package fusion selects and prepares the compiled kernel that runs a fused
// elementwise chain: scalar or vectorized, writing fresh outputs or
// overwriting its inputs in place.
package fusion

import (
	"fmt"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
)

// Priority ranks a kernel for a given call. Unavailable kernels never run.
type Priority struct {
	available bool
	score     int
}

// Available returns a priority with the given score; higher is preferred.
func Available(score int) Priority {
	return Priority{available: true, score: score}
}

// Unavailable returns the priority of a kernel that cannot run the call.
func Unavailable() Priority {
	return Priority{}
}

// IsAvailable reports whether the kernel can run the call.
func (p Priority) IsAvailable() bool {
	return p.available
}

// Score returns the score of an available priority.
func (p Priority) Score() int {
	return p.score
}

// Compare returns -1, 0 or +1. Unavailable sorts below every available score.
func (p Priority) Compare(other Priority) int {
	switch {
	case p.available != other.available:
		if p.available {
			return 1
		}
		return -1
	case p.score < other.score:
		return -1
	case p.score > other.score:
		return 1
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	if !p.available {
		return "Unavailable"
	}
	return fmt.Sprintf("Available(%d)", p.score)
}

// OutputInfo tells the executor how to obtain the buffer of one output.
type OutputInfo struct {
	// Inplace outputs reuse the buffer of input InputIndex.
	Inplace    bool
	InputIndex int
	// Size is the byte size of a fresh buffer when Inplace is false.
	Size int
}

// InplaceOutput reuses the buffer of input index.
func InplaceOutput(index int) OutputInfo {
	return OutputInfo{Inplace: true, InputIndex: index}
}

// ArrayOutput allocates a fresh buffer of size bytes.
func ArrayOutput(size int) OutputInfo {
	return OutputInfo{Size: size}
}

// String implements fmt.Stringer.
func (o OutputInfo) String() string {
	if o.Inplace {
		return fmt.Sprintf("Inplace(input=%d)", o.InputIndex)
	}
	return fmt.Sprintf("Array(%dB)", o.Size)
}

// SelectedKernel is a runnable kernel and the allocation plan of its outputs.
type SelectedKernel struct {
	Kernel  compute.Kernel
	Outputs []OutputInfo
}

// Handle is the runtime state of one actual input: its buffer and layout.
type Handle struct {
	Handle  *compute.Handle
	Strides tensor.Strides
}

// FusionKernel is one registered kernel family (scalar or vectorized).
type FusionKernel interface {
	// Kernel prepares the launch for the call.
	Kernel(handles []Handle, inputs, outputs []tensor.Description) (SelectedKernel, error)
	// Priority ranks the family for the call.
	Priority(handles []Handle, inputs, outputs []tensor.Description) Priority
}
