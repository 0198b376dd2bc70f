package compute

import (
	"fmt"
	"math"

	"github.com/born-ml/fusion/internal/tensor"
)

// DefaultWorkgroupSize is the square workgroup edge used by built-in kernels.
const DefaultWorkgroupSize = 16

// WorkgroupSize is the per-workgroup invocation extent declared by a kernel.
type WorkgroupSize struct {
	X, Y, Z uint32
}

// WorkGroup is the number of workgroups dispatched along each axis.
type WorkGroup struct {
	X, Y, Z uint32
}

// NumWorkgroups returns X*Y*Z.
func (w WorkGroup) NumWorkgroups() int {
	return int(w.X) * int(w.Y) * int(w.Z)
}

// Metadata describes the binding layout of a compiled kernel.
type Metadata struct {
	Name          string
	WorkgroupSize WorkgroupSize
	Inputs        []tensor.DataType
	Outputs       []tensor.DataType
}

// KernelSource is a compiled (or compilable) kernel understood by a runtime.
// Sources are immutable and shared across launches.
type KernelSource interface {
	// ID uniquely identifies the source, used as pipeline cache key.
	ID() string
	Metadata() Metadata
}

// Kernel is a kernel source bound to a launch geometry.
type Kernel interface {
	Source() KernelSource
	WorkGroup() WorkGroup
}

// DynamicKernel is a Kernel whose workgroup count is decided per call.
type DynamicKernel struct {
	source    KernelSource
	workgroup WorkGroup
}

// NewDynamicKernel binds source to workgroup.
func NewDynamicKernel(source KernelSource, workgroup WorkGroup) *DynamicKernel {
	return &DynamicKernel{source: source, workgroup: workgroup}
}

// Source returns the kernel source.
func (k *DynamicKernel) Source() KernelSource {
	return k.source
}

// WorkGroup returns the launch geometry.
func (k *DynamicKernel) WorkGroup() WorkGroup {
	return k.workgroup
}

// String implements fmt.Stringer.
func (k *DynamicKernel) String() string {
	return fmt.Sprintf("%s<%dx%dx%d>", k.source.ID(), k.workgroup.X, k.workgroup.Y, k.workgroup.Z)
}

// ElemwiseWorkGroup computes a 2-D grid covering numElems invocations with
// square workgroups of workgroupSize*workgroupSize invocations each.
func ElemwiseWorkGroup(numElems, workgroupSize int) WorkGroup {
	perGroup := float64(workgroupSize * workgroupSize)
	groups := math.Ceil(float64(numElems) / perGroup)
	x := max(math.Ceil(math.Sqrt(groups)), 1)
	y := max(math.Ceil(float64(numElems)/(x*perGroup)), 1)

	return WorkGroup{X: uint32(x), Y: uint32(y), Z: 1}
}
