// Package jit implements device-resident tensors and the strided view
// transforms over them: swap, permute, broadcast-expand and reshape.
package jit

import (
	"fmt"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
)

// Tensor is a strided view over a device buffer.
//
// Several tensors may reference the same buffer (a tensor and its views).
// Each holds its own handle reference; call Release when done with a tensor.
type Tensor struct {
	client  compute.Client
	device  tensor.Device
	shape   tensor.Shape
	strides tensor.Strides
	handle  *compute.Handle
	dtype   tensor.DataType
}

// New creates a tensor with explicit strides. The tensor takes ownership of handle.
func New(client compute.Client, shape tensor.Shape, strides tensor.Strides, handle *compute.Handle, dtype tensor.DataType) *Tensor {
	if len(shape) != len(strides) {
		panic(fmt.Sprintf("jit: shape %v and strides %v have different ranks", shape, strides))
	}
	return &Tensor{
		client:  client,
		device:  client.Device(),
		shape:   shape,
		strides: strides,
		handle:  handle,
		dtype:   dtype,
	}
}

// NewContiguous creates a row-major tensor over handle. The tensor takes ownership of handle.
func NewContiguous(client compute.Client, shape tensor.Shape, handle *compute.Handle, dtype tensor.DataType) *Tensor {
	return New(client, shape.Clone(), tensor.ContiguousStrides(shape), handle, dtype)
}

// Client returns the compute client owning the buffer.
func (t *Tensor) Client() compute.Client {
	return t.client
}

// Device returns the device the buffer lives on.
func (t *Tensor) Device() tensor.Device {
	return t.device
}

// Shape returns the logical shape.
func (t *Tensor) Shape() tensor.Shape {
	return t.shape
}

// Strides returns the element strides.
func (t *Tensor) Strides() tensor.Strides {
	return t.strides
}

// Handle returns the buffer reference held by this tensor.
func (t *Tensor) Handle() *compute.Handle {
	return t.handle
}

// DType returns the element type.
func (t *Tensor) DType() tensor.DataType {
	return t.dtype
}

// NumElements returns the number of logical elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// IsContiguous reports whether the layout is row-major.
func (t *Tensor) IsContiguous() bool {
	return tensor.IsContiguous(t.shape, t.strides)
}

// CanMut reports whether no other tensor references the buffer.
func (t *Tensor) CanMut() bool {
	return t.handle.CanMut()
}

// Description returns the logical description of the tensor.
func (t *Tensor) Description() tensor.Description {
	return tensor.Description{Shape: t.shape, DType: t.dtype}
}

// Binding returns the launch binding for this tensor.
func (t *Tensor) Binding() compute.Binding {
	return compute.Binding{
		Handle:  t.handle,
		Shape:   t.shape,
		Strides: t.strides,
		DType:   t.dtype,
	}
}

// Clone returns a new tensor sharing the buffer (the reference count is increased).
func (t *Tensor) Clone() *Tensor {
	return t.withLayout(t.shape.Clone(), t.strides.Clone())
}

// Release drops this tensor's buffer reference.
func (t *Tensor) Release() {
	t.handle.Release()
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, %s, shape=%v, strides=%v)", t.device, t.dtype, []int(t.shape), []int(t.strides))
}

// withLayout returns a view of the same buffer under another layout.
func (t *Tensor) withLayout(shape tensor.Shape, strides tensor.Strides) *Tensor {
	return &Tensor{
		client:  t.client,
		device:  t.device,
		shape:   shape,
		strides: strides,
		handle:  t.handle.Clone(),
		dtype:   t.dtype,
	}
}
