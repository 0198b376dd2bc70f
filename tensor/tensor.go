// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"context"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/jit"
)

// Tensor is a strided view over a device buffer.
type Tensor = jit.Tensor

// Client is a compute runtime owning device buffers (see backend/cpu).
type Client = compute.Client

// FromData uploads host data into a new contiguous tensor.
func FromData(client Client, data *Data) (*Tensor, error) {
	return jit.FromData(client, data)
}

// Empty allocates an uninitialised contiguous tensor.
func Empty(client Client, shape Shape, dtype DataType) (*Tensor, error) {
	return jit.Empty(client, shape, dtype)
}

// IntoData reads the tensor back to the host, giving up when ctx is done.
func IntoData(ctx context.Context, t *Tensor) (*Data, error) {
	return jit.IntoData(ctx, t)
}

// IntoDataSync reads the tensor back to the host, blocking until the device is done.
func IntoDataSync(t *Tensor) (*Data, error) {
	return jit.IntoDataSync(t)
}

// ToDevice moves the tensor to the device driven by client.
func ToDevice(t *Tensor, client Client) (*Tensor, error) {
	return jit.ToDevice(t, client)
}

// SwapDims exchanges two axes without copying.
func SwapDims(t *Tensor, dim1, dim2 int) (*Tensor, error) {
	return jit.SwapDims(t, dim1, dim2)
}

// Permute reorders the axes without copying.
//
// Example:
//
//	y, err := tensor.Permute(x, []int{2, 0, 1}) // [A, B, C] -> [C, A, B]
func Permute(t *Tensor, axes []int) (*Tensor, error) {
	return jit.Permute(t, axes)
}

// Expand broadcasts the tensor to shape using zero strides.
//
// Example:
//
//	y, err := tensor.Expand(x, tensor.Shape{3, 4, 5}) // x has shape [4, 1]
func Expand(t *Tensor, shape Shape) (*Tensor, error) {
	return jit.Expand(t, shape)
}

// Reshape reinterprets the tensor under shape, copying non-contiguous views first.
func Reshape(t *Tensor, shape Shape) (*Tensor, error) {
	return jit.Reshape(t, shape)
}

// IntoContiguous returns a row-major tensor with the same logical content.
func IntoContiguous(t *Tensor) (*Tensor, error) {
	return jit.IntoContiguous(t)
}

// MatMul multiplies 2-D matrices or 3-D batches of matrices.
func MatMul(lhs, rhs *Tensor) (*Tensor, error) {
	return jit.MatMul(lhs, rhs)
}
