// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/fusion/internal/tensor"
)

// DType is a constraint for host element types.
// Supported types: float32, float64, int32, int64, uint32, uint8.
type DType = tensor.DType

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint32  DataType = tensor.Uint32
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Vulkan Device = tensor.Vulkan
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Strides holds per-axis element strides; 0 marks a broadcast axis.
type Strides = tensor.Strides

// Description is the shape and element type of a tensor that is not allocated yet.
type Description = tensor.Description

// Data is a host-side row-major copy of tensor contents.
type Data = tensor.Data

// ShapeError reports incompatible shapes. It matches ErrShapeMismatch.
type ShapeError = tensor.ShapeError

// Errors returned by tensor and fusion operations.
var (
	ErrShapeMismatch      = tensor.ErrShapeMismatch
	ErrInvalidPermutation = tensor.ErrInvalidPermutation
	ErrConfiguration      = tensor.ErrConfiguration
	ErrDevice             = tensor.ErrDevice
)

// FromSlice copies a Go slice into host data of the given shape.
func FromSlice[T DType](values []T, shape Shape) (*Data, error) {
	return tensor.FromSlice(values, shape)
}

// ToSlice copies host data into a new Go slice.
func ToSlice[T DType](d *Data) ([]T, error) {
	return tensor.ToSlice[T](d)
}

// ContiguousStrides returns row-major strides for shape.
func ContiguousStrides(shape Shape) Strides {
	return tensor.ContiguousStrides(shape)
}

// IsContiguous reports whether strides describe the row-major layout of shape.
func IsContiguous(shape Shape, strides Strides) bool {
	return tensor.IsContiguous(shape, strides)
}

// BroadcastShapes returns the NumPy broadcast of two shapes.
func BroadcastShapes(a, b Shape) (Shape, error) {
	return tensor.BroadcastShapes(a, b)
}
