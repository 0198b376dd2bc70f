// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for strided device tensors.
//
// A Tensor is a view (shape and strides) over a reference-counted device
// buffer. View transforms never copy:
//   - SwapDims and Permute reorder axes
//   - Expand broadcasts with zero strides
//   - Reshape reinterprets a contiguous buffer (copying only non-contiguous views)
//
// Example:
//
//	runtime := cpu.New()
//	data, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	x, _ := tensor.FromData(runtime, data)
//	defer x.Release()
//
//	xt, _ := tensor.SwapDims(x, 0, 1) // Shape [3, 2], strides [1, 3]
//	defer xt.Release()
package tensor
