package tensor

import (
	"github.com/pkg/errors"
)

// Strides holds per-axis element strides. A zero stride marks a broadcast axis.
type Strides []int

// ContiguousStrides returns row-major strides for shape: the last axis has
// stride 1 and every other axis the product of the extents to its right.
func ContiguousStrides(shape Shape) Strides {
	strides := make(Strides, len(shape))
	if len(shape) == 0 {
		return strides
	}

	strides[len(shape)-1] = 1
	for i := len(shape) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	return strides
}

// IsContiguous reports whether strides describe the row-major layout of shape.
// Axes of extent 1 are never stepped over, so their stride is ignored.
func IsContiguous(shape Shape, strides Strides) bool {
	if len(shape) != len(strides) {
		return false
	}
	expected := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 1 {
			continue
		}
		if strides[i] != expected {
			return false
		}
		expected *= shape[i]
	}
	return true
}

// Clone returns a copy of the strides.
func (s Strides) Clone() Strides {
	clone := make(Strides, len(s))
	copy(clone, s)
	return clone
}

// Equal checks if two stride vectors are equal.
func (s Strides) Equal(other Strides) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Last returns the stride of the last axis, or 1 for a scalar layout.
func (s Strides) Last() int {
	if len(s) == 0 {
		return 1
	}
	return s[len(s)-1]
}

// Offset maps a row-major linear index over shape to an element offset under strides.
func Offset(index int, shape Shape, strides Strides) int {
	offset := 0
	for i := len(shape) - 1; i >= 0; i-- {
		coord := index % shape[i]
		index /= shape[i]
		offset += coord * strides[i]
	}
	return offset
}

// SwapDims exchanges axes i and j of the layout in lockstep.
func SwapDims(shape Shape, strides Strides, i, j int) (Shape, Strides, error) {
	rank := len(shape)
	if i < 0 || i >= rank || j < 0 || j >= rank {
		return nil, nil, errors.Wrapf(ErrInvalidPermutation,
			"swap_dims: axes (%d, %d) out of range for rank %d", i, j, rank)
	}

	newShape := shape.Clone()
	newStrides := strides.Clone()
	newShape[i], newShape[j] = newShape[j], newShape[i]
	newStrides[i], newStrides[j] = newStrides[j], newStrides[i]

	return newShape, newStrides, nil
}

// Permute reorders the layout so that axis k of the result is axis axes[k] of the source.
func Permute(shape Shape, strides Strides, axes []int) (Shape, Strides, error) {
	if err := ValidatePermutation(axes, len(shape)); err != nil {
		return nil, nil, err
	}

	newShape := make(Shape, len(axes))
	newStrides := make(Strides, len(axes))
	for k, axis := range axes {
		newShape[k] = shape[axis]
		newStrides[k] = strides[axis]
	}

	return newShape, newStrides, nil
}

// ValidatePermutation checks that axes is a permutation of 0..rank-1.
func ValidatePermutation(axes []int, rank int) error {
	if len(axes) != rank {
		return errors.Wrapf(ErrInvalidPermutation,
			"permute: got %d axes for rank %d", len(axes), rank)
	}

	seen := make([]bool, rank)
	for _, axis := range axes {
		if axis < 0 || axis >= rank {
			return errors.Wrapf(ErrInvalidPermutation,
				"permute: axis %d out of range for rank %d", axis, rank)
		}
		if seen[axis] {
			return errors.Wrapf(ErrInvalidPermutation, "permute: duplicate axis %d in %v", axis, axes)
		}
		seen[axis] = true
	}
	return nil
}

// InversePermutation returns the permutation that undoes axes.
func InversePermutation(axes []int) []int {
	inverse := make([]int, len(axes))
	for k, axis := range axes {
		inverse[axis] = k
	}
	return inverse
}

// Expand computes broadcast strides of a layout viewed under target, NumPy style.
//
// Axes are aligned from the right. Leading target axes with no source axis get
// stride 0. A source extent equal to the target keeps its stride, an extent of
// 1 is broadcast with stride 0, anything else is a shape mismatch.
func Expand(shape Shape, strides Strides, target Shape) (Strides, error) {
	ndimsIn := len(shape)
	ndimsOut := len(target)

	if ndimsIn > ndimsOut {
		return nil, &ShapeError{Op: "expand", Dim: 0, Source: shape, Target: target}
	}

	newStrides := make(Strides, ndimsOut)
	dimDiff := ndimsOut - ndimsIn

	for i := ndimsOut - 1; i >= dimDiff; i-- {
		src := i - dimDiff
		switch shape[src] {
		case target[i]:
			newStrides[i] = strides[src]
		case 1:
			newStrides[i] = 0
		default:
			return nil, &ShapeError{Op: "expand", Dim: i, Source: shape, Target: target}
		}
	}

	return newStrides, nil
}
