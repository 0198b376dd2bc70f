package cpu

import (
	"unsafe"

	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// accessor reads and writes elements of a host buffer as float64.
type accessor struct {
	get func(i int) float64
	set func(i int, v float64)
	len int
}

//nolint:gosec // unsafe.Slice for zero-copy typed views over host buffers
func newAccessor(bytes []byte, dtype tensor.DataType) (accessor, error) {
	n := len(bytes) / dtype.Size()
	if n == 0 {
		return accessor{get: func(int) float64 { return 0 }, set: func(int, float64) {}}, nil
	}
	ptr := unsafe.Pointer(&bytes[0])

	switch dtype {
	case tensor.Float32:
		s := unsafe.Slice((*float32)(ptr), n)
		return accessor{
			get: func(i int) float64 { return float64(s[i]) },
			set: func(i int, v float64) { s[i] = float32(v) },
			len: n,
		}, nil
	case tensor.Float64:
		s := unsafe.Slice((*float64)(ptr), n)
		return accessor{
			get: func(i int) float64 { return s[i] },
			set: func(i int, v float64) { s[i] = v },
			len: n,
		}, nil
	case tensor.Int32:
		s := unsafe.Slice((*int32)(ptr), n)
		return accessor{
			get: func(i int) float64 { return float64(s[i]) },
			set: func(i int, v float64) { s[i] = int32(v) },
			len: n,
		}, nil
	case tensor.Int64:
		s := unsafe.Slice((*int64)(ptr), n)
		return accessor{
			get: func(i int) float64 { return float64(s[i]) },
			set: func(i int, v float64) { s[i] = int64(v) },
			len: n,
		}, nil
	case tensor.Uint32:
		s := unsafe.Slice((*uint32)(ptr), n)
		return accessor{
			get: func(i int) float64 { return float64(s[i]) },
			set: func(i int, v float64) { s[i] = uint32(v) },
			len: n,
		}, nil
	case tensor.Bool:
		s := unsafe.Slice((*uint32)(ptr), n)
		return accessor{
			get: func(i int) float64 { return float64(s[i]) },
			set: func(i int, v float64) {
				if v != 0 {
					s[i] = 1
				} else {
					s[i] = 0
				}
			},
			len: n,
		}, nil
	case tensor.Uint8:
		s := bytes
		return accessor{
			get: func(i int) float64 { return float64(s[i]) },
			set: func(i int, v float64) { s[i] = uint8(v) },
			len: n,
		}, nil
	default:
		return accessor{}, errors.Errorf("cpu: unsupported dtype %s", dtype)
	}
}

// broadcastOffset maps a row-major index over reference to an element offset
// of a binding whose shape is right-aligned against reference. Unit axes of
// the binding are broadcast.
func broadcastOffset(index int, reference, shape tensor.Shape, strides tensor.Strides) int {
	offset := 0
	diff := len(reference) - len(shape)
	for i := len(reference) - 1; i >= 0; i-- {
		coord := index % reference[i]
		index /= reference[i]

		j := i - diff
		if j < 0 {
			continue
		}
		if shape[j] != 1 {
			offset += coord * strides[j]
		}
	}
	return offset
}

// maxOffset returns the largest element offset addressed by a layout.
func maxOffset(shape tensor.Shape, strides tensor.Strides) int {
	offset := 0
	for i := range shape {
		if strides[i] > 0 {
			offset += (shape[i] - 1) * strides[i]
		}
	}
	return offset
}
