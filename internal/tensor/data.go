package tensor

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

// Data is a host-visible, contiguous row-major copy of tensor contents.
type Data struct {
	bytes []byte
	shape Shape
	dtype DataType
}

// NewData wraps raw little-endian bytes. The byte length must match shape and dtype.
func NewData(bytes []byte, shape Shape, dtype DataType) (*Data, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}
	if want := shape.NumElements() * dtype.Size(); len(bytes) < want {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"data: shape %v of %s requires %d bytes, got %d", shape, dtype, want, len(bytes))
	}
	return &Data{
		bytes: bytes[:shape.NumElements()*dtype.Size()],
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromSlice copies a Go slice into a Data value of the given shape.
func FromSlice[T DType](values []T, shape Shape) (*Data, error) {
	if shape.NumElements() != len(values) {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(values))
	}

	dtype := inferDataType[T]()
	bytes := make([]byte, len(values)*dtype.Size())
	if len(values) > 0 {
		//nolint:gosec // unsafe.Slice for zero-copy view of the source slice
		src := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(bytes))
		copy(bytes, src)
	}
	return NewData(bytes, shape, dtype)
}

// ToSlice copies the contents into a new Go slice.
// Returns an error if T does not match the stored dtype.
func ToSlice[T DType](d *Data) ([]T, error) {
	if dtype := inferDataType[T](); dtype != d.dtype {
		return nil, errors.Errorf("data: dtype is %s, requested %s", d.dtype, dtype)
	}
	n := d.NumElements()
	out := make([]T, n)
	if n > 0 {
		//nolint:gosec // unsafe.Slice for zero-copy view of the destination slice
		dst := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(d.bytes))
		copy(dst, d.bytes)
	}
	return out, nil
}

// Shape returns the logical shape.
func (d *Data) Shape() Shape {
	return d.shape
}

// DType returns the element type.
func (d *Data) DType() DataType {
	return d.dtype
}

// NumElements returns the total number of elements.
func (d *Data) NumElements() int {
	return d.shape.NumElements()
}

// Bytes returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (d *Data) Bytes() []byte {
	return d.bytes
}

// AsFloat32 interprets the data as []float32.
// Panics if the dtype is not Float32.
func (d *Data) AsFloat32() []float32 {
	if d.dtype != Float32 {
		panic(fmt.Sprintf("data dtype is %s, not float32", d.dtype))
	}
	if len(d.bytes) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&d.bytes[0])), d.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the dtype is not Float64.
func (d *Data) AsFloat64() []float64 {
	if d.dtype != Float64 {
		panic(fmt.Sprintf("data dtype is %s, not float64", d.dtype))
	}
	if len(d.bytes) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&d.bytes[0])), d.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the dtype is not Int32.
func (d *Data) AsInt32() []int32 {
	if d.dtype != Int32 {
		panic(fmt.Sprintf("data dtype is %s, not int32", d.dtype))
	}
	if len(d.bytes) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&d.bytes[0])), d.NumElements())
}

// Equal reports whether both values have the same shape, dtype and bytes.
func (d *Data) Equal(other *Data) bool {
	if d.dtype != other.dtype || !d.shape.Equal(other.shape) || len(d.bytes) != len(other.bytes) {
		return false
	}
	for i := range d.bytes {
		if d.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}
