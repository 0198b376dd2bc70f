package tensor

import "fmt"

// Description is the logical view of a tensor used while planning a fused
// launch: a shape and an element type, without any buffer behind it.
type Description struct {
	Shape Shape
	DType DataType
}

// NumElements returns the number of elements described.
func (d Description) NumElements() int {
	return d.Shape.NumElements()
}

// ByteSize returns the size in bytes of a contiguous buffer holding the tensor.
func (d Description) ByteSize() int {
	return d.Shape.NumElements() * d.DType.Size()
}

// String implements fmt.Stringer.
func (d Description) String() string {
	return fmt.Sprintf("%s%v", d.DType, []int(d.Shape))
}
