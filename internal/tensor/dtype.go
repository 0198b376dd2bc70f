// Package tensor provides shapes, strided layouts, element types and the error
// taxonomy shared by the view and fusion layers.
package tensor

// DType is a constraint for element types that can be moved to and from devices.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint32 | ~uint8
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint32
	Uint8
	Bool
)

// Size returns the byte size of the data type.
// Bool is stored as a 32-bit word like on GPU storage buffers.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32, Uint32, Bool:
		return 4
	case Float64, Int64:
		return 8
	case Uint8:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint32:
		return "uint32"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint32:
		return Uint32
	case uint8:
		return Uint8
	default:
		panic("unsupported type")
	}
}
