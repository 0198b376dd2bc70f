package compute

import (
	"fmt"

	"github.com/born-ml/fusion/internal/tensor"
)

// IntoContiguousSource copies a strided input into a fresh row-major buffer.
// Bindings: [input (any strides), output (contiguous)].
type IntoContiguousSource struct {
	DType tensor.DataType
}

// ID implements KernelSource.
func (s IntoContiguousSource) ID() string {
	return fmt.Sprintf("into_contiguous_%s", s.DType)
}

// Metadata implements KernelSource.
func (s IntoContiguousSource) Metadata() Metadata {
	return Metadata{
		Name:          "into_contiguous",
		WorkgroupSize: WorkgroupSize{X: DefaultWorkgroupSize, Y: DefaultWorkgroupSize, Z: 1},
		Inputs:        []tensor.DataType{s.DType},
		Outputs:       []tensor.DataType{s.DType},
	}
}

// MatmulSource multiplies batched row-major matrices.
// Bindings: [lhs [..., M, K], rhs [..., K, N], out [..., M, N]], all contiguous.
type MatmulSource struct {
	DType tensor.DataType
}

// ID implements KernelSource.
func (s MatmulSource) ID() string {
	return fmt.Sprintf("matmul_%s", s.DType)
}

// Metadata implements KernelSource.
func (s MatmulSource) Metadata() Metadata {
	return Metadata{
		Name:          "matmul",
		WorkgroupSize: WorkgroupSize{X: DefaultWorkgroupSize, Y: DefaultWorkgroupSize, Z: 1},
		Inputs:        []tensor.DataType{s.DType, s.DType},
		Outputs:       []tensor.DataType{s.DType},
	}
}

// MatmulWorkGroup tiles the [M, N] output plane and uses Z for the batch.
func MatmulWorkGroup(m, n, batch, workgroupSize int) WorkGroup {
	return WorkGroup{
		X: uint32((m + workgroupSize - 1) / workgroupSize),
		Y: uint32((n + workgroupSize - 1) / workgroupSize),
		Z: uint32(max(batch, 1)),
	}
}
