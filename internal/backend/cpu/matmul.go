package cpu

import (
	"unsafe"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// runMatmul computes out = lhs @ rhs per batch. Float types go through gonum
// GEMM; integer types use the naive triple loop.
func (r *Runtime) runMatmul(source compute.MatmulSource, bindings []compute.Binding) error {
	if len(bindings) != 3 {
		return errors.Wrapf(tensor.ErrDevice, "%s: expected 3 bindings, got %d", source.ID(), len(bindings))
	}
	lhs, rhs, out := bindings[0], bindings[1], bindings[2]
	rank := len(lhs.Shape)
	if rank < 2 || len(rhs.Shape) != rank || len(out.Shape) != rank {
		return errors.Wrapf(tensor.ErrDevice, "%s: bad ranks %v x %v -> %v", source.ID(), lhs.Shape, rhs.Shape, out.Shape)
	}

	m, k, n := lhs.Shape[rank-2], lhs.Shape[rank-1], rhs.Shape[rank-1]
	batch := lhs.Shape.NumElements() / (m * k)

	a, err := hostBytes(lhs.Handle)
	if err != nil {
		return err
	}
	b, err := hostBytes(rhs.Handle)
	if err != nil {
		return err
	}
	c, err := hostBytes(out.Handle)
	if err != nil {
		return err
	}
	size := source.DType.Size()
	if len(a) < batch*m*k*size || len(b) < batch*k*n*size || len(c) < batch*m*n*size {
		return errors.Wrapf(tensor.ErrDevice, "%s: buffers too small", source.ID())
	}

	for i := 0; i < batch; i++ {
		aOff, bOff, cOff := i*m*k*size, i*k*n*size, i*m*n*size
		aB, bB, cB := a[aOff:aOff+m*k*size], b[bOff:bOff+k*n*size], c[cOff:cOff+m*n*size]

		switch source.DType {
		case tensor.Float32:
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: m, Cols: k, Stride: k, Data: view[float32](aB)},
				blas32.General{Rows: k, Cols: n, Stride: n, Data: view[float32](bB)},
				0,
				blas32.General{Rows: m, Cols: n, Stride: n, Data: view[float32](cB)})
		case tensor.Float64:
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas64.General{Rows: m, Cols: k, Stride: k, Data: view[float64](aB)},
				blas64.General{Rows: k, Cols: n, Stride: n, Data: view[float64](bB)},
				0,
				blas64.General{Rows: m, Cols: n, Stride: n, Data: view[float64](cB)})
		case tensor.Int32:
			matmulNaive(view[int32](cB), view[int32](aB), view[int32](bB), m, k, n)
		case tensor.Int64:
			matmulNaive(view[int64](cB), view[int64](aB), view[int64](bB), m, k, n)
		default:
			return errors.Errorf("%s: unsupported dtype %s", source.ID(), source.DType)
		}
	}
	return nil
}

// matmulNaive computes C[i,j] = sum_k A[i,k] * B[k,j].
func matmulNaive[T int32 | int64](c, a, b []T, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum T
			for kIdx := 0; kIdx < k; kIdx++ {
				sum += a[i*k+kIdx] * b[kIdx*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

// view reinterprets host bytes as a typed slice.
func view[T float32 | float64 | int32 | int64](bytes []byte) []T {
	var zero T
	n := len(bytes) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy typed view over host buffers
	return unsafe.Slice((*T)(unsafe.Pointer(&bytes[0])), n)
}
