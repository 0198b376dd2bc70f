package jit

import (
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// MatMul multiplies [M, K] x [K, N] matrices, or batches of them ([B, M, K] x [B, K, N]).
// Strided operands are made contiguous first; the inputs are not consumed.
func MatMul(lhs, rhs *Tensor) (*Tensor, error) {
	ls, rs := lhs.shape, rhs.shape
	rank := len(ls)

	if rank != len(rs) || rank < 2 || rank > 3 {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "matmul: unsupported ranks %v x %v", ls, rs)
	}
	if ls[rank-1] != rs[rank-2] {
		return nil, &tensor.ShapeError{Op: "matmul", Dim: rank - 2, Source: ls, Target: rs}
	}
	if rank == 3 && ls[0] != rs[0] {
		return nil, &tensor.ShapeError{Op: "matmul", Dim: 0, Source: ls, Target: rs}
	}
	if lhs.dtype != rhs.dtype {
		return nil, errors.Errorf("matmul: dtype mismatch %s vs %s", lhs.dtype, rhs.dtype)
	}

	outShape := ls.Clone()
	outShape[rank-1] = rs[rank-1]

	a, err := IntoContiguous(lhs)
	if err != nil {
		return nil, err
	}
	defer a.Release()

	b, err := IntoContiguous(rhs)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	out, err := Empty(lhs.client, outShape, lhs.dtype)
	if err != nil {
		return nil, err
	}

	batch := 1
	if rank == 3 {
		batch = ls[0]
	}
	source := compute.MatmulSource{DType: lhs.dtype}
	workgroup := compute.MatmulWorkGroup(ls[rank-2], rs[rank-1], batch, int(source.Metadata().WorkgroupSize.X))

	bindings := []compute.Binding{a.Binding(), b.Binding(), out.Binding()}
	if err := lhs.client.Execute(compute.NewDynamicKernel(source, workgroup), bindings); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}
