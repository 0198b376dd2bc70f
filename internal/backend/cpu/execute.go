package cpu

import (
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/parallel"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// Execute implements compute.Client. The launch is complete when it returns.
func (r *Runtime) Execute(kernel compute.Kernel, bindings []compute.Binding) error {
	r.memoryStats.launches.Add(1)

	switch source := kernel.Source().(type) {
	case *elemwiseKernel:
		return r.runElemwise(source, kernel, bindings)
	case compute.IntoContiguousSource:
		return r.runIntoContiguous(source, kernel, bindings)
	case compute.MatmulSource:
		return r.runMatmul(source, bindings)
	default:
		return errors.Wrapf(tensor.ErrDevice, "cpu: kernel source %T was not compiled by this runtime", source)
	}
}

// runIntoContiguous copies a strided input into a row-major output.
func (r *Runtime) runIntoContiguous(source compute.IntoContiguousSource, kernel compute.Kernel, bindings []compute.Binding) error {
	if len(bindings) != 2 {
		return errors.Wrapf(tensor.ErrDevice, "%s: expected 2 bindings, got %d", source.ID(), len(bindings))
	}
	in, out := bindings[0], bindings[1]

	src, err := hostBytes(in.Handle)
	if err != nil {
		return err
	}
	dst, err := hostBytes(out.Handle)
	if err != nil {
		return err
	}

	numElems := in.Shape.NumElements()
	elemSize := source.DType.Size()
	if err := checkGrid(source.ID(), kernel, source.Metadata().WorkgroupSize, numElems); err != nil {
		return err
	}
	if len(dst) < numElems*elemSize || (maxOffset(in.Shape, in.Strides)+1)*elemSize > len(src) {
		return errors.Wrapf(tensor.ErrDevice, "%s: buffers too small for shape %v", source.ID(), in.Shape)
	}

	parallel.ForChunks(numElems, func(start, end int) {
		for i := start; i < end; i++ {
			offset := tensor.Offset(i, in.Shape, in.Strides) * elemSize
			copy(dst[i*elemSize:(i+1)*elemSize], src[offset:offset+elemSize])
		}
	}, r.cfg.Parallel)

	return nil
}
