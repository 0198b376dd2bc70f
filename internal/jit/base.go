package jit

import (
	"context"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// FromData uploads host data into a new contiguous tensor.
func FromData(client compute.Client, data *tensor.Data) (*Tensor, error) {
	handle, err := client.Create(data.Bytes())
	if err != nil {
		return nil, err
	}
	return NewContiguous(client, data.Shape(), handle, data.DType()), nil
}

// Empty allocates an uninitialised contiguous tensor.
func Empty(client compute.Client, shape tensor.Shape, dtype tensor.DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "empty")
	}
	handle, err := client.Empty(shape.NumElements() * dtype.Size())
	if err != nil {
		return nil, err
	}
	return NewContiguous(client, shape, handle, dtype), nil
}

// IntoData reads the tensor back to the host, giving up when ctx is done.
func IntoData(ctx context.Context, t *Tensor) (*tensor.Data, error) {
	return intoData(t, func(c *Tensor) ([]byte, error) {
		return c.client.ReadAsync(ctx, c.handle)
	})
}

// IntoDataSync reads the tensor back to the host, blocking until the device is done.
func IntoDataSync(t *Tensor) (*tensor.Data, error) {
	return intoData(t, func(c *Tensor) ([]byte, error) {
		return c.client.Read(c.handle)
	})
}

func intoData(t *Tensor, read func(*Tensor) ([]byte, error)) (*tensor.Data, error) {
	contiguous, err := IntoContiguous(t)
	if err != nil {
		return nil, err
	}
	defer contiguous.Release()

	bytes, err := read(contiguous)
	if err != nil {
		return nil, err
	}
	return tensor.NewData(bytes, contiguous.shape, contiguous.dtype)
}

// ToDevice moves the tensor to the device driven by client.
// A tensor already on that device is returned as a new reference.
func ToDevice(t *Tensor, client compute.Client) (*Tensor, error) {
	if t.device == client.Device() {
		return t.Clone(), nil
	}

	data, err := IntoDataSync(t)
	if err != nil {
		return nil, err
	}
	return FromData(client, data)
}

// SwapDims exchanges two axes without touching the buffer.
func SwapDims(t *Tensor, dim1, dim2 int) (*Tensor, error) {
	shape, strides, err := tensor.SwapDims(t.shape, t.strides, dim1, dim2)
	if err != nil {
		return nil, err
	}
	return t.withLayout(shape, strides), nil
}

// Permute reorders the axes without touching the buffer.
func Permute(t *Tensor, axes []int) (*Tensor, error) {
	shape, strides, err := tensor.Permute(t.shape, t.strides, axes)
	if err != nil {
		return nil, err
	}
	return t.withLayout(shape, strides), nil
}

// Expand broadcasts the tensor to target using zero strides.
func Expand(t *Tensor, target tensor.Shape) (*Tensor, error) {
	strides, err := tensor.Expand(t.shape, t.strides, target)
	if err != nil {
		return nil, err
	}
	return t.withLayout(target.Clone(), strides), nil
}

// Reshape reinterprets the tensor under shape. Non-contiguous tensors are
// copied into a row-major buffer first.
func Reshape(t *Tensor, shape tensor.Shape) (*Tensor, error) {
	if shape.NumElements() != t.shape.NumElements() {
		return nil, &tensor.ShapeError{Op: "reshape", Dim: len(shape) - 1, Source: t.shape, Target: shape}
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "reshape")
	}

	contiguous, err := IntoContiguous(t)
	if err != nil {
		return nil, err
	}
	contiguous.shape = shape.Clone()
	contiguous.strides = tensor.ContiguousStrides(shape)
	return contiguous, nil
}

// IntoContiguous returns a row-major tensor with the same logical content.
// Contiguous tensors are returned as a new reference to the same buffer.
func IntoContiguous(t *Tensor) (*Tensor, error) {
	if t.IsContiguous() {
		return t.withLayout(t.shape.Clone(), tensor.ContiguousStrides(t.shape)), nil
	}

	output, err := Empty(t.client, t.shape, t.dtype)
	if err != nil {
		return nil, err
	}

	source := compute.IntoContiguousSource{DType: t.dtype}
	workgroup := compute.ElemwiseWorkGroup(t.NumElements(), int(source.Metadata().WorkgroupSize.X))
	kernel := compute.NewDynamicKernel(source, workgroup)

	if err := t.client.Execute(kernel, []compute.Binding{t.Binding(), output.Binding()}); err != nil {
		output.Release()
		return nil, err
	}
	return output, nil
}
