package jit

import (
	"context"
	"testing"

	"github.com/born-ml/fusion/internal/backend/cpu"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromSlice(t *testing.T, client *cpu.Runtime, values []float32, shape tensor.Shape) *Tensor {
	t.Helper()
	data, err := tensor.FromSlice(values, shape)
	require.NoError(t, err)
	out, err := FromData(client, data)
	require.NoError(t, err)
	return out
}

func readBack(t *testing.T, x *Tensor) []float32 {
	t.Helper()
	data, err := IntoDataSync(x)
	require.NoError(t, err)
	values, err := tensor.ToSlice[float32](data)
	require.NoError(t, err)
	return values
}

func TestFromDataIntoData(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	defer x.Release()

	assert.True(t, x.IsContiguous())
	assert.True(t, x.CanMut())
	assert.Equal(t, tensor.CPU, x.Device())
	assert.Equal(t, tensor.Strides{3, 1}, x.Strides())

	data, err := IntoData(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, data.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, data.AsFloat32())
}

func TestIntoDataCancelled(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{1, 2}, tensor.Shape{2})
	defer x.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := IntoData(ctx, x)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestViewsShareBuffer(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	defer x.Release()

	view, err := SwapDims(x, 0, 1)
	require.NoError(t, err)
	assert.True(t, view.Handle().SameMemory(x.Handle()))
	assert.False(t, x.CanMut())
	assert.False(t, view.IsContiguous())
	assert.Equal(t, tensor.Shape{3, 2}, view.Shape())
	assert.Equal(t, tensor.Strides{1, 3}, view.Strides())

	view.Release()
	assert.True(t, x.CanMut())
}

func TestSwapDimsReadBack(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	defer x.Release()

	view, err := SwapDims(x, 0, 1)
	require.NoError(t, err)
	defer view.Release()

	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, readBack(t, view))

	_, err = SwapDims(x, 0, 2)
	assert.ErrorIs(t, err, tensor.ErrInvalidPermutation)
}

func TestPermuteRoundTrip(t *testing.T) {
	client := cpu.New()
	values := make([]float32, 24)
	for i := range values {
		values[i] = float32(i)
	}
	x := fromSlice(t, client, values, tensor.Shape{2, 3, 4})
	defer x.Release()

	axes := []int{2, 0, 1}
	p, err := Permute(x, axes)
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, tensor.Shape{4, 2, 3}, p.Shape())

	back, err := Permute(p, tensor.InversePermutation(axes))
	require.NoError(t, err)
	defer back.Release()

	assert.Equal(t, x.Shape(), back.Shape())
	assert.Equal(t, x.Strides(), back.Strides())
	assert.Equal(t, values, readBack(t, back))

	_, err = Permute(x, []int{0, 0, 1})
	assert.ErrorIs(t, err, tensor.ErrInvalidPermutation)
}

func TestExpand(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{7}, tensor.Shape{1, 1})
	defer x.Release()

	e, err := Expand(x, tensor.Shape{2, 2})
	require.NoError(t, err)
	defer e.Release()
	assert.Equal(t, tensor.Strides{0, 0}, e.Strides())
	assert.Equal(t, []float32{7, 7, 7, 7}, readBack(t, e))

	row := fromSlice(t, client, []float32{1, 2, 3}, tensor.Shape{3})
	defer row.Release()
	_, err = Expand(row, tensor.Shape{4})
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	var shapeErr *tensor.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 0, shapeErr.Dim)
}

func TestReshapePermuted(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	defer x.Release()

	transposed, err := Permute(x, []int{1, 0})
	require.NoError(t, err)
	defer transposed.Release()

	flat, err := Reshape(transposed, tensor.Shape{6})
	require.NoError(t, err)
	defer flat.Release()

	assert.True(t, flat.IsContiguous())
	assert.False(t, flat.Handle().SameMemory(x.Handle()))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, readBack(t, flat))
}

func TestReshapeContiguousSharesBuffer(t *testing.T) {
	client := cpu.New()
	x := fromSlice(t, client, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	defer x.Release()

	r, err := Reshape(x, tensor.Shape{3, 2})
	require.NoError(t, err)
	defer r.Release()

	assert.True(t, r.Handle().SameMemory(x.Handle()))
	assert.Equal(t, tensor.Strides{2, 1}, r.Strides())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, readBack(t, r))

	_, err = Reshape(x, tensor.Shape{4})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestEmptyAndToDevice(t *testing.T) {
	client := cpu.New()
	e, err := Empty(client, tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	defer e.Release()
	assert.Equal(t, 16, e.Handle().Size())

	_, err = Empty(client, tensor.Shape{0, 2}, tensor.Float32)
	assert.Error(t, err)

	same, err := ToDevice(e, client)
	require.NoError(t, err)
	defer same.Release()
	assert.True(t, same.Handle().SameMemory(e.Handle()))

	other := cpu.New()
	moved, err := ToDevice(e, other)
	require.NoError(t, err)
	defer moved.Release()
	assert.False(t, moved.Handle().SameMemory(e.Handle()))
	assert.Equal(t, []float32{0, 0, 0, 0}, readBack(t, moved))
}
