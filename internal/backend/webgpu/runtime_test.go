//go:build windows

package webgpu

import (
	"context"
	"testing"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func upload(t *testing.T, r *Runtime, values []float32, shape tensor.Shape) compute.Binding {
	t.Helper()
	data, err := tensor.FromSlice(values, shape)
	require.NoError(t, err)
	handle, err := r.Create(data.Bytes())
	require.NoError(t, err)
	return compute.Binding{Handle: handle, Shape: shape, Strides: tensor.ContiguousStrides(shape), DType: tensor.Float32}
}

func read(t *testing.T, r *Runtime, handle *compute.Handle) []float32 {
	t.Helper()
	bytes, err := r.ReadAsync(context.Background(), handle)
	require.NoError(t, err)
	data, err := tensor.NewData(bytes, tensor.Shape{len(bytes) / 4}, tensor.Float32)
	require.NoError(t, err)
	return data.AsFloat32()
}

func TestCreateRead(t *testing.T) {
	r := newTestRuntime(t)
	b := upload(t, r, []float32{1, 2, 3}, tensor.Shape{3})
	defer b.Handle.Release()

	assert.Equal(t, []float32{1, 2, 3}, read(t, r, b.Handle))
}

func TestElemwiseLaunch(t *testing.T) {
	r := newTestRuntime(t)
	source, err := r.Compile(scaleAdd(t), codegen.Settings{Factor: 2})
	require.NoError(t, err)

	shape := tensor.Shape{2, 2}
	x := upload(t, r, []float32{2, 4, 6, 8}, shape)
	y := upload(t, r, []float32{1, 1, 1, 1}, shape)
	out, err := r.Empty(16)
	require.NoError(t, err)

	kernel := compute.NewDynamicKernel(source, compute.ElemwiseWorkGroup(2, 16))
	bindings := []compute.Binding{x, y, {Handle: out, Shape: shape, Strides: tensor.ContiguousStrides(shape), DType: tensor.Float32}}
	require.NoError(t, r.Execute(kernel, bindings))

	assert.Equal(t, []float32{2, 3, 4, 5}, read(t, r, out))
}

func TestMatmulLaunch(t *testing.T) {
	r := newTestRuntime(t)
	lhs := upload(t, r, []float32{1, 7, 13, -3}, tensor.Shape{2, 2})
	rhs := upload(t, r, []float32{4, 7, 2, 3}, tensor.Shape{2, 2})
	out, err := r.Empty(16)
	require.NoError(t, err)

	source := compute.MatmulSource{DType: tensor.Float32}
	kernel := compute.NewDynamicKernel(source, compute.MatmulWorkGroup(2, 2, 1, 16))
	bindings := []compute.Binding{lhs, rhs, {Handle: out, Shape: tensor.Shape{2, 2}, Strides: tensor.Strides{2, 1}, DType: tensor.Float32}}
	require.NoError(t, r.Execute(kernel, bindings))

	assert.Equal(t, []float32{18, 28, 46, 82}, read(t, r, out))
}
