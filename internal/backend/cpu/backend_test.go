package cpu

import (
	"context"
	"testing"

	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/parallel"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime() *Runtime {
	cfg := DefaultConfig()
	cfg.Parallel = parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 2}
	return NewWithConfig(cfg)
}

func upload(t *testing.T, r *Runtime, values []float32, shape tensor.Shape) compute.Binding {
	t.Helper()
	data, err := tensor.FromSlice(values, shape)
	require.NoError(t, err)
	handle, err := r.Create(data.Bytes())
	require.NoError(t, err)
	return compute.Binding{Handle: handle, Shape: shape, Strides: tensor.ContiguousStrides(shape), DType: tensor.Float32}
}

func readFloat32(t *testing.T, r *Runtime, handle *compute.Handle) []float32 {
	t.Helper()
	bytes, err := r.Read(handle)
	require.NoError(t, err)
	data, err := tensor.NewData(bytes, tensor.Shape{len(bytes) / 4}, tensor.Float32)
	require.NoError(t, err)
	return data.AsFloat32()
}

func scaleAddProgram(t *testing.T) *codegen.Program {
	t.Helper()
	b := codegen.NewBuilder("scale_add")
	x := b.Input(tensor.Float32)
	y := b.Input(tensor.Float32)
	b.Output(b.Add(b.Mul(x, b.Scalar(2)), y), tensor.Float32)
	program, err := b.Build()
	require.NoError(t, err)
	return program
}

func TestCreateReadEmpty(t *testing.T) {
	r := New()

	h, err := r.Create([]byte{1, 2, 3})
	require.NoError(t, err)
	bytes, err := r.ReadAsync(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, bytes)

	e, err := r.Empty(8)
	require.NoError(t, err)
	assert.Equal(t, 8, e.Size())

	_, active, _ := r.MemoryStats()
	assert.Equal(t, int64(2), active)
	h.Release()
	e.Release()
	_, active, _ = r.MemoryStats()
	assert.Equal(t, int64(0), active)

	_, err = r.Empty(-1)
	assert.True(t, errors.Is(err, tensor.ErrDevice))
}

func TestElemwiseNormal(t *testing.T) {
	for _, factor := range []int{1, 2, 4} {
		r := newTestRuntime()
		source, err := r.Compile(scaleAddProgram(t), codegen.Settings{Factor: factor})
		require.NoError(t, err)

		shape := tensor.Shape{2, 4}
		x := upload(t, r, []float32{1, 2, 3, 4, 5, 6, 7, 8}, shape)
		y := upload(t, r, []float32{10, 10, 10, 10, 20, 20, 20, 20}, shape)
		outHandle, err := r.Empty(32)
		require.NoError(t, err)
		out := compute.Binding{Handle: outHandle, Shape: shape, Strides: tensor.ContiguousStrides(shape), DType: tensor.Float32}

		kernel := compute.NewDynamicKernel(source, compute.ElemwiseWorkGroup(8/factor, 16))
		require.NoError(t, r.Execute(kernel, []compute.Binding{x, y, out}))

		assert.Equal(t, []float32{12, 14, 16, 18, 30, 32, 34, 36}, readFloat32(t, r, outHandle), "factor %d", factor)
	}
}

func TestElemwiseInplaceWritesInput(t *testing.T) {
	r := newTestRuntime()
	mappings := []codegen.InplaceMapping{{PosInput: 1, PosOutput: 0}}
	source, err := r.Compile(scaleAddProgram(t), codegen.Settings{Factor: 1, Mappings: mappings})
	require.NoError(t, err)

	shape := tensor.Shape{4}
	x := upload(t, r, []float32{1, 2, 3, 4}, shape)
	y := upload(t, r, []float32{1, 1, 1, 1}, shape)

	kernel := compute.NewDynamicKernel(source, compute.ElemwiseWorkGroup(4, 16))
	require.NoError(t, r.Execute(kernel, []compute.Binding{x, y}))

	assert.Equal(t, []float32{3, 5, 7, 9}, readFloat32(t, r, y.Handle))
	assert.Equal(t, []float32{1, 2, 3, 4}, readFloat32(t, r, x.Handle))
}

func TestElemwiseBroadcastInput(t *testing.T) {
	r := newTestRuntime()
	source, err := r.Compile(scaleAddProgram(t), codegen.Settings{Factor: 1})
	require.NoError(t, err)

	shape := tensor.Shape{2, 3}
	x := upload(t, r, []float32{1, 2, 3, 4, 5, 6}, shape)
	y := upload(t, r, []float32{100, 200, 300}, tensor.Shape{3})
	// Expanded view of y: stride 0 on the leading axis.
	y.Shape, y.Strides = shape, tensor.Strides{0, 1}

	outHandle, err := r.Empty(24)
	require.NoError(t, err)
	out := compute.Binding{Handle: outHandle, Shape: shape, Strides: tensor.ContiguousStrides(shape), DType: tensor.Float32}

	kernel := compute.NewDynamicKernel(source, compute.ElemwiseWorkGroup(6, 16))
	require.NoError(t, r.Execute(kernel, []compute.Binding{x, y, out}))
	assert.Equal(t, []float32{102, 204, 306, 108, 210, 312}, readFloat32(t, r, outHandle))
}

func TestElemwiseGridTooSmall(t *testing.T) {
	r := newTestRuntime()
	cfg := r.cfg
	cfg.WorkgroupSize = 1
	r = NewWithConfig(cfg)

	source, err := r.Compile(scaleAddProgram(t), codegen.Settings{Factor: 1})
	require.NoError(t, err)

	shape := tensor.Shape{4}
	x := upload(t, r, []float32{1, 2, 3, 4}, shape)
	y := upload(t, r, []float32{1, 2, 3, 4}, shape)
	outHandle, err := r.Empty(16)
	require.NoError(t, err)
	out := compute.Binding{Handle: outHandle, Shape: shape, Strides: tensor.ContiguousStrides(shape), DType: tensor.Float32}

	err = r.Execute(compute.NewDynamicKernel(source, compute.WorkGroup{X: 1, Y: 1, Z: 1}), []compute.Binding{x, y, out})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tensor.ErrDevice))
}

func TestIntoContiguousKernel(t *testing.T) {
	r := newTestRuntime()

	// Transposed view of a [2, 3] buffer.
	in := upload(t, r, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	in.Shape, in.Strides = tensor.Shape{3, 2}, tensor.Strides{1, 3}

	outHandle, err := r.Empty(24)
	require.NoError(t, err)
	out := compute.Binding{Handle: outHandle, Shape: in.Shape, Strides: tensor.ContiguousStrides(in.Shape), DType: tensor.Float32}

	source := compute.IntoContiguousSource{DType: tensor.Float32}
	kernel := compute.NewDynamicKernel(source, compute.ElemwiseWorkGroup(6, 16))
	require.NoError(t, r.Execute(kernel, []compute.Binding{in, out}))

	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, readFloat32(t, r, outHandle))
}

func TestMatmulKernel(t *testing.T) {
	r := newTestRuntime()

	lhs := upload(t, r, []float32{1, 7, 13, -3}, tensor.Shape{2, 2})
	rhs := upload(t, r, []float32{4, 7, 2, 3}, tensor.Shape{2, 2})
	outHandle, err := r.Empty(16)
	require.NoError(t, err)
	out := compute.Binding{Handle: outHandle, Shape: tensor.Shape{2, 2}, Strides: tensor.Strides{2, 1}, DType: tensor.Float32}

	source := compute.MatmulSource{DType: tensor.Float32}
	kernel := compute.NewDynamicKernel(source, compute.MatmulWorkGroup(2, 2, 1, 16))
	require.NoError(t, r.Execute(kernel, []compute.Binding{lhs, rhs, out}))

	assert.Equal(t, []float32{18, 28, 46, 82}, readFloat32(t, r, outHandle))
}

func TestExecuteForeignSource(t *testing.T) {
	r := New()
	err := r.Execute(compute.NewDynamicKernel(foreignSource{}, compute.WorkGroup{X: 1, Y: 1, Z: 1}), nil)
	assert.True(t, errors.Is(err, tensor.ErrDevice))
}

type foreignSource struct{}

func (foreignSource) ID() string                 { return "foreign" }
func (foreignSource) Metadata() compute.Metadata { return compute.Metadata{} }

func TestVectorWidths(t *testing.T) {
	widths := Features{HasAVX2: true}.VectorWidths()
	assert.Equal(t, []int{2, 4, 8}, widths)

	host := PreferredVectorWidths()
	require.NotEmpty(t, host)
	assert.Equal(t, 2, host[0])
}
