package fusion

import (
	"context"
	"math"
	"testing"

	"github.com/born-ml/fusion/internal/backend/cpu"
	"github.com/born-ml/fusion/internal/codegen"
	"github.com/born-ml/fusion/internal/jit"
	"github.com/born-ml/fusion/internal/parallel"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func upload(t *testing.T, client *cpu.Runtime, values []float32, shape tensor.Shape) *jit.Tensor {
	t.Helper()
	data, err := tensor.FromSlice(values, shape)
	require.NoError(t, err)
	out, err := jit.FromData(client, data)
	require.NoError(t, err)
	return out
}

// affineRelu computes relu(x*0.5 - 10).
func affineRelu(t *testing.T, client *cpu.Runtime) *Executor {
	t.Helper()
	b := codegen.NewBuilder("affine_relu")
	x := b.Input(tensor.Float32)
	b.Output(b.Relu(b.Sub(b.Mul(x, b.Scalar(0.5)), b.Scalar(10))), tensor.Float32)
	program, err := b.Build()
	require.NoError(t, err)

	cfg := DefaultConfig()
	selector, err := Build(client, program, codegen.InferInplaceMappings(program), cfg)
	require.NoError(t, err)
	return NewExecutor(client, selector, cfg)
}

func TestExecutorReusesExclusiveInput(t *testing.T) {
	client := cpu.New()
	exec := affineRelu(t, client)

	x := upload(t, client, []float32{18, 28, 46, 82}, tensor.Shape{2, 2})
	handle := x.Handle()

	outs, err := exec.Execute([]*jit.Tensor{x}, []tensor.Description{x.Description()})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	defer outs[0].Release()

	assert.True(t, outs[0].Handle().SameMemory(handle))
	assert.True(t, outs[0].CanMut())

	data, err := jit.IntoDataSync(outs[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 4, 13, 31}, data.AsFloat32())
}

func TestExecutorAllocatesForSharedInput(t *testing.T) {
	client := cpu.New()
	exec := affineRelu(t, client)

	x := upload(t, client, []float32{18, 28, 46, 82}, tensor.Shape{2, 2})
	defer x.Release()

	outs, err := exec.Execute([]*jit.Tensor{x.Clone()}, []tensor.Description{x.Description()})
	require.NoError(t, err)
	defer outs[0].Release()

	assert.False(t, outs[0].Handle().SameMemory(x.Handle()))
	assert.True(t, x.CanMut())

	original, err := jit.IntoDataSync(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{18, 28, 46, 82}, original.AsFloat32())

	data, err := jit.IntoDataSync(outs[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 4, 13, 31}, data.AsFloat32())
}

func TestExecutorStridedInput(t *testing.T) {
	client := cpu.New()
	exec := affineRelu(t, client)

	x := upload(t, client, []float32{18, 28, 46, 82}, tensor.Shape{2, 2})
	transposed, err := jit.SwapDims(x, 0, 1)
	require.NoError(t, err)
	x.Release()

	// Exclusive but transposed: the in-place variant is vetoed.
	require.True(t, transposed.CanMut())
	outs, err := exec.Execute([]*jit.Tensor{transposed}, []tensor.Description{transposed.Description()})
	require.NoError(t, err)
	defer outs[0].Release()

	assert.True(t, outs[0].IsContiguous())
	data, err := jit.IntoDataSync(outs[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 13, 4, 31}, data.AsFloat32())
}

func TestExecutorConsumedInputCannotBeCloned(t *testing.T) {
	client := cpu.New()
	exec := affineRelu(t, client)

	x := upload(t, client, []float32{18, 28}, tensor.Shape{2})
	outs, err := exec.Execute([]*jit.Tensor{x}, []tensor.Description{x.Description()})
	require.NoError(t, err)
	defer outs[0].Release()

	assert.Panics(t, func() { x.Clone() })
	assert.True(t, outs[0].CanMut())
}

func TestExecutorReleasesInputsOnError(t *testing.T) {
	client := cpu.New()
	exec := NewExecutor(client, NewSelector("empty", nil), DefaultConfig())

	x := upload(t, client, []float32{1, 2}, tensor.Shape{2})
	observer := x.Handle().Clone()
	defer observer.Release()

	_, err := exec.Execute([]*jit.Tensor{x}, []tensor.Description{x.Description()})
	assert.ErrorIs(t, err, tensor.ErrConfiguration)
	assert.True(t, observer.CanMut())
}

func TestReadAll(t *testing.T) {
	client := cpu.New()
	a := upload(t, client, []float32{1, 2}, tensor.Shape{2})
	defer a.Release()
	b := upload(t, client, []float32{3, 4, 5}, tensor.Shape{3})
	defer b.Release()

	data, err := ReadAll(context.Background(), []*jit.Tensor{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, data[0].AsFloat32())
	assert.Equal(t, []float32{3, 4, 5}, data[1].AsFloat32())
}

// chain runs matmul followed by the fused affine relu.
func chain(exec *Executor, lhs, rhs *jit.Tensor) (*jit.Tensor, error) {
	product, err := jit.MatMul(lhs, rhs)
	if err != nil {
		return nil, err
	}
	outs, err := exec.Execute([]*jit.Tensor{product}, []tensor.Description{product.Description()})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

func joinChains(exec *Executor, t1, t2 *jit.Tensor, concurrent bool) (*tensor.Data, error) {
	var left, right *jit.Tensor
	if concurrent {
		var g errgroup.Group
		g.Go(func() error {
			var err error
			left, err = chain(exec, t1, t2)
			return err
		})
		g.Go(func() error {
			var err error
			right, err = chain(exec, t2, t1)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if left, err = chain(exec, t1, t2); err != nil {
			return nil, err
		}
		if right, err = chain(exec, t2, t1); err != nil {
			return nil, err
		}
	}
	defer left.Release()
	defer right.Release()

	out, err := jit.MatMul(left, right)
	if err != nil {
		return nil, err
	}
	defer out.Release()
	return jit.IntoData(context.Background(), out)
}

func naiveMatmul(a, b []float64, n int) []float64 {
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				out[i*n+j] += a[i*n+k] * b[k*n+j]
			}
		}
	}
	return out
}

func naiveAffineRelu(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(v*0.5-10, 0)
	}
	return out
}

func TestConcurrentChainsMatchSequential(t *testing.T) {
	client := cpu.New()
	exec := affineRelu(t, client)

	t1 := upload(t, client, []float32{1, 7, 13, -3}, tensor.Shape{2, 2})
	defer t1.Release()
	t2 := upload(t, client, []float32{4, 7, 2, 3}, tensor.Shape{2, 2})
	defer t2.Release()

	sequential, err := joinChains(exec, t1, t2, false)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		concurrent, err := joinChains(exec, t1, t2, true)
		require.NoError(t, err)
		assert.True(t, sequential.Equal(concurrent), "run %d: %v != %v", i, concurrent.AsFloat32(), sequential.AsFloat32())
	}

	a := []float64{1, 7, 13, -3}
	b := []float64{4, 7, 2, 3}
	want := naiveMatmul(naiveAffineRelu(naiveMatmul(a, b, 2)), naiveAffineRelu(naiveMatmul(b, a, 2)), 2)
	got := sequential.AsFloat32()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], float64(got[i]), 1e-4)
	}

	// A runtime that never splits launches across goroutines agrees bit for bit.
	cfg := cpu.DefaultConfig()
	cfg.Parallel = parallel.Sequential()
	serial := cpu.NewWithConfig(cfg)
	s1 := upload(t, serial, []float32{1, 7, 13, -3}, tensor.Shape{2, 2})
	defer s1.Release()
	s2 := upload(t, serial, []float32{4, 7, 2, 3}, tensor.Shape{2, 2})
	defer s2.Release()
	single, err := joinChains(affineRelu(t, serial), s1, s2, false)
	require.NoError(t, err)
	assert.True(t, sequential.Equal(single))

	// Shared operands are never overwritten.
	assert.True(t, t1.CanMut())
	assert.True(t, t2.CanMut())
	d1, err := jit.IntoDataSync(t1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 7, 13, -3}, d1.AsFloat32())
}
