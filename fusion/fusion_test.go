package fusion_test

import (
	"testing"

	"github.com/born-ml/fusion/backend/cpu"
	"github.com/born-ml/fusion/fusion"
	"github.com/born-ml/fusion/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteInPlace(t *testing.T) {
	b := fusion.NewBuilder("half")
	b.Output(b.Mul(b.Input(tensor.Float32), b.Scalar(0.5)), tensor.Float32)
	program, err := b.Build()
	require.NoError(t, err)

	runtime := cpu.New()
	cfg := fusion.DefaultConfig()
	selector, err := fusion.Build(runtime, program, fusion.InferInplaceMappings(program), cfg)
	require.NoError(t, err)
	exec := fusion.NewExecutor(runtime, selector, cfg)

	data, err := tensor.FromSlice([]float32{2, 4, 6, 8, 10, 12, 14, 16}, tensor.Shape{2, 4})
	require.NoError(t, err)
	x, err := tensor.FromData(runtime, data)
	require.NoError(t, err)
	handle := x.Handle()

	outs, err := exec.Execute([]*tensor.Tensor{x}, []tensor.Description{x.Description()})
	require.NoError(t, err)
	defer outs[0].Release()
	assert.True(t, outs[0].Handle().SameMemory(handle))

	got, err := tensor.IntoDataSync(outs[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, got.AsFloat32())
}
