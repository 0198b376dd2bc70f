package tensor_test

import (
	"testing"

	"github.com/born-ml/fusion/backend/cpu"
	"github.com/born-ml/fusion/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicViews(t *testing.T) {
	runtime := cpu.New()
	data, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1})
	require.NoError(t, err)
	x, err := tensor.FromData(runtime, data)
	require.NoError(t, err)
	defer x.Release()

	e, err := tensor.Expand(x, tensor.Shape{3, 4, 5})
	require.NoError(t, err)
	defer e.Release()
	assert.Equal(t, tensor.Strides{0, 1, 0}, e.Strides())

	out, err := tensor.IntoDataSync(e)
	require.NoError(t, err)
	values, err := tensor.ToSlice[float32](out)
	require.NoError(t, err)
	assert.Len(t, values, 60)
	assert.Equal(t, float32(2), values[5])

	_, err = tensor.Expand(x, tensor.Shape{3})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
