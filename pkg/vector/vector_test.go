package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(i int) []float32 {
	v := make([]float32, Dim)
	v[i] = 1
	return v
}

func TestNormalize(t *testing.T) {
	v, err := Normalize([]float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)

	_, err = Normalize([]float32{0, 0})
	assert.ErrorIs(t, err, ErrZeroNorm)
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)

	d, err = CosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-9)

	d, err = CosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-9)

	_, err = CosineDistance([]float32{1}, []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(unit(0)))
	assert.ErrorIs(t, Validate([]float32{1}), ErrDimension)

	v := unit(0)
	v[1] = 1
	assert.ErrorIs(t, Validate(v), ErrNotUnit)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := make([]float32, Dim)
	for i := range v {
		v[i] = float32(math.Sin(float64(i)))
	}
	v, err := Normalize(v)
	require.NoError(t, err)

	got, err := Decode(Encode(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestBlobNullable(t *testing.T) {
	val, err := Blob(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	var b Blob
	require.NoError(t, b.Scan(nil))
	assert.Nil(t, b)

	require.NoError(t, b.Scan(Encode([]float32{1, 2})))
	assert.Equal(t, Blob{1, 2}, b)

	assert.Error(t, b.Scan(42))
}
