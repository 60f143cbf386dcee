package tensor

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewAliasesCallerMemory(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	sizes := []int32{2, 2}
	order := []uint8{0, 1}

	v := NewView(Float32, sizes, order, AsBytes(src))
	assert.Equal(t, 2, v.Dim())
	assert.Equal(t, 4, v.NumElements())
	assert.Equal(t, 16, v.NBytes())

	data, err := Data[float32](&v)
	require.NoError(t, err)
	assert.Equal(t, unsafe.SliceData(src), unsafe.SliceData(data), "view must not copy")

	// Writes through the view land in the caller's slice.
	data[3] = 42
	assert.Equal(t, float32(42), src[3])
}

func TestDataTypeMismatch(t *testing.T) {
	v := NewView(Int32, []int32{1}, []uint8{0}, make([]byte, 4))
	_, err := Data[float32](&v)
	assert.Error(t, err)
}

func TestDataShortStorage(t *testing.T) {
	v := NewView(Float32, []int32{4}, []uint8{0}, make([]byte, 8))
	_, err := Data[float32](&v)
	assert.Error(t, err)
}

func TestHasData(t *testing.T) {
	v := NewView(Float32, []int32{1}, []uint8{0}, nil)
	assert.False(t, v.HasData())

	v.SetData(make([]byte, 4))
	assert.True(t, v.HasData())

	empty := NewView(Float32, []int32{0}, []uint8{0}, nil)
	assert.True(t, empty.HasData())
}

func TestAsBytesEmpty(t *testing.T) {
	assert.Empty(t, AsBytes([]float64(nil)))
	assert.Len(t, AsBytes([]float64{1, 2}), 16)
}
