package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// recordingMethod declares float32 inputs of the given sizes and records SetInput calls.
type recordingMethod struct {
	inputs []program.TensorInfo
	set    map[int]value.EValue
	calls  int
}

func newRecordingMethod(t *testing.T, sizes ...[]int32) *recordingMethod {
	t.Helper()
	m := &recordingMethod{set: make(map[int]value.EValue)}
	for _, s := range sizes {
		info, err := program.NewTensorInfo(program.NewTensorDef(tensor.Float32, s...))
		require.NoError(t, err)
		m.inputs = append(m.inputs, info)
	}
	return m
}

func (m *recordingMethod) NumInputs() int { return len(m.inputs) }

func (m *recordingMethod) InputTensorMeta(i int) (program.TensorInfo, error) {
	if i < 0 || i >= len(m.inputs) {
		return program.TensorInfo{}, status.Errorf(status.InvalidArgument, "input %d out of range", i)
	}
	return m.inputs[i], nil
}

func (m *recordingMethod) SetInput(v value.EValue, i int) error {
	m.calls++
	m.set[i] = v
	return nil
}

func TestBindWrapsCallerMemory(t *testing.T) {
	m := newRecordingMethod(t, []int32{1}, []int32{2, 2})
	a := arena.New(make([]byte, 256))
	b, err := New(m, 2, a)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Capacity())

	used := a.UsedSize()
	data := []float32{1, 2, 3, 4}
	require.NoError(t, Bind(b, data, 4, 1))
	assert.Equal(t, used, a.UsedSize(), "binding must not allocate")

	view, ok := b.View(1)
	require.True(t, ok)
	assert.Equal(t, []int32{2, 2}, view.Sizes())
	assert.Equal(t, []uint8{0, 1}, view.DimOrder())

	// No copy: the view reads the caller's buffer.
	got, err := tensor.Data[float32](&view)
	require.NoError(t, err)
	data[3] = 42
	assert.Equal(t, float32(42), got[3])

	set, ok := m.set[1]
	require.True(t, ok)
	assert.True(t, set.IsTensor())

	_, ok = b.View(0)
	assert.False(t, ok)
}

func TestBindSizeExactness(t *testing.T) {
	m := newRecordingMethod(t, []int32{3})
	b, err := New(m, 2, arena.New(make([]byte, 64)))
	require.NoError(t, err)

	data := make([]float32, 8)
	for _, count := range []int{0, 2, 4, 8} {
		err := Bind(b, data, count, 0)
		assert.ErrorIs(t, err, status.InvalidArgument, "count %d", count)
	}
	assert.Zero(t, m.calls)

	require.NoError(t, Bind(b, data, 3, 0))
	assert.Equal(t, 1, m.calls)
}

func TestBindCapacity(t *testing.T) {
	m := newRecordingMethod(t, []int32{1}, []int32{1}, []int32{1})
	a := arena.New(make([]byte, 64))
	b, err := New(m, 2, a)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Capacity())

	data := []float32{1}
	before := a.UsedSize()
	tests := []struct {
		name  string
		index int
	}{
		{"beyond capacity", 2},
		{"beyond inputs", 3},
		{"negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Bind(b, data, 1, tt.index), status.InvalidArgument)
		})
	}
	assert.Zero(t, m.calls)
	assert.Equal(t, before, a.UsedSize())
}

func TestBindCountBeyondBuffer(t *testing.T) {
	m := newRecordingMethod(t, []int32{2})
	b, err := New(m, 1, arena.New(make([]byte, 64)))
	require.NoError(t, err)

	assert.ErrorIs(t, Bind(b, []float32{1}, 2, 0), status.InvalidArgument)
	assert.ErrorIs(t, Bind(b, []float32{1, 2}, -1, 0), status.InvalidArgument)
}

func TestBindWrongElementType(t *testing.T) {
	m := newRecordingMethod(t, []int32{2})
	b, err := New(m, 1, arena.New(make([]byte, 64)))
	require.NoError(t, err)

	// Same byte size, different type.
	assert.ErrorIs(t, Bind(b, []int32{1, 2}, 2, 0), status.InvalidArgument)
}

func TestRebindReplacesView(t *testing.T) {
	m := newRecordingMethod(t, []int32{2})
	b, err := New(m, 1, arena.New(make([]byte, 64)))
	require.NoError(t, err)

	first := []float32{1, 2}
	second := []float32{3, 4}
	require.NoError(t, Bind(b, first, 2, 0))
	require.NoError(t, Bind(b, second, 2, 0))

	view, ok := b.View(0)
	require.True(t, ok)
	got, err := tensor.Data[float32](&view)
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.Equal(t, 2, m.calls)
}

func TestNewErrors(t *testing.T) {
	m := newRecordingMethod(t, []int32{4, 4})

	_, err := New(m, -1, arena.New(make([]byte, 64)))
	assert.ErrorIs(t, err, status.InvalidArgument)

	_, err = New(m, 1, arena.New(make([]byte, 4)))
	assert.ErrorIs(t, err, status.MemoryAllocationFailed)
}
