package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/microexec/internal/kernels"
	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/status"
)

func addSource(t *testing.T, n int) program.DataSource {
	t.Helper()
	blob, err := program.AddModule(n)
	require.NoError(t, err)
	return program.NewBufferSource(blob)
}

func readyLoader(t *testing.T, src program.DataSource, opts ...Option) *Loader {
	t.Helper()
	l := New(src, DefaultConfig(), opts...)
	require.NoError(t, l.Initialize())
	require.NoError(t, l.LoadProgram())
	require.True(t, l.IsLoaded())
	return l
}

func TestEndToEndAddition(t *testing.T) {
	l := readyLoader(t, addSource(t, 1))

	in1 := []float32{2.0}
	in2 := []float32{3.0}
	out := make([]float32, 1)
	require.NoError(t, l.RunInference(in1, in2, 1, out, 1))
	assert.Equal(t, float32(5.0), out[0])

	stats := l.Stats()
	assert.Equal(t, StateMethodReady, stats.State)
	assert.Equal(t, 1, stats.PlannedBuffers)
	assert.Equal(t, uint64(1), stats.Runs)
	assert.Zero(t, stats.Failures)
	assert.Equal(t, DefaultMethodPoolSize, stats.MethodPoolSize)
	assert.Equal(t, DefaultTempPoolSize, stats.TempPoolSize)
	assert.Equal(t, stats.MethodPoolSize, stats.MethodPoolUsed+stats.MethodPoolFree)
	assert.Zero(t, stats.TempPoolUsed)
}

func TestStateMachineDiscipline(t *testing.T) {
	l := New(addSource(t, 1), DefaultConfig())
	assert.Equal(t, StateUninitialized, l.State())

	out := []float32{0}
	err := l.RunInference([]float32{1}, []float32{1}, 1, out, 1)
	assert.ErrorIs(t, err, status.InvalidState)

	err = l.LoadProgram()
	assert.ErrorIs(t, err, status.InvalidState)
	assert.Equal(t, status.StageProgramLoad, status.StageOf(err))
	assert.Equal(t, StateUninitialized, l.State())

	require.NoError(t, l.Initialize())
	assert.Equal(t, StateInitialized, l.State())

	_, err = l.Run(out, []float32{1}, []float32{1})
	assert.ErrorIs(t, err, status.InvalidState)
	assert.False(t, l.IsLoaded())

	require.NoError(t, l.LoadProgram())
	assert.Equal(t, StateMethodReady, l.State())
}

func TestIdempotentInitialize(t *testing.T) {
	l := New(addSource(t, 1), DefaultConfig())
	require.NoError(t, l.Initialize())
	first := l.Stats()
	method, temp := l.method, l.temp

	require.NoError(t, l.Initialize())
	assert.Equal(t, first, l.Stats())
	assert.Same(t, method, l.method)
	assert.Same(t, temp, l.temp)
}

func TestLoadProgramWhenReadyIsNoop(t *testing.T) {
	l := readyLoader(t, addSource(t, 1))
	before := l.Stats()
	exec := l.Method()

	require.NoError(t, l.LoadProgram())
	assert.Equal(t, before, l.Stats())
	assert.Same(t, exec, l.Method())
}

func TestOutputCapacityTooSmall(t *testing.T) {
	l := readyLoader(t, addSource(t, 1))

	out := []float32{-1}
	err := l.RunInference([]float32{2}, []float32{3}, 1, out, 0)
	assert.ErrorIs(t, err, status.InvalidArgument)
	assert.Equal(t, status.StageOutput, status.StageOf(err))
	assert.Equal(t, float32(-1), out[0], "output must be untouched")

	// A failed run leaves the loader ready.
	assert.True(t, l.IsLoaded())
	require.NoError(t, l.RunInference([]float32{2}, []float32{3}, 1, out, 1))
	assert.Equal(t, float32(5), out[0])
	assert.Equal(t, uint64(1), l.Stats().Failures)
}

func TestOutputBufferShorterThanSize(t *testing.T) {
	l := readyLoader(t, addSource(t, 2))

	out := []float32{-1}
	err := l.RunInference([]float32{1, 2}, []float32{3, 4}, 2, out, 2)
	assert.ErrorIs(t, err, status.InvalidArgument)
	assert.Equal(t, float32(-1), out[0])
}

func TestBindFailureAbortsRun(t *testing.T) {
	l := readyLoader(t, addSource(t, 1))

	out := []float32{-1}
	err := l.RunInference([]float32{2, 2}, []float32{3, 3}, 2, out, 1)
	assert.ErrorIs(t, err, status.InvalidArgument)
	assert.Equal(t, status.StageBind, status.StageOf(err))
	assert.Equal(t, float32(-1), out[0])
	assert.Zero(t, l.Stats().Runs, "execution must not start")

	err = l.RunInference([]float32{2}, nil, 1, out, 1)
	assert.ErrorIs(t, err, status.InvalidArgument)

	require.NoError(t, l.RunInference([]float32{2}, []float32{3}, 1, out, 1))
	assert.Equal(t, float32(5), out[0])
}

func TestPlanningFailureLeavesProgramLoaded(t *testing.T) {
	// The add program plans a 4-byte buffer; a 2-byte method pool cannot hold it.
	l := New(addSource(t, 1), DefaultConfig(), WithPools(make([]byte, 2), make([]byte, 64)))
	require.NoError(t, l.Initialize())

	err := l.LoadProgram()
	assert.ErrorIs(t, err, status.MemoryAllocationFailed)
	assert.Equal(t, status.StagePlanning, status.StageOf(err))
	assert.Equal(t, StateProgramLoaded, l.State())
	assert.False(t, l.IsLoaded())
	assert.NotNil(t, l.Program())
	assert.Nil(t, l.Method())
	assert.Zero(t, l.Stats().MethodPoolUsed)

	out := []float32{0}
	err = l.RunInference([]float32{1}, []float32{1}, 1, out, 1)
	assert.ErrorIs(t, err, status.InvalidState)

	// Retrying starts from scratch and fails the same way.
	err = l.LoadProgram()
	assert.ErrorIs(t, err, status.MemoryAllocationFailed)
	assert.Equal(t, StateProgramLoaded, l.State())
}

func TestInvalidProgramLeavesInitialized(t *testing.T) {
	l := New(program.NewBufferSource([]byte("definitely not a program, but long enough to hold a fixed header......")), DefaultConfig())
	require.NoError(t, l.Initialize())

	err := l.LoadProgram()
	assert.ErrorIs(t, err, status.InvalidProgram)
	assert.ErrorIs(t, err, program.ErrInvalidMagic)
	assert.Equal(t, status.StageProgramLoad, status.StageOf(err))
	assert.Equal(t, StateInitialized, l.State())
	assert.Nil(t, l.Program())
}

func TestUnknownMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MethodName = "backward"
	l := New(addSource(t, 1), cfg)
	require.NoError(t, l.Initialize())

	err := l.LoadProgram()
	assert.ErrorIs(t, err, status.InvalidArgument)
	assert.Equal(t, status.StageMethodMeta, status.StageOf(err))
	assert.Equal(t, StateProgramLoaded, l.State())
}

func TestMissingKernel(t *testing.T) {
	l := New(addSource(t, 1), DefaultConfig(), WithKernels(kernels.NewEmptyRegistry()))
	require.NoError(t, l.Initialize())

	err := l.LoadProgram()
	assert.ErrorIs(t, err, status.OperatorMissing)
	assert.Equal(t, status.StageMethodLoad, status.StageOf(err))
	assert.Equal(t, StateProgramLoaded, l.State())
}

func TestNilSource(t *testing.T) {
	l := New(nil, DefaultConfig())
	require.NoError(t, l.Initialize())
	assert.ErrorIs(t, l.LoadProgram(), status.InvalidArgument)
	assert.Equal(t, StateInitialized, l.State())
}

func TestNegativePoolSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempPoolSize = -1
	l := New(addSource(t, 1), cfg)

	err := l.Initialize()
	assert.ErrorIs(t, err, status.InvalidArgument)
	assert.Equal(t, status.StageInitialize, status.StageOf(err))
	assert.Equal(t, StateUninitialized, l.State())
}

func TestPartialCallerPools(t *testing.T) {
	for _, opt := range []Option{
		WithPools(make([]byte, 1024), nil),
		WithPools(nil, make([]byte, 128)),
	} {
		l := New(addSource(t, 1), DefaultConfig(), opt)

		err := l.Initialize()
		assert.ErrorIs(t, err, status.InvalidArgument)
		assert.Equal(t, status.StageInitialize, status.StageOf(err))
		assert.Equal(t, StateUninitialized, l.State())
	}
}

func TestCallerOwnedPools(t *testing.T) {
	method := make([]byte, 1024)
	temp := make([]byte, 128)
	l := readyLoader(t, addSource(t, 4), WithPools(method, temp))

	stats := l.Stats()
	assert.Equal(t, 1024, stats.MethodPoolSize)
	assert.Equal(t, 128, stats.TempPoolSize)
	assert.Positive(t, stats.MethodPoolUsed)

	out := make([]float32, 4)
	n, err := l.Run(out, []float32{1, 2, 3, 4}, []float32{4, 3, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{5, 5, 5, 5}, out)
}

func TestRunLinearProgram(t *testing.T) {
	w := []float32{1, 0, 0, 1, 1, 1}
	b := []float32{-1, 0}
	blob, err := program.LinearModule(3, 2, w, b, true)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxInputs = 1
	l := New(program.NewBufferSource(blob), cfg)
	require.NoError(t, l.Initialize())
	require.NoError(t, l.LoadProgram())

	out := make([]float32, 2)
	n, err := l.Run(out, []float32{0.5, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// [0.5, 2, 3] @ w = [3.5, 5]; + b = [2.5, 5]
	assert.Equal(t, []float32{2.5, 5}, out)

	_, err = l.Run(out)
	assert.ErrorIs(t, err, status.InvalidArgument)
	_, err = l.Run(out, []float32{1, 2, 3}, []float32{1})
	assert.ErrorIs(t, err, status.InvalidArgument)
}

func TestRunDoesNotAllocate(t *testing.T) {
	l := readyLoader(t, addSource(t, 8))

	in1 := make([]float32, 8)
	in2 := make([]float32, 8)
	out := make([]float32, 8)
	allocs := testing.AllocsPerRun(100, func() {
		if err := l.RunInference(in1, in2, 8, out, 8); err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "method-ready", StateMethodReady.String())
	assert.Equal(t, "unknown", State(42).String())
}
