package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeValues(t *testing.T) {
	// Numeric values are surfaced as exit codes and must stay stable.
	assert.Equal(t, Code(0x02), InvalidState)
	assert.Equal(t, Code(0x12), InvalidArgument)
	assert.Equal(t, Code(0x21), MemoryAllocationFailed)
	assert.Equal(t, Code(0x23), InvalidProgram)
	assert.Equal(t, "InvalidArgument", InvalidArgument.String())
	assert.Equal(t, "Code(0x99)", Code(0x99).String())
}

func TestErrorfMatchesCode(t *testing.T) {
	err := Errorf(InvalidArgument, "input %d: expected %d bytes, got %d", 0, 4, 8)

	assert.True(t, errors.Is(err, InvalidArgument))
	assert.False(t, errors.Is(err, InvalidState))
	assert.Equal(t, InvalidArgument, CodeOf(err))
	assert.Contains(t, err.Error(), "expected 4 bytes, got 8")
}

func TestErrorfKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Errorf(AccessFailed, "reading program: %w", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, AccessFailed))
	assert.Equal(t, "AccessFailed: reading program: disk on fire", err.Error())
}

func TestWithStage(t *testing.T) {
	base := Errorf(InvalidProgram, "bad magic")
	tagged := WithStage(base, StageProgramLoad)

	assert.Equal(t, InvalidProgram, CodeOf(tagged))
	assert.Equal(t, StageProgramLoad, StageOf(tagged))
	assert.Contains(t, tagged.Error(), "(program-load)")

	// Re-tagging keeps the code.
	retagged := WithStage(tagged, StageMethodLoad)
	assert.Equal(t, InvalidProgram, CodeOf(retagged))
	assert.Equal(t, StageMethodLoad, StageOf(retagged))

	// The original is not mutated.
	assert.Equal(t, StageUnknown, StageOf(base))
}

func TestWithStagePlainError(t *testing.T) {
	err := WithStage(errors.New("boom"), StageExecute)
	require.Error(t, err)
	assert.Equal(t, Internal, CodeOf(err))
	assert.Equal(t, StageExecute, StageOf(err))
}

func TestNilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(Internal, StageExecute, nil))
	assert.NoError(t, WithStage(nil, StageExecute))
	assert.Equal(t, OK, CodeOf(nil))
	assert.Equal(t, StageUnknown, StageOf(nil))
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(MemoryAllocationFailed, StagePlanning, errors.New("arena exhausted")))
	assert.Equal(t, MemoryAllocationFailed, CodeOf(err))
	assert.Equal(t, StagePlanning, StageOf(err))

	bare := fmt.Errorf("outer: %w", NotFound)
	assert.Equal(t, NotFound, CodeOf(bare))
}

func TestErrorfDropsForeignCode(t *testing.T) {
	sentinel := errors.New("range check")
	inner := Errorf(InvalidArgument, "offset 12 outside buffer: %w", sentinel)
	err := Errorf(InvalidProgram, "value 3: %w", inner)

	assert.True(t, errors.Is(err, InvalidProgram))
	assert.False(t, errors.Is(err, InvalidArgument))
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, InvalidProgram, CodeOf(err))
	assert.Contains(t, err.Error(), "offset 12 outside buffer")

	bare := Errorf(InvalidProgram, "lookup: %w", NotFound)
	assert.False(t, errors.Is(bare, NotFound))
	assert.Equal(t, InvalidProgram, CodeOf(bare))

	wrapped := Wrap(MemoryAllocationFailed, StagePlanning, inner)
	assert.False(t, errors.Is(wrapped, InvalidArgument))
	assert.True(t, errors.Is(wrapped, sentinel))
}

func TestErrorfKeepsMatchingCode(t *testing.T) {
	inner := Errorf(OperatorMissing, "kernel %q", "aten::foo")
	err := Errorf(CodeOf(inner), "instruction 2: %w", inner)

	assert.True(t, errors.Is(err, OperatorMissing))
	assert.Same(t, inner, errors.Unwrap(err))
}
