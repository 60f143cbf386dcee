package program

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
)

func mustAddModule(t *testing.T, n int) []byte {
	t.Helper()
	blob, err := AddModule(n)
	require.NoError(t, err)
	return blob
}

func TestAddModuleMetadata(t *testing.T) {
	blob := mustAddModule(t, 1)

	p, err := Load(NewBufferSource(blob))
	require.NoError(t, err)

	assert.Equal(t, 1, p.NumMethods())
	assert.Equal(t, []string{"forward"}, p.MethodNames())
	assert.Equal(t, "add", p.Metadata()["model"])
	assert.Equal(t, Producer, p.Producer())
	assert.NotZero(t, p.Flags()&FlagHasMetadata)
	assert.Zero(t, p.Flags()&FlagCompressed)
	assert.False(t, p.ID().IsZero())

	meta, err := p.MethodMeta("forward")
	require.NoError(t, err)
	assert.Equal(t, "forward", meta.Name())
	assert.Equal(t, 2, meta.NumInputs())
	assert.Equal(t, 1, meta.NumOutputs())
	assert.Equal(t, 1, meta.NumMemoryPlannedBuffers())
	assert.Equal(t, 1, meta.NumInstructions())
	assert.True(t, meta.UsesKernel(KernelAdd))
	assert.False(t, meta.UsesKernel(KernelMM))

	size, err := meta.MemoryPlannedBufferSize(0)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	for i := 0; i < 2; i++ {
		tag, err := meta.InputTag(i)
		require.NoError(t, err)
		assert.Equal(t, Tensor, tag)

		info, err := meta.InputTensorMeta(i)
		require.NoError(t, err)
		assert.Equal(t, tensor.Float32, info.ScalarType())
		assert.Equal(t, []int32{1}, info.Sizes())
		assert.Equal(t, []uint8{0}, info.DimOrder())
		assert.Equal(t, 4, info.NBytes())
		assert.Equal(t, 1, info.NumElements())
		assert.False(t, info.IsMemoryPlanned())
	}

	out, err := meta.OutputTensorMeta(0)
	require.NoError(t, err)
	assert.True(t, out.IsMemoryPlanned())
}

func TestMethodMetaErrors(t *testing.T) {
	p, err := Load(NewBufferSource(mustAddModule(t, 3)))
	require.NoError(t, err)

	_, err = p.MethodMeta("backward")
	assert.ErrorIs(t, err, status.InvalidArgument)
	assert.ErrorIs(t, err, ErrMethodNotFound)

	meta, err := p.MethodMeta("forward")
	require.NoError(t, err)

	_, err = meta.InputTensorMeta(2)
	assert.ErrorIs(t, err, status.InvalidArgument)
	_, err = meta.InputTag(-1)
	assert.ErrorIs(t, err, status.InvalidArgument)
	_, err = meta.OutputTensorMeta(1)
	assert.ErrorIs(t, err, status.InvalidArgument)
	_, err = meta.OutputTag(5)
	assert.ErrorIs(t, err, status.InvalidArgument)
	_, err = meta.MemoryPlannedBufferSize(1)
	assert.ErrorIs(t, err, status.InvalidArgument)
}

func TestNonTensorInput(t *testing.T) {
	m := AddModuleDef(2)
	m.Values = append(m.Values, DoubleValue(2))
	m.Inputs = append(m.Inputs, 3)
	blob, err := NewBuilder().AddMethod(m).Bytes()
	require.NoError(t, err)

	p, err := Load(NewBufferSource(blob))
	require.NoError(t, err)
	meta, err := p.MethodMeta("forward")
	require.NoError(t, err)

	tag, err := meta.InputTag(2)
	require.NoError(t, err)
	assert.Equal(t, Double, tag)

	_, err = meta.InputTensorMeta(2)
	assert.ErrorIs(t, err, status.InvalidArgument)
}

func TestLinearModuleConstants(t *testing.T) {
	w := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{0.5, -0.5, 1}

	for _, compress := range []bool{false, true} {
		blob, err := LinearModule(2, 3, w, b, compress)
		require.NoError(t, err)

		p, err := Load(NewBufferSource(blob))
		require.NoError(t, err)
		assert.Equal(t, compress, p.Flags()&FlagCompressed != 0)
		assert.Equal(t, 2, p.NumConstants())

		raw, err := p.Constant(0)
		require.NoError(t, err)
		assert.Equal(t, tensor.AsBytes(w), raw)

		raw, err = p.Constant(1)
		require.NoError(t, err)
		assert.Equal(t, tensor.AsBytes(b), raw)

		_, err = p.Constant(2)
		assert.ErrorIs(t, err, status.InvalidArgument)
	}
}

func TestLinearModuleArgs(t *testing.T) {
	_, err := LinearModule(0, 3, nil, nil, false)
	assert.Error(t, err)
	_, err = LinearModule(2, 2, make([]float32, 3), make([]float32, 2), false)
	assert.Error(t, err)
	_, err = AddModule(0)
	assert.Error(t, err)
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	w := make([]float32, 64*64)
	b := make([]float32, 64)

	plain, err := LinearModule(64, 64, w, b, false)
	require.NoError(t, err)
	packed, err := LinearModule(64, 64, w, b, true)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))
}

func TestProgramIDIsContentAddressed(t *testing.T) {
	a1, err := Load(NewBufferSource(mustAddModule(t, 1)))
	require.NoError(t, err)
	a2, err := Load(NewBufferSource(mustAddModule(t, 1)))
	require.NoError(t, err)
	b, err := Load(NewBufferSource(mustAddModule(t, 2)))
	require.NoError(t, err)

	assert.Equal(t, a1.ID(), a2.ID())
	assert.NotEqual(t, a1.ID(), b.ID())

	parsed, err := ParseID(a1.ID().String())
	require.NoError(t, err)
	assert.Equal(t, a1.ID(), parsed)

	_, err = ParseID("0OIl")
	assert.Error(t, err)
	_, err = ParseID("abc")
	assert.Error(t, err)
}

func TestLoadCorrupted(t *testing.T) {
	good := mustAddModule(t, 4)
	headerSize := binary.LittleEndian.Uint64(good[16:24])

	tests := []struct {
		name     string
		corrupt  func(b []byte) []byte
		opts     []LoadOption
		wantCode status.Code
		wantErr  error
	}{
		{
			name:     "bad magic",
			corrupt:  func(b []byte) []byte { copy(b, "ABCD"); return b },
			wantCode: status.InvalidProgram,
			wantErr:  ErrInvalidMagic,
		},
		{
			name:     "future version",
			corrupt:  func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:8], 9); return b },
			wantCode: status.InvalidProgram,
			wantErr:  ErrUnsupportedVersion,
		},
		{
			name:     "short source",
			corrupt:  func(b []byte) []byte { return b[:FixedHeaderSize-1] },
			wantCode: status.InvalidProgram,
			wantErr:  ErrTruncated,
		},
		{
			name:     "header larger than source",
			corrupt:  func(b []byte) []byte { binary.LittleEndian.PutUint64(b[16:24], uint64(len(b))); return b },
			wantCode: status.InvalidProgram,
			wantErr:  ErrTruncated,
		},
		{
			name:     "header over limit",
			corrupt:  func(b []byte) []byte { binary.LittleEndian.PutUint64(b[16:24], MaxHeaderSize+1); return b },
			wantCode: status.InvalidProgram,
			wantErr:  ErrHeaderTooLarge,
		},
		{
			name: "flipped header byte",
			corrupt: func(b []byte) []byte {
				b[FixedHeaderSize+int(headerSize)/2] ^= 0x01
				return b
			},
			wantCode: status.InvalidProgram,
			wantErr:  ErrChecksumMismatch,
		},
		{
			name:     "negative data limit is unlimited",
			corrupt:  func(b []byte) []byte { return b },
			opts:     []LoadOption{WithMaxDataSize(-1)},
			wantCode: status.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := tt.corrupt(bytes.Clone(good))
			_, err := Load(NewBufferSource(blob), tt.opts...)
			if tt.wantCode == status.OK {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, status.CodeOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadDataSizeLimit(t *testing.T) {
	blob, err := LinearModule(4, 4, make([]float32, 16), make([]float32, 4), false)
	require.NoError(t, err)

	_, err = Load(NewBufferSource(blob), WithMaxDataSize(8))
	assert.ErrorIs(t, err, ErrDataTooLarge)

	packed, err := LinearModule(4, 4, make([]float32, 16), make([]float32, 4), true)
	require.NoError(t, err)
	_, err = Load(NewBufferSource(packed), WithMaxDataSize(8))
	assert.ErrorIs(t, err, ErrDataTooLarge)
	assert.Equal(t, status.InvalidProgram, status.CodeOf(err))
}

func TestSkipChecksum(t *testing.T) {
	blob := mustAddModule(t, 1)
	// Corrupt the stored checksum only.
	blob[ChecksumOffset] ^= 0xFF

	_, err := Load(NewBufferSource(blob))
	require.ErrorIs(t, err, ErrChecksumMismatch)

	p, err := Load(NewBufferSource(blob), WithVerification(VerifyStructure))
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumMethods())
}

func TestLoadNilSource(t *testing.T) {
	_, err := Load(nil)
	assert.ErrorIs(t, err, status.InvalidArgument)
}

type failingSource struct{ size int }

func (s failingSource) Load(int, int) ([]byte, error) { return nil, errors.New("bus error") }
func (s failingSource) Size() int                     { return s.size }

func TestLoadAccessFailed(t *testing.T) {
	_, err := Load(failingSource{size: 4096})
	assert.Equal(t, status.AccessFailed, status.CodeOf(err))
	assert.Contains(t, err.Error(), "bus error")
}

func TestBuilderRejectsInvalidProgram(t *testing.T) {
	m := AddModuleDef(2)
	m.Outputs = []int{42}
	_, err := NewBuilder().AddMethod(m).Bytes()
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestBuilderWriteTo(t *testing.T) {
	b := NewBuilder().AddMethod(AddModuleDef(8))
	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	blob, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), blob)
	assert.Zero(t, (len(blob)-int(binary.LittleEndian.Uint64(blob[24:32])))%DataAlignment)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.mxp")
	require.NoError(t, os.WriteFile(path, mustAddModule(t, 2), 0o600))

	src, err := OpenFile(path)
	require.NoError(t, err)

	p, err := Load(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"forward"}, p.MethodNames())

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	_, err = src.Load(0, 1)
	assert.Error(t, err)
}

func TestFileSourceMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.mxp"))
	assert.Error(t, err)
}

func TestBufferSourceRange(t *testing.T) {
	src := NewBufferSource([]byte{1, 2, 3, 4})
	assert.Equal(t, 4, src.Size())

	got, err := src.Load(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, got)
	assert.Equal(t, 2, cap(got))

	_, err = src.Load(3, 2)
	assert.Error(t, err)
	_, err = src.Load(-1, 1)
	assert.Error(t, err)
}
