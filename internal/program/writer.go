package program

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/microexec/internal/tensor"
)

// Producer is recorded in the header of programs built by this package.
const Producer = "microexec/0.1.0"

// constantAlignment aligns constants inside the data segment.
const constantAlignment = 16

// Builder assembles a program container.
type Builder struct {
	header   Header
	data     []byte
	compress bool
}

// NewBuilder creates an empty program builder.
func NewBuilder() *Builder {
	return &Builder{
		header: Header{
			FormatVersion: FormatVersion,
			Producer:      Producer,
		},
	}
}

// AddConstant appends a named constant to the data segment and returns its index.
func (b *Builder) AddConstant(name string, data []byte) int {
	offset := alignUp(int64(len(b.data)), constantAlignment)
	if pad := offset - int64(len(b.data)); pad > 0 {
		b.data = append(b.data, make([]byte, pad)...)
	}
	b.data = append(b.data, data...)
	b.header.Constants = append(b.header.Constants, ConstantMeta{
		Name:   name,
		Offset: offset,
		Size:   int64(len(data)),
	})
	return len(b.header.Constants) - 1
}

// AddConstantValues appends typed constant values and returns the constant index.
func AddConstantValues[T tensor.Element](b *Builder, name string, values []T) int {
	return b.AddConstant(name, tensor.AsBytes(values))
}

// AddMethod appends a method definition.
func (b *Builder) AddMethod(m MethodDef) *Builder {
	b.header.Methods = append(b.header.Methods, m)
	return b
}

// SetMetadata records a custom metadata entry.
func (b *Builder) SetMetadata(key, value string) *Builder {
	if b.header.Metadata == nil {
		b.header.Metadata = make(map[string]string)
	}
	b.header.Metadata[key] = value
	return b
}

// Compress selects zstd compression of the data segment. An empty segment is always stored raw.
func (b *Builder) Compress(on bool) *Builder {
	b.compress = on
	return b
}

// Bytes validates the program and serializes it.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo validates the program and writes the container to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	if err := ValidateHeader(&b.header, int64(len(b.data)), VerifyStructure); err != nil {
		return 0, fmt.Errorf("invalid program: %w", err)
	}

	headerJSON, err := json.Marshal(b.header)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal header: %w", err)
	}

	var flags uint32
	if len(b.header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	stored := b.data
	if b.compress && len(b.data) > 0 {
		stored, err = compressData(b.data)
		if err != nil {
			return 0, fmt.Errorf("failed to compress data segment: %w", err)
		}
		flags |= FlagCompressed
	}

	checksum := ComputeChecksum(headerJSON, stored)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(stored)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	end := int64(FixedHeaderSize + len(headerJSON))
	padding := alignUp(end, DataAlignment) - end

	var written int64
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), stored} {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write program: %w", err)
		}
	}

	return written, nil
}

// NewTensorDef declares a contiguous tensor with no storage.
func NewTensorDef(st tensor.ScalarType, sizes ...int32) *TensorDef {
	return &TensorDef{
		ScalarType: st.String(),
		Sizes:      sizes,
		DimOrder:   tensor.ContiguousDimOrder(len(sizes)),
	}
}

// Planned places the tensor in a memory-planned buffer.
func (d *TensorDef) Planned(bufferID int, offset int64) *TensorDef {
	d.Alloc = &Placement{BufferID: bufferID, Offset: offset}
	return d
}

// FromConstant backs the tensor with a constant.
func (d *TensorDef) FromConstant(index int) *TensorDef {
	d.Constant = &index
	return d
}

// TensorValue wraps a tensor definition as a value.
func TensorValue(d *TensorDef) ValueDef {
	return ValueDef{Tag: TagTensor, Tensor: d}
}

// IntValue declares an int value.
func IntValue(v int64) ValueDef {
	return ValueDef{Tag: TagInt, Int: v}
}

// DoubleValue declares a double value.
func DoubleValue(v float64) ValueDef {
	return ValueDef{Tag: TagDouble, Double: v}
}

// BoolValue declares a bool value.
func BoolValue(v bool) ValueDef {
	return ValueDef{Tag: TagBool, Bool: v}
}

// NoneValue declares an empty value.
func NoneValue() ValueDef {
	return ValueDef{Tag: TagNone}
}

// KernelCall declares a kernel instruction.
func KernelCall(kernel string, args ...int) Instruction {
	return Instruction{Kind: InstrKernel, Kernel: kernel, Args: args}
}

// Move declares a move instruction copying value from into value to.
func Move(from, to int) Instruction {
	return Instruction{Kind: InstrMove, Args: []int{from, to}}
}
