package program

import (
	"encoding/json"
	"fmt"

	"github.com/born-ml/microexec/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "MXPG"
	FormatVersion   = 1
	FixedHeaderSize = 64   // 0x40 bytes
	DataAlignment   = 64   // Data segment starts on a 64-byte boundary
	ChecksumSize    = 32   // BLAKE3-256
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the program container.
const (
	FlagCompressed  uint32 = 1 << 0 // bit 0: data segment is zstd-compressed
	FlagHasMetadata uint32 = 1 << 2 // bit 2: custom metadata included
)

// Value tags as they appear in the header.
const (
	TagNone   = "none"
	TagInt    = "int"
	TagDouble = "double"
	TagBool   = "bool"
	TagTensor = "tensor"
)

// Instruction kinds.
const (
	InstrKernel = "kernel" // call a registered kernel with args
	InstrMove   = "move"   // copy value args[0] into value args[1]
)

// Header is the JSON header of a program container.
type Header struct {
	FormatVersion int               `json:"format_version"`     // Version of the container format
	Producer      string            `json:"producer"`           // Tool that produced the program
	Constants     []ConstantMeta    `json:"constants"`          // Constant data in the data segment
	Methods       []MethodDef       `json:"methods"`            // Executable entry points
	Metadata      map[string]string `json:"metadata,omitempty"` // Custom metadata
}

// ConstantMeta describes a constant blob in the data segment.
type ConstantMeta struct {
	Name   string `json:"name"`   // Constant name (e.g., "linear.weight")
	Offset int64  `json:"offset"` // Offset in the data segment
	Size   int64  `json:"size"`   // Size in bytes
}

// MethodDef is a named entry point.
type MethodDef struct {
	Name           string        `json:"name"`
	Values         []ValueDef    `json:"values"`
	Inputs         []int         `json:"inputs"`          // Value indices
	Outputs        []int         `json:"outputs"`         // Value indices
	PlannedBuffers []int64       `json:"planned_buffers"` // Size of each memory-planned buffer, by buffer id
	Instructions   []Instruction `json:"instructions"`
}

// ValueDef declares one value slot of a method.
type ValueDef struct {
	Tag    string     `json:"tag"`
	Int    int64      `json:"int,omitempty"`
	Double float64    `json:"double,omitempty"`
	Bool   bool       `json:"bool,omitempty"`
	Tensor *TensorDef `json:"tensor,omitempty"`
}

// TensorDef declares a tensor value.
//
// Storage comes from at most one place: a memory-planned buffer (Alloc) or a constant (Constant).
// A tensor with neither has no storage until the caller binds data at runtime.
type TensorDef struct {
	ScalarType string     `json:"scalar_type"`
	Sizes      []int32    `json:"sizes"`
	DimOrder   DimOrder   `json:"dim_order"`
	Alloc      *Placement `json:"alloc,omitempty"`
	Constant   *int       `json:"constant,omitempty"`
}

// DimOrder is a tensor's dimension order, serialized as a JSON array of numbers.
type DimOrder []uint8

// MarshalJSON implements json.Marshaler.
func (d DimOrder) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(d))
	for i, v := range d {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DimOrder) UnmarshalJSON(b []byte) error {
	var ints []int
	if err := json.Unmarshal(b, &ints); err != nil {
		return err
	}
	out := make(DimOrder, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("dim order entry %d out of range: %d", i, v)
		}
		out[i] = uint8(v)
	}
	*d = out
	return nil
}

// Placement locates a tensor inside a memory-planned buffer.
type Placement struct {
	BufferID int   `json:"buffer_id"`
	Offset   int64 `json:"offset"`
}

// Instruction is one step of a method's instruction chain.
type Instruction struct {
	Kind   string `json:"kind"`
	Kernel string `json:"kernel,omitempty"`
	Args   []int  `json:"args"`
}

// Tag is the runtime type of a value slot.
type Tag int

// Value tags.
const (
	None Tag = iota
	Int
	Double
	Bool
	Tensor
)

// String returns the serialized tag name.
func (t Tag) String() string {
	switch t {
	case None:
		return TagNone
	case Int:
		return TagInt
	case Double:
		return TagDouble
	case Bool:
		return TagBool
	case Tensor:
		return TagTensor
	default:
		return "unknown"
	}
}

// parseTag converts a serialized tag name to a Tag.
func parseTag(s string) (Tag, error) {
	switch s {
	case TagNone:
		return None, nil
	case TagInt:
		return Int, nil
	case TagDouble:
		return Double, nil
	case TagBool:
		return Bool, nil
	case TagTensor:
		return Tensor, nil
	default:
		return None, fmt.Errorf("unknown value tag %q", s)
	}
}

// scalarType resolves the declared scalar type of a tensor definition.
func (d *TensorDef) scalarType() (tensor.ScalarType, error) {
	return tensor.ParseScalarType(d.ScalarType)
}

// NBytes returns the byte size of the declared tensor, or 0 if its scalar type is unknown.
func (d *TensorDef) NBytes() int64 {
	st, err := d.scalarType()
	if err != nil {
		return 0
	}
	return int64(tensor.NBytes(st, d.Sizes))
}
