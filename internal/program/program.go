package program

import (
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
)

// Program is a parsed, immutable compiled program.
type Program struct {
	header  Header
	flags   uint32
	data    []byte // decoded data segment
	id      Checksum
	methods map[string]int
}

func newProgram(h Header, flags uint32, data []byte, id Checksum) *Program {
	methods := make(map[string]int, len(h.Methods))
	for i := range h.Methods {
		if _, dup := methods[h.Methods[i].Name]; !dup {
			methods[h.Methods[i].Name] = i
		}
	}
	return &Program{
		header:  h,
		flags:   flags,
		data:    data,
		id:      id,
		methods: methods,
	}
}

// NumMethods returns the number of methods in the program.
func (p *Program) NumMethods() int {
	return len(p.header.Methods)
}

// MethodNames returns method names in declaration order.
func (p *Program) MethodNames() []string {
	names := make([]string, len(p.header.Methods))
	for i := range p.header.Methods {
		names[i] = p.header.Methods[i].Name
	}
	return names
}

// MethodMeta returns the metadata of the named method.
// An unknown name is status.InvalidArgument wrapping ErrMethodNotFound.
func (p *Program) MethodMeta(name string) (MethodMeta, error) {
	i, ok := p.methods[name]
	if !ok {
		return MethodMeta{}, status.Errorf(status.InvalidArgument, "%w: %q", ErrMethodNotFound, name)
	}
	return MethodMeta{def: &p.header.Methods[i]}, nil
}

// NumConstants returns the number of constants in the data segment.
func (p *Program) NumConstants() int {
	return len(p.header.Constants)
}

// Constant returns the bytes of constant i. The slice aliases the program's data segment
// and must not be modified.
func (p *Program) Constant(i int) ([]byte, error) {
	if i < 0 || i >= len(p.header.Constants) {
		return nil, status.Errorf(status.InvalidArgument, "constant %d out of range (%d constants)", i, len(p.header.Constants))
	}
	c := p.header.Constants[i]
	if c.Offset < 0 || c.Size < 0 || c.Offset > int64(len(p.data)) || c.Size > int64(len(p.data))-c.Offset {
		return nil, status.Errorf(status.InvalidProgram, "constant %q: [%d, +%d) outside data segment of %d bytes",
			c.Name, c.Offset, c.Size, len(p.data))
	}
	end := c.Offset + c.Size
	return p.data[c.Offset:end:end], nil
}

// ConstantMeta returns the descriptors of all constants.
func (p *Program) ConstantMeta() []ConstantMeta {
	return p.header.Constants
}

// Metadata returns the custom metadata of the program.
func (p *Program) Metadata() map[string]string {
	return p.header.Metadata
}

// Producer returns the name of the tool that produced the program.
func (p *Program) Producer() string {
	return p.header.Producer
}

// ID returns the content checksum of the program.
func (p *Program) ID() Checksum {
	return p.id
}

// Flags returns the container flags.
func (p *Program) Flags() uint32 {
	return p.flags
}

// DataSize returns the size of the decoded data segment.
func (p *Program) DataSize() int {
	return len(p.data)
}

// MethodMeta describes a method without loading it: its inputs, outputs and planned buffers.
// It is a small value referencing the program, valid while the program is.
type MethodMeta struct {
	def *MethodDef
}

// Name returns the method name.
func (m MethodMeta) Name() string {
	return m.def.Name
}

// NumInputs returns the number of method inputs.
func (m MethodMeta) NumInputs() int {
	return len(m.def.Inputs)
}

// InputTag returns the tag of input i.
func (m MethodMeta) InputTag(i int) (Tag, error) {
	v, err := m.io("input", m.def.Inputs, i)
	if err != nil {
		return None, err
	}
	return m.tagOf(v)
}

// InputTensorMeta returns the tensor metadata of input i.
// Out-of-range indices and non-tensor inputs are status.InvalidArgument.
func (m MethodMeta) InputTensorMeta(i int) (TensorInfo, error) {
	v, err := m.io("input", m.def.Inputs, i)
	if err != nil {
		return TensorInfo{}, err
	}
	return m.tensorInfo("input", i, v)
}

// NumOutputs returns the number of method outputs.
func (m MethodMeta) NumOutputs() int {
	return len(m.def.Outputs)
}

// OutputTag returns the tag of output i.
func (m MethodMeta) OutputTag(i int) (Tag, error) {
	v, err := m.io("output", m.def.Outputs, i)
	if err != nil {
		return None, err
	}
	return m.tagOf(v)
}

// OutputTensorMeta returns the tensor metadata of output i.
func (m MethodMeta) OutputTensorMeta(i int) (TensorInfo, error) {
	v, err := m.io("output", m.def.Outputs, i)
	if err != nil {
		return TensorInfo{}, err
	}
	return m.tensorInfo("output", i, v)
}

// NumMemoryPlannedBuffers returns the number of memory-planned buffers the method needs.
func (m MethodMeta) NumMemoryPlannedBuffers() int {
	return len(m.def.PlannedBuffers)
}

// MemoryPlannedBufferSize returns the size in bytes of planned buffer id.
func (m MethodMeta) MemoryPlannedBufferSize(id int) (int, error) {
	if id < 0 || id >= len(m.def.PlannedBuffers) {
		return 0, status.Errorf(status.InvalidArgument, "planned buffer %d out of range (%d buffers)", id, len(m.def.PlannedBuffers))
	}
	return int(m.def.PlannedBuffers[id]), nil
}

// NumInstructions returns the length of the instruction chain.
func (m MethodMeta) NumInstructions() int {
	return len(m.def.Instructions)
}

// UsesKernel reports whether any instruction calls the named kernel.
func (m MethodMeta) UsesKernel(name string) bool {
	for _, ins := range m.def.Instructions {
		if ins.Kind == InstrKernel && ins.Kernel == name {
			return true
		}
	}
	return false
}

// Def returns the underlying method definition. It is shared with the program and must not be modified.
func (m MethodMeta) Def() *MethodDef {
	return m.def
}

func (m MethodMeta) io(what string, indices []int, i int) (*ValueDef, error) {
	if i < 0 || i >= len(indices) {
		return nil, status.Errorf(status.InvalidArgument, "%s %d out of range (method %q has %d)", what, i, m.def.Name, len(indices))
	}
	idx := indices[i]
	if idx < 0 || idx >= len(m.def.Values) {
		return nil, status.Errorf(status.InvalidProgram, "%s %d references value %d of %d", what, i, idx, len(m.def.Values))
	}
	return &m.def.Values[idx], nil
}

func (m MethodMeta) tagOf(v *ValueDef) (Tag, error) {
	tag, err := parseTag(v.Tag)
	if err != nil {
		return None, status.Errorf(status.InvalidProgram, "%w", err)
	}
	return tag, nil
}

func (m MethodMeta) tensorInfo(what string, i int, v *ValueDef) (TensorInfo, error) {
	if v.Tag != TagTensor || v.Tensor == nil {
		return TensorInfo{}, status.Errorf(status.InvalidArgument, "%s %d of method %q is %s, not a tensor", what, i, m.def.Name, v.Tag)
	}
	return NewTensorInfo(v.Tensor)
}

// TensorInfo is the declared metadata of a tensor value.
// Sizes and DimOrder reference the program and must not be modified.
type TensorInfo struct {
	scalarType tensor.ScalarType
	sizes      []int32
	dimOrder   []uint8
	planned    bool
}

// NewTensorInfo resolves a tensor definition.
func NewTensorInfo(d *TensorDef) (TensorInfo, error) {
	st, err := d.scalarType()
	if err != nil {
		return TensorInfo{}, status.Errorf(status.InvalidProgram, "%w", err)
	}
	return TensorInfo{
		scalarType: st,
		sizes:      d.Sizes,
		dimOrder:   []uint8(d.DimOrder),
		planned:    d.Alloc != nil,
	}, nil
}

// ScalarType returns the element type.
func (t TensorInfo) ScalarType() tensor.ScalarType {
	return t.scalarType
}

// Sizes returns the declared dimensions.
func (t TensorInfo) Sizes() []int32 {
	return t.sizes
}

// DimOrder returns the declared dimension order.
func (t TensorInfo) DimOrder() []uint8 {
	return t.dimOrder
}

// NumElements returns the declared element count.
func (t TensorInfo) NumElements() int {
	return tensor.NumElements(t.sizes)
}

// NBytes returns the declared byte size.
func (t TensorInfo) NBytes() int {
	return tensor.NBytes(t.scalarType, t.sizes)
}

// IsMemoryPlanned reports whether the tensor's storage lives in a planned buffer.
func (t TensorInfo) IsMemoryPlanned() bool {
	return t.planned
}
