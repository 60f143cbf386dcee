// Package runtime loads a method of a compiled program against a memory manager and executes it.
package runtime

import (
	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/kernels"
	"github.com/born-ml/microexec/internal/memory"
	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// Method is a loaded, executable method.
//
// All storage a method touches is fixed at Load: tensor bookkeeping lives in the method arena,
// tensor data in planned buffers, constants or caller-bound memory. Execute allocates nothing.
// A Method is not safe for concurrent use.
type Method struct {
	meta    program.MethodMeta
	def     *program.MethodDef
	values  []value.EValue
	planned []bool // per value: storage lives in a planned buffer
	steps   []step
	kctx    kernels.Context
}

// step is one resolved instruction.
type step struct {
	name    string
	handler kernels.OpHandler // nil for a move
	args    []*value.EValue
}

// Load prepares method name of p to run against mgr, resolving kernels from reg.
//
// The manager's planned buffers must match the method's plan in count, and each must be at
// least the declared size. Unknown kernels are OperatorMissing.
func Load(p *program.Program, name string, mgr *memory.Manager, reg *kernels.Registry) (*Method, error) {
	meta, err := p.MethodMeta(name)
	if err != nil {
		return nil, err
	}
	def := meta.Def()

	if err := checkPlan(meta, mgr.PlannedMemory()); err != nil {
		return nil, err
	}

	m := &Method{
		meta:    meta,
		def:     def,
		values:  make([]value.EValue, len(def.Values)),
		planned: make([]bool, len(def.Values)),
		kctx:    kernels.Context{Temp: mgr.TempAllocator()},
	}

	for i := range def.Values {
		if err := m.initValue(p, mgr, i); err != nil {
			return nil, err
		}
	}

	if err := m.checkIndices(); err != nil {
		return nil, err
	}

	m.steps = make([]step, len(def.Instructions))
	for j, ins := range def.Instructions {
		s := step{name: ins.Kind, args: make([]*value.EValue, len(ins.Args))}
		for k, idx := range ins.Args {
			s.args[k] = &m.values[idx]
		}
		if ins.Kind == program.InstrKernel {
			h, ok := reg.Get(ins.Kernel)
			if !ok {
				return nil, status.Errorf(status.OperatorMissing, "instruction %d: kernel %q is not registered", j, ins.Kernel)
			}
			s.name = ins.Kernel
			s.handler = h
		}
		m.steps[j] = s
	}

	return m, nil
}

func checkPlan(meta program.MethodMeta, planned *memory.HierarchicalAllocator) error {
	if planned == nil {
		return status.Errorf(status.InvalidArgument, "no planned memory")
	}
	if got, want := planned.NumBuffers(), meta.NumMemoryPlannedBuffers(); got != want {
		return status.Errorf(status.InvalidArgument, "method %q needs %d planned buffers, manager has %d", meta.Name(), want, got)
	}
	for id := 0; id < planned.NumBuffers(); id++ {
		want, err := meta.MemoryPlannedBufferSize(id)
		if err != nil {
			return err
		}
		got, err := planned.BufferSize(id)
		if err != nil {
			return err
		}
		if got < want {
			return status.Errorf(status.InvalidArgument, "planned buffer %d has %d bytes, method %q needs %d", id, got, meta.Name(), want)
		}
	}
	return nil
}

// initValue builds value slot i. Tensor sizes and dim order are copied into the method arena.
func (m *Method) initValue(p *program.Program, mgr *memory.Manager, i int) error {
	d := &m.def.Values[i]
	if d.Tag != program.TagTensor || d.Tensor == nil {
		v, err := value.FromDef(d, nil, nil)
		if err != nil {
			return err
		}
		m.values[i] = v
		return nil
	}

	td := d.Tensor
	a := mgr.MethodAllocator()
	sizes, err := arena.AllocateSlice[int32](a, len(td.Sizes))
	if err != nil {
		return status.Errorf(status.MemoryAllocationFailed, "value %d sizes: %w", i, err)
	}
	copy(sizes, td.Sizes)
	dimOrder, err := arena.AllocateSlice[uint8](a, len(td.DimOrder))
	if err != nil {
		return status.Errorf(status.MemoryAllocationFailed, "value %d dim order: %w", i, err)
	}
	copy(dimOrder, td.DimOrder)

	v, err := value.FromDef(d, sizes, dimOrder)
	if err != nil {
		return err
	}
	view, _ := v.ToTensor()
	nbytes := view.NBytes()

	switch {
	case td.Alloc != nil:
		data, err := mgr.PlannedMemory().OffsetFromID(td.Alloc.BufferID, int(td.Alloc.Offset), nbytes)
		if err != nil {
			return status.Errorf(status.InvalidProgram, "value %d: %w", i, err)
		}
		view.SetData(data)
		m.planned[i] = true
	case td.Constant != nil:
		data, err := p.Constant(*td.Constant)
		if err != nil {
			return status.Errorf(status.InvalidProgram, "value %d: %w", i, err)
		}
		if len(data) != nbytes {
			return status.Errorf(status.InvalidProgram, "value %d: constant has %d bytes, tensor needs %d", i, len(data), nbytes)
		}
		view.SetData(data)
	}

	m.values[i] = v
	return nil
}

// checkIndices rejects out-of-range value references, which unverified programs may carry.
func (m *Method) checkIndices() error {
	n := len(m.values)
	check := func(what string, j, idx int) error {
		if idx < 0 || idx >= n {
			return status.Errorf(status.InvalidProgram, "%s %d references value %d of %d", what, j, idx, n)
		}
		return nil
	}
	for j, idx := range m.def.Inputs {
		if err := check("input", j, idx); err != nil {
			return err
		}
	}
	for j, idx := range m.def.Outputs {
		if err := check("output", j, idx); err != nil {
			return err
		}
	}
	for j, ins := range m.def.Instructions {
		for _, idx := range ins.Args {
			if err := check("instruction", j, idx); err != nil {
				return err
			}
		}
		if ins.Kind == program.InstrMove && len(ins.Args) != 2 {
			return status.Errorf(status.InvalidProgram, "instruction %d: move takes 2 args, got %d", j, len(ins.Args))
		}
		if ins.Kind != program.InstrKernel && ins.Kind != program.InstrMove {
			return status.Errorf(status.InvalidProgram, "instruction %d: unknown kind %q", j, ins.Kind)
		}
	}
	return nil
}

// Meta returns the metadata of the method.
func (m *Method) Meta() program.MethodMeta {
	return m.meta
}

// NumInputs returns the number of inputs.
func (m *Method) NumInputs() int {
	return len(m.def.Inputs)
}

// NumOutputs returns the number of outputs.
func (m *Method) NumOutputs() int {
	return len(m.def.Outputs)
}

// InputTensorMeta returns the declared metadata of tensor input i.
func (m *Method) InputTensorMeta(i int) (program.TensorInfo, error) {
	return m.meta.InputTensorMeta(i)
}

// SetInput sets input i from v.
//
// Tensor inputs must match the declared scalar type and sizes, and carry at least the declared
// number of bytes. An input with planned storage receives a copy; any other tensor input aliases
// the caller's memory, which must stay valid until the method has executed.
func (m *Method) SetInput(v value.EValue, i int) error {
	if i < 0 || i >= len(m.def.Inputs) {
		return status.Errorf(status.InvalidArgument, "input %d out of range (method %q has %d)", i, m.def.Name, len(m.def.Inputs))
	}
	idx := m.def.Inputs[i]
	slot := &m.values[idx]
	if v.Tag() != slot.Tag() {
		return status.Errorf(status.InvalidArgument, "input %d is %s, got %s", i, slot.Tag(), v.Tag())
	}
	if !slot.IsTensor() {
		*slot = v
		return nil
	}

	dst, _ := slot.ToTensor()
	src, _ := v.ToTensor()
	if src.ScalarType() != dst.ScalarType() {
		return status.Errorf(status.InvalidArgument, "input %d: scalar type %s, want %s", i, src.ScalarType(), dst.ScalarType())
	}
	if !tensor.SizesEqual(src.Sizes(), dst.Sizes()) {
		return status.Errorf(status.InvalidArgument, "input %d: sizes %v, want %v", i, src.Sizes(), dst.Sizes())
	}
	n := dst.NBytes()
	data := src.Data()
	if len(data) < n {
		return status.Errorf(status.InvalidArgument, "input %d: %d bytes, want %d", i, len(data), n)
	}

	if m.planned[idx] {
		copy(dst.Data(), data[:n])
		return nil
	}
	dst.SetData(data[:n:n])
	return nil
}

// Execute runs the instruction chain once.
//
// Every tensor input must have storage. Kernel errors keep their code and are annotated with the
// failing instruction. The temporary arena is reset after every kernel.
func (m *Method) Execute() error {
	for i, idx := range m.def.Inputs {
		v := &m.values[idx]
		if !v.IsTensor() {
			continue
		}
		if t, _ := v.ToTensor(); !t.HasData() {
			return status.Errorf(status.InvalidState, "input %d has not been set", i)
		}
	}

	for j := range m.steps {
		s := &m.steps[j]
		if s.handler == nil {
			if err := move(s.args[0], s.args[1]); err != nil {
				return status.Errorf(status.CodeOf(err), "instruction %d (move): %w", j, err)
			}
			continue
		}

		err := s.handler(&m.kctx, s.args)
		if m.kctx.Temp != nil {
			m.kctx.Temp.Reset()
		}
		if err != nil {
			return status.Errorf(status.CodeOf(err), "instruction %d (%s): %w", j, s.name, err)
		}
	}
	return nil
}

// move copies src into dst. Tensors with storage are copied byte for byte; a tensor without
// storage takes on src's storage.
func move(src, dst *value.EValue) error {
	if !src.IsTensor() || !dst.IsTensor() {
		if src.Tag() != dst.Tag() && !dst.IsNone() {
			return status.Errorf(status.InvalidArgument, "cannot move %s into %s", src.Tag(), dst.Tag())
		}
		*dst = *src
		return nil
	}

	s, _ := src.ToTensor()
	d, _ := dst.ToTensor()
	if s.ScalarType() != d.ScalarType() || s.NBytes() != d.NBytes() {
		return status.Errorf(status.InvalidArgument, "cannot move %v into %v", s, d)
	}
	if !d.HasData() {
		d.SetData(s.Data())
		return nil
	}
	copy(d.Data(), s.Data())
	return nil
}

// Output returns output i.
func (m *Method) Output(i int) (value.EValue, error) {
	if i < 0 || i >= len(m.def.Outputs) {
		return value.EValue{}, status.Errorf(status.InvalidArgument, "output %d out of range (method %q has %d)", i, m.def.Name, len(m.def.Outputs))
	}
	return m.values[m.def.Outputs[i]], nil
}
