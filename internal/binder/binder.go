// Package binder wraps caller-provided buffers as input tensors of a loaded method.
//
// Each input slot owns a copy of its tensor's sizes and dim order, carved from an arena when
// the Binder is built. Binding never allocates and never copies the caller's data: the method
// reads the caller's buffer in place, so it must stay valid and unchanged until execution ends.
package binder

import (
	"unsafe"

	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// Method is the part of a loaded method the binder needs.
type Method interface {
	NumInputs() int
	InputTensorMeta(i int) (program.TensorInfo, error)
	SetInput(v value.EValue, i int) error
}

type slot struct {
	sizes    []int32
	dimOrder []uint8
	view     tensor.View
	bound    bool
}

// Binder binds caller buffers to the tensor inputs of one method.
type Binder struct {
	method Method
	slots  []slot
}

// New creates a binder with min(maxInputs, m.NumInputs()) slots.
// Slot metadata storage is allocated from a; non-tensor inputs get no slot storage.
func New(m Method, maxInputs int, a *arena.Arena) (*Binder, error) {
	if maxInputs < 0 {
		return nil, status.Errorf(status.InvalidArgument, "negative input capacity %d", maxInputs)
	}
	n := min(maxInputs, m.NumInputs())

	b := &Binder{method: m, slots: make([]slot, n)}
	for i := range b.slots {
		info, err := m.InputTensorMeta(i)
		if err != nil {
			continue
		}
		sizes, err := arena.AllocateSlice[int32](a, len(info.Sizes()))
		if err != nil {
			return nil, status.Errorf(status.MemoryAllocationFailed, "input %d sizes: %w", i, err)
		}
		dimOrder, err := arena.AllocateSlice[uint8](a, len(info.DimOrder()))
		if err != nil {
			return nil, status.Errorf(status.MemoryAllocationFailed, "input %d dim order: %w", i, err)
		}
		b.slots[i] = slot{sizes: sizes, dimOrder: dimOrder}
	}
	return b, nil
}

// Capacity returns the number of input slots.
func (b *Binder) Capacity() int {
	return len(b.slots)
}

// Bind wraps the first count elements of data as input index and hands it to the method.
//
// The element count times the element size must equal the declared byte size of the input
// exactly. Out-of-range indices are rejected before any slot storage is touched. Rebinding a
// slot replaces its previous view.
func Bind[T tensor.Element](b *Binder, data []T, count, index int) error {
	if index < 0 || index >= b.method.NumInputs() {
		return status.Errorf(status.InvalidArgument, "input index %d out of range (method has %d inputs)", index, b.method.NumInputs())
	}
	if index >= len(b.slots) {
		return status.Errorf(status.InvalidArgument, "input index %d exceeds binder capacity %d", index, len(b.slots))
	}
	if count < 0 || count > len(data) {
		return status.Errorf(status.InvalidArgument, "input %d: count %d outside buffer of %d elements", index, count, len(data))
	}

	info, err := b.method.InputTensorMeta(index)
	if err != nil {
		return err
	}
	if want := tensor.ScalarTypeOf[T](); want != info.ScalarType() {
		return status.Errorf(status.InvalidArgument, "input %d: got %s elements, method expects %s", index, want, info.ScalarType())
	}
	var zero T
	if nbytes := count * int(unsafe.Sizeof(zero)); nbytes != info.NBytes() {
		return status.Errorf(status.InvalidArgument, "input %d: %d elements are %d bytes, method expects %d", index, count, nbytes, info.NBytes())
	}

	s := &b.slots[index]
	if len(s.sizes) != len(info.Sizes()) || len(s.dimOrder) != len(info.DimOrder()) {
		return status.Errorf(status.Internal, "input %d: slot rank %d does not match declared rank %d", index, len(s.sizes), len(info.Sizes()))
	}
	copy(s.sizes, info.Sizes())
	copy(s.dimOrder, info.DimOrder())
	s.view = tensor.NewView(info.ScalarType(), s.sizes, s.dimOrder, tensor.AsBytes(data[:count]))
	s.bound = true

	return b.method.SetInput(value.FromTensor(s.view), index)
}

// View returns the current view of slot index, if one has been bound.
func (b *Binder) View(index int) (tensor.View, bool) {
	if index < 0 || index >= len(b.slots) || !b.slots[index].bound {
		return tensor.View{}, false
	}
	return b.slots[index].view, true
}
