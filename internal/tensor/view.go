package tensor

import (
	"fmt"
	"unsafe"
)

// View is a non-owning typed reference over externally owned bytes.
//
// A View does not copy its sizes, dim order, or data. Whoever builds it must keep all three
// alive, and unchanged, for as long as the View is in use.
type View struct {
	scalarType ScalarType
	sizes      []int32
	dimOrder   []uint8
	data       []byte
}

// NewView builds a View over data. sizes and dimOrder are referenced, not copied.
func NewView(st ScalarType, sizes []int32, dimOrder []uint8, data []byte) View {
	return View{
		scalarType: st,
		sizes:      sizes,
		dimOrder:   dimOrder,
		data:       data,
	}
}

// ScalarType returns the element type.
func (v *View) ScalarType() ScalarType {
	return v.scalarType
}

// Sizes returns the dimension sizes. Do not modify the returned slice.
func (v *View) Sizes() []int32 {
	return v.sizes
}

// DimOrder returns the physical dimension order. Do not modify the returned slice.
func (v *View) DimOrder() []uint8 {
	return v.dimOrder
}

// Dim returns the tensor rank.
func (v *View) Dim() int {
	return len(v.sizes)
}

// NumElements returns the number of elements.
func (v *View) NumElements() int {
	return NumElements(v.sizes)
}

// NBytes returns the number of bytes the elements occupy.
func (v *View) NBytes() int {
	return NBytes(v.scalarType, v.sizes)
}

// Data returns the referenced bytes.
func (v *View) Data() []byte {
	return v.data
}

// HasData reports whether the view references storage.
// A zero-element tensor always has data.
func (v *View) HasData() bool {
	return v.data != nil || v.NBytes() == 0
}

// SetData repoints the view at new storage.
func (v *View) SetData(data []byte) {
	v.data = data
}

// String returns a short description of the view.
func (v *View) String() string {
	return fmt.Sprintf("tensor(%s, sizes=%v, dim_order=%v)", v.scalarType, v.sizes, v.dimOrder)
}

// Data interprets the view's bytes as []T without copying.
// T must match the view's scalar type and the view must cover all of its elements.
func Data[T Element](v *View) ([]T, error) {
	if want := ScalarTypeOf[T](); want != v.scalarType {
		return nil, fmt.Errorf("tensor scalar type is %s, not %s", v.scalarType, want)
	}
	n := v.NumElements()
	if len(v.data) < n*v.scalarType.Size() {
		return nil, fmt.Errorf("tensor storage holds %d bytes, need %d", len(v.data), n*v.scalarType.Size())
	}
	if n == 0 {
		return []T{}, nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked above
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(v.data))), n), nil
}

// AsBytes reinterprets s as its raw bytes without copying.
func AsBytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	var zero T
	//nolint:gosec // unsafe.Slice for zero-copy access over the caller's slice
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}
