// Package arena implements a fixed-capacity bump allocator with usage accounting.
//
// An Arena never grows and never frees individual allocations. It hands out aligned, non-overlapping
// sub-slices of a caller-owned region, typically a statically sized pool, and tracks how much of the
// region has been consumed:
//
//	pool := make([]byte, 16*1024)
//	a := arena.New(pool)
//	buf, err := a.Allocate(256, arena.DefaultAlignment)
//	if err != nil {
//	    // errors.Is(err, arena.ErrExhausted)
//	}
//
// UsedSize()+FreeSize() always equals TotalSize(). Used bytes include alignment padding.
//
// An Arena is not safe for concurrent use.
package arena

import (
	"errors"
	"fmt"
	"unsafe"
)

// DefaultAlignment is used when Allocate is called with alignment 0.
const DefaultAlignment = 16

// Arena errors.
var (
	ErrExhausted        = errors.New("arena exhausted")
	ErrInvalidAlignment = errors.New("alignment must be a positive power of two")
	ErrInvalidSize      = errors.New("allocation size must not be negative")
)

// Number is the set of pointer-free element types that may live in arena memory.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Arena is a bump allocator over a fixed byte region.
type Arena struct {
	buf         []byte
	cursor      int // offset of the first unused byte
	allocations int
}

// New creates an Arena over buf. The Arena takes over buf for its own lifetime;
// the caller must not use buf directly afterwards.
func New(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Allocate returns size bytes whose first byte is aligned to alignment.
// An alignment of 0 selects DefaultAlignment.
//
// When the remaining capacity cannot satisfy the aligned request the Arena is left unchanged and
// ErrExhausted is returned. The returned slice has len == cap == size so it cannot grow into a
// later allocation.
func (a *Arena) Allocate(size, alignment int) ([]byte, error) {
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if alignment < 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	// Align the absolute address, not the offset, so typed views over the result are valid.
	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.buf)))
	addr := base + uintptr(a.cursor)
	aligned := (addr + uintptr(alignment-1)) &^ uintptr(alignment-1)
	start := a.cursor + int(aligned-addr) //nolint:gosec // G115: padding < alignment

	if start > len(a.buf) || size > len(a.buf)-start {
		return nil, fmt.Errorf("%w: requested %d bytes at alignment %d, %d of %d bytes free",
			ErrExhausted, size, alignment, a.FreeSize(), a.TotalSize())
	}

	end := start + size
	a.cursor = end
	a.allocations++
	return a.buf[start:end:end], nil
}

// AllocateSlice allocates n zeroed elements of T, aligned for T.
func AllocateSlice[T Number](a *Arena, n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d elements", ErrInvalidSize, n)
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	buf, err := a.Allocate(n*size, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []T{}, nil
	}
	clear(buf)
	//nolint:gosec // buf is aligned for T and sized n*sizeof(T)
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf))), n), nil
}

// TotalSize returns the capacity of the arena in bytes.
func (a *Arena) TotalSize() int {
	return len(a.buf)
}

// UsedSize returns the number of bytes consumed, including alignment padding.
func (a *Arena) UsedSize() int {
	return a.cursor
}

// FreeSize returns the number of bytes not yet consumed.
func (a *Arena) FreeSize() int {
	return len(a.buf) - a.cursor
}

// Allocations returns the number of successful allocations since creation or the last Reset.
func (a *Arena) Allocations() int {
	return a.allocations
}

// Reset makes the whole region available again.
// Every slice previously returned by Allocate becomes invalid.
func (a *Arena) Reset() {
	a.cursor = 0
	a.allocations = 0
}
