package tensor

import "fmt"

// NumElements returns the number of elements described by sizes.
// A rank-0 tensor has one element.
func NumElements(sizes []int32) int {
	n := 1
	for _, dim := range sizes {
		n *= int(dim)
	}
	return n
}

// NBytes returns the byte size of a tensor with the given type and sizes.
func NBytes(st ScalarType, sizes []int32) int {
	return NumElements(sizes) * st.Size()
}

// ValidateSizes checks that every dimension is non-negative.
func ValidateSizes(sizes []int32) error {
	for i, dim := range sizes {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// ValidateDimOrder checks that dimOrder is a permutation of 0..rank-1.
func ValidateDimOrder(dimOrder []uint8, rank int) error {
	if len(dimOrder) != rank {
		return fmt.Errorf("dim order has %d entries, tensor rank is %d", len(dimOrder), rank)
	}
	var seen [256]bool
	for i, d := range dimOrder {
		if int(d) >= rank {
			return fmt.Errorf("dim order entry %d is %d, out of range for rank %d", i, d, rank)
		}
		if seen[d] {
			return fmt.Errorf("dim order entry %d repeats dimension %d", i, d)
		}
		seen[d] = true
	}
	return nil
}

// IsContiguousDimOrder reports whether dimOrder is the identity permutation.
func IsContiguousDimOrder(dimOrder []uint8) bool {
	for i, d := range dimOrder {
		if int(d) != i {
			return false
		}
	}
	return true
}

// ContiguousDimOrder returns the identity permutation for rank.
func ContiguousDimOrder(rank int) []uint8 {
	order := make([]uint8, rank)
	for i := range order {
		order[i] = uint8(i) //nolint:gosec // G115: rank is bounded by ValidateDimOrder
	}
	return order
}

// SizesEqual checks if two size lists are equal.
func SizesEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
