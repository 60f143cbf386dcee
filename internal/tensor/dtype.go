// Package tensor provides the scalar types, shape metadata, and non-owning tensor views used by
// the program executor.
package tensor

import "fmt"

// Element is a constraint for Go types that can back tensor data.
type Element interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~bool
}

// ScalarType is the element type of a tensor as declared by a compiled program.
// Values match the numbering used by the program producer.
type ScalarType int8

// Supported scalar types.
const (
	Uint8   ScalarType = 0
	Int8    ScalarType = 1
	Int16   ScalarType = 2
	Int32   ScalarType = 3
	Int64   ScalarType = 4
	Float32 ScalarType = 6
	Float64 ScalarType = 7
	Bool    ScalarType = 11

	// Undefined marks a scalar type that could not be resolved.
	Undefined ScalarType = -1
)

// Size returns the byte size of one element, or 0 for Undefined.
func (st ScalarType) Size() int {
	switch st {
	case Uint8, Int8, Bool:
		return 1
	case Int16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether st is a supported scalar type.
func (st ScalarType) Valid() bool {
	return st.Size() != 0
}

// String returns the serialized name of the scalar type.
func (st ScalarType) String() string {
	switch st {
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	default:
		return "undefined"
	}
}

// ParseScalarType converts a serialized name back to a ScalarType.
func ParseScalarType(s string) (ScalarType, error) {
	for _, st := range []ScalarType{Uint8, Int8, Int16, Int32, Int64, Float32, Float64, Bool} {
		if st.String() == s {
			return st, nil
		}
	}
	return Undefined, fmt.Errorf("unknown scalar type %q", s)
}

// ScalarTypeOf returns the ScalarType for the Go element type T.
func ScalarTypeOf[T Element]() ScalarType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		return Undefined
	}
}
