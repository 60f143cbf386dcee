// Package value defines EValue, the tagged value slot a method operates on.
package value

import (
	"fmt"

	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
)

// EValue holds one value of a method: nothing, a scalar, or a tensor view.
// The zero EValue is None.
type EValue struct {
	tag    program.Tag
	i      int64
	d      float64
	b      bool
	tensor tensor.View
}

// FromInt returns an Int value.
func FromInt(v int64) EValue {
	return EValue{tag: program.Int, i: v}
}

// FromDouble returns a Double value.
func FromDouble(v float64) EValue {
	return EValue{tag: program.Double, d: v}
}

// FromBool returns a Bool value.
func FromBool(v bool) EValue {
	return EValue{tag: program.Bool, b: v}
}

// FromTensor returns a Tensor value wrapping view.
func FromTensor(view tensor.View) EValue {
	return EValue{tag: program.Tensor, tensor: view}
}

// FromDef builds the initial value of a declared slot. Tensor storage is attached separately.
func FromDef(d *program.ValueDef, sizes []int32, dimOrder []uint8) (EValue, error) {
	switch d.Tag {
	case program.TagNone:
		return EValue{}, nil
	case program.TagInt:
		return FromInt(d.Int), nil
	case program.TagDouble:
		return FromDouble(d.Double), nil
	case program.TagBool:
		return FromBool(d.Bool), nil
	case program.TagTensor:
		if d.Tensor == nil {
			return EValue{}, status.Errorf(status.InvalidProgram, "tensor value without definition")
		}
		st, err := tensor.ParseScalarType(d.Tensor.ScalarType)
		if err != nil {
			return EValue{}, status.Errorf(status.InvalidProgram, "%w", err)
		}
		return FromTensor(tensor.NewView(st, sizes, dimOrder, nil)), nil
	default:
		return EValue{}, status.Errorf(status.InvalidProgram, "unknown value tag %q", d.Tag)
	}
}

// Tag returns the value's tag.
func (v *EValue) Tag() program.Tag { return v.tag }

// IsNone reports whether the value is empty.
func (v *EValue) IsNone() bool { return v.tag == program.None }

// IsInt reports whether the value is an Int.
func (v *EValue) IsInt() bool { return v.tag == program.Int }

// IsDouble reports whether the value is a Double.
func (v *EValue) IsDouble() bool { return v.tag == program.Double }

// IsBool reports whether the value is a Bool.
func (v *EValue) IsBool() bool { return v.tag == program.Bool }

// IsTensor reports whether the value is a Tensor.
func (v *EValue) IsTensor() bool { return v.tag == program.Tensor }

// ToInt returns the Int payload.
func (v *EValue) ToInt() (int64, error) {
	if v.tag != program.Int {
		return 0, v.mismatch(program.Int)
	}
	return v.i, nil
}

// ToDouble returns the Double payload.
func (v *EValue) ToDouble() (float64, error) {
	if v.tag != program.Double {
		return 0, v.mismatch(program.Double)
	}
	return v.d, nil
}

// ToScalar returns an Int or Double payload as float64.
func (v *EValue) ToScalar() (float64, error) {
	switch v.tag {
	case program.Int:
		return float64(v.i), nil
	case program.Double:
		return v.d, nil
	default:
		return 0, v.mismatch(program.Double)
	}
}

// ToBool returns the Bool payload.
func (v *EValue) ToBool() (bool, error) {
	if v.tag != program.Bool {
		return false, v.mismatch(program.Bool)
	}
	return v.b, nil
}

// ToTensor returns a pointer to the tensor view held by the value.
// The pointer is valid while the value is.
func (v *EValue) ToTensor() (*tensor.View, error) {
	if v.tag != program.Tensor {
		return nil, v.mismatch(program.Tensor)
	}
	return &v.tensor, nil
}

// String returns a short description of the value.
func (v *EValue) String() string {
	switch v.tag {
	case program.Int:
		return fmt.Sprintf("Int(%d)", v.i)
	case program.Double:
		return fmt.Sprintf("Double(%g)", v.d)
	case program.Bool:
		return fmt.Sprintf("Bool(%t)", v.b)
	case program.Tensor:
		return v.tensor.String()
	default:
		return "None"
	}
}

func (v *EValue) mismatch(want program.Tag) error {
	return status.Errorf(status.InvalidType, "value is %s, not %s", v.tag, want)
}
