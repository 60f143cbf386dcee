package kernels

import (
	"slices"

	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// float is the set of element types arithmetic kernels support.
type float interface {
	~float32 | ~float64
}

func checkArity(op string, args []*value.EValue, minArgs, maxArgs int) error {
	if len(args) < minArgs || len(args) > maxArgs {
		if minArgs == maxArgs {
			return status.Errorf(status.InvalidArgument, "%s requires %d args, got %d", op, minArgs, len(args))
		}
		return status.Errorf(status.InvalidArgument, "%s requires %d to %d args, got %d", op, minArgs, maxArgs, len(args))
	}
	return nil
}

// tensorArg returns argument i as a tensor view with storage.
func tensorArg(op string, args []*value.EValue, i int) (*tensor.View, error) {
	if args[i] == nil {
		return nil, status.Errorf(status.InvalidArgument, "%s: arg %d is missing", op, i)
	}
	t, err := args[i].ToTensor()
	if err != nil {
		return nil, status.Errorf(status.InvalidArgument, "%s: arg %d: %w", op, i, err)
	}
	if !t.HasData() {
		return nil, status.Errorf(status.InvalidState, "%s: arg %d has no storage", op, i)
	}
	return t, nil
}

// scalarArg returns argument i as a float64, accepting Int and Double.
func scalarArg(op string, args []*value.EValue, i int) (float64, error) {
	if args[i] == nil {
		return 0, status.Errorf(status.InvalidArgument, "%s: arg %d is missing", op, i)
	}
	s, err := args[i].ToScalar()
	if err != nil {
		return 0, status.Errorf(status.InvalidArgument, "%s: arg %d: %w", op, i, err)
	}
	return s, nil
}

// sameType checks that every tensor has the scalar type of the first.
func sameType(op string, ts ...*tensor.View) error {
	for _, t := range ts[1:] {
		if t.ScalarType() != ts[0].ScalarType() {
			return status.Errorf(status.InvalidArgument, "%s: scalar type mismatch: %s vs %s", op, ts[0].ScalarType(), t.ScalarType())
		}
	}
	return nil
}

// sameShape checks that a and b have equal sizes and dim order.
func sameShape(a, b *tensor.View) bool {
	return tensor.SizesEqual(a.Sizes(), b.Sizes()) && slices.Equal(a.DimOrder(), b.DimOrder())
}

func shapeMismatch(op string, a, b *tensor.View) error {
	return status.Errorf(status.InvalidArgument, "%s: shape mismatch: %v vs %v", op, a.Sizes(), b.Sizes())
}

func unsupportedType(op string, st tensor.ScalarType) error {
	return status.Errorf(status.NotSupported, "%s: scalar type %s is not supported", op, st)
}

// data returns the typed elements of t.
func data[T float](op string, t *tensor.View) ([]T, error) {
	d, err := tensor.Data[T](t)
	if err != nil {
		return nil, status.Errorf(status.InvalidArgument, "%s: %w", op, err)
	}
	return d, nil
}
