package kernels

import (
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// tensorOf wraps data in a tensor value with contiguous layout.
func tensorOf[T tensor.Element](data []T, sizes ...int32) *value.EValue {
	v := value.FromTensor(tensor.NewView(tensor.ScalarTypeOf[T](), sizes, tensor.ContiguousDimOrder(len(sizes)), tensor.AsBytes(data)))
	return &v
}

func scalar(f float64) *value.EValue {
	v := value.FromDouble(f)
	return &v
}

func integer(i int64) *value.EValue {
	v := value.FromInt(i)
	return &v
}

func boolean(b bool) *value.EValue {
	v := value.FromBool(b)
	return &v
}

func args(vs ...*value.EValue) []*value.EValue {
	return vs
}
