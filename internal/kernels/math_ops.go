package kernels

import (
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// Kernel names.
const (
	OpAdd     = "aten::add.out"
	OpSub     = "aten::sub.out"
	OpMul     = "aten::mul.out"
	OpDiv     = "aten::div.out"
	OpMM      = "aten::mm.out"
	OpReLU    = "aten::relu.out"
	OpSigmoid = "aten::sigmoid.out"
	OpTanh    = "aten::tanh.out"
	OpSoftmax = "aten::_softmax.out"
	OpNeg     = "aten::neg.out"
	OpClone   = "aten::clone.out"
)

// registerMathOps adds math kernels to the registry.
func (r *Registry) registerMathOps() {
	r.Register(OpAdd, handleAdd)
	r.Register(OpSub, handleSub)
	r.Register(OpMul, handleMul)
	r.Register(OpDiv, handleDiv)
	r.Register(OpMM, handleMM)
}

// handleAdd computes out = a + alpha*b. Args: (a, b, [alpha], out).
func handleAdd(_ *Context, args []*value.EValue) error {
	return alphaBinary(OpAdd, args, 1)
}

// handleSub computes out = a - alpha*b. Args: (a, b, [alpha], out).
func handleSub(_ *Context, args []*value.EValue) error {
	return alphaBinary(OpSub, args, -1)
}

func handleMul(_ *Context, args []*value.EValue) error {
	if err := checkArity(OpMul, args, 3, 3); err != nil {
		return err
	}
	return binary(OpMul, args, mulOp, 1)
}

func handleDiv(_ *Context, args []*value.EValue) error {
	if err := checkArity(OpDiv, args, 3, 3); err != nil {
		return err
	}
	return binary(OpDiv, args, divOp, 1)
}

type binaryOp int

const (
	addOp binaryOp = iota
	mulOp
	divOp
)

func alphaBinary(op string, args []*value.EValue, sign float64) error {
	if err := checkArity(op, args, 3, 4); err != nil {
		return err
	}
	alpha := 1.0
	if len(args) == 4 {
		a, err := scalarArg(op, args, 2)
		if err != nil {
			return err
		}
		alpha = a
	}
	return binary(op, args, addOp, sign*alpha)
}

// binary runs kind over args (a, b, ..., out). alpha scales b for addOp.
func binary(op string, args []*value.EValue, kind binaryOp, alpha float64) error {
	a, err := tensorArg(op, args, 0)
	if err != nil {
		return err
	}
	b, err := tensorArg(op, args, 1)
	if err != nil {
		return err
	}
	out, err := tensorArg(op, args, len(args)-1)
	if err != nil {
		return err
	}
	if err := sameType(op, out, a, b); err != nil {
		return err
	}

	switch out.ScalarType() {
	case tensor.Float32:
		return elementwise[float32](op, a, b, out, kind, alpha)
	case tensor.Float64:
		return elementwise[float64](op, a, b, out, kind, alpha)
	default:
		return unsupportedType(op, out.ScalarType())
	}
}

// elementwise applies kind to a and b. Either operand may be a single element that is broadcast.
func elementwise[T float](op string, a, b, out *tensor.View, kind binaryOp, alpha float64) error {
	av, err := data[T](op, a)
	if err != nil {
		return err
	}
	bv, err := data[T](op, b)
	if err != nil {
		return err
	}
	ov, err := data[T](op, out)
	if err != nil {
		return err
	}

	aStep, bStep := 1, 1
	switch {
	case sameShape(a, out) && sameShape(b, out):
	case len(av) == 1 && sameShape(b, out):
		aStep = 0
	case len(bv) == 1 && sameShape(a, out):
		bStep = 0
	default:
		if !sameShape(a, out) {
			return shapeMismatch(op, a, out)
		}
		return shapeMismatch(op, b, out)
	}

	s := T(alpha)
	for i := range ov {
		x, y := av[i*aStep], bv[i*bStep]
		switch kind {
		case addOp:
			ov[i] = x + s*y
		case mulOp:
			ov[i] = x * y
		case divOp:
			ov[i] = x / y
		}
	}
	return nil
}

// handleMM computes out[m,n] = a[m,k] @ b[k,n] for contiguous rank-2 tensors.
func handleMM(_ *Context, args []*value.EValue) error {
	if err := checkArity(OpMM, args, 3, 3); err != nil {
		return err
	}
	a, err := tensorArg(OpMM, args, 0)
	if err != nil {
		return err
	}
	b, err := tensorArg(OpMM, args, 1)
	if err != nil {
		return err
	}
	out, err := tensorArg(OpMM, args, 2)
	if err != nil {
		return err
	}
	if err := sameType(OpMM, out, a, b); err != nil {
		return err
	}
	for _, t := range []*tensor.View{a, b, out} {
		if t.Dim() != 2 {
			return status.Errorf(status.InvalidArgument, "%s: expected rank 2, got sizes %v", OpMM, t.Sizes())
		}
		if !tensor.IsContiguousDimOrder(t.DimOrder()) {
			return status.Errorf(status.NotSupported, "%s: non-contiguous dim order %v", OpMM, t.DimOrder())
		}
	}
	m, k, n := int(a.Sizes()[0]), int(a.Sizes()[1]), int(b.Sizes()[1])
	if int(b.Sizes()[0]) != k {
		return status.Errorf(status.InvalidArgument, "%s: inner dimensions differ: %v @ %v", OpMM, a.Sizes(), b.Sizes())
	}
	if int(out.Sizes()[0]) != m || int(out.Sizes()[1]) != n {
		return status.Errorf(status.InvalidArgument, "%s: out sizes %v, want [%d %d]", OpMM, out.Sizes(), m, n)
	}

	switch out.ScalarType() {
	case tensor.Float32:
		return matmul[float32](a, b, out, m, k, n)
	case tensor.Float64:
		return matmul[float64](a, b, out, m, k, n)
	default:
		return unsupportedType(OpMM, out.ScalarType())
	}
}

func matmul[T float](a, b, out *tensor.View, m, k, n int) error {
	av, err := data[T](OpMM, a)
	if err != nil {
		return err
	}
	bv, err := data[T](OpMM, b)
	if err != nil {
		return err
	}
	ov, err := data[T](OpMM, out)
	if err != nil {
		return err
	}

	for i := 0; i < m; i++ {
		row := ov[i*n : (i+1)*n]
		clear(row)
		for p := 0; p < k; p++ {
			x := av[i*k+p]
			for j := 0; j < n; j++ {
				row[j] += x * bv[p*n+j]
			}
		}
	}
	return nil
}
