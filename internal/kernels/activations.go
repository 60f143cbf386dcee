package kernels

import (
	"math"

	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
	"github.com/born-ml/microexec/internal/value"
)

// registerActivations adds activation kernels to the registry.
func (r *Registry) registerActivations() {
	r.Register(OpReLU, handleReLU)
	r.Register(OpSigmoid, handleSigmoid)
	r.Register(OpTanh, handleTanh)
	r.Register(OpSoftmax, handleSoftmax)
}

type unaryOp int

const (
	reluOp unaryOp = iota
	sigmoidOp
	tanhOp
	negOp
)

func handleReLU(_ *Context, args []*value.EValue) error {
	return unary(OpReLU, args, reluOp)
}

func handleSigmoid(_ *Context, args []*value.EValue) error {
	return unary(OpSigmoid, args, sigmoidOp)
}

func handleTanh(_ *Context, args []*value.EValue) error {
	return unary(OpTanh, args, tanhOp)
}

// unary applies kind elementwise. Args: (x, out), with x and out of equal shape.
func unary(op string, args []*value.EValue, kind unaryOp) error {
	if err := checkArity(op, args, 2, 2); err != nil {
		return err
	}
	x, err := tensorArg(op, args, 0)
	if err != nil {
		return err
	}
	out, err := tensorArg(op, args, 1)
	if err != nil {
		return err
	}
	if err := sameType(op, out, x); err != nil {
		return err
	}
	if !sameShape(x, out) {
		return shapeMismatch(op, x, out)
	}

	switch out.ScalarType() {
	case tensor.Float32:
		return applyUnary[float32](op, x, out, kind)
	case tensor.Float64:
		return applyUnary[float64](op, x, out, kind)
	default:
		return unsupportedType(op, out.ScalarType())
	}
}

func applyUnary[T float](op string, x, out *tensor.View, kind unaryOp) error {
	xv, err := data[T](op, x)
	if err != nil {
		return err
	}
	ov, err := data[T](op, out)
	if err != nil {
		return err
	}

	for i, v := range xv {
		switch kind {
		case reluOp:
			ov[i] = max(v, 0)
		case sigmoidOp:
			ov[i] = T(1 / (1 + math.Exp(-float64(v))))
		case tanhOp:
			ov[i] = T(math.Tanh(float64(v)))
		case negOp:
			ov[i] = -v
		}
	}
	return nil
}

// handleSoftmax computes softmax along dim. Args: (x, dim, half_to_float, out).
// Exponentials are staged in float64 scratch from the temporary arena.
func handleSoftmax(ctx *Context, args []*value.EValue) error {
	if err := checkArity(OpSoftmax, args, 4, 4); err != nil {
		return err
	}
	x, err := tensorArg(OpSoftmax, args, 0)
	if err != nil {
		return err
	}
	dimArg, err := scalarArg(OpSoftmax, args, 1)
	if err != nil {
		return err
	}
	if args[2] == nil {
		return status.Errorf(status.InvalidArgument, "%s: arg 2 is missing", OpSoftmax)
	}
	halfToFloat, err := args[2].ToBool()
	if err != nil {
		return status.Errorf(status.InvalidArgument, "%s: arg 2: %w", OpSoftmax, err)
	}
	if halfToFloat {
		return status.Errorf(status.NotSupported, "%s: half_to_float is not supported", OpSoftmax)
	}
	out, err := tensorArg(OpSoftmax, args, 3)
	if err != nil {
		return err
	}
	if err := sameType(OpSoftmax, out, x); err != nil {
		return err
	}
	if !sameShape(x, out) {
		return shapeMismatch(OpSoftmax, x, out)
	}
	if !tensor.IsContiguousDimOrder(x.DimOrder()) {
		return status.Errorf(status.NotSupported, "%s: non-contiguous dim order %v", OpSoftmax, x.DimOrder())
	}

	rank := x.Dim()
	dim := int(dimArg)
	if dim < 0 {
		dim += rank
	}
	if rank == 0 {
		dim = 0
	} else if dim < 0 || dim >= rank {
		return status.Errorf(status.InvalidArgument, "%s: dim %d out of range for rank %d", OpSoftmax, int(dimArg), rank)
	}

	outer, n, inner := 1, 1, 1
	for i, s := range x.Sizes() {
		switch {
		case i < dim:
			outer *= int(s)
		case i == dim:
			n = int(s)
		default:
			inner *= int(s)
		}
	}
	if n == 0 {
		return nil
	}

	if ctx == nil || ctx.Temp == nil {
		return status.Errorf(status.MemoryAllocationFailed, "%s: no scratch arena", OpSoftmax)
	}
	scratch, err := arena.AllocateSlice[float64](ctx.Temp, n)
	if err != nil {
		return status.Errorf(status.MemoryAllocationFailed, "%s: scratch for %d elements: %w", OpSoftmax, n, err)
	}

	switch out.ScalarType() {
	case tensor.Float32:
		return softmax[float32](x, out, scratch, outer, n, inner)
	case tensor.Float64:
		return softmax[float64](x, out, scratch, outer, n, inner)
	default:
		return unsupportedType(OpSoftmax, out.ScalarType())
	}
}

func softmax[T float](x, out *tensor.View, scratch []float64, outer, n, inner int) error {
	xv, err := data[T](OpSoftmax, x)
	if err != nil {
		return err
	}
	ov, err := data[T](OpSoftmax, out)
	if err != nil {
		return err
	}

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*n*inner + in
			peak := math.Inf(-1)
			for j := 0; j < n; j++ {
				peak = max(peak, float64(xv[base+j*inner]))
			}
			var sum float64
			for j := 0; j < n; j++ {
				e := math.Exp(float64(xv[base+j*inner]) - peak)
				scratch[j] = e
				sum += e
			}
			for j := 0; j < n; j++ {
				ov[base+j*inner] = T(scratch[j] / sum)
			}
		}
	}
	return nil
}
