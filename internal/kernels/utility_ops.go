package kernels

import (
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/value"
)

// registerUtilityOps adds utility kernels to the registry.
func (r *Registry) registerUtilityOps() {
	r.Register(OpNeg, handleNeg)
	r.Register(OpClone, handleClone)
}

func handleNeg(_ *Context, args []*value.EValue) error {
	return unary(OpNeg, args, negOp)
}

// handleClone copies x into out. Any scalar type is accepted. Args: (x, out).
func handleClone(_ *Context, args []*value.EValue) error {
	if err := checkArity(OpClone, args, 2, 2); err != nil {
		return err
	}
	x, err := tensorArg(OpClone, args, 0)
	if err != nil {
		return err
	}
	out, err := tensorArg(OpClone, args, 1)
	if err != nil {
		return err
	}
	if err := sameType(OpClone, out, x); err != nil {
		return err
	}
	if !sameShape(x, out) {
		return shapeMismatch(OpClone, x, out)
	}
	n := x.NBytes()
	if len(x.Data()) < n || len(out.Data()) < n {
		return status.Errorf(status.InvalidArgument, "%s: storage smaller than %d bytes", OpClone, n)
	}
	copy(out.Data()[:n], x.Data()[:n])
	return nil
}
