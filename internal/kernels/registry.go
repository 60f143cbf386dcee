package kernels

import (
	"slices"

	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/value"
)

// OpHandler runs a kernel over the argument slots of one instruction.
type OpHandler func(ctx *Context, args []*value.EValue) error

// Context provides execution resources to kernels.
type Context struct {
	// Temp is the scratch arena. It is reset after every kernel call, so nothing allocated
	// from it may be kept.
	Temp *arena.Arena
}

// Registry maps kernel names to handler functions.
type Registry struct {
	handlers map[string]OpHandler
}

// NewRegistry creates a new kernel registry with all supported kernels.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()

	r.registerMathOps()
	r.registerActivations()
	r.registerUtilityOps()

	return r
}

// NewEmptyRegistry creates a registry with no kernels.
func NewEmptyRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]OpHandler),
	}
}

// Register adds or replaces a kernel handler.
func (r *Registry) Register(name string, handler OpHandler) {
	r.handlers[name] = handler
}

// Get returns the handler for a kernel name.
func (r *Registry) Get(name string) (OpHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Execute runs a kernel with the given arguments.
func (r *Registry) Execute(ctx *Context, name string, args []*value.EValue) error {
	handler, ok := r.handlers[name]
	if !ok {
		return status.Errorf(status.OperatorMissing, "kernel %q is not registered", name)
	}
	return handler(ctx, args)
}

// SupportedOps returns the sorted names of all registered kernels.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}
