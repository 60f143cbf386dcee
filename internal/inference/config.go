package inference

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/kernels"
	"github.com/born-ml/microexec/internal/program"
)

// Default pool sizes.
const (
	DefaultMethodPoolSize = 16 * 1024 // 16KB for planned buffers and method bookkeeping
	DefaultTempPoolSize   = 2 * 1024  // 2KB of kernel scratch
	DefaultMaxInputs      = 2
	DefaultMethodName     = "forward"
)

// Config holds the static sizing of a Loader.
type Config struct {
	// MethodName is the method to load.
	MethodName string

	// MethodPoolSize is the size of the method arena. Ignored when WithPools is used.
	MethodPoolSize int

	// TempPoolSize is the size of the temporary arena. Ignored when WithPools is used.
	TempPoolSize int

	// MaxInputs bounds the number of input slots the binder reserves.
	MaxInputs int

	// Load configures program parsing.
	Load program.LoadOptions
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MethodName:     DefaultMethodName,
		MethodPoolSize: DefaultMethodPoolSize,
		TempPoolSize:   DefaultTempPoolSize,
		MaxInputs:      DefaultMaxInputs,
		Load:           program.DefaultLoadOptions(),
	}
}

// Option customizes a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(log klog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithPools makes the Loader carve its arenas out of caller-owned memory instead of
// allocating pools in Initialize. Both pools must be non-nil; Initialize rejects a partial pair.
// The caller must not touch either region while the Loader is in use.
func WithPools(method, temp []byte) Option {
	return func(l *Loader) {
		l.methodPool = method
		l.tempPool = temp
	}
}

// WithKernels sets the kernel registry methods resolve their instructions against.
func WithKernels(reg *kernels.Registry) Option {
	return func(l *Loader) { l.kernels = reg }
}
