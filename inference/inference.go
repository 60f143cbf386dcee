// Package inference runs compiled programs out of fixed, caller-sized memory pools.
//
// A Loader moves through Uninitialized, Initialized, ProgramLoaded and
// MethodReady. Once ready, every Run binds caller buffers as inputs,
// executes the method and copies output 0 back without allocating.
//
// Example usage:
//
//	blob, _ := program.AddModule(1)
//	l := inference.New(program.NewBufferSource(blob), inference.DefaultConfig())
//	if err := l.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := l.LoadProgram(); err != nil {
//	    log.Fatal(err)
//	}
//
//	out := make([]float32, 1)
//	if err := l.RunInference([]float32{2}, []float32{3}, 1, out, 1); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out[0]) // 5
package inference

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/inference"
	"github.com/born-ml/microexec/internal/kernels"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/program"
)

// Loader owns a program, its planned memory and the loaded method.
type Loader = inference.Loader

// Config holds the static sizing of a Loader.
type Config = inference.Config

// Option customizes a Loader.
type Option = inference.Option

// State is the Loader lifecycle state.
type State = inference.State

// Stats reports arena usage.
type Stats = inference.Stats

// Loader states.
const (
	StateUninitialized = inference.StateUninitialized
	StateInitialized   = inference.StateInitialized
	StateProgramLoaded = inference.StateProgramLoaded
	StateMethodReady   = inference.StateMethodReady
)

// Default sizing.
const (
	DefaultMethodPoolSize = inference.DefaultMethodPoolSize
	DefaultTempPoolSize   = inference.DefaultTempPoolSize
	DefaultMaxInputs      = inference.DefaultMaxInputs
	DefaultMethodName     = inference.DefaultMethodName
)

// Code is a runtime status code. It implements error, so errors.Is(err, inference.InvalidArgument) works.
type Code = status.Code

// Status codes.
const (
	OK                     = status.OK
	Internal               = status.Internal
	InvalidState           = status.InvalidState
	NotSupported           = status.NotSupported
	InvalidArgument        = status.InvalidArgument
	InvalidType            = status.InvalidType
	OperatorMissing        = status.OperatorMissing
	NotFound               = status.NotFound
	MemoryAllocationFailed = status.MemoryAllocationFailed
	AccessFailed           = status.AccessFailed
	InvalidProgram         = status.InvalidProgram
)

// New returns an uninitialized Loader for the program served by src.
func New(src program.DataSource, cfg Config, opts ...Option) *Loader {
	return inference.New(src, cfg, opts...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return inference.DefaultConfig()
}

// WithLogger sets the logger.
func WithLogger(log klog.Logger) Option {
	return inference.WithLogger(log)
}

// WithPools carves the Loader's arenas out of caller-owned memory.
func WithPools(method, temp []byte) Option {
	return inference.WithPools(method, temp)
}

// WithKernelSubset restricts the Loader to the named built-in kernels.
// Loading a program that calls any other kernel fails with OperatorMissing.
func WithKernelSubset(names ...string) Option {
	full := kernels.NewRegistry()
	reg := kernels.NewEmptyRegistry()
	for _, name := range names {
		if h, ok := full.Get(name); ok {
			reg.Register(name, h)
		}
	}
	return inference.WithKernels(reg)
}

// CodeOf returns the status code carried by err, OK for nil and Internal for foreign errors.
func CodeOf(err error) Code {
	return status.CodeOf(err)
}
