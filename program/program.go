// Package program provides the compiled program container for microexec.
//
// This package wraps internal/program and exports the pieces callers need to
// build, store and open programs: data sources, the loader entry point, and
// the builder used to serialize new programs.
//
// Example usage:
//
//	blob, err := program.AddModule(1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := program.Load(program.NewBufferSource(blob))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(p.ID(), p.MethodNames())
package program

import (
	"github.com/born-ml/microexec/internal/program"
)

// DataSource provides read access to a serialized program.
type DataSource = program.DataSource

// BufferSource serves a program from memory without copying.
type BufferSource = program.BufferSource

// FileSource serves a program from a memory-mapped file.
type FileSource = program.FileSource

// Program is a parsed, validated program container.
type Program = program.Program

// MethodMeta describes a method without loading it.
type MethodMeta = program.MethodMeta

// TensorInfo describes a declared tensor.
type TensorInfo = program.TensorInfo

// LoadOptions controls parsing and validation.
type LoadOptions = program.LoadOptions

// LoadOption configures Load.
type LoadOption = program.LoadOption

// Verification selects how much of a program is checked on load.
type Verification = program.Verification

// Verification levels.
const (
	VerifyChecksum  = program.VerifyChecksum
	VerifyStructure = program.VerifyStructure
	VerifyMinimal   = program.VerifyMinimal
)

// Builder serializes programs.
type Builder = program.Builder

// MethodDef declares one method of a program.
type MethodDef = program.MethodDef

// Sentinel errors returned by Load.
var (
	ErrChecksumMismatch = program.ErrChecksumMismatch
	ErrInvalidMagic     = program.ErrInvalidMagic
	ErrTruncated        = program.ErrTruncated
	ErrMethodNotFound   = program.ErrMethodNotFound
)

// NewBufferSource wraps data as a DataSource.
func NewBufferSource(data []byte) *BufferSource {
	return program.NewBufferSource(data)
}

// OpenFile memory-maps the program at path.
func OpenFile(path string) (*FileSource, error) {
	return program.OpenFile(path)
}

// Load parses and validates the program served by src.
func Load(src DataSource, opts ...LoadOption) (*Program, error) {
	return program.Load(src, opts...)
}

// DefaultLoadOptions returns checksum verification with the default data size limit.
func DefaultLoadOptions() LoadOptions {
	return program.DefaultLoadOptions()
}

// WithVerification sets the verification level.
func WithVerification(v Verification) LoadOption {
	return program.WithVerification(v)
}

// WithMaxDataSize bounds the decoded data segment. Negative means unlimited.
func WithMaxDataSize(n int64) LoadOption {
	return program.WithMaxDataSize(n)
}

// NewBuilder returns an empty program builder.
func NewBuilder() *Builder {
	return program.NewBuilder()
}

// AddModule serializes forward(x[n], y[n]) -> x + y.
func AddModule(n int) ([]byte, error) {
	return program.AddModule(n)
}

// LinearModule serializes forward(x[1,in]) -> relu(x @ w + b).
func LinearModule(in, out int, w, b []float32, compress bool) ([]byte, error) {
	return program.LinearModule(in, out, w, b, compress)
}
