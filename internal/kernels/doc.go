// Package kernels implements the operator kernels a method's instructions call.
//
// Kernels use the out-variant calling convention: arguments are value slots, the last of which
// is the output tensor. Outputs are written in place into storage planned ahead of time;
// kernels never allocate from the Go heap. Scratch space, when needed, comes from the
// temporary arena in the Context, which the runtime resets after every kernel call.
//
// Supported kernels:
//   - Math: aten::add.out, aten::sub.out, aten::mul.out, aten::div.out, aten::mm.out
//   - Activations: aten::relu.out, aten::sigmoid.out, aten::tanh.out, aten::_softmax.out
//   - Utility: aten::neg.out, aten::clone.out
//
// Binary kernels accept operands of equal shape, or one single-element operand that is
// broadcast. Only float32 and float64 are supported for arithmetic.
package kernels
