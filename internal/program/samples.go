package program

import (
	"fmt"

	"github.com/born-ml/microexec/internal/tensor"
)

// Kernel names used by the sample programs.
const (
	KernelAdd  = "aten::add.out"
	KernelMM   = "aten::mm.out"
	KernelReLU = "aten::relu.out"
)

// AddModuleDef returns the "forward" method of the elementwise sum program:
// forward(x[n], y[n]) -> x + y, with the output memory-planned in buffer 0.
func AddModuleDef(n int32) MethodDef {
	return MethodDef{
		Name: "forward",
		Values: []ValueDef{
			TensorValue(NewTensorDef(tensor.Float32, n)),
			TensorValue(NewTensorDef(tensor.Float32, n)),
			TensorValue(NewTensorDef(tensor.Float32, n).Planned(0, 0)),
		},
		Inputs:         []int{0, 1},
		Outputs:        []int{2},
		PlannedBuffers: []int64{int64(n) * 4},
		Instructions: []Instruction{
			KernelCall(KernelAdd, 0, 1, 2),
		},
	}
}

// AddModule serializes the elementwise sum program for n-element float32 inputs.
func AddModule(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("add module needs at least one element, got %d", n)
	}
	return NewBuilder().
		SetMetadata("model", "add").
		AddMethod(AddModuleDef(int32(n))). //nolint:gosec // G115: small element counts
		Bytes()
}

// LinearModule serializes forward(x[1,in]) -> relu(x @ w + b) with w[in,out] and b[1,out] as constants.
// The intermediate product and the output share planned buffer 0.
func LinearModule(in, out int, w, b []float32, compress bool) ([]byte, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("linear module needs positive dimensions, got %dx%d", in, out)
	}
	if len(w) != in*out || len(b) != out {
		return nil, fmt.Errorf("linear module %dx%d needs %d weights and %d biases, got %d and %d",
			in, out, in*out, out, len(w), len(b))
	}

	i32, o32 := int32(in), int32(out) //nolint:gosec // G115: small dimensions
	rowBytes := int64(out) * 4

	bld := NewBuilder().SetMetadata("model", "linear").Compress(compress)
	wc := AddConstantValues(bld, "weight", w)
	bc := AddConstantValues(bld, "bias", b)

	bld.AddMethod(MethodDef{
		Name: "forward",
		Values: []ValueDef{
			TensorValue(NewTensorDef(tensor.Float32, 1, i32)),                        // 0: x
			TensorValue(NewTensorDef(tensor.Float32, i32, o32).FromConstant(wc)),     // 1: weight
			TensorValue(NewTensorDef(tensor.Float32, 1, o32).FromConstant(bc)),       // 2: bias
			TensorValue(NewTensorDef(tensor.Float32, 1, o32).Planned(0, 0)),          // 3: x @ w
			TensorValue(NewTensorDef(tensor.Float32, 1, o32).Planned(0, rowBytes)),   // 4: + b
			TensorValue(NewTensorDef(tensor.Float32, 1, o32).Planned(0, 2*rowBytes)), // 5: relu
		},
		Inputs:         []int{0},
		Outputs:        []int{5},
		PlannedBuffers: []int64{3 * rowBytes},
		Instructions: []Instruction{
			KernelCall(KernelMM, 0, 1, 3),
			KernelCall(KernelAdd, 3, 2, 4),
			KernelCall(KernelReLU, 4, 5),
		},
	})
	return bld.Bytes()
}
