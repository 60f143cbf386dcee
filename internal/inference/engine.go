package inference

import (
	"github.com/born-ml/microexec/internal/binder"
	"github.com/born-ml/microexec/internal/status"
	"github.com/born-ml/microexec/internal/tensor"
)

// RunInference binds in1 and in2 as inputs 0 and 1, each holding inputSize elements, executes
// the method, and copies output 0 into output.
//
// output must have room for outputSize elements, and outputSize must cover every element of the
// method's output; otherwise the call fails with InvalidArgument and output is left untouched.
// A failed run leaves the Loader ready for the next one.
func (l *Loader) RunInference(in1, in2 []float32, inputSize int, output []float32, outputSize int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if v := l.log.V(1); v.Enabled() {
		v.Info("running inference", "inputSize", inputSize)
	}

	if err := l.bind(in1, inputSize, 0); err != nil {
		return err
	}
	if err := l.bind(in2, inputSize, 1); err != nil {
		return err
	}
	_, err := l.executeInto(output, outputSize)
	return err
}

// Run binds one buffer per method input, executes the method and copies output 0 into output.
// It returns the number of elements written.
func (l *Loader) Run(output []float32, inputs ...[]float32) (int, error) {
	if err := l.ready(); err != nil {
		return 0, err
	}
	if want := l.exec.NumInputs(); len(inputs) != want {
		l.failures++
		err := status.Errorf(status.InvalidArgument, "method %q takes %d inputs, got %d", l.cfg.MethodName, want, len(inputs))
		return 0, status.WithStage(err, status.StageBind)
	}

	for i, in := range inputs {
		if err := l.bind(in, len(in), i); err != nil {
			return 0, err
		}
	}
	return l.executeInto(output, len(output))
}

func (l *Loader) ready() error {
	if l.state != StateMethodReady {
		err := status.Errorf(status.InvalidState, "program not loaded (state %s)", l.state)
		l.log.Error(err, "cannot run inference")
		return status.WithStage(err, status.StageBind)
	}
	return nil
}

func (l *Loader) bind(data []float32, count, index int) error {
	if err := binder.Bind(l.binder, data, count, index); err != nil {
		l.failures++
		l.log.Error(err, "failed to bind input", "input", index, "count", count)
		return status.WithStage(err, status.StageBind)
	}
	return nil
}

// executeInto runs the method and copies output 0 into output[:outputSize].
func (l *Loader) executeInto(output []float32, outputSize int) (int, error) {
	l.runs++

	if err := l.exec.Execute(); err != nil {
		l.failures++
		l.log.Error(err, "method execution failed", "method", l.cfg.MethodName)
		return 0, status.WithStage(err, status.StageExecute)
	}

	out, err := l.exec.Output(0)
	if err != nil {
		l.failures++
		return 0, status.WithStage(err, status.StageOutput)
	}
	if !out.IsTensor() {
		l.failures++
		err := status.Errorf(status.InvalidArgument, "output 0 is %s, not a tensor", out.Tag())
		l.log.Error(err, "unexpected output")
		return 0, status.WithStage(err, status.StageOutput)
	}

	view, _ := out.ToTensor()
	n := view.NumElements()
	if outputSize < n || len(output) < n || outputSize < 0 {
		l.failures++
		err := status.Errorf(status.InvalidArgument, "output buffer too small: need %d elements, got %d (buffer %d)",
			n, outputSize, len(output))
		l.log.Error(err, "cannot copy output")
		return 0, status.WithStage(err, status.StageOutput)
	}

	data, err := tensor.Data[float32](view)
	if err != nil {
		l.failures++
		return 0, status.WithStage(status.Errorf(status.InvalidArgument, "output 0: %w", err), status.StageOutput)
	}
	copy(output[:n], data)

	if v := l.log.V(1); v.Enabled() {
		v.Info("inference completed", "outputElements", n)
	}
	return n, nil
}
