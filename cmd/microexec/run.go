package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/inference"
	"github.com/born-ml/microexec/internal/program"
)

// runFlags are shared by run and store run.
type runFlags struct {
	a, b       float64
	method     string
	methodPool int
	tempPool   int
}

func (f *runFlags) register(fs *flag.FlagSet) {
	fs.Float64Var(&f.a, "a", 2, "value for every element of input 0")
	fs.Float64Var(&f.b, "b", 3, "value for every element of the remaining inputs")
	fs.StringVar(&f.method, "method", inference.DefaultMethodName, "method to run")
	fs.IntVar(&f.methodPool, "method-pool", inference.DefaultMethodPoolSize, "method arena size in bytes")
	fs.IntVar(&f.tempPool, "temp-pool", inference.DefaultTempPoolSize, "temporary arena size in bytes")
}

func (f *runFlags) config() inference.Config {
	cfg := inference.DefaultConfig()
	cfg.MethodName = f.method
	cfg.MethodPoolSize = f.methodPool
	cfg.TempPoolSize = f.tempPool
	return cfg
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(out)
	var rf runFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected one program file")
	}

	src, err := program.OpenFile(fs.Arg(0))
	if err != nil {
		return err
	}
	defer src.Close()

	return execute(ctx, src, &rf, out)
}

func runDemo(ctx context.Context, out io.Writer) error {
	blob, err := program.AddModule(1)
	if err != nil {
		return err
	}
	rf := runFlags{
		a:          2,
		b:          3,
		method:     inference.DefaultMethodName,
		methodPool: inference.DefaultMethodPoolSize,
		tempPool:   inference.DefaultTempPoolSize,
	}
	return execute(ctx, program.NewBufferSource(blob), &rf, out)
}

// execute loads the program from src and runs one inference with every input element set from rf.
func execute(ctx context.Context, src program.DataSource, rf *runFlags, out io.Writer) error {
	log := klog.FromContext(ctx)

	cfg := rf.config()
	l := inference.New(src, cfg, inference.WithLogger(log))
	if err := l.Initialize(); err != nil {
		return err
	}
	if err := l.LoadProgram(); err != nil {
		return fmt.Errorf("loading method %q: %w", cfg.MethodName, err)
	}

	m := l.Method()
	inputs := make([][]float32, m.NumInputs())
	for i := range inputs {
		info, err := m.InputTensorMeta(i)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		fill := float32(rf.b)
		if i == 0 {
			fill = float32(rf.a)
		}
		inputs[i] = make([]float32, info.NumElements())
		for j := range inputs[i] {
			inputs[i][j] = fill
		}
	}

	meta := m.Meta()
	outInfo, err := meta.OutputTensorMeta(0)
	if err != nil {
		return fmt.Errorf("output 0: %w", err)
	}
	output := make([]float32, outInfo.NumElements())

	n, err := l.Run(output, inputs...)
	if err != nil {
		return fmt.Errorf("running %q: %w", cfg.MethodName, err)
	}

	stats := l.Stats()
	log.Info("inference complete", "outputs", n, "methodPoolUsed", stats.MethodPoolUsed, "plannedBuffers", stats.PlannedBuffers)
	fmt.Fprintf(out, "%v\n", output[:n])
	return nil
}
