package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/born-ml/microexec/internal/program"
)

func runInspect(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(out)
	skipChecksum := fs.Bool("skip-checksum", false, "do not verify the container checksum")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect: expected one program file")
	}

	src, err := program.OpenFile(fs.Arg(0))
	if err != nil {
		return err
	}
	defer src.Close()

	var opts []program.LoadOption
	if *skipChecksum {
		opts = append(opts, program.WithVerification(program.VerifyStructure))
	}
	p, err := program.Load(src, opts...)
	if err != nil {
		return fmt.Errorf("loading %q: %w", fs.Arg(0), err)
	}

	printProgram(out, p)
	return nil
}

func printProgram(out io.Writer, p *program.Program) {
	fmt.Fprintf(out, "id:        %s\n", p.ID())
	fmt.Fprintf(out, "producer:  %s\n", p.Producer())
	fmt.Fprintf(out, "flags:     %#x\n", p.Flags())
	fmt.Fprintf(out, "data:      %d bytes\n", p.DataSize())

	if md := p.Metadata(); len(md) > 0 {
		keys := make([]string, 0, len(md))
		for k := range md {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "metadata:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %s\n", k, md[k])
		}
	}

	if cs := p.ConstantMeta(); len(cs) > 0 {
		fmt.Fprintln(out, "constants:")
		for i, c := range cs {
			fmt.Fprintf(out, "  [%d] %s offset=%d size=%d\n", i, c.Name, c.Offset, c.Size)
		}
	}

	fmt.Fprintln(out, "methods:")
	for _, name := range p.MethodNames() {
		m, err := p.MethodMeta(name)
		if err != nil {
			fmt.Fprintf(out, "  %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(out, "  %s: %d inputs, %d outputs, %d instructions\n",
			name, m.NumInputs(), m.NumOutputs(), m.NumInstructions())
		for i := range m.NumInputs() {
			printTensor(out, "in", i, m.InputTensorMeta)
		}
		for i := range m.NumOutputs() {
			printTensor(out, "out", i, m.OutputTensorMeta)
		}
		for i := range m.NumMemoryPlannedBuffers() {
			size, _ := m.MemoryPlannedBufferSize(i)
			fmt.Fprintf(out, "    buffer[%d] %d bytes\n", i, size)
		}
	}
}

func printTensor(out io.Writer, kind string, i int, meta func(int) (program.TensorInfo, error)) {
	info, err := meta(i)
	if err != nil {
		fmt.Fprintf(out, "    %s[%d] %v\n", kind, i, err)
		return
	}
	fmt.Fprintf(out, "    %s[%d] %s%v planned=%t\n", kind, i, info.ScalarType(), info.Sizes(), info.IsMemoryPlanned())
}
