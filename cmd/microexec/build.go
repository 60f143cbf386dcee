package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/program"
)

func runBuild(ctx context.Context, args []string, out io.Writer) error {
	log := klog.FromContext(ctx)

	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(out)
	output := fs.String("o", "", "output file")
	n := fs.Int("n", 1, "elements per input")
	compress := fs.Bool("compress", false, "zstd-compress the data segment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("build: -o is required")
	}
	if *n <= 0 || *n > 1<<20 {
		return fmt.Errorf("build: -n must be in [1, %d], got %d", 1<<20, *n)
	}

	b := program.NewBuilder().
		SetMetadata("model", "add").
		Compress(*compress).
		AddMethod(program.AddModuleDef(int32(*n))) //nolint:gosec // G115: bounded above

	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("creating %q: %w", *output, err)
	}
	written, err := b.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %q: %w", *output, err)
	}

	log.Info("wrote program", "path", *output, "bytes", written, "compressed", *compress)
	fmt.Fprintf(out, "wrote %s (%d bytes)\n", *output, written)
	return nil
}
