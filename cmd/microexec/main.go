// Package main provides the microexec CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"k8s.io/klog/v2"
)

const version = "v0.1.0"

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() { usage(flag.CommandLine.Output()) }
	flag.Parse()

	if err := run(context.Background(), flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "microexec %s - static-memory program executor\n\n", version)
	fmt.Fprintln(w, "Usage: microexec [klog flags] <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version                                 Show version")
	fmt.Fprintln(w, "  build -o FILE [-n N] [-compress]        Write the elementwise add program")
	fmt.Fprintln(w, "  inspect FILE                            Print program metadata")
	fmt.Fprintln(w, "  run [-a A] [-b B] [-method M] FILE      Load FILE and run one inference")
	fmt.Fprintln(w, "  demo                                    Run 2 + 3 through an in-memory program")
	fmt.Fprintln(w, "  store [-db PATH] put NAME FILE          Add a program to the store")
	fmt.Fprintln(w, "  store [-db PATH] list                   List stored programs")
	fmt.Fprintln(w, "  store [-db PATH] get -o FILE NAME|ID    Export a stored program")
	fmt.Fprintln(w, "  store [-db PATH] rm NAME                Remove a stored program")
	fmt.Fprintln(w, "  store [-db PATH] run [-a A] [-b B] NAME Run a stored program")
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(out, "microexec %s\n", version)
		return nil
	case "build":
		return runBuild(ctx, rest, out)
	case "inspect":
		return runInspect(ctx, rest, out)
	case "run":
		return runRun(ctx, rest, out)
	case "demo":
		return runDemo(ctx, out)
	case "store":
		return runStore(ctx, rest, out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
