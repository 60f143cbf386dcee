package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/store"
)

func defaultStorePath() string {
	if p := os.Getenv("MICROEXEC_STORE"); p != "" {
		return p
	}
	return "~/.cache/microexec/programs.db"
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~/")), nil
}

func runStore(ctx context.Context, args []string, out io.Writer) error {
	log := klog.FromContext(ctx)

	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", defaultStorePath(), "program store database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("store: expected put, list, get, rm or run")
	}

	path, err := expandHome(*dbPath)
	if err != nil {
		return err
	}
	sub, rest := fs.Arg(0), fs.Args()[1:]

	cfg := store.DefaultConfig(path)
	cfg.ReadOnly = sub == "list" || sub == "get" || sub == "run"
	if cfg.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("opening store %q: %w", path, err)
		}
	}
	s, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	log.V(1).Info("opened program store", "path", path, "readOnly", cfg.ReadOnly)

	switch sub {
	case "put":
		return storePut(s, rest, out)
	case "list":
		return storeList(s, out)
	case "get":
		return storeGet(s, rest, out)
	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("store rm: expected NAME")
		}
		return s.Delete(rest[0])
	case "run":
		return storeRun(ctx, s, rest, out)
	default:
		return fmt.Errorf("store: unknown command %q", sub)
	}
}

func storePut(s *store.Store, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("store put: expected NAME FILE")
	}
	blob, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	id, err := s.Put(args[0], blob)
	if err != nil {
		return fmt.Errorf("storing %q: %w", args[0], err)
	}
	fmt.Fprintf(out, "%s %s\n", args[0], id)
	return nil
}

func storeList(s *store.Store, out io.Writer) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%-20s %s %8d %s %s\n", e.Name, e.ID, e.Size,
			strings.Join(e.Methods, ","), e.StoredAt.Format(time.RFC3339))
	}
	return nil
}

// lookup accepts either a stored name or a program ID.
func lookup(s *store.Store, key string) ([]byte, error) {
	blob, err := s.Get(key)
	if err == nil {
		return blob, nil
	}
	if _, perr := program.ParseID(key); perr == nil {
		return s.GetByID(key)
	}
	return nil, fmt.Errorf("program %q: %w", key, err)
}

func storeGet(s *store.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("store get", flag.ContinueOnError)
	fs.SetOutput(out)
	output := fs.String("o", "", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *output == "" {
		return fmt.Errorf("store get: expected -o FILE NAME|ID")
	}
	blob, err := lookup(s, fs.Arg(0))
	if err != nil {
		return err
	}
	return os.WriteFile(*output, blob, 0o644)
}

func storeRun(ctx context.Context, s *store.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("store run", flag.ContinueOnError)
	fs.SetOutput(out)
	var rf runFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("store run: expected NAME|ID")
	}
	blob, err := lookup(s, fs.Arg(0))
	if err != nil {
		return err
	}
	return execute(ctx, program.NewBufferSource(blob), &rf, out)
}
