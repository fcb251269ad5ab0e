// Command vecindexctl is a minimal line-command driver for a single
// on-disk vector index file: create or open it, insert rows one at a time,
// and run K-NN queries, without a SQL layer.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vecindex/pkg/cli"
	"vecindex/pkg/pager"
	"vecindex/pkg/types"
	"vecindex/pkg/vecindex"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: vecindexctl <path-to-index-file>")
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "vecindexctl:", err)
		os.Exit(1)
	}
}

func run(path string, input io.Reader, output, errOutput io.Writer) error {
	p, err := pager.Open(path, pager.Options{})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer p.Close()

	d := &driver{pager: p, output: output, errOutput: errOutput}
	shell := cli.NewShell(input, output, errOutput)

	for {
		line, eof := shell.ReadStatement()
		line = strings.TrimSpace(line)
		if line != "" {
			if err := d.dispatch(line); err != nil {
				fmt.Fprintln(errOutput, "error:", err)
			}
		}
		if eof {
			return nil
		}
		if d.quit {
			return nil
		}
	}
}

type driver struct {
	pager *pager.Pager
	am    *vecindex.AccessMethod
	quit  bool

	output    io.Writer
	errOutput io.Writer
}

func (d *driver) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case ".quit", ".exit":
		d.quit = true
		return nil
	case "create":
		return d.cmdCreate(args)
	case "open":
		return d.cmdOpen(args)
	case "insert":
		return d.cmdInsert(args)
	case "search":
		return d.cmdSearch(args)
	case "stats":
		return d.cmdStats()
	case "vacuum":
		if d.am == nil {
			return fmt.Errorf("no index open")
		}
		return d.am.VacuumCleanup()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// create dim=<n> [m=16] [ef_construction=128] [ef_search=64] [metric=l2sq] [quantization=f32]
func (d *driver) cmdCreate(args []string) error {
	kv, err := parseKV(args)
	if err != nil {
		return err
	}
	params, err := vecindex.ParseCreateParams(kv)
	if err != nil {
		return err
	}
	am, err := vecindex.BuildEmpty(d.pager, params)
	if err != nil {
		return err
	}
	d.am = am
	fmt.Fprintf(d.output, "created index, meta page %d\n", am.MetaPage())
	return nil
}

// open <meta-page>
func (d *driver) cmdOpen(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <meta-page>")
	}
	metaPage, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid meta page: %w", err)
	}
	am, err := vecindex.Open(d.pager, uint32(metaPage))
	if err != nil {
		return err
	}
	d.am = am
	fmt.Fprintf(d.output, "opened index at meta page %d\n", metaPage)
	return nil
}

// insert <rowid> <v0> <v1> ...
func (d *driver) cmdInsert(args []string) error {
	if d.am == nil {
		return fmt.Errorf("no index open; run create or open first")
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: insert <rowid> <v0> <v1> ...")
	}
	rowID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rowid: %w", err)
	}
	vec, err := parseVector(args[1:])
	if err != nil {
		return err
	}
	if err := d.am.Insert(rowID, vec); err != nil {
		return err
	}
	fmt.Fprintf(d.output, "inserted row %d\n", rowID)
	return nil
}

// search <k> <v0> <v1> ...
func (d *driver) cmdSearch(args []string) error {
	if d.am == nil {
		return fmt.Errorf("no index open; run create or open first")
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: search <k> <v0> <v1> ...")
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid k: %w", err)
	}
	vec, err := parseVector(args[1:])
	if err != nil {
		return err
	}

	scan, err := d.am.BeginScan(context.Background(), vec, k)
	if err != nil {
		return err
	}
	defer scan.Close()

	for {
		rowID, dist, ok := scan.GetTuple()
		if !ok {
			break
		}
		fmt.Fprintf(d.output, "%d\t%f\n", rowID, dist)
	}
	return nil
}

func (d *driver) cmdStats() error {
	fmt.Fprintf(d.output, "page_size=%d page_count=%d free_pages=%d\n",
		d.pager.PageSize(), d.pager.PageCount(), d.pager.FreePageCount())
	return nil
}

func parseVector(args []string) (*types.Vector, error) {
	vals := make([]float32, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", a, err)
		}
		vals[i] = float32(f)
	}
	return types.NewVector(vals), nil
}

func parseKV(args []string) (map[string]string, error) {
	kv := make(map[string]string, len(args))
	for _, a := range args {
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		kv[parts[0]] = parts[1]
	}
	return kv, nil
}
