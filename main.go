package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/thiremani/lattice/compiler"
	"github.com/thiremani/lattice/demo"
	"github.com/thiremani/lattice/engine"
	"go.uber.org/multierr"
	"tinygo.org/x/go-llvm"
)

const usage = `usage: lattice <command> [args]

commands:
  version          print version information
  list             list the demo programs
  emit [program]   compile programs and write their IR to LATTICE_CACHE
  run <program>    compile a program and run it on the host

environment:
  LATTICE_CACHE    cache directory (default: per-user cache dir)
  LATTICE_OPT      optimization level 0-3 (default: 2)
`

// engineOptions reads LATTICE_OPT on top of the defaults.
func engineOptions() engine.Options {
	opts := engine.DefaultOptions()
	env := os.Getenv("LATTICE_OPT")
	if env == "" {
		return opts
	}
	level, err := strconv.Atoi(env)
	if err != nil || level < 0 || level > 3 {
		fmt.Printf("⚠️ Ignoring LATTICE_OPT=%q, want 0-3\n", env)
		return opts
	}
	opts.OptLevel = level
	opts.Vectorize = level >= 2
	return opts
}

func findProgram(name string) (demo.Program, bool) {
	for _, p := range demo.Programs() {
		if p.Name == name {
			return p, true
		}
	}
	return demo.Program{}, false
}

// compileProgram lowers p into a verified, optimized module owned by the
// caller.
func compileProgram(ctx llvm.Context, p demo.Program, opts engine.Options) (*compiler.Artifact, error) {
	c := compiler.NewCompiler(ctx, compiler.Options{Optimizer: engine.NewOptimizer(opts)})
	defer c.Dispose()
	return c.Compile(p.Func, p.Globals)
}

func reportCompileError(name string, err error) {
	if ce, ok := compiler.AsCompileError(err); ok {
		fmt.Printf("⚠️ %s: %s error in %s: %s\n", name, ce.Kind, ce.Func, ce.Msg)
		return
	}
	fmt.Printf("⚠️ %s: %v\n", name, err)
}

func emit(names []string) int {
	if !engine.Available() {
		fmt.Println("⚠️ No native LLVM target available")
		return 1
	}
	opts := engineOptions()
	cacheDir := defaultCache()
	fmt.Printf("Using LATTICE_CACHE: %s\n", cacheDir)

	programs := demo.Programs()
	if len(names) > 0 {
		programs = programs[:0]
		for _, name := range names {
			p, ok := findProgram(name)
			if !ok {
				fmt.Printf("⚠️ Unknown program %q\n", name)
				return 1
			}
			programs = append(programs, p)
		}
	}

	var errs error
	for _, p := range programs {
		ctx := llvm.NewContext()
		art, err := compileProgram(ctx, p, opts)
		if err != nil {
			reportCompileError(p.Name, err)
			ctx.Dispose()
			errs = multierr.Append(errs, err)
			continue
		}
		text := art.Module.String()
		art.Module.Dispose()
		ctx.Dispose()

		path, cached, err := cacheModule(cacheDir, p.Name, text, opts)
		switch {
		case err != nil:
			fmt.Printf("⚠️ %s: %v\n", p.Name, err)
			errs = multierr.Append(errs, err)
		case cached:
			fmt.Printf("Using cached IR for %s: %s\n", p.Name, path)
		default:
			fmt.Printf("✅ Wrote IR for %s: %s\n", p.Name, path)
		}
	}
	if failed := len(multierr.Errors(errs)); failed > 0 {
		fmt.Printf("⚠️ %d of %d programs failed\n", failed, len(programs))
		return 1
	}
	return 0
}

func run(name string) int {
	p, ok := findProgram(name)
	if !ok {
		fmt.Printf("⚠️ Unknown program %q\n", name)
		return 1
	}
	if !engine.Available() {
		fmt.Println("⚠️ No native LLVM target available")
		return 1
	}
	opts := engineOptions()

	ctx := llvm.NewContext()
	defer ctx.Dispose()
	art, err := compileProgram(ctx, p, opts)
	if err != nil {
		reportCompileError(p.Name, err)
		return 1
	}
	fn, err := engine.Load(art, opts)
	if err != nil {
		fmt.Printf("⚠️ %s: %v\n", p.Name, err)
		return 1
	}
	defer fn.Close()

	result, err := bindInputs(fn, p.Name)
	if err == nil {
		err = invoke(fn)
	}
	if err != nil {
		fmt.Printf("⚠️ %s: %v\n", p.Name, err)
		return 1
	}
	if result != nil {
		result()
	}
	return 0
}

// bindInputs binds the sample inputs of a demo and returns a function that
// reports its results, if it has any.
func bindInputs(fn *engine.Function, name string) (func(), error) {
	switch name {
	case "countdown":
		n := int32(3)
		return nil, fn.BindScalar("n", &n)
	case "power":
		g := demo.Graph{N: 4, Edges: [][2]int32{{0, 1}, {1, 2}, {2, 3}, {3, 0}}}
		rowStart, colIdx := g.CSR()
		values := make([]float64, len(colIdx))
		for k := range values {
			values[k] = 1
		}
		x0 := []float64{1, 0, 0, 0}
		x := make([]float64, g.N)

		err := fn.BindSet("points", &engine.Set{Size: int32(g.N)})
		if err == nil {
			err = fn.BindSet("edges", &engine.Set{
				Size:          int32(len(g.Edges)),
				Endpoints:     g.Endpoints(),
				NeighborStart: rowStart,
				Neighbors:     colIdx,
			})
		}
		for _, b := range []struct {
			name string
			data []float64
		}{{"A", values}, {"x0", x0}, {"x", x}} {
			if err == nil {
				err = fn.BindTensor(b.name, b.data)
			}
		}
		return func() { fmt.Println("x =", x) }, err
	}
	return nil, nil
}

func invoke(fn *engine.Function) error {
	if err := fn.Init(); err != nil {
		return err
	}
	if err := fn.Run(); err != nil {
		fn.Deinit()
		return err
	}
	return fn.Deinit()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "version", "--version", "-v":
		printVersion()
	case "list":
		for _, p := range demo.Programs() {
			fmt.Println(p.Name)
		}
	case "emit":
		os.Exit(emit(os.Args[2:]))
	case "run":
		if len(os.Args) != 3 {
			fmt.Print(usage)
			os.Exit(2)
		}
		os.Exit(run(os.Args[2]))
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(2)
	}
}
