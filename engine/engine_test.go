package engine_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiremani/lattice/compiler"
	"github.com/thiremani/lattice/demo"
	"github.com/thiremani/lattice/engine"
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// jit compiles f and loads it, skipping the test when the host has no
// usable LLVM target.
func jit(t *testing.T, f *ir.Func, opt compiler.Optimizer) (*engine.Function, *compiler.Artifact) {
	t.Helper()
	if !engine.Available() {
		t.Skip("no native LLVM target available")
	}
	ctx := llvm.NewContext()
	t.Cleanup(ctx.Dispose)

	c := compiler.NewCompiler(ctx, compiler.Options{Optimizer: opt})
	defer c.Dispose()
	art, err := c.Compile(f, nil)
	require.NoError(t, err)

	fn, err := engine.Load(art, engine.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(fn.Close)
	return fn, art
}

func TestPipeline(t *testing.T) {
	assert.Equal(t, "default<O2>", engine.NewOptimizer(engine.DefaultOptions()).Pipeline())
	assert.Equal(t, "default<O3>", engine.NewOptimizer(engine.Options{OptLevel: 7}).Pipeline())
	assert.Equal(t, "default<O0>", engine.NewOptimizer(engine.Options{OptLevel: -1}).Pipeline())
}

func TestHostFeatures(t *testing.T) {
	fs := engine.HostFeatures()
	if fs == "" {
		return
	}
	for _, f := range strings.Split(fs, ",") {
		assert.True(t, strings.HasPrefix(f, "+"), f)
	}
}

// counter returns a function whose result counts the iterations of loop.
func counter(name string, loop func(out ir.Var, body ir.Stmt) ir.Stmt, args ...ir.Var) *ir.Func {
	out := ir.NewVar("out", ir.Scalar(ir.Int))
	inc := &ir.Assign{Var: out, Value: ir.IntLit(1), Op: ir.AddCompound}
	body := ir.Seq(
		&ir.Assign{Var: out, Value: ir.IntLit(0)},
		loop(out, inc),
	)
	return ir.NewFunc(name, args, []ir.Var{out}, body)
}

func TestRangeLoopTripCount(t *testing.T) {
	for _, n := range []int32{0, 1, 5} {
		nv := ir.NewVar("n", ir.Scalar(ir.Int))
		i := ir.NewVar("i", ir.Scalar(ir.Int))
		f := counter("count", func(_ ir.Var, body ir.Stmt) ir.Stmt {
			return &ir.ForRange{Var: i, Start: ir.IntLit(0), End: ir.Ref(nv), Body: body}
		}, nv)

		fn, _ := jit(t, f, nil)
		var out int32 = -1
		require.NoError(t, fn.BindScalar("n", &n))
		require.NoError(t, fn.BindScalar("out", &out))
		require.NoError(t, fn.Init())
		require.NoError(t, fn.Run())
		require.NoError(t, fn.Deinit())
		assert.Equal(t, n, out, "n = %d", n)
	}
}

func TestIndexSetLoopTripCount(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		i := ir.NewVar("i", ir.Scalar(ir.Int))
		f := counter("count", func(_ ir.Var, body ir.Stmt) ir.Stmt {
			return &ir.For{Var: i, Domain: ir.Over(ir.Range(n)), Body: body}
		})

		fn, _ := jit(t, f, engine.NewOptimizer(engine.DefaultOptions()))
		var out int32 = -1
		require.NoError(t, fn.BindScalar("out", &out))
		require.NoError(t, fn.Init())
		require.NoError(t, fn.Run())
		assert.Equal(t, int32(n), out, "n = %d", n)
	}
}

func TestWhile(t *testing.T) {
	limit := ir.NewVar("limit", ir.Scalar(ir.Int))
	f := counter("loop", func(out ir.Var, body ir.Stmt) ir.Stmt {
		return &ir.While{Cond: ir.Less(ir.Ref(out), ir.Ref(limit)), Body: body}
	}, limit)

	for _, n := range []int32{0, 4} {
		fn, _ := jit(t, f, nil)
		var out int32 = -1
		require.NoError(t, fn.BindScalar("limit", &n))
		require.NoError(t, fn.BindScalar("out", &out))
		require.NoError(t, fn.Init())
		require.NoError(t, fn.Run())
		assert.Equal(t, n, out)
	}
}

func TestBufferLifecycle(t *testing.T) {
	v := ir.NewVar("v", ir.Vector(ir.Float, ir.Dim(ir.Range(4))))
	w := ir.NewVar("w", ir.Vector(ir.Float, ir.Dim(ir.Range(2))))
	f := ir.NewFunc("bufs", nil, nil, ir.Seq(
		&ir.VarDecl{Var: v},
		&ir.VarDecl{Var: w},
		&ir.Assign{Var: v, Value: ir.FloatLit(0)},
		&ir.Store{Buffer: ir.Ref(v), Index: ir.IntLit(2), Value: ir.FloatLit(1.5)},
	))
	f.Storage.Add(v, ir.Dense())
	f.Storage.Add(w, ir.Dense())

	fn, art := jit(t, f, nil)
	require.Len(t, art.Buffers, 2)

	_, err := fn.Buffer("v", 4)
	require.Error(t, err)
	require.Error(t, fn.Run())

	require.NoError(t, fn.Init())
	require.NoError(t, fn.Deinit())

	require.NoError(t, fn.Init())
	require.NoError(t, fn.Run())
	data, err := fn.Buffer("v", 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1.5, 0}, data)
	require.NoError(t, fn.Deinit())
}

func TestUnboundArgument(t *testing.T) {
	n := ir.NewVar("n", ir.Scalar(ir.Int))
	f := ir.NewFunc("noop", []ir.Var{n}, nil, &ir.Pass{})
	fn, _ := jit(t, f, nil)
	require.ErrorContains(t, fn.Init(), "n is not bound")

	var v int32
	require.Error(t, fn.BindScalar("missing", &v))
	require.Error(t, fn.BindScalar("n", v))
}

func TestPowerIterationMatchesReference(t *testing.T) {
	const iters = 10
	tests := []struct {
		name   string
		g      demo.Graph
		values func(rowStart []int32, k int) float64
	}{
		{
			name: "weighted",
			g:    demo.Graph{N: 5, Edges: [][2]int32{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}, {0, 2}}},
			values: func(_ []int32, k int) float64 {
				return 1 + 0.25*float64(k%3)
			},
		},
		{
			name: "row stochastic",
			g:    demo.Graph{N: 3, Edges: [][2]int32{{0, 1}, {1, 2}, {2, 0}}},
			values: func(rowStart []int32, k int) float64 {
				row := 0
				for int(rowStart[row+1]) <= k {
					row++
				}
				return 1 / float64(rowStart[row+1]-rowStart[row])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.g
			rowStart, colIdx := g.CSR()
			values := make([]float64, len(colIdx))
			for k := range values {
				values[k] = tt.values(rowStart, k)
			}
			x0 := make([]float64, g.N)
			for k := range x0 {
				x0[k] = 1 / float64(k+1)
			}

			p := demo.PowerIteration(iters)
			fn, _ := jit(t, p.Func, engine.NewOptimizer(engine.DefaultOptions()))

			x := make([]float64, g.N)
			require.NoError(t, fn.BindSet("points", &engine.Set{Size: int32(g.N)}))
			require.NoError(t, fn.BindSet("edges", &engine.Set{
				Size:          int32(len(g.Edges)),
				Endpoints:     g.Endpoints(),
				NeighborStart: rowStart,
				Neighbors:     colIdx,
			}))
			require.NoError(t, fn.BindTensor("A", values))
			require.NoError(t, fn.BindTensor("x0", x0))
			require.NoError(t, fn.BindTensor("x", x))

			require.NoError(t, fn.Init())
			require.NoError(t, fn.Run())
			require.NoError(t, fn.Deinit())

			want := demo.ReferencePower(g.N, rowStart, colIdx, values, x0, iters)
			opt := cmpopts.EquateApprox(1e-9, 1e-12)
			assert.True(t, cmp.Equal(want, x, opt), cmp.Diff(want, x, opt))
		})
	}
}

// defineShapeRecorder gives the declared sparse solver a body that writes the
// shape arguments it receives, and the second entry of each adjacency
// array, into the solution vector.
func defineShapeRecorder(t *testing.T, m llvm.Module) {
	t.Helper()
	solver := m.NamedFunction("cMatSolve_f64")
	require.False(t, solver.IsNil())
	require.Equal(t, 10, solver.ParamsCount())

	ctx := m.Context()
	b := ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(ctx.AddBasicBlock(solver, "entry"))

	f64, i32 := ctx.DoubleType(), ctx.Int32Type()
	idx := func(k int) []llvm.Value { return []llvm.Value{llvm.ConstInt(i32, uint64(k), false)} }
	out := solver.Param(2)
	put := func(k int, v llvm.Value) {
		b.CreateStore(b.CreateSIToFP(v, f64, ""), b.CreateGEP(f64, out, idx(k), ""))
	}
	for k := range 5 {
		put(k, solver.Param(5+k))
	}
	put(5, b.CreateLoad(i32, b.CreateGEP(i32, solver.Param(3), idx(1), ""), ""))
	put(6, b.CreateLoad(i32, b.CreateGEP(i32, solver.Param(4), idx(1), ""), ""))
	b.CreateRetVoid()
	require.NoError(t, llvm.VerifyModule(m, llvm.ReturnStatusAction))
}

func TestSolveShapeArguments(t *testing.T) {
	if !engine.Available() {
		t.Skip("no native LLVM target available")
	}
	point := &ir.ElementType{Name: "Point"}
	points := ir.NewVar("points", &ir.SetType{Element: point})
	edges := ir.NewVar("edges", &ir.SetType{
		Element:   &ir.ElementType{Name: "Link"},
		Endpoints: []ir.Expr{ir.Ref(points), ir.Ref(points)},
	})
	overPoints := ir.Dim(ir.SetOf(ir.Ref(points)))
	a := ir.NewVar("A", ir.NewTensor(ir.Float, overPoints, overPoints))
	rhs := ir.NewVar("rhs", ir.Vector(ir.Float, overPoints))
	sol := ir.NewVar("sol", ir.Vector(ir.Float, ir.Dim(ir.Range(8))))

	f := ir.NewFunc("solveShape", []ir.Var{points, edges, a, rhs}, []ir.Var{sol}, &ir.CallStmt{
		Callee:  ir.IntrinsicFunc(ir.Solve),
		Actuals: []ir.Expr{ir.Ref(a), ir.Ref(rhs)},
		Results: []ir.Var{sol},
	})
	f.Storage.Add(a, ir.Reduced(ir.Ref(edges), ir.Ref(points)))
	f.Storage.Add(rhs, ir.Dense())
	f.Storage.Add(sol, ir.Dense())

	ctx := llvm.NewContext()
	defer ctx.Dispose()
	c := compiler.NewCompiler(ctx, compiler.Options{})
	art, err := c.Compile(f, nil)
	c.Dispose()
	require.NoError(t, err)
	defineShapeRecorder(t, art.Module)

	fn, err := engine.Load(art, engine.DefaultOptions())
	require.NoError(t, err)
	defer fn.Close()

	out := make([]float64, 8)
	require.NoError(t, fn.BindSet("points", &engine.Set{Size: 2}))
	require.NoError(t, fn.BindSet("edges", &engine.Set{
		Size:          3,
		Endpoints:     []int32{0, 0, 0, 1, 1, 0},
		NeighborStart: []int32{0, 2, 3},
		Neighbors:     []int32{0, 1, 0},
	}))
	require.NoError(t, fn.BindTensor("A", []float64{4, 1, 3}))
	require.NoError(t, fn.BindTensor("rhs", []float64{1, 2}))
	require.NoError(t, fn.BindTensor("sol", out))

	require.NoError(t, fn.Init())
	require.NoError(t, fn.Run())
	require.NoError(t, fn.Deinit())

	// rows, cols, nnz, block rows, block cols, row_start[1], col_idx[1]
	assert.Equal(t, []float64{2, 2, 3, 1, 1, 2, 1, 0}, out)
}
