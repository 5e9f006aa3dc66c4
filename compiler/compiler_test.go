package compiler

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

func TestCompileProducesTriple(t *testing.T) {
	x := rangeVector("x", 3)
	y := rangeVector("y", 3)
	f := ir.NewFunc("copy", []ir.Var{x}, []ir.Var{y}, &ir.Assign{Var: y, Value: ir.Ref(x)})
	f.Storage.Add(x, ir.Dense())
	f.Storage.Add(y, ir.Dense())

	art, out := compileIR(t, f)
	assert.Equal(t, "copy", art.Entry)
	assert.Equal(t, "copy.init", art.Init)
	assert.Equal(t, "copy.deinit", art.Deinit)
	assert.Equal(t, "copy.call", art.EntryCall)
	assert.Equal(t, "copy.init.call", art.InitCall)
	assert.Equal(t, "copy.deinit.call", art.DeinitCall)

	require.Len(t, art.Params, 2)
	assert.Equal(t, Param{Var: x, Slot: "copy.slot.x"}, art.Params[0])
	assert.Equal(t, Param{Var: y, Slot: "copy.slot.y", Result: true}, art.Params[1])

	assert.Contains(t, out, "@copy.slot.x = global ptr null")
	assert.Contains(t, out, "define void @copy(ptr %x, ptr %y)")
	assert.Contains(t, out, "define void @copy.init(ptr %x, ptr %y)")
	assert.Contains(t, out, "define void @copy.deinit(ptr %x, ptr %y)")
	assert.Contains(t, out, "define void @copy.call()")
	assert.Contains(t, out, "call void @llvm.memcpy.p0.p0.i64(ptr %y, ptr %x, i64 24, i1 false)")
}

func TestGlobals(t *testing.T) {
	scale := scalarVar("scale", ir.Float)
	out := scalarVar("out", ir.Float)
	f := ir.NewFunc("scaled", nil, []ir.Var{out}, &ir.Assign{Var: out, Value: ir.Times(ir.Ref(scale), ir.FloatLit(2))})

	art, ll := compileIR(t, f, scale)
	assert.Equal(t, []ir.Var{scale}, art.Globals)
	assert.Contains(t, ll, "@scale = global double 0.000000e+00")
	assert.Contains(t, ll, "load double, ptr @scale")
}

func TestInternalCallPassesScalarsByValue(t *testing.T) {
	a := scalarVar("a", ir.Float)
	r := scalarVar("r", ir.Float)
	helper := ir.NewFunc("square", []ir.Var{a}, []ir.Var{r}, &ir.Assign{Var: r, Value: ir.Times(ir.Ref(a), ir.Ref(a))})

	x := scalarVar("x", ir.Float)
	y := scalarVar("y", ir.Float)
	f := ir.NewFunc("main4", []ir.Var{x}, []ir.Var{y}, &ir.CallStmt{
		Callee:  helper,
		Actuals: []ir.Expr{ir.Plus(ir.Ref(x), ir.FloatLit(1))},
		Results: []ir.Var{y},
	})

	_, out := compileIR(t, f)
	assert.Contains(t, out, "define internal void @square(double %a, ptr %r)")
	assert.Contains(t, out, "call void @square(double %add, ptr %y)")
	// Callees are emitted before their callers.
	assert.Less(t, strings.Index(out, "@square(double"), strings.Index(out, "define void @main4("))
}

func TestAssignToScalarArgument(t *testing.T) {
	a := scalarVar("a", ir.Int)
	r := scalarVar("r", ir.Int)
	helper := ir.NewFunc("bump", []ir.Var{a}, []ir.Var{r}, ir.Seq(
		&ir.Assign{Var: a, Value: ir.IntLit(1), Op: ir.AddCompound},
		&ir.Assign{Var: r, Value: ir.Ref(a)},
	))
	x := scalarVar("x", ir.Int)
	f := ir.NewFunc("caller", nil, []ir.Var{x}, &ir.CallStmt{Callee: helper, Actuals: []ir.Expr{ir.IntLit(4)}, Results: []ir.Var{x}})

	_, out := compileIR(t, f)
	assert.Contains(t, out, "%a.mem = alloca i32")
	assert.Contains(t, out, "store i32 %a, ptr %a.mem")
}

func TestCalleeWithoutBodyIsNotFound(t *testing.T) {
	ext := &ir.Func{Name: "undefinedHelper", Kind: ir.Internal}
	f := ir.NewFunc("calls", nil, nil, &ir.CallStmt{Callee: ext})

	ce := compileFails(t, f)
	assert.Equal(t, InternalError, ce.Kind)
	assert.Contains(t, ce.Error(), "function undefinedHelper not found in module")
}

func TestArityMismatch(t *testing.T) {
	a := scalarVar("a", ir.Float)
	helper := ir.NewFunc("one", []ir.Var{a}, nil, &ir.Pass{})
	f := ir.NewFunc("calls", nil, nil, &ir.CallStmt{Callee: helper})

	ce := compileFails(t, f)
	assert.Equal(t, InternalError, ce.Kind)
	assert.Contains(t, ce.Error(), "called with 0 arguments")
}

func TestExternalCall(t *testing.T) {
	a := scalarVar("a", ir.Float)
	r := scalarVar("r", ir.Float)
	ext := ir.NewExternal("gamma_f64", []ir.Var{a}, []ir.Var{r})
	erf := ir.NewExternal("erf_f64", []ir.Var{a}, nil)
	f := ir.NewFunc("useExt", []ir.Var{a}, []ir.Var{r}, ir.Seq(
		&ir.CallStmt{Callee: ext, Actuals: []ir.Expr{ir.Ref(a)}, Results: []ir.Var{r}},
		&ir.Assign{Var: r, Value: &ir.Call{Callee: erf, Actuals: []ir.Expr{ir.Ref(r)}, Result: ir.Scalar(ir.Float)}},
	))
	_, out := compileIR(t, f)
	assert.Contains(t, out, "declare void @gamma_f64(double, ptr)")
	assert.Contains(t, out, "declare double @erf_f64(double)")
	assert.Contains(t, out, ", ptr %r)")
}

func TestReservedFunctionNames(t *testing.T) {
	for _, name := range []string{"malloc", "printf", "dot_f64", "cMatSolve_f32", "llvm.sqrt.f64", "loc"} {
		f := ir.NewFunc(name, nil, nil, &ir.Pass{})
		ce := compileFails(t, f)
		assert.Equal(t, SemanticError, ce.Kind, name)
		assert.Contains(t, ce.Error(), `function name "`+name+`" is reserved`)
	}

	helper := ir.NewFunc("free", nil, nil, &ir.Pass{})
	f := ir.NewFunc("fine", nil, nil, &ir.CallStmt{Callee: helper})
	ce := compileFails(t, f)
	assert.Equal(t, SemanticError, ce.Kind)

	assert.True(t, IsReservedSymbol("norm_f32"))
	assert.False(t, IsReservedSymbol("norm"))
	assert.Contains(t, ReservedSymbols(), "inv3_f64")
}

func TestUnsupportedConstructs(t *testing.T) {
	points, edges := graph()
	k := scalarVar("k", ir.Int)
	v := rangeVector("v", 3)
	w := rangeVector("w", 3)
	b := rangeVector("b", 3)
	helper := ir.NewFunc("helper", nil, []ir.Var{scalarVar("r", ir.Int)}, &ir.Pass{})

	tests := []struct {
		name string
		body ir.Stmt
	}{
		{"edge loop", &ir.For{Var: k, Domain: ir.ForDomain{Kind: ir.EdgesDomain}, Body: &ir.Pass{}}},
		{"endpoint loop", &ir.For{Var: k, Domain: ir.ForDomain{Kind: ir.EndpointsDomain}, Body: &ir.Pass{}}},
		{"neighbor loop", &ir.For{Var: k, Domain: ir.ForDomain{Kind: ir.NeighborsDomain}, Body: &ir.Pass{}}},
		{"diagonal loop", &ir.For{Var: k, Domain: ir.ForDomain{Kind: ir.DiagonalDomain}, Body: &ir.Pass{}}},
		{"dynamic length", ir.Seq(&ir.VarDecl{Var: k}, &ir.Assign{Var: k, Value: &ir.Length{IndexSet: ir.Dynamic()}})},
		{"integer division", ir.Seq(&ir.VarDecl{Var: k}, &ir.Assign{Var: k, Value: ir.Quo(ir.IntLit(4), ir.IntLit(2))})},
		{"broadcast", ir.Seq(&ir.VarDecl{Var: w}, &ir.Assign{Var: w, Value: ir.FloatLit(1)})},
		{"tensor compound", ir.Seq(&ir.VarDecl{Var: w}, &ir.Assign{Var: w, Value: ir.Ref(b), Op: ir.AddCompound})},
		{"print set", &ir.Print{Expr: ir.Ref(points)}},
		{"internal call value", ir.Seq(&ir.VarDecl{Var: k}, &ir.Assign{Var: k, Value: &ir.Call{Callee: helper, Result: ir.Scalar(ir.Int)}})},
		{"solve operand", &ir.CallStmt{
			Callee:  ir.IntrinsicFunc(ir.Solve),
			Actuals: []ir.Expr{ir.TensorLit(ir.NewTensor(ir.Float, ir.Dim(ir.Range(1)), ir.Dim(ir.Range(1))), []float64{1}), ir.Ref(b)},
			Results: []ir.Var{v},
		}},
	}
	for _, tt := range tests {
		f := ir.NewFunc("fenced", []ir.Var{points, edges, b}, []ir.Var{v}, tt.body)
		f.Storage.Add(v, ir.Dense())
		f.Storage.Add(w, ir.Dense())
		f.Storage.Add(b, ir.Dense())
		ce := compileFails(t, f)
		assert.Equal(t, Unsupported, ce.Kind, "%s: %v", tt.name, ce)
	}
}

func TestVarDeclHoisting(t *testing.T) {
	i := scalarVar("i", ir.Int)
	acc := scalarVar("acc", ir.Float)
	out := scalarVar("out", ir.Float)
	f := ir.NewFunc("hoisted", nil, []ir.Var{out}, ir.Seq(
		&ir.For{Var: i, Domain: ir.Over(ir.Range(4)), Body: ir.Scoped(
			&ir.VarDecl{Var: acc},
			&ir.Assign{Var: acc, Value: ir.FloatLit(1)},
			&ir.Assign{Var: out, Value: ir.Ref(acc), Op: ir.AddCompound},
		)},
	))
	_, ll := compileIR(t, f)
	entry := ll[strings.Index(ll, "define void @hoisted("):]
	entry = entry[:strings.Index(entry, "i.body:")]
	assert.Contains(t, entry, "%acc = alloca double")
}

func TestSystemNoneDeclaresNothing(t *testing.T) {
	v := rangeVector("v", 3)
	f := ir.NewFunc("ghost", nil, nil, &ir.VarDecl{Var: v})
	f.Storage.Add(v, ir.NoStorage())

	art, out := compileIR(t, f)
	assert.Empty(t, art.Buffers)
	assert.NotContains(t, out, "@v =")
}

func TestUndefinedStorage(t *testing.T) {
	v := rangeVector("v", 3)
	f := ir.NewFunc("undefined", nil, nil, &ir.VarDecl{Var: v})
	ce := compileFails(t, f)
	assert.Equal(t, InternalError, ce.Kind)
	assert.Contains(t, ce.Error(), "no storage descriptor for v")

	f.Storage.Add(v, ir.TensorStorage{})
	ce = compileFails(t, f)
	assert.Equal(t, InternalError, ce.Kind)
	assert.Contains(t, ce.Error(), "undefined storage")
}

func TestBufferLifecycle(t *testing.T) {
	vs := []ir.Var{rangeVector("a", 4), rangeVector("b", 8), rangeVector("c", 2)}
	body := ir.Seq()
	for _, v := range vs {
		body.Stmts = append(body.Stmts, &ir.VarDecl{Var: v})
	}
	// A second declaration of a reuses its buffer.
	body.Stmts = append(body.Stmts, &ir.VarDecl{Var: vs[0]})
	f := ir.NewFunc("bufs", nil, nil, body)
	for _, v := range vs {
		f.Storage.Add(v, ir.Dense())
	}

	art, _ := compileIR(t, f)
	require.Len(t, art.Buffers, 3)
	for i, b := range art.Buffers {
		assert.Equal(t, vs[i].Name, b.Var.Name)
		assert.Equal(t, vs[i].Name, b.Global)
	}

	initFn := art.Module.NamedFunction("bufs.init").String()
	assert.Equal(t, 3, strings.Count(initFn, "call ptr @malloc("))
	assert.Less(t, strings.Index(initFn, "@malloc(i64 32)"), strings.Index(initFn, "@malloc(i64 64)"))
	assert.Less(t, strings.Index(initFn, "@malloc(i64 64)"), strings.Index(initFn, "@malloc(i64 16)"))

	deinitFn := art.Module.NamedFunction("bufs.deinit").String()
	assert.Equal(t, 3, strings.Count(deinitFn, "call void @free("))
}

func TestBufferOrderFollowsDeclarations(t *testing.T) {
	a, b, c := rangeVector("a", 1), rangeVector("b", 2), rangeVector("c", 3)
	f := ir.NewFunc("reversed", nil, nil, ir.Seq(
		&ir.VarDecl{Var: c},
		&ir.VarDecl{Var: b},
		&ir.VarDecl{Var: a},
	))
	for _, v := range []ir.Var{a, b, c} {
		f.Storage.Add(v, ir.Dense())
	}

	art, _ := compileIR(t, f)
	var got []string
	for _, buf := range art.Buffers {
		got = append(got, buf.Global)
	}
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestBufferSizedBySetArgument(t *testing.T) {
	points, _ := graph()
	tmp := ir.NewVar("tmp", ir.Vector(ir.Float, ir.Dim(ir.SetOf(ir.Ref(points)))))
	f := ir.NewFunc("sized", []ir.Var{points}, nil, &ir.VarDecl{Var: tmp})
	f.Storage.Add(tmp, ir.Dense())

	art, _ := compileIR(t, f)
	initFn := art.Module.NamedFunction("sized.init").String()
	assert.Contains(t, initFn, "%points.len = extractvalue { i32 }")
	assert.Contains(t, initFn, "%bytes = mul i64 %len.i64, 8")
}

func TestVerifyReportsEveryBrokenFunction(t *testing.T) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()
	c := NewCompiler(ctx, Options{})
	defer c.Dispose()
	c.reset("broken")
	defer c.Module.Dispose()
	c.entry = &ir.Func{Name: "broken"}

	for _, name := range []string{"first", "second"} {
		fn := llvm.AddFunction(c.Module, name, llvm.FunctionType(ctx.VoidType(), nil, false))
		// A block without a terminator.
		ctx.AddBasicBlock(fn, "entry")
	}

	ce := c.verify()
	require.NotNil(t, ce)
	assert.Equal(t, VerificationError, ce.Kind)
	assert.Contains(t, ce.Error(), "function first")
	assert.Contains(t, ce.Error(), "function second")
}

type failingOptimizer struct{}

func (failingOptimizer) Optimize(llvm.Module) error { return os.ErrInvalid }

func TestOptimizerError(t *testing.T) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()
	c := NewCompiler(ctx, Options{Optimizer: failingOptimizer{}})
	defer c.Dispose()

	art, err := c.Compile(ir.NewFunc("opt", nil, nil, &ir.Pass{}), nil)
	require.Nil(t, art)
	require.ErrorIs(t, err, os.ErrInvalid)
	assert.Contains(t, err.Error(), "optimize opt")
}

func TestPrintRunsUnderLLI(t *testing.T) {
	lliPath, err := exec.LookPath("lli")
	if err != nil {
		t.Skip("lli not found on PATH")
	}

	three := ir.Dim(ir.Range(3))
	f := ir.NewFunc("show", nil, nil, ir.Seq(
		&ir.Print{Expr: ir.FloatLit(3.5)},
		&ir.Print{Expr: ir.IntLit(-2)},
		&ir.Print{Expr: ir.BoolLit(true)},
		&ir.Print{Expr: ir.TensorLit(ir.Vector(ir.Float, three), []float64{1, 2, 3})},
		&ir.Print{Expr: ir.TensorLit(ir.NewTensor(ir.Float, ir.Dim(ir.Range(2)), three), []float64{1, 0, 0, 0, 1, 0})},
	))
	art, _ := compileIR(t, f)

	ctx := art.Module.Context()
	b := ctx.NewBuilder()
	defer b.Dispose()
	mainTy := llvm.FunctionType(ctx.Int32Type(), nil, false)
	mainFn := llvm.AddFunction(art.Module, "main", mainTy)
	b.SetInsertPointAtEnd(ctx.AddBasicBlock(mainFn, "entry"))
	call := art.Module.NamedFunction(art.EntryCall)
	b.CreateCall(call.GlobalValueType(), call, nil, "")
	b.CreateRet(llvm.ConstInt(ctx.Int32Type(), 0, false))

	irPath := filepath.Join(t.TempDir(), "show.ll")
	require.NoError(t, os.WriteFile(irPath, []byte(art.Module.String()), 0o644))

	out, err := exec.Command(lliPath, irPath).CombinedOutput()
	require.NoError(t, err, string(out))
	want := "3.500000\n-2\n1\n1.000000 2.000000 3.000000\n1.000000 0.000000 0.000000\n0.000000 1.000000 0.000000\n"
	assert.Equal(t, want, string(out))
}
