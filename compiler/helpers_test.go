package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// compileIR compiles f and returns the artifact and the textual module.
func compileIR(t *testing.T, f *ir.Func, globals ...ir.Var) (*Artifact, string) {
	t.Helper()
	ctx := llvm.NewContext()
	t.Cleanup(ctx.Dispose)
	c := NewCompiler(ctx, Options{})
	t.Cleanup(c.Dispose)

	art, err := c.Compile(f, globals)
	require.NoError(t, err)
	t.Cleanup(art.Module.Dispose)
	return art, art.Module.String()
}

// compileFails compiles f and returns the error it must fail with.
func compileFails(t *testing.T, f *ir.Func, globals ...ir.Var) *CompileError {
	t.Helper()
	ctx := llvm.NewContext()
	defer ctx.Dispose()
	c := NewCompiler(ctx, Options{})
	defer c.Dispose()

	art, err := c.Compile(f, globals)
	require.Error(t, err)
	require.Nil(t, art)
	ce, ok := AsCompileError(err)
	require.True(t, ok, "expected a CompileError, got %v", err)
	return ce
}

// newTestFn returns a lowering context for an empty void function in a
// fresh module.
func newTestFn(t *testing.T) *fnCompiler {
	t.Helper()
	ctx := llvm.NewContext()
	t.Cleanup(ctx.Dispose)
	c := NewCompiler(ctx, Options{})
	t.Cleanup(c.Dispose)
	c.reset("test")
	t.Cleanup(c.Module.Dispose)

	fn := llvm.AddFunction(c.Module, "test", llvm.FunctionType(ctx.VoidType(), nil, false))
	PushScope(&c.Scopes, FuncScope)
	return c.newFnCompiler(fn)
}

// bindSetVar gives set v a stack slot in the function under test.
func (fc *fnCompiler) bindSetVar(v ir.Var) {
	slot := fc.createEntryBlockAlloca(fc.llvmType(v.Type), v.Name)
	fc.bind(v, &Symbol{Val: slot, Type: v.Type, Slot: true})
}

// catch runs f and returns the CompileError it panics with, if any.
func catch(f func()) (ce *CompileError) {
	defer func() {
		if r := recover(); r != nil {
			ce = r.(*CompileError)
		}
	}()
	f()
	return nil
}

// graph returns a point set and an edge set over it.
func graph() (points, edges ir.Var) {
	points = ir.NewVar("points", &ir.SetType{Element: &ir.ElementType{Name: "Point"}})
	edges = ir.NewVar("edges", &ir.SetType{
		Element:   &ir.ElementType{Name: "Spring", Fields: []ir.Field{{Name: "k", Type: ir.Scalar(ir.Float)}}},
		Endpoints: []ir.Expr{ir.Ref(points), ir.Ref(points)},
	})
	return points, edges
}

func scalarVar(name string, s ir.ScalarType) ir.Var {
	return ir.NewVar(name, ir.Scalar(s))
}

func rangeVector(name string, n int) ir.Var {
	return ir.NewVar(name, ir.Vector(ir.Float, ir.Dim(ir.Range(n))))
}
