package compiler

import (
	"fmt"

	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

func (fc *fnCompiler) compileStmt(s ir.Stmt) {
	switch s := s.(type) {
	case *ir.VarDecl:
		fc.compileVarDecl(s)
	case *ir.Assign:
		fc.compileAssign(s)
	case *ir.CallStmt:
		fc.compileCallStmt(s)
	case *ir.Store:
		fc.compileStore(s)
	case *ir.FieldWrite:
		fc.compileFieldWrite(s)
	case *ir.Block:
		fc.compileBlock(s)
	case *ir.IfThenElse:
		fc.compileIfThenElse(s)
	case *ir.ForRange:
		fc.compileForRange(s)
	case *ir.For:
		fc.compileFor(s)
	case *ir.While:
		fc.compileWhile(s)
	case *ir.Print:
		fc.compilePrint(s)
	case *ir.Pass:
	default:
		panic(fmt.Sprintf("unexpected statement %T", s))
	}
}

func (fc *fnCompiler) compileBlock(s *ir.Block) {
	if s.Scoped {
		PushScope(&fc.Scopes, BlockScope)
		defer PopScope(&fc.Scopes)
	}
	for _, st := range s.Stmts {
		fc.compileStmt(st)
	}
}

// compileVarDecl gives scalars, sets and elements a stack slot. Tensors
// that need storage become module buffers allocated by init.
func (fc *fnCompiler) compileVarDecl(s *ir.VarDecl) {
	v := s.Var
	t, ok := v.Type.(*ir.Tensor)
	if !ok || t.IsScalar() {
		slot := fc.createEntryBlockAlloca(fc.llvmType(v.Type), v.Name)
		fc.bind(v, &Symbol{Val: slot, Type: v.Type, Slot: true})
		return
	}

	ts := fc.storageOf(v)
	if ts.Kind == ir.Undefined {
		panic(fc.internal("tensor %s has undefined storage", v.Name))
	}
	if !ts.NeedsInitialization() {
		return
	}
	g := fc.declareBuffer(v)
	fc.bind(v, &Symbol{Val: g, Type: v.Type, Slot: true})
}

func (fc *fnCompiler) compileAssign(s *ir.Assign) {
	sym := fc.lookup(s.Var)
	t, ok := s.Var.Type.(*ir.Tensor)
	if ok && !t.IsScalar() {
		if s.Op == ir.AddCompound {
			panic(fc.unsupported("compound assignment to tensor %s", s.Var.Name))
		}
		dst := fc.compileVarRead(s.Var)
		n := fc.emitVarLen(s.Var)
		fc.emitTensorAssign(dst, n, t.Component, s.Value)
		return
	}

	value := s.Value
	if s.Op == ir.AddCompound {
		value = ir.Plus(ir.Ref(s.Var), s.Value)
	}
	val := fc.compileExpr(value)
	if !sym.Slot {
		fc.promoteToMemory(s.Var, sym)
	}
	fc.createStore(val, sym.Val, s.Var.Type)
}

// emitTensorAssign copies value into the n components at dst. A zero
// scalar clears them; other scalars are not broadcast.
func (fc *fnCompiler) emitTensorAssign(dst, n llvm.Value, comp ir.ScalarType, value ir.Expr) {
	if ir.IsScalar(value.Type()) {
		lit, ok := value.(*ir.Literal)
		if !ok || !lit.IsZero() {
			panic(fc.unsupported("assigning scalar %s to a tensor", value))
		}
		fc.emitMemset(dst, fc.emitByteSize(n, comp))
		return
	}
	src := fc.compileExpr(value)
	fc.emitMemcpy(dst, src, fc.emitByteSize(n, comp))
}

func (fc *fnCompiler) compileStore(s *ir.Store) {
	t := fc.tensorOf(s.Buffer)
	buf := fc.compileExpr(s.Buffer)
	idx := fc.compileExpr(s.Index)
	val := fc.compileExpr(s.Value)
	ptr := fc.elementPtr(buf, idx, t.Component, "")
	fc.storeComponent(ptr, val, t.Component, s.Op)
}

// storeComponent writes one scalar, adding to the current value for
// compound stores.
func (fc *fnCompiler) storeComponent(ptr, val llvm.Value, comp ir.ScalarType, op ir.CompoundOp) {
	scalar := ir.Scalar(comp)
	if op == ir.AddCompound {
		old := fc.createLoad(ptr, scalar, "old")
		val = fc.emitArith(ir.Add, old, val, comp)
	}
	fc.createStore(val, ptr, scalar)
}

func (fc *fnCompiler) compileFieldWrite(s *ir.FieldWrite) {
	ptr := fc.fieldPtr(s.Target, s.Field)
	ft := ir.AsTensor((&ir.FieldRead{Target: s.Target, Field: s.Field}).Type())
	if ft.IsScalar() {
		val := fc.compileExpr(s.Value)
		fc.storeComponent(ptr, val, ft.Component, s.Op)
		return
	}
	if s.Op == ir.AddCompound {
		panic(fc.unsupported("compound write to tensor field %s.%s", s.Target, s.Field))
	}
	n := fc.emitComputeLen(ft, ir.Dense())
	fc.emitTensorAssign(ptr, n, ft.Component, s.Value)
}

// resultRef returns the address a callee writes result v through.
func (fc *fnCompiler) resultRef(v ir.Var) llvm.Value {
	sym := fc.lookup(v)
	if t, ok := v.Type.(*ir.Tensor); ok && !t.IsScalar() {
		return fc.compileVarRead(v)
	}
	if !sym.Slot {
		fc.promoteToMemory(v, sym)
	}
	return sym.Val
}

// argRef returns the address of an argument passed by reference. Values
// that have no address are spilled to the stack.
func (fc *fnCompiler) argRef(e ir.Expr) llvm.Value {
	if t, ok := e.Type().(*ir.Tensor); ok && !t.IsScalar() {
		return fc.compileExpr(e)
	}
	if ref, ok := e.(*ir.VarExpr); ok {
		if sym := fc.lookup(ref.Var); sym.Slot {
			return sym.Val
		}
	}
	val := fc.compileExpr(e)
	slot := fc.createEntryBlockAlloca(val.Type(), "arg")
	fc.createStore(val, slot, e.Type())
	return slot
}

func (fc *fnCompiler) storeResult(v ir.Var, val llvm.Value) {
	if !ir.IsScalar(v.Type) {
		panic(fc.internal("result %s of a scalar call is not a scalar", v.Name))
	}
	fc.createStore(val, fc.resultRef(v), v.Type)
}
