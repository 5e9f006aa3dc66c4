package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// intrinsicCall is one use of an intrinsic. out is empty when the call is
// used as an expression.
type intrinsicCall struct {
	id      ir.IntrinsicID
	actuals []ir.Expr
	result  ir.Type
	out     []ir.Var
}

type intrinsicStrategy struct {
	arity int // -1 for variadic
	// needsOut marks intrinsics that write through a result slot.
	needsOut bool
	lower    func(fc *fnCompiler, call *intrinsicCall) llvm.Value
}

var intrinsicStrategies map[ir.IntrinsicID]intrinsicStrategy

func init() {
	intrinsicStrategies = map[ir.IntrinsicID]intrinsicStrategy{
		ir.Sin:   {arity: 1, lower: (*fnCompiler).lowerBuiltin},
		ir.Cos:   {arity: 1, lower: (*fnCompiler).lowerBuiltin},
		ir.Sqrt:  {arity: 1, lower: (*fnCompiler).lowerBuiltin},
		ir.Log:   {arity: 1, lower: (*fnCompiler).lowerBuiltin},
		ir.Exp:   {arity: 1, lower: (*fnCompiler).lowerBuiltin},
		ir.Pow:   {arity: 2, lower: (*fnCompiler).lowerBuiltin},
		ir.Atan2: {arity: 2, lower: (*fnCompiler).lowerLibm},
		ir.Tan:   {arity: 1, lower: (*fnCompiler).lowerLibm},
		ir.Asin:  {arity: 1, lower: (*fnCompiler).lowerLibm},
		ir.Acos:  {arity: 1, lower: (*fnCompiler).lowerLibm},
		ir.Mod:   {arity: 2, lower: (*fnCompiler).lowerMod},
		ir.Det:   {arity: 1, lower: (*fnCompiler).lowerDet},
		ir.Inv:   {arity: 1, needsOut: true, lower: (*fnCompiler).lowerInv},
		ir.Norm:  {arity: 1, lower: (*fnCompiler).lowerNorm},
		ir.Dot:   {arity: 2, lower: (*fnCompiler).lowerDot},
		ir.Loc:   {arity: -1, lower: (*fnCompiler).lowerLoc},
		ir.Solve: {arity: 2, needsOut: true, lower: (*fnCompiler).lowerSolve},
	}
}

func (fc *fnCompiler) compileIntrinsic(call *intrinsicCall) llvm.Value {
	s, ok := intrinsicStrategies[call.id]
	if !ok {
		panic(fc.internal("intrinsic %s not found", call.id))
	}
	if s.arity >= 0 && len(call.actuals) != s.arity {
		panic(fc.internal("%s takes %d arguments, got %d", call.id, s.arity, len(call.actuals)))
	}
	if s.needsOut && len(call.out) != 1 {
		if len(call.out) == 0 {
			panic(fc.unsupported("%s outside a call statement", call.id))
		}
		panic(fc.internal("%s has %d results", call.id, len(call.out)))
	}
	return s.lower(fc, call)
}

// floatComp returns the floating point type an intrinsic computes in: the
// result's component if it is a float scalar, otherwise that of the first
// operand.
func (call *intrinsicCall) floatComp() ir.ScalarType {
	if t := ir.AsTensor(call.result); t != nil && t.IsScalar() && t.Component.IsFloat() {
		return t.Component
	}
	for _, o := range call.out {
		if t := o.Tensor(); t != nil && t.Component.IsFloat() {
			return t.Component
		}
	}
	if len(call.actuals) > 0 {
		if t := ir.AsTensor(call.actuals[0].Type()); t != nil && t.Component.IsFloat() {
			return t.Component
		}
	}
	return ir.Float
}

func (fc *fnCompiler) compileActuals(actuals []ir.Expr) []llvm.Value {
	args := make([]llvm.Value, len(actuals))
	for i, a := range actuals {
		args[i] = fc.compileExpr(a)
	}
	return args
}

func (fc *fnCompiler) lowerBuiltin(call *intrinsicCall) llvm.Value {
	t := fc.scalarType(call.floatComp())
	return fc.emitLLVMIntrinsic(call.id.String(), t, fc.compileActuals(call.actuals))
}

func (fc *fnCompiler) lowerLibm(call *intrinsicCall) llvm.Value {
	comp := call.floatComp()
	name := call.id.String() + widthSuffix(comp)
	return fc.emitCall(name, fc.compileActuals(call.actuals), fc.scalarType(comp))
}

func (fc *fnCompiler) lowerMod(call *intrinsicCall) llvm.Value {
	a := fc.compileExpr(call.actuals[0])
	b := fc.compileExpr(call.actuals[1])
	return fc.b.CreateSRem(a, b, "mod")
}

func (fc *fnCompiler) lowerDet(call *intrinsicCall) llvm.Value {
	comp := call.floatComp()
	return fc.emitCall(DET3+widthSuffix(comp), fc.compileActuals(call.actuals), fc.scalarType(comp))
}

func (fc *fnCompiler) lowerInv(call *intrinsicCall) llvm.Value {
	comp := call.floatComp()
	args := append(fc.compileActuals(call.actuals), fc.resultRef(call.out[0]))
	return fc.emitCall(INV3+widthSuffix(comp), args, fc.Context.VoidType())
}

// lowerNorm expands the norm of a 3-vector inline and calls the runtime for
// every other vector.
func (fc *fnCompiler) lowerNorm(call *intrinsicCall) llvm.Value {
	t := fc.tensorOf(call.actuals[0])
	comp := t.Component
	vec := fc.compileExpr(call.actuals[0])

	if n, ok := t.StaticSize(); ok && t.Order() == 1 && n == 3 {
		scalar := ir.Scalar(comp)
		var sum llvm.Value
		for i := range 3 {
			x := fc.createLoad(fc.elementPtr(vec, fc.constI32(i), comp, ""), scalar, "x")
			sq := fc.b.CreateFMul(x, x, "sq")
			if i == 0 {
				sum = sq
				continue
			}
			sum = fc.b.CreateFAdd(sum, sq, "sum")
		}
		return fc.emitLLVMIntrinsic("sqrt", fc.scalarType(comp), []llvm.Value{sum})
	}

	n := fc.emitDomainLen(t.Dims[0])
	return fc.emitCall(NORM+widthSuffix(comp), []llvm.Value{vec, n}, fc.scalarType(comp))
}

func (fc *fnCompiler) lowerDot(call *intrinsicCall) llvm.Value {
	a := fc.tensorOf(call.actuals[0])
	b := fc.tensorOf(call.actuals[1])
	if a.Order() == 0 || b.Order() == 0 || !a.Dims[0].Equal(b.Dims[0]) {
		panic(fc.semantic("dimension mismatch in dot product of %s and %s", a, b))
	}
	args := fc.compileActuals(call.actuals)
	args = append(args, fc.emitDomainLen(a.Dims[0]))
	return fc.emitCall(DOT+widthSuffix(a.Component), args, fc.scalarType(a.Component))
}

func (fc *fnCompiler) lowerLoc(call *intrinsicCall) llvm.Value {
	return fc.emitCall(LOC, fc.compileActuals(call.actuals), fc.Context.Int32Type())
}

// lowerSolve calls the sparse solver with the adjacency arrays and shape of
// the system matrix appended, or the dense 3x3 solver. The runtime argument
// order is
//
//	cMatSolve_<w>(A, b, x, row_start, col_idx, rows, cols, nnz, block_rows, block_cols)
//	cMatSolve3_<w>(A, b, x)
//
// where x is the result slot and rows and cols count components, not blocks.
func (fc *fnCompiler) lowerSolve(call *intrinsicCall) llvm.Value {
	ref, ok := call.actuals[0].(*ir.VarExpr)
	if !ok {
		panic(fc.unsupported("solve with a system matrix that is not a variable: %s", call.actuals[0]))
	}
	t := fc.tensorOf(ref)
	comp := t.Component
	args := fc.compileActuals(call.actuals)
	args = append(args, fc.resultRef(call.out[0]))

	ts := fc.storageOf(ref.Var)
	switch ts.Kind {
	case ir.DenseRowMajor:
		return fc.emitCall(MAT_SOLVE3+widthSuffix(comp), args, fc.Context.VoidType())
	case ir.SystemReduced:
	default:
		panic(fc.unsupported("solve with a system matrix stored as %s", ts.Kind))
	}
	if t.Order() != 2 {
		panic(fc.internal("solve with system matrix %s of order %d", ref, t.Order()))
	}

	targetSet := fc.compileExpr(ts.TargetSet)
	storageSet := fc.compileExpr(ts.StorageSet)
	size := fc.b.CreateExtractValue(storageSet, setSizeSlot, ts.StorageSet.String()+".len")
	rowStart := fc.b.CreateExtractValue(targetSet, setNbrStartSlot, "row_start")
	colIdx := fc.b.CreateExtractValue(targetSet, setNeighborsSlot, "col_idx")
	nnz := fc.createLoad(fc.elementPtr(rowStart, size, ir.Int, "neighbors.len.ptr"), ir.Scalar(ir.Int), "neighbors.len")

	rows := fc.emitDomainLen(t.Dims[0])
	cols := fc.emitDomainLen(t.Dims[1])

	blockRows, blockCols := fc.constI32(1), fc.constI32(1)
	if block := t.BlockType(); !block.IsScalar() {
		if block.Order() != 2 {
			panic(fc.unsupported("solve with %s blocks", block))
		}
		blockRows = fc.emitDomainLen(block.Dims[0])
		blockCols = fc.emitDomainLen(block.Dims[1])
	}

	args = append(args, rowStart, colIdx, rows, cols, nnz, blockRows, blockCols)
	return fc.emitCall(MAT_SOLVE+widthSuffix(comp), args, fc.Context.VoidType())
}

// compileCallExpr lowers a call used as a value. User functions return
// through result slots and are only called as statements.
func (fc *fnCompiler) compileCallExpr(e *ir.Call) llvm.Value {
	switch e.Callee.Kind {
	case ir.Intrinsic:
		return fc.compileIntrinsic(&intrinsicCall{id: e.Callee.Intrinsic, actuals: e.Actuals, result: e.Result})
	case ir.External:
		ret := fc.Context.VoidType()
		if e.Result != nil {
			ret = fc.llvmType(e.Result)
		}
		return fc.emitCall(e.Callee.Name, fc.compileActuals(e.Actuals), ret)
	}
	panic(fc.unsupported("call to %s used as a value", e.Callee.Name))
}

func (fc *fnCompiler) compileCallStmt(s *ir.CallStmt) {
	callee := s.Callee
	switch callee.Kind {
	case ir.Intrinsic:
		var result ir.Type
		if len(s.Results) == 1 {
			result = s.Results[0].Type
		}
		val := fc.compileIntrinsic(&intrinsicCall{id: callee.Intrinsic, actuals: s.Actuals, result: result, out: s.Results})
		if val.Type().TypeKind() == llvm.VoidTypeKind {
			return
		}
		if len(s.Results) != 1 {
			panic(fc.internal("%s returns one value, got %d results", callee.Name, len(s.Results)))
		}
		fc.storeResult(s.Results[0], val)
	case ir.External:
		args := fc.compileActuals(s.Actuals)
		for _, r := range s.Results {
			args = append(args, fc.resultRef(r))
		}
		fc.emitCall(callee.Name, args, fc.Context.VoidType())
	default:
		fc.callInternal(s)
	}
}

// callInternal calls a function compiled into this module with its actuals
// followed by its result slots.
func (fc *fnCompiler) callInternal(s *ir.CallStmt) {
	callee := s.Callee
	fn := fc.Module.NamedFunction(callee.Name)
	if fn.IsNil() {
		panic(fc.internal("function %s not found in module", callee.Name))
	}
	if len(s.Actuals) != len(callee.Args) || len(s.Results) != len(callee.Results) {
		panic(fc.internal("%s called with %d arguments and %d results, expects %d and %d",
			callee.Name, len(s.Actuals), len(s.Results), len(callee.Args), len(callee.Results)))
	}

	entry := callee == fc.entry
	args := make([]llvm.Value, 0, len(s.Actuals)+len(s.Results))
	for _, a := range s.Actuals {
		if !entry && ir.IsScalar(a.Type()) {
			args = append(args, fc.compileExpr(a))
			continue
		}
		args = append(args, fc.argRef(a))
	}
	for _, r := range s.Results {
		args = append(args, fc.resultRef(r))
	}
	fc.b.CreateCall(fc.funcType(callee, entry), fn, args, "")
}
