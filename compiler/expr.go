package compiler

import (
	"fmt"

	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// compileExpr lowers e to a value. Scalars are returned by value, tensors
// of order > 0 as data pointers, and sets and elements as aggregates.
func (fc *fnCompiler) compileExpr(e ir.Expr) llvm.Value {
	switch e := e.(type) {
	case *ir.Literal:
		return fc.compileLiteral(e)
	case *ir.VarExpr:
		return fc.compileVarRead(e.Var)
	case *ir.Load:
		return fc.compileLoad(e)
	case *ir.FieldRead:
		return fc.compileFieldRead(e)
	case *ir.Call:
		return fc.compileCallExpr(e)
	case *ir.Length:
		return fc.emitIndexSetLen(e.IndexSet)
	case *ir.IndexRead:
		return fc.compileIndexRead(e)
	case *ir.Unary:
		return fc.compileUnary(e)
	case *ir.Arith:
		return fc.compileArith(e)
	case *ir.Compare:
		return fc.compileCompare(e)
	case *ir.Logical:
		return fc.compileLogical(e)
	default:
		panic(fmt.Sprintf("unexpected expression %T", e))
	}
}

func (fc *fnCompiler) compileLiteral(e *ir.Literal) llvm.Value {
	if e.T.IsScalar() {
		return fc.constScalar(e.T.Component, e.Value)
	}

	elemType := fc.scalarType(e.T.Component)
	var elems []llvm.Value
	switch data := e.Value.(type) {
	case []float64:
		for _, v := range data {
			elems = append(elems, fc.constScalar(e.T.Component, v))
		}
	case []int32:
		for _, v := range data {
			elems = append(elems, fc.constScalar(e.T.Component, v))
		}
	default:
		panic(fc.internal("unsupported tensor literal data %T", e.Value))
	}
	if n, ok := e.T.StaticSize(); ok && n != len(elems) {
		panic(fc.internal("tensor literal of type %s has %d components", e.T, len(elems)))
	}

	arrType := llvm.ArrayType(elemType, len(elems))
	name := fmt.Sprintf("tensor_lit_%d", fc.literalCount)
	fc.literalCount++
	g := llvm.AddGlobal(fc.Module, arrType, name)
	g.SetInitializer(llvm.ConstArray(elemType, elems))
	g.SetGlobalConstant(true)
	g.SetLinkage(llvm.PrivateLinkage)
	g.SetAlignment(e.T.Component.Bytes)
	return g
}

func (fc *fnCompiler) constScalar(s ir.ScalarType, v any) llvm.Value {
	t := fc.scalarType(s)
	switch v := v.(type) {
	case int32:
		if s.IsFloat() {
			return llvm.ConstFloat(t, float64(v))
		}
		return llvm.ConstInt(t, uint64(int64(v)), true)
	case float64:
		if !s.IsFloat() {
			panic(fc.internal("float literal %v of type %s", v, s))
		}
		return llvm.ConstFloat(t, v)
	case bool:
		if v {
			return llvm.ConstInt(t, 1, false)
		}
		return llvm.ConstInt(t, 0, false)
	}
	panic(fc.internal("unsupported literal %v", v))
}

func (fc *fnCompiler) compileVarRead(v ir.Var) llvm.Value {
	sym := fc.lookup(v)
	if sym.Slot {
		return fc.createLoad(sym.Val, sym.Type, v.Name)
	}
	return sym.Val
}

// tensorOf returns the tensor type of e or fails.
func (fc *fnCompiler) tensorOf(e ir.Expr) *ir.Tensor {
	t := ir.AsTensor(e.Type())
	if t == nil {
		panic(fc.internal("%s is not a tensor", e))
	}
	return t
}

func (fc *fnCompiler) compileLoad(e *ir.Load) llvm.Value {
	t := fc.tensorOf(e.Buffer)
	buf := fc.compileExpr(e.Buffer)
	idx := fc.compileExpr(e.Index)
	ptr := fc.elementPtr(buf, idx, t.Component, "")
	return fc.createLoad(ptr, ir.Scalar(t.Component), "load")
}

func (fc *fnCompiler) compileUnary(e *ir.Unary) llvm.Value {
	a := fc.compileExpr(e.A)
	if e.Op == ir.Not {
		return fc.b.CreateNot(a, "not")
	}
	t := fc.scalarOperand(e.A, "negation")
	if t.IsFloat() {
		return fc.b.CreateFNeg(a, "neg")
	}
	return fc.b.CreateNeg(a, "neg")
}

// scalarOperand returns the component type of a scalar operand. Whole
// tensor arithmetic is lowered before code generation.
func (fc *fnCompiler) scalarOperand(e ir.Expr, op string) ir.ScalarType {
	t := ir.AsTensor(e.Type())
	if t == nil || !t.IsScalar() {
		panic(fc.unsupported("%s of %s values", op, e.Type()))
	}
	return t.Component
}

func (fc *fnCompiler) compileArith(e *ir.Arith) llvm.Value {
	comp := fc.scalarOperand(e.A, "arithmetic")
	a := fc.compileExpr(e.A)
	b := fc.compileExpr(e.B)
	return fc.emitArith(e.Op, a, b, comp)
}

func (fc *fnCompiler) emitArith(op ir.ArithOp, a, b llvm.Value, comp ir.ScalarType) llvm.Value {
	float := comp.IsFloat()
	switch op {
	case ir.Add:
		if float {
			return fc.b.CreateFAdd(a, b, "add")
		}
		return fc.b.CreateAdd(a, b, "add")
	case ir.Sub:
		if float {
			return fc.b.CreateFSub(a, b, "sub")
		}
		return fc.b.CreateSub(a, b, "sub")
	case ir.Mul:
		if float {
			return fc.b.CreateFMul(a, b, "mul")
		}
		return fc.b.CreateMul(a, b, "mul")
	case ir.Div:
		if float {
			return fc.b.CreateFDiv(a, b, "div")
		}
		panic(fc.unsupported("integer division"))
	}
	panic(fmt.Sprintf("unknown arithmetic operator %d", op))
}

var floatPredicates = map[ir.CompareOp]llvm.FloatPredicate{
	ir.Eq: llvm.FloatOEQ,
	ir.Ne: llvm.FloatONE,
	ir.Gt: llvm.FloatOGT,
	ir.Lt: llvm.FloatOLT,
	ir.Ge: llvm.FloatOGE,
	ir.Le: llvm.FloatOLE,
}

var intPredicates = map[ir.CompareOp]llvm.IntPredicate{
	ir.Eq: llvm.IntEQ,
	ir.Ne: llvm.IntNE,
	ir.Gt: llvm.IntSGT,
	ir.Lt: llvm.IntSLT,
	ir.Ge: llvm.IntSGE,
	ir.Le: llvm.IntSLE,
}

func (fc *fnCompiler) compileCompare(e *ir.Compare) llvm.Value {
	comp := fc.scalarOperand(e.A, "comparison")
	a := fc.compileExpr(e.A)
	b := fc.compileExpr(e.B)
	if comp.IsFloat() {
		return fc.b.CreateFCmp(floatPredicates[e.Op], a, b, "cmp")
	}
	return fc.b.CreateICmp(intPredicates[e.Op], a, b, "cmp")
}

func (fc *fnCompiler) compileLogical(e *ir.Logical) llvm.Value {
	a := fc.compileExpr(e.A)
	b := fc.compileExpr(e.B)
	switch e.Op {
	case ir.And:
		return fc.b.CreateAnd(a, b, "and")
	case ir.Or:
		return fc.b.CreateOr(a, b, "or")
	case ir.Xor:
		return fc.b.CreateXor(a, b, "xor")
	}
	panic(fmt.Sprintf("unknown logical operator %d", e.Op))
}
