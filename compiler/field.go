package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// fieldSlot returns the aggregate position of a field. Set aggregates start
// with their size and, for edge sets, the three index arrays.
func (c *Compiler) fieldSlot(target ir.Expr, field string) int {
	switch t := target.Type().(type) {
	case *ir.ElementType:
		idx, ok := t.FieldIndex(field)
		if !ok {
			panic(c.internal("element %s has no field %s", t.Name, field))
		}
		return idx
	case *ir.SetType:
		idx, ok := t.Element.FieldIndex(field)
		if !ok {
			panic(c.internal("set %s has no field %s", target, field))
		}
		if t.IsEdgeSet() {
			return firstEdgeFieldSlot + idx
		}
		return firstSetFieldSlot + idx
	}
	panic(c.internal("field read from %s, which is neither an element nor a set", target.Type()))
}

// fieldPtr returns the pointer to the data of a field.
func (fc *fnCompiler) fieldPtr(target ir.Expr, field string) llvm.Value {
	slot := fc.fieldSlot(target, field)
	agg := fc.compileExpr(target)
	return fc.b.CreateExtractValue(agg, slot, target.String()+"."+field)
}

// compileFieldRead returns the field's data pointer, or its value when the
// field of an element is a scalar.
func (fc *fnCompiler) compileFieldRead(e *ir.FieldRead) llvm.Value {
	ptr := fc.fieldPtr(e.Target, e.Field)
	if ir.IsScalar(e.Type()) {
		return fc.createLoad(ptr, e.Type(), e.Field)
	}
	return ptr
}

func (fc *fnCompiler) compileIndexRead(e *ir.IndexRead) llvm.Value {
	st, ok := e.EdgeSet.Type().(*ir.SetType)
	if !ok || !st.IsEdgeSet() {
		panic(fc.internal("index read %s from %s, which is not an edge set", e.Kind, e.EdgeSet))
	}
	set := fc.compileExpr(e.EdgeSet)
	return fc.b.CreateExtractValue(set, setEndpointsSlot+int(e.Kind), e.String())
}
