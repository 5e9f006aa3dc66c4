package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// emitIndexSetLen returns the number of indices of is as an i32.
func (fc *fnCompiler) emitIndexSetLen(is ir.IndexSet) llvm.Value {
	switch is.Kind {
	case ir.RangeIndex:
		return fc.constI32(is.Size)
	case ir.SetIndex:
		set := fc.compileExpr(is.Set)
		return fc.b.CreateExtractValue(set, setSizeSlot, is.Set.String()+".len")
	case ir.SingleIndex:
		panic(fc.internal("single index set %s has no length", is))
	case ir.DynamicIndex:
		panic(fc.unsupported("length of dynamic index sets"))
	}
	panic(fc.internal("unknown index set kind %d", is.Kind))
}

// emitDomainLen multiplies the lengths of the index sets of a dimension.
func (fc *fnCompiler) emitDomainLen(d ir.IndexDomain) llvm.Value {
	if len(d.Sets) == 0 {
		return fc.constI32(1)
	}
	n := fc.emitIndexSetLen(d.Sets[0])
	for _, is := range d.Sets[1:] {
		n = fc.b.CreateMul(n, fc.emitIndexSetLen(is), "dim.len")
	}
	return n
}

// emitDenseLen is the component count of a dense row-major tensor over dims.
func (fc *fnCompiler) emitDenseLen(dims []ir.IndexDomain) llvm.Value {
	if len(dims) == 0 {
		return fc.constI32(1)
	}
	n := fc.emitDomainLen(dims[0])
	for _, d := range dims[1:] {
		n = fc.b.CreateMul(n, fc.emitDomainLen(d), "len")
	}
	return n
}

// emitComputeLen returns the number of components a tensor of type t
// occupies under storage ts.
func (fc *fnCompiler) emitComputeLen(t *ir.Tensor, ts ir.TensorStorage) llvm.Value {
	if t.IsScalar() {
		return fc.constI32(1)
	}

	switch ts.Kind {
	case ir.DenseRowMajor:
		return fc.emitDenseLen(t.Dims)
	case ir.SystemReduced:
		// One block per stored neighbor: neighbors.start[|storage set|].
		storageSet := fc.compileExpr(ts.StorageSet)
		targetSet := fc.compileExpr(ts.TargetSet)
		size := fc.b.CreateExtractValue(storageSet, setSizeSlot, "size")
		start := fc.b.CreateExtractValue(targetSet, setNbrStartSlot, "neighbors.start")
		ptr := fc.elementPtr(start, size, ir.Int, "")
		n := fc.createLoad(ptr, ir.Scalar(ir.Int), "neighbors.len")
		if block := t.BlockType(); !block.IsScalar() {
			n = fc.b.CreateMul(n, fc.emitDenseLen(block.Dims), "len")
		}
		return n
	case ir.SystemDiagonal:
		n := fc.emitDomainLen(t.OuterDims()[0])
		if block := t.BlockType(); !block.IsScalar() {
			n = fc.b.CreateMul(n, fc.emitDenseLen(block.Dims), "len")
		}
		return n
	}
	panic(fc.internal("cannot compute the length of %s stored as %s", t, ts.Kind))
}

// storageOf returns the layout of a tensor variable.
func (c *Compiler) storageOf(v ir.Var) ir.TensorStorage {
	ts, ok := c.storage.Get(v)
	if !ok {
		panic(c.internal("no storage descriptor for %s", v.Name))
	}
	return ts
}

// emitVarLen is emitComputeLen for a tensor variable and its storage.
func (fc *fnCompiler) emitVarLen(v ir.Var) llvm.Value {
	t := v.Tensor()
	if t == nil {
		panic(fc.internal("%s is not a tensor", v.Name))
	}
	if t.IsScalar() {
		return fc.constI32(1)
	}
	return fc.emitComputeLen(t, fc.storageOf(v))
}

// emitByteSize converts a component count to an i64 byte count.
func (fc *fnCompiler) emitByteSize(n llvm.Value, comp ir.ScalarType) llvm.Value {
	wide := fc.b.CreateZExt(n, fc.Context.Int64Type(), "len.i64")
	return fc.b.CreateMul(wide, fc.constI64(comp.Bytes), "bytes")
}
