package compiler

import (
	"fmt"

	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// numEdgeIndexSlots is the number of index arrays an edge set aggregate
// carries after its size: endpoints, neighbor starts and neighbors.
const numEdgeIndexSlots = 3

const (
	setSizeSlot        = 0
	setEndpointsSlot   = 1
	setNbrStartSlot    = 2
	setNeighborsSlot   = 3
	firstSetFieldSlot  = 1
	firstEdgeFieldSlot = 1 + numEdgeIndexSlots
)

func (c *Compiler) ptrType() llvm.Type {
	return llvm.PointerType(c.Context.Int8Type(), 0)
}

func (c *Compiler) scalarType(s ir.ScalarType) llvm.Type {
	switch s.Kind {
	case ir.IntScalar:
		return c.Context.Int32Type()
	case ir.BoolScalar:
		return c.Context.Int1Type()
	case ir.FloatScalar:
		switch s.Bytes {
		case 4:
			return c.Context.FloatType()
		case 8:
			return c.Context.DoubleType()
		}
	}
	panic(fmt.Sprintf("unsupported scalar type: %v", s))
}

// llvmType maps an IR type to the type of its value. Tensors of order > 0
// are data pointers. Sets and elements are structs of pointers.
func (c *Compiler) llvmType(t ir.Type) llvm.Type {
	switch t := t.(type) {
	case *ir.Tensor:
		if t.IsScalar() {
			return c.scalarType(t.Component)
		}
		return c.ptrType()
	case *ir.ElementType:
		fields := make([]llvm.Type, len(t.Fields))
		for i := range fields {
			fields[i] = c.ptrType()
		}
		return c.Context.StructType(fields, false)
	case *ir.SetType:
		elems := []llvm.Type{c.Context.Int32Type()}
		if t.IsEdgeSet() {
			for range numEdgeIndexSlots {
				elems = append(elems, c.ptrType())
			}
		}
		for range t.Element.Fields {
			elems = append(elems, c.ptrType())
		}
		return c.Context.StructType(elems, false)
	default:
		panic(fmt.Sprintf("unsupported IR type %T", t))
	}
}

// paramType is the LLVM type of a parameter bound to v. Everything is
// passed by reference except scalar arguments of internal functions.
func (c *Compiler) paramType(v ir.Var, byValue bool) llvm.Type {
	if byValue && ir.IsScalar(v.Type) {
		return c.llvmType(v.Type)
	}
	return c.ptrType()
}

// funcType returns the signature of f. Entry functions take every argument
// by reference so a host can bind them to slots.
func (c *Compiler) funcType(f *ir.Func, entry bool) llvm.Type {
	params := make([]llvm.Type, 0, len(f.Args)+len(f.Results))
	for _, a := range f.Args {
		params = append(params, c.paramType(a, !entry))
	}
	for _, r := range f.Results {
		params = append(params, c.paramType(r, false))
	}
	return llvm.FunctionType(c.Context.VoidType(), params, false)
}

// isSlotParam reports whether a parameter holds the address of the value
// rather than the value. Tensor parameters are data pointers.
func isSlotParam(t ir.Type, byValue bool) bool {
	if byValue && ir.IsScalar(t) {
		return false
	}
	if tt, ok := t.(*ir.Tensor); ok && !tt.IsScalar() {
		return false
	}
	return true
}

func (c *Compiler) constI32(v int) llvm.Value {
	return llvm.ConstInt(c.Context.Int32Type(), uint64(int64(v)), true)
}

func (c *Compiler) constI64(v int) llvm.Value {
	return llvm.ConstInt(c.Context.Int64Type(), uint64(int64(v)), true)
}

func widthSuffix(s ir.ScalarType) string {
	if s.Bytes == 4 {
		return "_f32"
	}
	return "_f64"
}

func setAlignment(inst llvm.Value, t ir.Type) {
	switch t := t.(type) {
	case *ir.Tensor:
		if t.IsScalar() {
			inst.SetAlignment(t.Component.Bytes)
			return
		}
		inst.SetAlignment(8)
	default:
		inst.SetAlignment(8)
	}
}
