package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// emitParamSlots creates one pointer global per argument and result of f.
// A host stores the address of each value in its slot before calling a
// trampoline.
func (c *Compiler) emitParamSlots(f *ir.Func) []Param {
	params := make([]Param, 0, len(f.Args)+len(f.Results))
	add := func(v ir.Var, result bool) {
		g := llvm.AddGlobal(c.Module, c.ptrType(), f.Name+".slot."+v.Name)
		g.SetInitializer(llvm.ConstNull(c.ptrType()))
		g.SetLinkage(llvm.ExternalLinkage)
		g.SetAlignment(8)
		params = append(params, Param{Var: v, Slot: g.Name(), Result: result})
	}
	for _, a := range f.Args {
		add(a, false)
	}
	for _, r := range f.Results {
		add(r, true)
	}
	return params
}

// emitTrampoline creates <target>.call, a function without parameters that
// loads every slot and calls target with the signature of f.
func (c *Compiler) emitTrampoline(f *ir.Func, target string, params []Param) llvm.Value {
	fn := c.Module.NamedFunction(target)
	if fn.IsNil() {
		panic(c.internal("function %s not found in module", target))
	}
	c.fnName = target + ".call"
	tramp := llvm.AddFunction(c.Module, c.fnName, llvm.FunctionType(c.Context.VoidType(), nil, false))
	fc := c.newFnCompiler(tramp)

	args := make([]llvm.Value, len(params))
	for i, p := range params {
		slot := c.Module.NamedGlobal(p.Slot)
		load := fc.b.CreateLoad(c.ptrType(), slot, p.Var.Name)
		load.SetAlignment(8)
		args[i] = load
	}
	fc.b.CreateCall(c.funcType(f, true), fn, args, "")
	fc.b.CreateRetVoid()
	return tramp
}
