package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// Symbol is the generated storage of an IR variable.
//
// When Slot is false, Val is the value itself: an SSA scalar, a loop
// induction variable, or the data pointer of a tensor. When Slot is true,
// Val is the address of the value: an alloca, a pointer parameter, or a
// module global. Tensor buffers declared in a function body are module
// globals holding the data pointer, so their symbols are slots too.
type Symbol struct {
	Val  llvm.Value
	Type ir.Type
	Slot bool
}

type symbolTable = []Scope[ir.VarID, *Symbol]

func newSymbolTable() symbolTable {
	return symbolTable{NewScope[ir.VarID, *Symbol](ModuleScope)}
}

func (c *Compiler) lookup(v ir.Var) *Symbol {
	sym, ok := Get(c.Scopes, v.ID)
	if !ok {
		panic(c.internal("symbol %s not found", v.Name))
	}
	return sym
}

func (c *Compiler) bind(v ir.Var, sym *Symbol) {
	Put(c.Scopes, v.ID, sym)
}
