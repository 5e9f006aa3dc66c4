package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// buffer is a module-scope tensor whose data pointer lives in Global.
type buffer struct {
	Var    ir.Var
	Global llvm.Value
}

// declareBuffer returns the global holding the data pointer of tensor v,
// creating it on first declaration.
func (fc *fnCompiler) declareBuffer(v ir.Var) llvm.Value {
	if b, ok := fc.buffers.Load(v.ID); ok {
		return b.Global
	}
	g := llvm.AddGlobal(fc.Module, fc.ptrType(), v.Name)
	g.SetInitializer(llvm.ConstNull(fc.ptrType()))
	g.SetLinkage(llvm.ExternalLinkage)
	g.SetAlignment(8)
	fc.buffers.Store(v.ID, &buffer{Var: v, Global: g})
	return g
}

// lifecycleFunc starts a function with the signature of f so that buffer
// sizes can depend on its arguments.
func (c *Compiler) lifecycleFunc(f *ir.Func, name string) *fnCompiler {
	c.fnName = name
	fn := llvm.AddFunction(c.Module, name, c.funcType(f, true))
	fc := c.newFnCompiler(fn)
	fc.bindParams(f, true)
	for _, k := range f.Env.Constants {
		c.bind(k.Var, &Symbol{Val: fc.compileExpr(k.Value), Type: k.Var.Type})
	}
	return fc
}

// emitBufferInit synthesizes <f>.init, which mallocs every registered
// buffer in registration order.
func (c *Compiler) emitBufferInit(f *ir.Func) llvm.Value {
	PushScope(&c.Scopes, FuncScope)
	defer PopScope(&c.Scopes)

	fc := c.lifecycleFunc(f, f.Name+".init")
	mallocType, malloc := fc.GetCFunc(MALLOC)
	for b := range c.buffers.Values() {
		t := b.Var.Tensor()
		n := fc.emitVarLen(b.Var)
		bytes := fc.emitByteSize(n, t.Component)
		mem := fc.b.CreateCall(mallocType, malloc, []llvm.Value{bytes}, b.Var.Name+".mem")
		fc.createStore(mem, b.Global, b.Var.Type)
	}
	fc.b.CreateRetVoid()
	return fc.fn
}

// emitBufferDeinit synthesizes <f>.deinit, which frees every registered
// buffer in registration order.
func (c *Compiler) emitBufferDeinit(f *ir.Func) llvm.Value {
	PushScope(&c.Scopes, FuncScope)
	defer PopScope(&c.Scopes)

	fc := c.lifecycleFunc(f, f.Name+".deinit")
	freeType, free := fc.GetCFunc(FREE)
	for b := range c.buffers.Values() {
		mem := fc.createLoad(b.Global, b.Var.Type, b.Var.Name)
		fc.b.CreateCall(freeType, free, []llvm.Value{mem}, "")
	}
	fc.b.CreateRetVoid()
	return fc.fn
}
