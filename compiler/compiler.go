package compiler

import (
	"fmt"

	"github.com/gx-org/gx/base/ordered"
	"github.com/pkg/errors"
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// Optimizer runs a pass pipeline over a verified module.
type Optimizer interface {
	Optimize(m llvm.Module) error
}

type Options struct {
	// Optimizer is applied to the module after verification. Nil skips it.
	Optimizer Optimizer
}

// Param binds one argument or result of the entry function to the module
// global a host writes its pointer into.
type Param struct {
	Var    ir.Var
	Slot   string
	Result bool
}

// Artifact is a compiled, verified module plus what a host needs to run it.
type Artifact struct {
	Module llvm.Module
	Name   string

	Entry  string
	Init   string
	Deinit string

	// Zero-argument trampolines that load Params and call the functions above.
	EntryCall  string
	InitCall   string
	DeinitCall string

	Params  []Param
	Globals []ir.Var
	Buffers []Buffer
}

// Buffer is a module-scope tensor allocated by init and freed by deinit.
type Buffer struct {
	Var    ir.Var
	Global string
}

type Compiler struct {
	Scopes  symbolTable
	Context llvm.Context
	Module  llvm.Module
	builder llvm.Builder
	opts    Options

	storage       *ir.Storage
	buffers       *ordered.Map[ir.VarID, *buffer]
	entry         *ir.Func
	fnName        string // function being lowered, for error messages
	formatCounter int
	literalCount  int
}

func NewCompiler(ctx llvm.Context, opts Options) *Compiler {
	return &Compiler{
		Scopes:  newSymbolTable(),
		Context: ctx,
		builder: ctx.NewBuilder(),
		opts:    opts,
	}
}

// Dispose releases the builder. Modules returned in artifacts are owned by
// the caller.
func (c *Compiler) Dispose() {
	c.builder.Dispose()
}

func (c *Compiler) reset(name string) {
	c.Module = c.Context.NewModule(name)
	c.Scopes = newSymbolTable()
	c.storage = ir.NewStorage()
	c.buffers = ordered.NewMap[ir.VarID, *buffer]()
	c.fnName = ""
	c.formatCounter = 0
	c.literalCount = 0
}

// Compile lowers f, every function it calls, and its module-scope globals
// into a fresh module together with f.init and f.deinit. The module is
// verified and, if configured, optimized.
func (c *Compiler) Compile(f *ir.Func, globals []ir.Var) (art *Artifact, err error) {
	c.reset(f.Name)
	c.entry = f
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ce, ok := r.(*CompileError)
		if !ok {
			panic(r)
		}
		c.Module.Dispose()
		c.Module = llvm.Module{}
		art, err = nil, ce
	}()

	if f.Kind != ir.Internal || f.Body == nil {
		panic(c.internal("%s has no body to compile", f.Name))
	}

	for _, g := range globals {
		c.declareGlobal(g)
	}

	tree := ir.CallTree(f)
	for _, fn := range tree {
		if fn.Kind == ir.Internal && IsReservedSymbol(fn.Name) {
			panic(c.semantic("function name %q is reserved", fn.Name))
		}
	}
	for _, fn := range tree {
		if fn.Kind != ir.Internal || fn.Body == nil {
			continue
		}
		c.compileFunc(fn)
	}
	c.fnName = ""

	art = &Artifact{
		Module:  c.Module,
		Name:    f.Name,
		Entry:   f.Name,
		Globals: globals,
	}
	art.Init = c.emitBufferInit(f).Name()
	art.Deinit = c.emitBufferDeinit(f).Name()
	art.Params = c.emitParamSlots(f)
	art.EntryCall = c.emitTrampoline(f, art.Entry, art.Params).Name()
	art.InitCall = c.emitTrampoline(f, art.Init, art.Params).Name()
	art.DeinitCall = c.emitTrampoline(f, art.Deinit, art.Params).Name()
	for b := range c.buffers.Values() {
		art.Buffers = append(art.Buffers, Buffer{Var: b.Var, Global: b.Global.Name()})
	}

	if err := c.verify(); err != nil {
		panic(err)
	}
	if c.opts.Optimizer != nil {
		if err := c.opts.Optimizer.Optimize(c.Module); err != nil {
			c.Module.Dispose()
			c.Module = llvm.Module{}
			return nil, errors.Wrapf(err, "optimize %s", f.Name)
		}
	}
	return art, nil
}

func (c *Compiler) declareGlobal(v ir.Var) {
	t := c.llvmType(v.Type)
	g := llvm.AddGlobal(c.Module, t, v.Name)
	g.SetInitializer(llvm.ConstNull(t))
	g.SetLinkage(llvm.ExternalLinkage)
	g.SetAlignment(8)
	c.bind(v, &Symbol{Val: g, Type: v.Type, Slot: true})
}

// compileFunc lowers one internal function in a fresh function scope.
func (c *Compiler) compileFunc(f *ir.Func) llvm.Value {
	c.fnName = f.Name
	c.storage.Merge(f.Storage)

	entry := f == c.entry
	fn := llvm.AddFunction(c.Module, f.Name, c.funcType(f, entry))
	if !entry {
		fn.SetLinkage(llvm.InternalLinkage)
	}

	PushScope(&c.Scopes, FuncScope)
	defer PopScope(&c.Scopes)

	fc := c.newFnCompiler(fn)
	fc.bindParams(f, entry)
	for _, k := range f.Env.Constants {
		c.bind(k.Var, &Symbol{Val: fc.compileExpr(k.Value), Type: k.Var.Type})
	}
	fc.compileStmt(ir.HoistVarDecls(f.Body))
	fc.b.CreateRetVoid()
	return fn
}

// fnCompiler lowers the body of one LLVM function. It owns the insertion
// cursor for that body and is passed, as the receiver, through every
// lowering call.
type fnCompiler struct {
	*Compiler
	b  llvm.Builder
	fn llvm.Value
}

// newFnCompiler appends an entry block to fn and positions the cursor there.
func (c *Compiler) newFnCompiler(fn llvm.Value) *fnCompiler {
	entry := c.Context.AddBasicBlock(fn, "entry")
	c.builder.SetInsertPointAtEnd(entry)
	return &fnCompiler{Compiler: c, b: c.builder, fn: fn}
}

func (fc *fnCompiler) bindParams(f *ir.Func, entry bool) {
	i := 0
	for _, a := range f.Args {
		p := fc.fn.Param(i)
		p.SetName(a.Name)
		byValue := !entry
		fc.bind(a, &Symbol{Val: p, Type: a.Type, Slot: isSlotParam(a.Type, byValue)})
		i++
	}
	for _, r := range f.Results {
		p := fc.fn.Param(i)
		p.SetName(r.Name)
		fc.bind(r, &Symbol{Val: p, Type: r.Type, Slot: isSlotParam(r.Type, false)})
		i++
	}
}

func (fc *fnCompiler) createEntryBlockAlloca(ty llvm.Type, name string) llvm.Value {
	current := fc.b.GetInsertBlock()
	entry := fc.fn.EntryBasicBlock()
	first := entry.FirstInstruction()

	if first.IsNil() {
		fc.b.SetInsertPointAtEnd(entry)
	} else {
		fc.b.SetInsertPointBefore(first)
	}

	alloca := fc.b.CreateAlloca(ty, name)
	fc.b.SetInsertPointAtEnd(current)
	return alloca
}

// promoteToMemory gives a by-value scalar parameter a stack slot so it can
// be assigned. Other non-slot symbols are read-only.
func (fc *fnCompiler) promoteToMemory(v ir.Var, sym *Symbol) {
	if sym.Val.IsAArgument().IsNil() {
		panic(fc.internal("cannot assign to %s", v.Name))
	}
	current := fc.b.GetInsertBlock()
	entry := fc.fn.EntryBasicBlock()
	first := entry.FirstInstruction()
	if first.IsNil() {
		fc.b.SetInsertPointAtEnd(entry)
	} else {
		fc.b.SetInsertPointBefore(first)
	}
	slot := fc.b.CreateAlloca(fc.llvmType(sym.Type), v.Name+".mem")
	fc.createStore(sym.Val, slot, sym.Type)
	fc.b.SetInsertPointAtEnd(current)

	// The symbol is shared with every scope that sees it.
	sym.Val = slot
	sym.Slot = true
}

func (fc *fnCompiler) createStore(val llvm.Value, ptr llvm.Value, t ir.Type) llvm.Value {
	storeInst := fc.b.CreateStore(val, ptr)
	setAlignment(storeInst, t)
	return storeInst
}

func (fc *fnCompiler) createLoad(ptr llvm.Value, t ir.Type, name string) llvm.Value {
	loadInst := fc.b.CreateLoad(fc.llvmType(t), ptr, name)
	setAlignment(loadInst, t)
	return loadInst
}

// elementPtr returns the address of buf[idx] for components of type comp.
func (fc *fnCompiler) elementPtr(buf, idx llvm.Value, comp ir.ScalarType, name string) llvm.Value {
	return fc.b.CreateInBoundsGEP(fc.scalarType(comp), buf, []llvm.Value{idx}, name)
}

func (c *Compiler) createFormatStringGlobal(formatted string) llvm.Value {
	formatConst := c.Context.ConstString(formatted, true)
	globalName := fmt.Sprintf("str_fmt_%d", c.formatCounter)
	c.formatCounter++

	arrayType := llvm.ArrayType(c.Context.Int8Type(), len(formatted)+1)
	formatGlobal := llvm.AddGlobal(c.Module, arrayType, globalName)
	formatGlobal.SetInitializer(formatConst)
	formatGlobal.SetGlobalConstant(true)
	formatGlobal.SetLinkage(llvm.PrivateLinkage)
	formatGlobal.SetUnnamedAddr(true)
	return formatGlobal
}
