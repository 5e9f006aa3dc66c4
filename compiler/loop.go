package compiler

import (
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// createIfElseCont emits a conditional branch and creates if/else/cont blocks
// in the current function.
func (fc *fnCompiler) createIfElseCont(cond llvm.Value, ifName, elseName, contName string) (llvm.BasicBlock, llvm.BasicBlock, llvm.BasicBlock) {
	ifBlock := fc.Context.AddBasicBlock(fc.fn, ifName)
	elseBlock := fc.Context.AddBasicBlock(fc.fn, elseName)
	contBlock := fc.Context.AddBasicBlock(fc.fn, contName)
	fc.b.CreateCondBr(cond, ifBlock, elseBlock)
	return ifBlock, elseBlock, contBlock
}

// createIfCont emits a conditional branch and creates if/cont blocks
// in the current function.
func (fc *fnCompiler) createIfCont(cond llvm.Value, ifName, contName string) (llvm.BasicBlock, llvm.BasicBlock) {
	ifBlock := fc.Context.AddBasicBlock(fc.fn, ifName)
	contBlock := fc.Context.AddBasicBlock(fc.fn, contName)
	fc.b.CreateCondBr(cond, ifBlock, contBlock)
	return ifBlock, contBlock
}

// enter moves bb after the current block and starts emitting into it.
func (fc *fnCompiler) enter(bb llvm.BasicBlock) {
	bb.MoveAfter(fc.b.GetInsertBlock())
	fc.b.SetInsertPointAtEnd(bb)
}

func (fc *fnCompiler) compileIfThenElse(s *ir.IfThenElse) {
	cond := fc.compileExpr(s.Cond)
	thenBlock, elseBlock, exitBlock := fc.createIfElseCont(cond, "then", "else", "exit")

	fc.enter(thenBlock)
	fc.compileStmt(s.Then)
	fc.b.CreateBr(exitBlock)

	fc.enter(elseBlock)
	if s.Else != nil {
		fc.compileStmt(s.Else)
	}
	fc.b.CreateBr(exitBlock)

	fc.enter(exitBlock)
}

// emitIfThen runs then only when cond holds.
func (fc *fnCompiler) emitIfThen(cond llvm.Value, name string, then func()) {
	thenBlock, contBlock := fc.createIfCont(cond, name, name+".cont")
	fc.enter(thenBlock)
	then()
	fc.b.CreateBr(contBlock)
	fc.enter(contBlock)
}

// emitLoop emits a counted loop over [start, end) with an i32 induction
// variable. The body is entered only if start < end, and the induction
// variable is a phi of start and the incremented value from the latch.
func (fc *fnCompiler) emitLoop(name string, start, end llvm.Value, body func(i llvm.Value)) {
	i32 := fc.Context.Int32Type()
	header := fc.b.GetInsertBlock()
	bodyBlock := fc.Context.AddBasicBlock(fc.fn, name+".body")
	exitBlock := fc.Context.AddBasicBlock(fc.fn, name+".exit")

	guard := fc.b.CreateICmp(llvm.IntSLT, start, end, name+".guard")
	fc.b.CreateCondBr(guard, bodyBlock, exitBlock)

	fc.enter(bodyBlock)
	i := fc.b.CreatePHI(i32, name)
	body(i)

	next := fc.b.CreateNSWAdd(i, llvm.ConstInt(i32, 1, false), name+".nxt")
	latch := fc.b.GetInsertBlock()
	i.AddIncoming([]llvm.Value{start, next}, []llvm.BasicBlock{header, latch})

	more := fc.b.CreateICmp(llvm.IntSLT, next, end, name+".cmp")
	fc.b.CreateCondBr(more, bodyBlock, exitBlock)

	fc.enter(exitBlock)
}

// loopBody compiles body with v bound to the induction variable in a
// scope of its own.
func (fc *fnCompiler) loopBody(v ir.Var, body ir.Stmt) func(llvm.Value) {
	return func(i llvm.Value) {
		PushScope(&fc.Scopes, BlockScope)
		defer PopScope(&fc.Scopes)
		fc.bind(v, &Symbol{Val: i, Type: v.Type})
		fc.compileStmt(body)
	}
}

func (fc *fnCompiler) compileForRange(s *ir.ForRange) {
	start := fc.compileExpr(s.Start)
	end := fc.compileExpr(s.End)
	fc.emitLoop(s.Var.Name, start, end, fc.loopBody(s.Var, s.Body))
}

func (fc *fnCompiler) compileFor(s *ir.For) {
	if s.Domain.Kind != ir.IndexSetDomain {
		panic(fc.unsupported("for loops over %s", s.Domain.Kind))
	}
	n := fc.emitIndexSetLen(s.Domain.IndexSet)
	fc.emitLoop(s.Var.Name, fc.constI32(0), n, fc.loopBody(s.Var, s.Body))
}

// compileWhile evaluates the condition before the first iteration and again
// in a check block after the body. The back edge targets the first block of
// the body.
func (fc *fnCompiler) compileWhile(s *ir.While) {
	cond := fc.compileExpr(s.Cond)
	bodyBlock, exitBlock := fc.createIfCont(cond, "while.body", "while.exit")

	fc.enter(bodyBlock)
	PushScope(&fc.Scopes, BlockScope)
	fc.compileStmt(s.Body)
	PopScope(&fc.Scopes)

	checkBlock := fc.Context.AddBasicBlock(fc.fn, "while.check")
	fc.b.CreateBr(checkBlock)
	fc.enter(checkBlock)
	again := fc.compileExpr(s.Cond)
	fc.b.CreateCondBr(again, bodyBlock, exitBlock)

	fc.enter(exitBlock)
}
