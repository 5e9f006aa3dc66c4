package compiler

import "tinygo.org/x/go-llvm"

const (
	// System functions
	PRINTF = "printf"
	MALLOC = "malloc"
	FREE   = "free"

	// Memory intrinsics
	MEMSET = "llvm.memset.p0.i64"
	MEMCPY = "llvm.memcpy.p0.p0.i64"

	// Numeric runtime
	LOC        = "loc"
	DOT        = "dot"
	NORM       = "norm"
	DET3       = "det3"
	INV3       = "inv3"
	MAT_SOLVE  = "cMatSolve"
	MAT_SOLVE3 = "cMatSolve3"
	ATAN2      = "atan2"
	TAN        = "tan"
	ASIN       = "asin"
	ACOS       = "acos"
)

// GetFnType returns the LLVM FunctionType for a fixed-signature runtime
// symbol such as "printf" or "malloc".
func (c *Compiler) GetFnType(name string) llvm.Type {
	ptr := c.ptrType()
	i64 := c.Context.Int64Type()
	void := c.Context.VoidType()

	switch name {
	case PRINTF:
		return llvm.FunctionType(c.Context.Int32Type(), []llvm.Type{ptr}, true)
	case MALLOC:
		return llvm.FunctionType(ptr, []llvm.Type{i64}, false)
	case FREE:
		return llvm.FunctionType(void, []llvm.Type{ptr}, false)
	case MEMSET:
		return llvm.FunctionType(void, []llvm.Type{ptr, c.Context.Int8Type(), i64, c.Context.Int1Type()}, false)
	case MEMCPY:
		return llvm.FunctionType(void, []llvm.Type{ptr, ptr, i64, c.Context.Int1Type()}, false)
	default:
		panic("Unknown function name " + name)
	}
}

func (c *Compiler) GetCFunc(name string) (llvm.Type, llvm.Value) {
	fnType := c.GetFnType(name)
	fn := c.Module.NamedFunction(name)
	if fn.IsNil() {
		fn = llvm.AddFunction(c.Module, name, fnType)
	}

	return fnType, fn
}

// getOrInsertFunc declares name with a signature derived from its call
// site. Numeric runtime symbols come in several widths, so their types are
// not listed in GetFnType.
func (c *Compiler) getOrInsertFunc(name string, ret llvm.Type, params []llvm.Type) (llvm.Type, llvm.Value) {
	fnType := llvm.FunctionType(ret, params, false)
	fn := c.Module.NamedFunction(name)
	if fn.IsNil() {
		fn = llvm.AddFunction(c.Module, name, fnType)
	}
	return fnType, fn
}

// emitCall calls a runtime symbol whose parameter types are those of args.
func (fc *fnCompiler) emitCall(name string, args []llvm.Value, ret llvm.Type) llvm.Value {
	params := make([]llvm.Type, len(args))
	for i, a := range args {
		params[i] = a.Type()
	}
	fnType, fn := fc.getOrInsertFunc(name, ret, params)
	callName := ""
	if ret.TypeKind() != llvm.VoidTypeKind {
		callName = name
	}
	return fc.b.CreateCall(fnType, fn, args, callName)
}

// emitLLVMIntrinsic calls llvm.<name>.<width> with all operands and the
// result of type t.
func (fc *fnCompiler) emitLLVMIntrinsic(name string, t llvm.Type, args []llvm.Value) llvm.Value {
	params := make([]llvm.Type, len(args))
	for i := range args {
		params[i] = t
	}
	full := "llvm." + name + "." + llvmWidthSuffix(t)
	fnType, fn := fc.getOrInsertFunc(full, t, params)
	return fc.b.CreateCall(fnType, fn, args, name)
}

func llvmWidthSuffix(t llvm.Type) string {
	if t.TypeKind() == llvm.FloatTypeKind {
		return "f32"
	}
	return "f64"
}

func (fc *fnCompiler) emitMemset(dst, bytes llvm.Value) {
	fnType, fn := fc.GetCFunc(MEMSET)
	zero := llvm.ConstInt(fc.Context.Int8Type(), 0, false)
	notVolatile := llvm.ConstInt(fc.Context.Int1Type(), 0, false)
	fc.b.CreateCall(fnType, fn, []llvm.Value{dst, zero, bytes, notVolatile}, "")
}

func (fc *fnCompiler) emitMemcpy(dst, src, bytes llvm.Value) {
	fnType, fn := fc.GetCFunc(MEMCPY)
	notVolatile := llvm.ConstInt(fc.Context.Int1Type(), 0, false)
	fc.b.CreateCall(fnType, fn, []llvm.Value{dst, src, bytes, notVolatile}, "")
}
