package compiler

import (
	"strings"

	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

func (fc *fnCompiler) compilePrint(s *ir.Print) {
	t, ok := s.Expr.Type().(*ir.Tensor)
	if !ok {
		panic(fc.unsupported("printing %s values", s.Expr.Type()))
	}

	if t.IsScalar() {
		val := fc.compileExpr(s.Expr)
		fc.emitPrintf(specifier(t.Component)+"\n", fc.printArg(val, t.Component))
		return
	}

	for _, d := range t.Dims {
		if d.HasSet() {
			fc.printFlat(t, fc.compileExpr(s.Expr))
			return
		}
	}

	size, ok := t.StaticSize()
	if !ok {
		panic(fc.unsupported("printing %s", t))
	}
	if size == 0 {
		fc.emitPrintf("\n")
		return
	}
	data := fc.compileExpr(s.Expr)
	args := make([]llvm.Value, size)
	scalar := ir.Scalar(t.Component)
	for i := range size {
		ptr := fc.elementPtr(data, fc.constI32(i), t.Component, "")
		args[i] = fc.printArg(fc.createLoad(ptr, scalar, "elem"), t.Component)
	}

	if t.Order() == 1 {
		sep := " "
		if t.ColumnVector {
			sep = "\n"
		}
		fc.emitPrintf(strings.Repeat(specifier(t.Component)+sep, size-1)+specifier(t.Component)+"\n", args...)
		return
	}
	fc.emitPrintf(fc.tensorFormat(t, size), args...)
}

// tensorFormat lays out a range tensor of order >= 2 as rows of its last
// dimension. Every enclosing dimension whose block ends after a row adds one
// more newline, so 3-D slabs are split by a blank line, 4-D blocks by two.
func (fc *fnCompiler) tensorFormat(t *ir.Tensor, size int) string {
	n := len(t.Dims)
	cols, _ := t.Dims[n-1].StaticSize()
	if cols == 0 || size%cols != 0 {
		panic(fc.unsupported("printing non-rectangular tensor %s", t))
	}
	// Rows per block of dims n-2, n-3, ..., 1.
	var strides []int
	stride := 1
	for d := n - 2; d > 0; d-- {
		rows, _ := t.Dims[d].StaticSize()
		stride *= rows
		strides = append(strides, stride)
	}

	spec := specifier(t.Component)
	var sb strings.Builder
	for i := range size {
		sb.WriteString(spec)
		if (i+1)%cols != 0 {
			sb.WriteString(" ")
			continue
		}
		sb.WriteString("\n")
		row := (i + 1) / cols
		if i+1 == size {
			continue
		}
		for _, s := range strides {
			if row%s == 0 {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// printFlat prints a set-indexed tensor as one line: every component but
// the last followed by a space, the last by a newline.
func (fc *fnCompiler) printFlat(t *ir.Tensor, data llvm.Value) {
	n := fc.emitDenseLen(t.Dims)
	last := fc.b.CreateSub(n, fc.constI32(1), "last")
	spec := specifier(t.Component)
	scalar := ir.Scalar(t.Component)

	fc.emitLoop("print", fc.constI32(0), last, func(i llvm.Value) {
		val := fc.createLoad(fc.elementPtr(data, i, t.Component, ""), scalar, "elem")
		fc.emitPrintf(spec+" ", fc.printArg(val, t.Component))
	})

	nonEmpty := fc.b.CreateICmp(llvm.IntSGT, n, fc.constI32(0), "nonempty")
	fc.emitIfThen(nonEmpty, "print.last", func() {
		val := fc.createLoad(fc.elementPtr(data, last, t.Component, ""), scalar, "elem")
		fc.emitPrintf(spec+"\n", fc.printArg(val, t.Component))
	})
}

func specifier(s ir.ScalarType) string {
	if s.IsFloat() {
		return "%f"
	}
	return "%d"
}

// printArg applies the default argument promotions of a variadic call.
func (fc *fnCompiler) printArg(val llvm.Value, s ir.ScalarType) llvm.Value {
	switch {
	case s.IsFloat() && s.Bytes == 4:
		return fc.b.CreateFPExt(val, fc.Context.DoubleType(), "fpext")
	case s.IsBool():
		return fc.b.CreateZExt(val, fc.Context.Int32Type(), "zext")
	}
	return val
}

func (fc *fnCompiler) emitPrintf(format string, args ...llvm.Value) {
	fnType, fn := fc.GetCFunc(PRINTF)
	fmtPtr := fc.createFormatStringGlobal(format)
	fc.b.CreateCall(fnType, fn, append([]llvm.Value{fmtPtr}, args...), "")
}
