package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thiremani/lattice/ir"
)

func printIR(t *testing.T, v ir.Var) string {
	t.Helper()
	f := ir.NewFunc("show", []ir.Var{v}, nil, &ir.Print{Expr: ir.Ref(v)})
	if !ir.IsScalar(v.Type) {
		f.Storage.Add(v, ir.Dense())
	}
	_, out := compileIR(t, f)
	return out
}

func TestPrintFormats(t *testing.T) {
	column := ir.Vector(ir.Float, ir.Dim(ir.Range(3)))
	column.ColumnVector = true
	two := ir.Dim(ir.Range(2))

	tests := []struct {
		name string
		typ  ir.Type
		want []string
	}{
		{"float", ir.Scalar(ir.Float), []string{`c"%f\0A\00"`}},
		{"int", ir.Scalar(ir.Int), []string{`c"%d\0A\00"`}},
		{"float32", ir.Scalar(ir.Float32), []string{`c"%f\0A\00"`, "fpext float"}},
		{"bool", ir.Scalar(ir.Boolean), []string{`c"%d\0A\00"`, "zext i1"}},
		{"row", ir.Vector(ir.Float, ir.Dim(ir.Range(3))), []string{`c"%f %f %f\0A\00"`}},
		{"column", column, []string{`c"%f\0A%f\0A%f\0A\00"`}},
		{"matrix", ir.NewTensor(ir.Int, ir.Dim(ir.Range(2)), ir.Dim(ir.Range(3))), []string{`c"%d %d %d\0A%d %d %d\0A\00"`}},
		{"cube", ir.NewTensor(ir.Int, two, two, two), []string{`c"%d %d\0A%d %d\0A\0A%d %d\0A%d %d\0A\00"`}},
		{"hypercube", ir.NewTensor(ir.Int, two, two, two, two), []string{
			`c"%d %d\0A%d %d\0A\0A%d %d\0A%d %d\0A\0A\0A%d %d\0A%d %d\0A\0A%d %d\0A%d %d\0A\00"`,
		}},
		{"empty", ir.Vector(ir.Float, ir.Dim(ir.Range(0))), []string{`c"\0A\00"`}},
	}
	for _, tt := range tests {
		out := printIR(t, ir.NewVar("v", tt.typ))
		assert.Contains(t, out, "declare i32 @printf(ptr", tt.name)
		for _, w := range tt.want {
			assert.Contains(t, out, w, tt.name)
		}
	}
}

func TestPrintSetIndexedTensor(t *testing.T) {
	points, _ := graph()
	v := ir.NewVar("v", ir.Vector(ir.Float, ir.Dim(ir.SetOf(ir.Ref(points)))))
	f := ir.NewFunc("show", []ir.Var{points, v}, nil, &ir.Print{Expr: ir.Ref(v)})
	f.Storage.Add(v, ir.Dense())

	_, out := compileIR(t, f)
	assert.Contains(t, out, `c"%f \00"`)
	assert.Contains(t, out, `c"%f\0A\00"`)
	assert.Contains(t, out, "print.body:")
	assert.Contains(t, out, "%nonempty = icmp sgt i32")
	assert.Contains(t, out, "print.last:")
}
