package demo

import "github.com/thiremani/lattice/ir"

// Program is a function ready to compile together with its module-scope
// variables.
type Program struct {
	Name    string
	Func    *ir.Func
	Globals []ir.Var
}

// Programs returns every demo in a stable order.
func Programs() []Program {
	return []Program{
		{Name: "power", Func: PowerIteration(10).Func},
		{Name: "countdown", Func: Countdown()},
		{Name: "printing", Func: Printing()},
	}
}

// Countdown prints n, n-1, ..., 1 with a while loop and then the number
// of iterations it took.
func Countdown() *ir.Func {
	n := ir.NewVar("n", ir.Scalar(ir.Int))
	steps := ir.NewVar("steps", ir.Scalar(ir.Int))
	body := ir.Seq(
		&ir.VarDecl{Var: steps},
		&ir.Assign{Var: steps, Value: ir.IntLit(0)},
		&ir.While{
			Cond: ir.Less(ir.IntLit(0), ir.Ref(n)),
			Body: ir.Seq(
				&ir.Print{Expr: ir.Ref(n)},
				&ir.Assign{Var: n, Value: ir.IntLit(-1), Op: ir.AddCompound},
				&ir.Assign{Var: steps, Value: ir.IntLit(1), Op: ir.AddCompound},
			),
		},
		&ir.Print{Expr: ir.Ref(steps)},
	)
	return ir.NewFunc("countdown", []ir.Var{n}, nil, body)
}

// Printing prints a scalar, a row and a column vector, and a matrix.
func Printing() *ir.Func {
	three := ir.Dim(ir.Range(3))
	row := ir.TensorLit(ir.Vector(ir.Float, three), []float64{1, 2, 3})
	col := ir.TensorLit(&ir.Tensor{Component: ir.Float, Dims: []ir.IndexDomain{three}, ColumnVector: true}, []float64{4, 5, 6})
	mat := ir.TensorLit(ir.NewTensor(ir.Float, ir.Dim(ir.Range(2)), three), []float64{1, 0, 0, 0, 1, 0})

	body := ir.Seq(
		&ir.Print{Expr: ir.FloatLit(3.5)},
		&ir.Print{Expr: ir.BoolLit(true)},
		&ir.Print{Expr: row},
		&ir.Print{Expr: col},
		&ir.Print{Expr: mat},
	)
	return ir.NewFunc("printing", nil, nil, body)
}
