// Package demo builds small programs for the compiler and evaluates them
// with plain Go so compiled results can be checked.
package demo

import (
	"math"
	"slices"

	"github.com/thiremani/lattice/ir"
)

// Graph is an undirected graph over points 0..N-1.
type Graph struct {
	N     int
	Edges [][2]int32
}

// CSR returns the adjacency of g in compressed row form. Row i lists i
// itself and every point sharing an edge with it, in ascending order.
func (g Graph) CSR() (rowStart, colIdx []int32) {
	rows := make([][]int32, g.N)
	for i := range rows {
		rows[i] = []int32{int32(i)}
	}
	for _, e := range g.Edges {
		rows[e[0]] = append(rows[e[0]], e[1])
		rows[e[1]] = append(rows[e[1]], e[0])
	}

	rowStart = make([]int32, 0, g.N+1)
	rowStart = append(rowStart, 0)
	for _, r := range rows {
		slices.Sort(r)
		r = slices.Compact(r)
		colIdx = append(colIdx, r...)
		rowStart = append(rowStart, int32(len(colIdx)))
	}
	return rowStart, colIdx
}

// Endpoints flattens the edge list.
func (g Graph) Endpoints() []int32 {
	out := make([]int32, 0, 2*len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, e[0], e[1])
	}
	return out
}

// Power is the IR of a power iteration and the variables a host binds.
type Power struct {
	Func   *ir.Func
	Points ir.Var
	Edges  ir.Var
	A      ir.Var
	X0     ir.Var
	X      ir.Var
	Tmp    ir.Var
}

// PowerIteration builds
//
//	x = x0
//	for it in 0:iters
//	  tmp = 0
//	  for i in points
//	    for k in edges.nbrs_start[i]:edges.nbrs_start[i+1]
//	      tmp[i] += A[k] * x[edges.nbrs[k]]
//	  s = 0
//	  for i in points
//	    s += tmp[i] * tmp[i]
//	  r = sqrt(s)
//	  for i in points
//	    x[i] = tmp[i] / r
//
// where A is stored in the adjacency of edges.
func PowerIteration(iters int32) *Power {
	point := &ir.ElementType{Name: "Point"}
	edge := &ir.ElementType{Name: "Edge"}
	points := ir.NewVar("points", &ir.SetType{Element: point})
	pointsRef := ir.Ref(points)
	edges := ir.NewVar("edges", &ir.SetType{Element: edge, Endpoints: []ir.Expr{pointsRef, pointsRef}})
	edgesRef := ir.Ref(edges)

	overPoints := ir.Dim(ir.SetOf(pointsRef))
	vec := ir.Vector(ir.Float, overPoints)
	a := ir.NewVar("A", ir.NewTensor(ir.Float, overPoints, overPoints))
	x0 := ir.NewVar("x0", vec)
	x := ir.NewVar("x", vec)
	tmp := ir.NewVar("tmp", vec)
	s := ir.NewVar("s", ir.Scalar(ir.Float))
	r := ir.NewVar("r", ir.Scalar(ir.Float))

	it := ir.NewVar("it", ir.Scalar(ir.Int))
	i := ir.NewVar("i", ir.Scalar(ir.Int))
	k := ir.NewVar("k", ir.Scalar(ir.Int))

	starts := &ir.IndexRead{EdgeSet: edgesRef, Kind: ir.NeighborStarts}
	nbrs := &ir.IndexRead{EdgeSet: edgesRef, Kind: ir.Neighbors}
	load := func(buf ir.Expr, idx ir.Expr) ir.Expr { return &ir.Load{Buffer: buf, Index: idx} }
	forPoints := func(body ...ir.Stmt) ir.Stmt {
		return &ir.For{Var: i, Domain: ir.Over(ir.SetOf(pointsRef)), Body: ir.Seq(body...)}
	}

	matvec := forPoints(&ir.ForRange{
		Var:   k,
		Start: load(starts, ir.Ref(i)),
		End:   load(starts, ir.Plus(ir.Ref(i), ir.IntLit(1))),
		Body: &ir.Store{
			Buffer: ir.Ref(tmp),
			Index:  ir.Ref(i),
			Value:  ir.Times(load(ir.Ref(a), ir.Ref(k)), load(ir.Ref(x), load(nbrs, ir.Ref(k)))),
			Op:     ir.AddCompound,
		},
	})

	sumSquares := forPoints(&ir.Assign{
		Var:   s,
		Value: ir.Times(load(ir.Ref(tmp), ir.Ref(i)), load(ir.Ref(tmp), ir.Ref(i))),
		Op:    ir.AddCompound,
	})

	normalize := forPoints(&ir.Store{
		Buffer: ir.Ref(x),
		Index:  ir.Ref(i),
		Value:  ir.Quo(load(ir.Ref(tmp), ir.Ref(i)), ir.Ref(r)),
	})

	body := ir.Seq(
		&ir.Assign{Var: x, Value: ir.Ref(x0)},
		&ir.ForRange{
			Var:   it,
			Start: ir.IntLit(0),
			End:   ir.IntLit(iters),
			Body: ir.Scoped(
				&ir.VarDecl{Var: tmp},
				&ir.Assign{Var: tmp, Value: ir.FloatLit(0)},
				matvec,
				&ir.VarDecl{Var: s},
				&ir.Assign{Var: s, Value: ir.FloatLit(0)},
				sumSquares,
				&ir.VarDecl{Var: r},
				&ir.CallStmt{Callee: ir.IntrinsicFunc(ir.Sqrt), Actuals: []ir.Expr{ir.Ref(s)}, Results: []ir.Var{r}},
				normalize,
			),
		},
	)

	f := ir.NewFunc("power", []ir.Var{points, edges, a, x0}, []ir.Var{x}, body)
	f.Storage.Add(a, ir.Reduced(edgesRef, pointsRef))
	f.Storage.Add(x0, ir.Dense())
	f.Storage.Add(x, ir.Dense())
	f.Storage.Add(tmp, ir.Dense())

	return &Power{Func: f, Points: points, Edges: edges, A: a, X0: x0, X: x, Tmp: tmp}
}

// ReferencePower runs the power iteration on the dense form of the CSR
// matrix given by rowStart, colIdx and values.
func ReferencePower(n int, rowStart, colIdx []int32, values, x0 []float64, iters int) []float64 {
	dense := make([][]float64, n)
	for i := range dense {
		dense[i] = make([]float64, n)
		for k := rowStart[i]; k < rowStart[i+1]; k++ {
			dense[i][colIdx[k]] += values[k]
		}
	}

	x := slices.Clone(x0)
	tmp := make([]float64, n)
	for range iters {
		s := 0.0
		for i := range n {
			tmp[i] = 0
			for j := range n {
				tmp[i] += dense[i][j] * x[j]
			}
			s += tmp[i] * tmp[i]
		}
		r := math.Sqrt(s)
		for i := range n {
			x[i] = tmp[i] / r
		}
	}
	return x
}
