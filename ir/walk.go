package ir

import "fmt"

// Node is either an Expr or a Stmt.
type Node interface {
	String() string
}

// Inspect traverses a node tree depth-first in source order, calling fn on
// every node. Children are skipped when fn returns false.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Literal, *VarExpr, *Length, *VarDecl, *Pass:
	case *Load:
		Inspect(n.Buffer, fn)
		Inspect(n.Index, fn)
	case *FieldRead:
		Inspect(n.Target, fn)
	case *Call:
		inspectExprs(n.Actuals, fn)
	case *IndexRead:
		Inspect(n.EdgeSet, fn)
	case *Unary:
		Inspect(n.A, fn)
	case *Arith:
		Inspect(n.A, fn)
		Inspect(n.B, fn)
	case *Compare:
		Inspect(n.A, fn)
		Inspect(n.B, fn)
	case *Logical:
		Inspect(n.A, fn)
		Inspect(n.B, fn)
	case *Assign:
		Inspect(n.Value, fn)
	case *CallStmt:
		inspectExprs(n.Actuals, fn)
	case *Store:
		Inspect(n.Buffer, fn)
		Inspect(n.Index, fn)
		Inspect(n.Value, fn)
	case *FieldWrite:
		Inspect(n.Target, fn)
		Inspect(n.Value, fn)
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, fn)
		}
	case *IfThenElse:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		if n.Else != nil {
			Inspect(n.Else, fn)
		}
	case *ForRange:
		Inspect(n.Start, fn)
		Inspect(n.End, fn)
		Inspect(n.Body, fn)
	case *For:
		Inspect(n.Body, fn)
	case *While:
		Inspect(n.Cond, fn)
		Inspect(n.Body, fn)
	case *Print:
		Inspect(n.Expr, fn)
	default:
		panic(fmt.Sprintf("ir: unexpected node %T", n))
	}
}

func inspectExprs(es []Expr, fn func(Node) bool) {
	for _, e := range es {
		Inspect(e, fn)
	}
}

// CallTree returns f and every function reachable from its body, callees
// before their callers. Each function appears once.
func CallTree(f *Func) []*Func {
	var order []*Func
	seen := make(map[*Func]bool)
	var visit func(*Func)
	visit = func(fn *Func) {
		if seen[fn] {
			return
		}
		seen[fn] = true
		if fn.Body != nil {
			Inspect(fn.Body, func(n Node) bool {
				switch n := n.(type) {
				case *CallStmt:
					visit(n.Callee)
				case *Call:
					visit(n.Callee)
				}
				return true
			})
		}
		order = append(order, fn)
	}
	visit(f)
	return order
}

// HoistVarDecls returns a copy of body where every variable declaration,
// at any depth, is moved to the front in encounter order. Other
// statements keep their relative order.
func HoistVarDecls(body Stmt) Stmt {
	var decls []Stmt
	rest := hoist(body, &decls)
	if len(decls) == 0 {
		return body
	}
	if rest != nil {
		decls = append(decls, rest)
	}
	return &Block{Stmts: decls}
}

func hoist(s Stmt, decls *[]Stmt) Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *VarDecl:
		*decls = append(*decls, s)
		return nil
	case *Block:
		var stmts []Stmt
		for _, st := range s.Stmts {
			if h := hoist(st, decls); h != nil {
				stmts = append(stmts, h)
			}
		}
		return &Block{Stmts: stmts, Scoped: s.Scoped}
	case *IfThenElse:
		return &IfThenElse{Cond: s.Cond, Then: orPass(hoist(s.Then, decls)), Else: hoist(s.Else, decls)}
	case *ForRange:
		return &ForRange{Var: s.Var, Start: s.Start, End: s.End, Body: orPass(hoist(s.Body, decls))}
	case *For:
		return &For{Var: s.Var, Domain: s.Domain, Body: orPass(hoist(s.Body, decls))}
	case *While:
		return &While{Cond: s.Cond, Body: orPass(hoist(s.Body, decls))}
	}
	return s
}

func orPass(s Stmt) Stmt {
	if s == nil {
		return &Pass{}
	}
	return s
}
