package ir

import (
	"fmt"
	"strings"
)

// Expr is a typed IR expression. The set of expressions is closed.
type Expr interface {
	Type() Type
	String() string
	exprNode()
}

// Literal is a constant. Scalars hold int32, float64 or bool; tensors hold
// []int32 or []float64 in row-major order.
type Literal struct {
	T     *Tensor
	Value any
}

func IntLit(v int32) *Literal     { return &Literal{T: Scalar(Int), Value: v} }
func FloatLit(v float64) *Literal { return &Literal{T: Scalar(Float), Value: v} }
func BoolLit(v bool) *Literal     { return &Literal{T: Scalar(Boolean), Value: v} }

// FloatLitOf returns a float literal of component type c.
func FloatLitOf(c ScalarType, v float64) *Literal {
	return &Literal{T: Scalar(c), Value: v}
}

func TensorLit(t *Tensor, data any) *Literal { return &Literal{T: t, Value: data} }

// IsZero reports whether the literal is a scalar zero.
func (l *Literal) IsZero() bool {
	if !l.T.IsScalar() {
		return false
	}
	switch v := l.Value.(type) {
	case int32:
		return v == 0
	case float64:
		return v == 0
	case bool:
		return !v
	}
	return false
}

func (l *Literal) Type() Type { return l.T }
func (l *Literal) String() string {
	return fmt.Sprint(l.Value)
}

type VarExpr struct {
	Var Var
}

func Ref(v Var) *VarExpr { return &VarExpr{Var: v} }

func (e *VarExpr) Type() Type     { return e.Var.Type }
func (e *VarExpr) String() string { return e.Var.Name }

// Load reads one component of a tensor buffer.
type Load struct {
	Buffer Expr
	Index  Expr
}

func (e *Load) Type() Type {
	if t := AsTensor(e.Buffer.Type()); t != nil {
		return Scalar(t.Component)
	}
	return nil
}
func (e *Load) String() string { return fmt.Sprintf("%s[%s]", e.Buffer, e.Index) }

// FieldRead reads a field of an element or set. Reading a field of a set
// yields the field of every element, indexed by the set.
type FieldRead struct {
	Target Expr
	Field  string
}

// Type returns nil when the target has no such field.
func (e *FieldRead) Type() Type {
	switch t := e.Target.Type().(type) {
	case *ElementType:
		if f, ok := t.Field(e.Field); ok {
			return f.Type
		}
	case *SetType:
		f, ok := t.Element.Field(e.Field)
		if !ok {
			return nil
		}
		first := append([]IndexSet{SetOf(e.Target)}, firstSets(f.Type)...)
		dims := append([]IndexDomain{Dim(first...)}, restDims(f.Type)...)
		return &Tensor{Component: f.Type.Component, Dims: dims}
	}
	return nil
}

func firstSets(t *Tensor) []IndexSet {
	if t.IsScalar() {
		return nil
	}
	return t.Dims[0].Sets
}

func restDims(t *Tensor) []IndexDomain {
	if t.Order() < 2 {
		return nil
	}
	return t.Dims[1:]
}

func (e *FieldRead) String() string { return e.Target.String() + "." + e.Field }

// Call is a call used as an expression. Only intrinsics and external
// functions with a single scalar result are called this way.
type Call struct {
	Callee  *Func
	Actuals []Expr
	Result  Type
}

func (e *Call) Type() Type { return e.Result }
func (e *Call) String() string {
	return e.Callee.Name + "(" + exprList(e.Actuals) + ")"
}

// Length is the number of indices in an index set.
type Length struct {
	IndexSet IndexSet
}

func (e *Length) Type() Type     { return Scalar(Int) }
func (e *Length) String() string { return "length(" + e.IndexSet.String() + ")" }

type IndexReadKind int

const (
	Endpoints IndexReadKind = iota
	NeighborStarts
	Neighbors
)

func (k IndexReadKind) String() string {
	switch k {
	case Endpoints:
		return "endpoints"
	case NeighborStarts:
		return "neighbors.start"
	case Neighbors:
		return "neighbors"
	}
	return "?"
}

// IndexRead reads one of the index arrays of an edge set.
type IndexRead struct {
	EdgeSet Expr
	Kind    IndexReadKind
}

func (e *IndexRead) Type() Type     { return Vector(Int, Dim(Dynamic())) }
func (e *IndexRead) String() string { return e.EdgeSet.String() + "." + e.Kind.String() }

type UnaryOp int

const (
	Neg UnaryOp = iota
	Not
)

type Unary struct {
	Op UnaryOp
	A  Expr
}

func (e *Unary) Type() Type {
	if e.Op == Not {
		return Scalar(Boolean)
	}
	return e.A.Type()
}

func (e *Unary) String() string {
	if e.Op == Not {
		return "not " + e.A.String()
	}
	return "-" + e.A.String()
}

type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
)

var arithSymbols = [...]string{Add: "+", Sub: "-", Mul: "*", Div: "/"}

type Arith struct {
	Op   ArithOp
	A, B Expr
}

func (e *Arith) Type() Type { return e.A.Type() }
func (e *Arith) String() string {
	return fmt.Sprintf("(%s %s %s)", e.A, arithSymbols[e.Op], e.B)
}

type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Gt
	Lt
	Ge
	Le
)

var compareSymbols = [...]string{Eq: "==", Ne: "!=", Gt: ">", Lt: "<", Ge: ">=", Le: "<="}

type Compare struct {
	Op   CompareOp
	A, B Expr
}

func (e *Compare) Type() Type { return Scalar(Boolean) }
func (e *Compare) String() string {
	return fmt.Sprintf("(%s %s %s)", e.A, compareSymbols[e.Op], e.B)
}

type LogicalOp int

const (
	And LogicalOp = iota
	Or
	Xor
)

var logicalSymbols = [...]string{And: "and", Or: "or", Xor: "xor"}

type Logical struct {
	Op   LogicalOp
	A, B Expr
}

func (e *Logical) Type() Type { return Scalar(Boolean) }
func (e *Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", e.A, logicalSymbols[e.Op], e.B)
}

func (*Literal) exprNode()   {}
func (*VarExpr) exprNode()   {}
func (*Load) exprNode()      {}
func (*FieldRead) exprNode() {}
func (*Call) exprNode()      {}
func (*Length) exprNode()    {}
func (*IndexRead) exprNode() {}
func (*Unary) exprNode()     {}
func (*Arith) exprNode()     {}
func (*Compare) exprNode()   {}
func (*Logical) exprNode()   {}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func Plus(a, b Expr) *Arith  { return &Arith{Op: Add, A: a, B: b} }
func Minus(a, b Expr) *Arith { return &Arith{Op: Sub, A: a, B: b} }
func Times(a, b Expr) *Arith { return &Arith{Op: Mul, A: a, B: b} }
func Quo(a, b Expr) *Arith   { return &Arith{Op: Div, A: a, B: b} }

func Less(a, b Expr) *Compare  { return &Compare{Op: Lt, A: a, B: b} }
func Equals(a, b Expr) *Compare { return &Compare{Op: Eq, A: a, B: b} }
