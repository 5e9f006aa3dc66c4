package ir

import (
	"fmt"
	"strings"
)

// Stmt is an IR statement. The set of statements is closed.
type Stmt interface {
	String() string
	stmtNode()
}

type CompoundOp int

const (
	NoCompound CompoundOp = iota
	AddCompound
)

func (op CompoundOp) String() string {
	if op == AddCompound {
		return "+="
	}
	return "="
}

type VarDecl struct {
	Var Var
}

func (s *VarDecl) String() string { return "var " + s.Var.Name + " : " + s.Var.Type.String() }

type Assign struct {
	Var   Var
	Value Expr
	Op    CompoundOp
}

func (s *Assign) String() string {
	return fmt.Sprintf("%s %s %s", s.Var.Name, s.Op, s.Value)
}

// CallStmt calls a function and binds its results.
type CallStmt struct {
	Callee  *Func
	Actuals []Expr
	Results []Var
}

func (s *CallStmt) String() string {
	res := make([]string, len(s.Results))
	for i, r := range s.Results {
		res[i] = r.Name
	}
	call := s.Callee.Name + "(" + exprList(s.Actuals) + ")"
	if len(res) == 0 {
		return call
	}
	return strings.Join(res, ", ") + " = " + call
}

// Store writes one component of a tensor buffer.
type Store struct {
	Buffer Expr
	Index  Expr
	Value  Expr
	Op     CompoundOp
}

func (s *Store) String() string {
	return fmt.Sprintf("%s[%s] %s %s", s.Buffer, s.Index, s.Op, s.Value)
}

type FieldWrite struct {
	Target Expr
	Field  string
	Value  Expr
	Op     CompoundOp
}

func (s *FieldWrite) String() string {
	return fmt.Sprintf("%s.%s %s %s", s.Target, s.Field, s.Op, s.Value)
}

// Block is a statement sequence. Scoped blocks open a new lexical scope.
type Block struct {
	Stmts  []Stmt
	Scoped bool
}

func Seq(stmts ...Stmt) *Block    { return &Block{Stmts: stmts} }
func Scoped(stmts ...Stmt) *Block { return &Block{Stmts: stmts, Scoped: true} }

func (s *Block) String() string {
	lines := make([]string, len(s.Stmts))
	for i, st := range s.Stmts {
		lines[i] = st.String()
	}
	body := strings.Join(lines, "\n")
	if s.Scoped {
		return "{\n" + body + "\n}"
	}
	return body
}

// IfThenElse branches on a boolean. Else may be nil.
type IfThenElse struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

func (s *IfThenElse) String() string {
	str := fmt.Sprintf("if %s\n%s", s.Cond, s.Then)
	if s.Else != nil {
		str += "\nelse\n" + s.Else.String()
	}
	return str + "\nend"
}

// ForRange iterates Var over the half-open interval [Start, End).
type ForRange struct {
	Var        Var
	Start, End Expr
	Body       Stmt
}

func (s *ForRange) String() string {
	return fmt.Sprintf("for %s in %s:%s\n%s\nend", s.Var.Name, s.Start, s.End, s.Body)
}

type ForDomainKind int

const (
	IndexSetDomain ForDomainKind = iota
	EndpointsDomain
	EdgesDomain
	NeighborsDomain
	NeighborsOfDomain
	DiagonalDomain
)

func (k ForDomainKind) String() string {
	switch k {
	case IndexSetDomain:
		return "index set"
	case EndpointsDomain:
		return "endpoints"
	case EdgesDomain:
		return "edges"
	case NeighborsDomain:
		return "neighbors"
	case NeighborsOfDomain:
		return "neighbors of"
	case DiagonalDomain:
		return "diagonal"
	}
	return "?"
}

type ForDomain struct {
	Kind     ForDomainKind
	IndexSet IndexSet
}

// Over returns a loop domain ranging over an index set.
func Over(is IndexSet) ForDomain {
	return ForDomain{Kind: IndexSetDomain, IndexSet: is}
}

// For iterates Var over the indices of a domain, starting at zero.
type For struct {
	Var    Var
	Domain ForDomain
	Body   Stmt
}

func (s *For) String() string {
	dom := s.Domain.Kind.String()
	if s.Domain.Kind == IndexSetDomain {
		dom = s.Domain.IndexSet.String()
	}
	return fmt.Sprintf("for %s in %s\n%s\nend", s.Var.Name, dom, s.Body)
}

type While struct {
	Cond Expr
	Body Stmt
}

func (s *While) String() string { return fmt.Sprintf("while %s\n%s\nend", s.Cond, s.Body) }

type Print struct {
	Expr Expr
}

func (s *Print) String() string { return "print " + s.Expr.String() }

type Pass struct{}

func (s *Pass) String() string { return "pass" }

func (*VarDecl) stmtNode()    {}
func (*Assign) stmtNode()     {}
func (*CallStmt) stmtNode()   {}
func (*Store) stmtNode()      {}
func (*FieldWrite) stmtNode() {}
func (*Block) stmtNode()      {}
func (*IfThenElse) stmtNode() {}
func (*ForRange) stmtNode()   {}
func (*For) stmtNode()        {}
func (*While) stmtNode()      {}
func (*Print) stmtNode()      {}
func (*Pass) stmtNode()       {}
