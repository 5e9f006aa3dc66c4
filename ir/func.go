package ir

import (
	"fmt"
	"strings"
)

type FuncKind int

const (
	Internal FuncKind = iota
	Intrinsic
	External
)

// Constant binds a variable to a value for the whole body of a function.
type Constant struct {
	Var   Var
	Value Expr
}

// Environment holds the values a function closes over.
type Environment struct {
	Constants []Constant
}

// Func is a function definition. Internal functions have a body; intrinsic
// and external functions are declarations resolved by the code generator
// or the runtime.
type Func struct {
	Name      string
	Kind      FuncKind
	Intrinsic IntrinsicID
	Args      []Var
	Results   []Var
	Body      Stmt
	Env       Environment
	Storage   *Storage
}

// NewFunc returns an internal function with an empty storage map.
func NewFunc(name string, args, results []Var, body Stmt) *Func {
	return &Func{
		Name:    name,
		Kind:    Internal,
		Args:    args,
		Results: results,
		Body:    body,
		Storage: NewStorage(),
	}
}

// NewExternal declares a function implemented outside the module.
func NewExternal(name string, args, results []Var) *Func {
	return &Func{Name: name, Kind: External, Args: args, Results: results}
}

func (f *Func) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.Name + " : " + a.Type.String()
	}
	res := make([]string, len(f.Results))
	for i, r := range f.Results {
		res[i] = r.Name + " : " + r.Type.String()
	}
	head := fmt.Sprintf("func %s(%s) -> (%s)", f.Name, strings.Join(args, ", "), strings.Join(res, ", "))
	if f.Body == nil {
		return head
	}
	return head + "\n" + f.Body.String() + "\nend"
}
