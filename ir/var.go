package ir

import "sync/atomic"

// VarID identifies a variable for its whole lifetime. Symbol tables and
// storage maps key on it.
type VarID uint64

var nextVarID atomic.Uint64

type Var struct {
	ID   VarID
	Name string
	Type Type
}

// NewVar returns a variable with a fresh identifier.
func NewVar(name string, t Type) Var {
	return Var{ID: VarID(nextVarID.Add(1)), Name: name, Type: t}
}

func (v Var) String() string { return v.Name }

// Tensor returns the variable's type as a tensor, or nil.
func (v Var) Tensor() *Tensor { return AsTensor(v.Type) }
