// Package ir holds the typed intermediate representation consumed by the
// code generator: tensor, element and set types, storage descriptors,
// expressions, statements and functions.
package ir

import (
	"fmt"
	"strings"
)

type Kind int

const (
	TensorKind Kind = iota
	ElementKind
	SetKind
)

// Type is the interface for all IR types.
type Type interface {
	String() string
	Kind() Kind
}

type ScalarKind int

const (
	IntScalar ScalarKind = iota
	FloatScalar
	BoolScalar
)

// ScalarType is the component type of a tensor. Bytes is the in-memory width.
type ScalarType struct {
	Kind  ScalarKind
	Bytes int
}

var (
	Int     = ScalarType{Kind: IntScalar, Bytes: 4}
	Float   = ScalarType{Kind: FloatScalar, Bytes: 8}
	Float32 = ScalarType{Kind: FloatScalar, Bytes: 4}
	Boolean = ScalarType{Kind: BoolScalar, Bytes: 1}
)

func (s ScalarType) IsFloat() bool { return s.Kind == FloatScalar }
func (s ScalarType) IsInt() bool   { return s.Kind == IntScalar }
func (s ScalarType) IsBool() bool  { return s.Kind == BoolScalar }

func (s ScalarType) String() string {
	switch s.Kind {
	case IntScalar:
		return "int"
	case FloatScalar:
		if s.Bytes == 4 {
			return "float32"
		}
		return "float"
	case BoolScalar:
		return "bool"
	}
	panic(fmt.Sprintf("unknown scalar kind %d", s.Kind))
}

type IndexSetKind int

const (
	RangeIndex IndexSetKind = iota
	SetIndex
	SingleIndex
	DynamicIndex
)

// IndexSet is one factor of a dimension: a fixed range, the elements of a
// runtime set, a single index, or a dynamically sized set.
type IndexSet struct {
	Kind IndexSetKind
	Size int  // RangeIndex only
	Set  Expr // SetIndex and SingleIndex
}

func Range(n int) IndexSet     { return IndexSet{Kind: RangeIndex, Size: n} }
func SetOf(set Expr) IndexSet  { return IndexSet{Kind: SetIndex, Set: set} }
func Single(set Expr) IndexSet { return IndexSet{Kind: SingleIndex, Set: set} }
func Dynamic() IndexSet        { return IndexSet{Kind: DynamicIndex} }

// Equal reports whether two index sets denote the same index space. Set
// index sets are equal when they reference the same variable.
func (is IndexSet) Equal(o IndexSet) bool {
	if is.Kind != o.Kind {
		return false
	}
	switch is.Kind {
	case RangeIndex:
		return is.Size == o.Size
	case SetIndex, SingleIndex:
		a, aok := is.Set.(*VarExpr)
		b, bok := o.Set.(*VarExpr)
		if aok && bok {
			return a.Var.ID == b.Var.ID
		}
		return is.Set == o.Set
	}
	return false
}

func (is IndexSet) String() string {
	switch is.Kind {
	case RangeIndex:
		return fmt.Sprint(is.Size)
	case SetIndex:
		return is.Set.String()
	case SingleIndex:
		return "single(" + is.Set.String() + ")"
	case DynamicIndex:
		return "*"
	}
	return "?"
}

// IndexDomain is a dimension. Blocked dimensions carry more than one index set.
type IndexDomain struct {
	Sets []IndexSet
}

func Dim(sets ...IndexSet) IndexDomain {
	return IndexDomain{Sets: sets}
}

// StaticSize returns the product of the domain's range sizes. The second
// result is false when the domain contains a non-range index set.
func (d IndexDomain) StaticSize() (int, bool) {
	size := 1
	for _, is := range d.Sets {
		if is.Kind != RangeIndex {
			return 0, false
		}
		size *= is.Size
	}
	return size, true
}

// HasSet reports whether any factor of the dimension is a runtime set.
func (d IndexDomain) HasSet() bool {
	for _, is := range d.Sets {
		if is.Kind == SetIndex {
			return true
		}
	}
	return false
}

func (d IndexDomain) Equal(o IndexDomain) bool {
	if len(d.Sets) != len(o.Sets) {
		return false
	}
	for i := range d.Sets {
		if !d.Sets[i].Equal(o.Sets[i]) {
			return false
		}
	}
	return true
}

func (d IndexDomain) String() string {
	parts := make([]string, len(d.Sets))
	for i, is := range d.Sets {
		parts[i] = is.String()
	}
	return strings.Join(parts, "x")
}

// Tensor is a tensor type. A tensor with no dimensions is a scalar.
type Tensor struct {
	Component    ScalarType
	Dims         []IndexDomain
	ColumnVector bool
}

func Scalar(c ScalarType) *Tensor {
	return &Tensor{Component: c}
}

func NewTensor(c ScalarType, dims ...IndexDomain) *Tensor {
	return &Tensor{Component: c, Dims: dims}
}

// Vector returns an order-1 tensor over dim.
func Vector(c ScalarType, dim IndexDomain) *Tensor {
	return &Tensor{Component: c, Dims: []IndexDomain{dim}}
}

func (t *Tensor) Kind() Kind      { return TensorKind }
func (t *Tensor) Order() int      { return len(t.Dims) }
func (t *Tensor) IsScalar() bool  { return len(t.Dims) == 0 }
func (t *Tensor) IsBlocked() bool { return !t.BlockType().IsScalar() }

// OuterDims returns, for each dimension, a domain of its first index set.
func (t *Tensor) OuterDims() []IndexDomain {
	outer := make([]IndexDomain, len(t.Dims))
	for i, d := range t.Dims {
		outer[i] = Dim(d.Sets[0])
	}
	return outer
}

// BlockType returns the type of one block of a blocked tensor: the tensor
// made of the remaining index sets of every dimension. Unblocked tensors
// have a scalar block type.
func (t *Tensor) BlockType() *Tensor {
	var dims []IndexDomain
	for _, d := range t.Dims {
		if len(d.Sets) > 1 {
			dims = append(dims, Dim(d.Sets[1:]...))
		}
	}
	return &Tensor{Component: t.Component, Dims: dims}
}

// StaticSize is the element count of a tensor whose dimensions are all ranges.
func (t *Tensor) StaticSize() (int, bool) {
	size := 1
	for _, d := range t.Dims {
		n, ok := d.StaticSize()
		if !ok {
			return 0, false
		}
		size *= n
	}
	return size, true
}

func (t *Tensor) String() string {
	if t.IsScalar() {
		return t.Component.String()
	}
	dims := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = d.String()
	}
	s := fmt.Sprintf("tensor[%s](%s)", strings.Join(dims, ","), t.Component)
	if t.ColumnVector {
		s += "'"
	}
	return s
}

type Field struct {
	Name string
	Type *Tensor
}

// ElementType is a named record of tensor fields. Field positions are fixed
// by declaration order.
type ElementType struct {
	Name   string
	Fields []Field
}

func (e *ElementType) Kind() Kind     { return ElementKind }
func (e *ElementType) String() string { return e.Name }

func (e *ElementType) FieldIndex(name string) (int, bool) {
	for i, f := range e.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (e *ElementType) Field(name string) (Field, bool) {
	i, ok := e.FieldIndex(name)
	if !ok {
		return Field{}, false
	}
	return e.Fields[i], true
}

// SetType is a set of elements. Edge sets name the sets their endpoints
// are drawn from.
type SetType struct {
	Element   *ElementType
	Endpoints []Expr
}

func (s *SetType) Kind() Kind      { return SetKind }
func (s *SetType) IsEdgeSet() bool { return len(s.Endpoints) > 0 }

func (s *SetType) String() string {
	if !s.IsEdgeSet() {
		return "set{" + s.Element.Name + "}"
	}
	eps := make([]string, len(s.Endpoints))
	for i, e := range s.Endpoints {
		eps[i] = e.String()
	}
	return "set{" + s.Element.Name + "}(" + strings.Join(eps, ",") + ")"
}

// AsTensor returns t as a tensor type, or nil.
func AsTensor(t Type) *Tensor {
	tt, _ := t.(*Tensor)
	return tt
}

// IsScalar reports whether t is an order-0 tensor.
func IsScalar(t Type) bool {
	tt, ok := t.(*Tensor)
	return ok && tt.IsScalar()
}
