package compiler

import (
	"maps"
)

type ScopeKind int

const (
	ModuleScope ScopeKind = iota
	FuncScope
	BlockScope
)

type Scope[K comparable, T any] struct {
	Elems     map[K]T
	ScopeKind ScopeKind
}

func NewScope[K comparable, T any](sk ScopeKind) Scope[K, T] {
	return Scope[K, T]{
		Elems:     make(map[K]T),
		ScopeKind: sk,
	}
}

func PushScope[K comparable, T any](scopes *[]Scope[K, T], sk ScopeKind) {
	*scopes = append(*scopes, NewScope[K, T](sk))
}

func PopScope[K comparable, T any](scopes *[]Scope[K, T]) {
	if len(*scopes) == 1 {
		panic("cannot pop module scope")
	}
	*scopes = (*scopes)[:len(*scopes)-1]
}

// Put does not need a pointer, as it modifies the map within a scope, not the slice itself.
func Put[K comparable, T any](scopes []Scope[K, T], key K, elem T) {
	scopes[len(scopes)-1].Elems[key] = elem
}

func PutBulk[K comparable, T any](scopes []Scope[K, T], elems map[K]T) {
	maps.Copy(scopes[len(scopes)-1].Elems, elems)
}

// Get searches from the innermost scope outward. Inside a function the
// search stops at the function scope and then falls back to the module scope.
func Get[K comparable, T any](scopes []Scope[K, T], key K) (T, bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if e, ok := scopes[i].Elems[key]; ok {
			return e, true
		}
		if scopes[i].ScopeKind == FuncScope {
			if i > 0 && scopes[0].ScopeKind == ModuleScope {
				e, ok := scopes[0].Elems[key]
				return e, ok
			}
			break
		}
	}

	var zero T
	return zero, false
}
