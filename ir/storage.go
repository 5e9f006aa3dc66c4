package ir

import "fmt"

type StorageKind int

const (
	Undefined StorageKind = iota
	DenseRowMajor
	SystemReduced
	SystemDiagonal
	SystemNone
)

func (k StorageKind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case DenseRowMajor:
		return "dense row major"
	case SystemReduced:
		return "system reduced"
	case SystemDiagonal:
		return "system diagonal"
	case SystemNone:
		return "system none"
	}
	return fmt.Sprintf("storage(%d)", int(k))
}

// TensorStorage describes the memory layout of one tensor variable.
// SystemReduced matrices are stored along the neighbor index of TargetSet,
// one row per element of StorageSet.
type TensorStorage struct {
	Kind       StorageKind
	TargetSet  Expr
	StorageSet Expr
}

func Dense() TensorStorage    { return TensorStorage{Kind: DenseRowMajor} }
func Diagonal() TensorStorage { return TensorStorage{Kind: SystemDiagonal} }
func NoStorage() TensorStorage {
	return TensorStorage{Kind: SystemNone}
}

func Reduced(target, storage Expr) TensorStorage {
	return TensorStorage{Kind: SystemReduced, TargetSet: target, StorageSet: storage}
}

// NeedsInitialization reports whether a tensor with this layout must be
// allocated before use.
func (s TensorStorage) NeedsInitialization() bool {
	switch s.Kind {
	case DenseRowMajor, SystemReduced, SystemDiagonal:
		return true
	}
	return false
}

func (s TensorStorage) String() string {
	if s.Kind == SystemReduced {
		return fmt.Sprintf("%s(%s, %s)", s.Kind, s.TargetSet, s.StorageSet)
	}
	return s.Kind.String()
}

// Storage maps tensor variables to their layouts.
type Storage struct {
	m map[VarID]TensorStorage
}

func NewStorage() *Storage {
	return &Storage{m: make(map[VarID]TensorStorage)}
}

func (s *Storage) Add(v Var, ts TensorStorage) {
	s.m[v.ID] = ts
}

func (s *Storage) Get(v Var) (TensorStorage, bool) {
	ts, ok := s.m[v.ID]
	return ts, ok
}

// Merge copies every entry of o into s.
func (s *Storage) Merge(o *Storage) {
	if o == nil {
		return
	}
	for id, ts := range o.m {
		s.m[id] = ts
	}
}

func (s *Storage) Len() int { return len(s.m) }
