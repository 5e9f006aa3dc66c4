package ir

type IntrinsicID int

const (
	NotIntrinsic IntrinsicID = iota
	Sin
	Cos
	Tan
	Asin
	Acos
	Atan2
	Sqrt
	Log
	Exp
	Pow
	Mod
	Det
	Inv
	Norm
	Dot
	Loc
	Solve
)

var intrinsicNames = map[IntrinsicID]string{
	Sin:   "sin",
	Cos:   "cos",
	Tan:   "tan",
	Asin:  "asin",
	Acos:  "acos",
	Atan2: "atan2",
	Sqrt:  "sqrt",
	Log:   "log",
	Exp:   "exp",
	Pow:   "pow",
	Mod:   "mod",
	Det:   "det",
	Inv:   "inv",
	Norm:  "norm",
	Dot:   "dot",
	Loc:   "loc",
	Solve: "solve",
}

var intrinsics = func() map[IntrinsicID]*Func {
	m := make(map[IntrinsicID]*Func, len(intrinsicNames))
	for id, name := range intrinsicNames {
		m[id] = &Func{Name: name, Kind: Intrinsic, Intrinsic: id}
	}
	return m
}()

// IntrinsicFunc returns the canonical declaration of an intrinsic.
func IntrinsicFunc(id IntrinsicID) *Func {
	f, ok := intrinsics[id]
	if !ok {
		panic("unknown intrinsic")
	}
	return f
}

// IntrinsicByName looks an intrinsic up by its source name.
func IntrinsicByName(name string) (*Func, bool) {
	for id, n := range intrinsicNames {
		if n == name {
			return intrinsics[id], true
		}
	}
	return nil, false
}

func (id IntrinsicID) String() string {
	if n, ok := intrinsicNames[id]; ok {
		return n
	}
	return "not intrinsic"
}

// CallIntrinsic builds a call expression to intrinsic id.
func CallIntrinsic(id IntrinsicID, result Type, actuals ...Expr) *Call {
	return &Call{Callee: IntrinsicFunc(id), Actuals: actuals, Result: result}
}
