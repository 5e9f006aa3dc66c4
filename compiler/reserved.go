package compiler

import "strings"

var reservedSymbolNames = func() []string {
	names := []string{PRINTF, MALLOC, FREE, LOC}
	for _, base := range []string{DOT, NORM, DET3, INV3, MAT_SOLVE, MAT_SOLVE3, ATAN2, TAN, ASIN, ACOS} {
		names = append(names, base+"_f32", base+"_f64")
	}
	return names
}()

var reservedSymbolSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(reservedSymbolNames))
	for _, n := range reservedSymbolNames {
		m[n] = struct{}{}
	}
	return m
}()

// ReservedSymbols returns a copy of the runtime symbol names generated code
// may reference.
func ReservedSymbols() []string {
	return append([]string(nil), reservedSymbolNames...)
}

// IsReservedSymbol reports whether name is taken by the C runtime, the
// numeric runtime, or LLVM.
func IsReservedSymbol(name string) bool {
	if strings.HasPrefix(name, "llvm.") {
		return true
	}
	_, ok := reservedSymbolSet[name]
	return ok
}
