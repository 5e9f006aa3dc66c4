// Package engine runs modules produced by the compiler on the host: it
// selects the host target, optimizes with LLVM's pass pipeline and executes
// through MCJIT.
package engine

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"
)

// Options configures code generation for the host.
type Options struct {
	// OptLevel is 0 to 3, as for the O flags of clang.
	OptLevel int
	// Vectorize enables the loop and SLP vectorizers.
	Vectorize bool
}

func DefaultOptions() Options {
	return Options{OptLevel: 2, Vectorize: true}
}

func (o Options) codeGenLevel() llvm.CodeGenOptLevel {
	switch {
	case o.OptLevel <= 0:
		return llvm.CodeGenLevelNone
	case o.OptLevel == 1:
		return llvm.CodeGenLevelLess
	case o.OptLevel == 2:
		return llvm.CodeGenLevelDefault
	}
	return llvm.CodeGenLevelAggressive
}

var (
	nativeOnce sync.Once
	nativeErr  error
)

// initNative registers the host target with LLVM once per process.
func initNative() error {
	nativeOnce.Do(func() {
		llvm.LinkInMCJIT()
		if err := llvm.InitializeNativeTarget(); err != nil {
			nativeErr = errors.Wrap(err, "initialize native target")
			return
		}
		if err := llvm.InitializeNativeAsmPrinter(); err != nil {
			nativeErr = errors.Wrap(err, "initialize native asm printer")
		}
	})
	return nativeErr
}

// Available reports whether modules can be compiled for and run on the host.
func Available() bool {
	return initNative() == nil
}

// HostTriple returns the target triple of the host.
func HostTriple() string {
	return llvm.DefaultTargetTriple()
}

// HostFeatures returns the target features enabled for the host CPU.
func HostFeatures() string {
	return strings.Join(hostFeatures(), ",")
}

// hostMachine creates a target machine for the host. The caller disposes it.
func hostMachine(opts Options) (llvm.TargetMachine, error) {
	if err := initNative(); err != nil {
		return llvm.TargetMachine{}, err
	}
	triple := HostTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.TargetMachine{}, errors.Wrapf(err, "target for %s", triple)
	}
	tm := target.CreateTargetMachine(triple, "generic", HostFeatures(),
		opts.codeGenLevel(), llvm.RelocDefault, llvm.CodeModelJITDefault)
	return tm, nil
}

// configureModule sets the triple and data layout of m to those of tm.
func configureModule(m llvm.Module, tm llvm.TargetMachine) {
	td := tm.CreateTargetData()
	defer td.Dispose()
	m.SetTarget(tm.Triple())
	m.SetDataLayout(td.String())
}
