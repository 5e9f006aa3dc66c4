package engine

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/thiremani/lattice/compiler"
	"tinygo.org/x/go-llvm"
)

// PassOptimizer runs LLVM's default pipeline for the configured level.
type PassOptimizer struct {
	opts Options
}

var _ compiler.Optimizer = (*PassOptimizer)(nil)

func NewOptimizer(opts Options) *PassOptimizer {
	return &PassOptimizer{opts: opts}
}

// Pipeline is the pass pipeline description handed to LLVM.
func (o *PassOptimizer) Pipeline() string {
	level := min(max(o.opts.OptLevel, 0), 3)
	return fmt.Sprintf("default<O%d>", level)
}

func (o *PassOptimizer) Optimize(m llvm.Module) error {
	tm, err := hostMachine(o.opts)
	if err != nil {
		return err
	}
	defer tm.Dispose()
	configureModule(m, tm)

	pbo := llvm.NewPassBuilderOptions()
	defer pbo.Dispose()
	pbo.SetLoopVectorization(o.opts.Vectorize)
	pbo.SetSLPVectorization(o.opts.Vectorize)

	if err := m.RunPasses(o.Pipeline(), tm, pbo); err != nil {
		return errors.Wrapf(err, "run %s", o.Pipeline())
	}
	return nil
}
