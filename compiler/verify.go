package compiler

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"tinygo.org/x/go-llvm"
)

// verify checks every defined function and then the module. All failures
// are reported together.
func (c *Compiler) verify() *CompileError {
	var errs error
	for fn := c.Module.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if fn.IsDeclaration() {
			continue
		}
		if err := llvm.VerifyFunction(fn, llvm.ReturnStatusAction); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "function %s", fn.Name()))
		}
	}
	if err := llvm.VerifyModule(c.Module, llvm.ReturnStatusAction); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "module"))
	}
	if errs == nil {
		return nil
	}
	c.fnName = ""
	return &CompileError{
		Kind:  VerificationError,
		Func:  c.entry.Name,
		Msg:   errs.Error(),
		cause: errs,
	}
}
