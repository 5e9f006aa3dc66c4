package compiler

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	// InternalError is a violated input contract: the IR handed to the
	// backend is inconsistent.
	InternalError ErrorKind = iota
	// SemanticError is an ill-formed program the front end let through.
	SemanticError
	// Unsupported marks a construct the backend does not lower.
	Unsupported
	// VerificationError means the generated module failed verification.
	VerificationError
)

func (k ErrorKind) String() string {
	switch k {
	case InternalError:
		return "internal error"
	case SemanticError:
		return "semantic error"
	case Unsupported:
		return "not supported"
	case VerificationError:
		return "verification failed"
	}
	return fmt.Sprintf("error(%d)", int(k))
}

// CompileError aborts a compilation. Lowering code raises it with panic and
// Compile recovers it, so no partially built module escapes.
type CompileError struct {
	Kind ErrorKind
	Func string
	Msg  string

	cause error
}

func (e *CompileError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s in %s: %s", e.Kind, e.Func, e.Msg)
}

func (e *CompileError) Unwrap() error { return e.cause }

// Cause returns the underlying error. With %+v it carries the stack of the
// lowering call that failed.
func (e *CompileError) Cause() error { return e.cause }

func (c *Compiler) errorf(kind ErrorKind, format string, args ...any) *CompileError {
	cause := errors.Errorf(format, args...)
	return &CompileError{Kind: kind, Func: c.fnName, Msg: cause.Error(), cause: cause}
}

// The helpers below build the error; callers panic with it.

func (c *Compiler) internal(format string, args ...any) *CompileError {
	return c.errorf(InternalError, format, args...)
}

func (c *Compiler) semantic(format string, args ...any) *CompileError {
	return c.errorf(SemanticError, format, args...)
}

func (c *Compiler) unsupported(format string, args ...any) *CompileError {
	return c.errorf(Unsupported, format, args...)
}

// AsCompileError returns the CompileError in err's chain, if any.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	ok := errors.As(err, &ce)
	return ce, ok
}
