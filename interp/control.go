package interp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Control flow travels as sentinel error values up the execution stack:
// break, continue, return and exit are unwinding tokens, not failures. Each
// frame inspects, consumes or re-raises them.

type breakErr struct{ level int }

func (e *breakErr) Error() string { return "break" }

type continueErr struct{ level int }

func (e *continueErr) Error() string { return "continue" }

type returnErr struct{ code int }

func (e *returnErr) Error() string { return "return" }

// ExitError terminates the shell (or the enclosing subshell) with Code.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

// NewBreak, NewContinue, NewReturn and NewExit are raised by the break,
// continue, return and exit builtins.
func NewBreak(level int) error    { return &breakErr{level: level} }
func NewContinue(level int) error { return &continueErr{level: level} }
func NewReturn(code int) error    { return &returnErr{code: code} }
func NewExit(code int) error      { return &ExitError{Code: code} }

// IsControlFlow reports whether err is an unwinding token rather than a
// real failure.
func IsControlFlow(err error) bool {
	var b *breakErr
	var c *continueErr
	var r *returnErr
	var x *ExitError
	return errors.As(err, &b) || errors.As(err, &c) ||
		errors.As(err, &r) || errors.As(err, &x)
}

// CommandError is a failed command with its exit code; the executor turns
// it into last_exit_code rather than propagating.
type CommandError struct {
	Msg  string
	Code int
}

func (e *CommandError) Error() string { return e.Msg }
