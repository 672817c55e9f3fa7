package interp

import (
	"github.com/pkg/errors"

	"psh/ast"
	"psh/iomgr"
)

// callFunction runs a user-defined function: push a scope, bind arguments as
// positional parameters, execute the body, catch the return signal. The
// scope guard restores positionals and pops the scope on every exit path.
func (r *Runner) callFunction(def *ast.FunctionDef, argv []string, redirects []*ast.Redirect, ctx ExecContext) (int, error) {
	saved, err := r.IO.Apply(redirects, r.Fds, iomgr.Temporary)
	if err != nil {
		r.Errorf("redirect", "%s", err)
		return 1, nil
	}
	defer r.IO.CleanupProcSubs()
	defer saved.Restore()

	savedPositional := r.St.Positional
	r.St.PushScope()
	defer func() {
		r.St.PopScope()
		r.St.Positional = savedPositional
	}()
	r.St.Positional = argv[1:]

	code, err := r.runCommand(def.Body, ctx.EnterFunction(def.Name))
	if err != nil {
		var ret *returnErr
		if errors.As(err, &ret) {
			return ret.code, nil
		}
		return code, err
	}
	return code, nil
}
