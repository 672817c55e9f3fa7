package interp

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"psh/ast"
	"psh/iomgr"
	"psh/parser"
)

// runSubshellGroup executes ( list ): the body runs over a deep-copied state
// snapshot, so nothing it does reaches the parent. The parent sees only the
// exit code.
func (r *Runner) runSubshellGroup(sg *ast.SubshellGroup, ctx ExecContext) (int, error) {
	st := r.St.Clone()
	fds := r.Fds.Clone()
	child := r.fork(st, fds, ctx.ForkToSubshell())

	saved, err := child.IO.Apply(sg.Redirects, fds, iomgr.Temporary)
	if err != nil {
		r.Errorf("redirect", "%s", err)
		return 1, nil
	}
	defer child.IO.CleanupProcSubs()
	defer saved.Restore()

	code, err := child.runStatements(sg.Body, child.Ctx)
	if err != nil {
		if exit, ok := exitCode(err); ok {
			return exit, nil
		}
		if IsControlFlow(err) {
			// break/continue/return stop at the subshell boundary
			return code, nil
		}
		return code, err
	}
	return code, nil
}

// runBraceGroup executes { list; } in the current process: assignments and
// directory changes leak into the enclosing shell by design of the
// construct.
func (r *Runner) runBraceGroup(bg *ast.BraceGroup, ctx ExecContext) (int, error) {
	saved, err := r.IO.Apply(bg.Redirects, r.Fds, iomgr.Temporary)
	if err != nil {
		r.Errorf("redirect", "%s", err)
		return 1, nil
	}
	defer r.IO.CleanupProcSubs()
	defer saved.Restore()
	return r.runStatements(bg.Body, ctx)
}

// commandSubstitution runs $(text) in an in-process child with stdout
// captured; trailing-newline stripping happens in the expander. The child's
// exit code lands in last_exit_code.
func (r *Runner) commandSubstitution(text string) (string, error) {
	prog, err := parser.Parse(text, parser.Strict)
	if err != nil {
		return "", errors.Wrap(err, "command substitution")
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return "", err
	}

	st := r.St.Clone()
	fds := r.Fds.Clone()
	fds.Set(1, pw, false)
	child := r.fork(st, fds, r.Ctx.ForkToSubshell())

	type result struct {
		code int
	}
	done := make(chan result, 1)
	go func() {
		code, err := child.runStatements(prog.Statements, child.Ctx)
		if err != nil {
			if exit, ok := exitCode(err); ok {
				code = exit
			}
		}
		pw.Close()
		done <- result{code: code}
	}()

	out, readErr := io.ReadAll(pr)
	pr.Close()
	res := <-done
	r.St.LastExitCode = res.code
	r.cmdSubRan = true
	if readErr != nil {
		return "", readErr
	}
	return string(out), nil
}

// startProcSub runs the child side of <(cmd) / >(cmd): an in-process shell
// child whose stdout (or stdin) is the pipe end handed in by the I/O
// manager.
func (r *Runner) startProcSub(text string, output bool, f *os.File) (func() int, error) {
	prog, err := parser.Parse(text, parser.Strict)
	if err != nil {
		return nil, err
	}
	st := r.St.Clone()
	fds := r.Fds.Clone()
	if output {
		fds.Set(0, f, false)
	} else {
		fds.Set(1, f, false)
	}
	child := r.fork(st, fds, r.Ctx.ForkToSubshell())

	done := make(chan int, 1)
	go func() {
		code, err := child.runStatements(prog.Statements, child.Ctx)
		if err != nil {
			if exit, ok := exitCode(err); ok {
				code = exit
			}
		}
		f.Close()
		done <- code
	}()
	return func() int { return <-done }, nil
}

// Source reads and executes a file in the current shell environment.
func (r *Runner) Source(path string, args []string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.Errorf("source", "%s: %s", path, err)
		return 1, nil
	}
	if len(args) > 0 {
		savedPos := r.St.Positional
		r.St.Positional = args
		defer func() { r.St.Positional = savedPos }()
	}
	code, runErr := r.RunSource(string(data), path)
	if runErr != nil {
		var ret *returnErr
		if errors.As(runErr, &ret) {
			// return inside a sourced script stops the script only
			return ret.code, nil
		}
		return code, runErr
	}
	return code, nil
}

// CommandName strips a path to the name the strategy chain dispatches on.
func CommandName(argv0 string) string {
	if i := strings.LastIndexByte(argv0, '/'); i >= 0 {
		return argv0[i+1:]
	}
	return argv0
}
