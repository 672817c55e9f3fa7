package interp

import (
	"os"
	"strings"
	"sync"

	"psh/ast"
	"psh/iomgr"
	"psh/proc"
)

// runPipeline executes one pipeline. A single command runs in the current
// process; multi-member pipelines wire N-1 pipes between members started
// left to right, which then run concurrently. Exits are collected in the
// same order; pipefail picks the rightmost non-zero code.
func (r *Runner) runPipeline(pl *ast.Pipeline, ctx ExecContext) (int, error) {
	if pl.Background {
		return r.runBackgroundPipeline(pl, ctx)
	}
	if pl.Negated {
		ctx = ctx.EnterCondition()
	}

	var code int
	var err error
	if len(pl.Commands) == 1 {
		code, err = r.runCommand(pl.Commands[0], ctx)
	} else {
		code, err = r.runMultiPipeline(pl, ctx.EnterPipeline())
	}
	if err != nil {
		return code, err
	}
	if pl.Negated {
		if code == 0 {
			code = 1
		} else {
			code = 0
		}
	}
	return code, nil
}

// runMultiPipeline starts every member with its stdio wired through pipes.
// External simple commands become child processes sharing a process group
// (the first member leads); everything else runs as an in-process shell
// child over a state snapshot.
func (r *Runner) runMultiPipeline(pl *ast.Pipeline, ctx ExecContext) (int, error) {
	n := len(pl.Commands)
	codes := make([]int, n)

	type started struct {
		wait       func() int
		closeAfter []*os.File
	}
	var members []started

	var prevRead *os.File
	pgid := 0
	for i, cmd := range pl.Commands {
		stdin := r.Fds.Stdin()
		if prevRead != nil {
			stdin = prevRead
		}
		stdout := r.Fds.Stdout()
		var nextRead *os.File
		var writeEnd *os.File
		if i < n-1 {
			pr, pw, err := os.Pipe()
			if err != nil {
				return 1, err
			}
			stdout = pw
			nextRead = pr
			writeEnd = pw
		}

		role := proc.RoleMember
		if i == 0 {
			role = proc.RoleLeader
		}
		w, newPgid, err := r.startPipelineMember(cmd, stdin, stdout, role, pgid, ctx)
		if err != nil {
			return 1, err
		}
		if i == 0 {
			pgid = newPgid
		}
		m := started{wait: w}
		// A member's pipe ends close once it finishes: its write end then
		// delivers EOF downstream, before the downstream member is waited.
		// In-process members share these file objects, so closing earlier
		// would cut them off mid-run.
		if prevRead != nil {
			m.closeAfter = append(m.closeAfter, prevRead)
		}
		if writeEnd != nil {
			m.closeAfter = append(m.closeAfter, writeEnd)
		}
		members = append(members, m)
		prevRead = nextRead
	}

	// Wait in start order, releasing each member's pipe ends as it exits.
	for i, m := range members {
		codes[i] = m.wait()
		for _, f := range m.closeAfter {
			f.Close()
		}
	}
	r.Launcher.TakeTerminal(r.Launcher.ShellPgid())

	if r.St.Options.Get("pipefail") {
		code := 0
		for _, c := range codes {
			if c != 0 {
				code = c
			}
		}
		return code, nil
	}
	return codes[n-1], nil
}

// startPipelineMember starts one member and returns its wait function. The
// returned pgid is meaningful for the leader only.
func (r *Runner) startPipelineMember(cmd ast.Command, stdin, stdout *os.File, role proc.Role, pgid int, ctx ExecContext) (func() int, int, error) {
	// An external simple command with no shell-level work becomes a real
	// child process in the pipeline's group.
	if argv, redirects, ok := r.plainExternal(cmd); ok {
		path, code := r.lookPath(argv[0])
		if code != 0 {
			return func() int { return code }, 0, nil
		}
		table := r.Fds.Clone()
		table.Set(0, stdin, false)
		table.Set(1, stdout, false)
		if _, err := r.IO.Apply(redirects, table, iomgr.Child); err != nil {
			r.Errorf("redirect", "%s", err)
			return func() int { return 1 }, 0, nil
		}
		spec := &proc.Spec{
			Role:       role,
			Pgid:       pgid,
			Foreground: !ctx.Background,
			Argv:       append([]string{path}, argv[1:]...),
			Env:        r.St.Environ(),
			Stdin:      table.Stdin(),
			Stdout:     table.Stdout(),
			Stderr:     table.Stderr(),
		}
		c, err := r.Launcher.Launch(spec)
		if err != nil {
			code := r.launchFailure(argv[0], err)
			return func() int { return code }, 0, nil
		}
		childPgid := c.Process.Pid
		return func() int { return r.Launcher.Wait(c) }, childPgid, nil
	}

	// Shell-level member: builtin, function or compound command. It runs as
	// an in-process child over a snapshot, like any other forked shell.
	st := r.St.Clone()
	fds := r.Fds.Clone()
	fds.Set(0, stdin, false)
	fds.Set(1, stdout, false)
	child := r.fork(st, fds, ctx.ForkToSubshell())

	var once sync.Once
	done := make(chan int, 1)
	go func() {
		code, err := child.runCommand(cmd, child.Ctx)
		if err != nil {
			if exit, ok := exitCode(err); ok {
				code = exit
			}
		}
		once.Do(func() { done <- code })
	}()
	return func() int { return <-done }, 0, nil
}

// plainExternal reports whether cmd is a simple command that resolves to an
// external program with no assignments, so it can exec directly.
func (r *Runner) plainExternal(cmd ast.Command) ([]string, []*ast.Redirect, bool) {
	sc, ok := cmd.(*ast.SimpleCommand)
	if !ok || len(sc.Assignments) > 0 || len(sc.Words) == 0 {
		return nil, nil, false
	}
	argv, err := r.Exp.ExpandWords(sc.Words)
	if err != nil || len(argv) == 0 {
		return nil, nil, false
	}
	name := argv[0]
	if _, isBuiltin := r.Builtin(name); isBuiltin {
		return nil, nil, false
	}
	if _, isFunc := r.St.Functions[name]; isFunc {
		return nil, nil, false
	}
	return argv, sc.Redirects, true
}

// runBackgroundPipeline launches the pipeline as a job and returns
// immediately with status 0.
func (r *Runner) runBackgroundPipeline(pl *ast.Pipeline, ctx ExecContext) (int, error) {
	fg := *pl
	fg.Background = false

	st := r.St.Clone()
	child := r.fork(st, r.Fds.Clone(), ctx.ForkToSubshell())
	job := r.Launcher.Jobs.Add(0, 0, strings.TrimSuffix(pl.String(), " &"))
	go func() {
		code, err := child.runPipeline(&fg, child.Ctx)
		if err != nil {
			if exit, ok := exitCode(err); ok {
				code = exit
			}
		}
		r.Launcher.Jobs.Finish(job, code)
	}()
	return 0, nil
}

// exitCode extracts the code from an ExitError.
func exitCode(err error) (int, bool) {
	if exit, ok := err.(*ExitError); ok {
		return exit.Code, true
	}
	return 0, false
}
