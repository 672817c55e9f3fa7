package interp

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"psh/ast"
	"psh/iomgr"
	"psh/proc"
)

// runExternal launches an external program: the strategy chain's catch-all.
func (r *Runner) runExternal(argv []string, redirects []*ast.Redirect, ctx ExecContext) (int, error) {
	path, code := r.lookPath(argv[0])
	if code != 0 {
		return code, nil
	}

	// Child-context redirections apply to a cloned table; the parent's fds
	// are untouched.
	table := r.Fds.Clone()
	_, err := r.IO.Apply(redirects, table, iomgr.Child)
	if err != nil {
		r.Errorf("redirect", "%s", err)
		r.IO.CleanupProcSubs()
		return 1, nil
	}
	defer r.IO.CleanupProcSubs()

	spec := &proc.Spec{
		Role:       proc.RoleSingle,
		Foreground: !ctx.Background,
		Argv:       append([]string{path}, argv[1:]...),
		Env:        r.St.Environ(),
		Stdin:      table.Stdin(),
		Stdout:     table.Stdout(),
		Stderr:     table.Stderr(),
	}
	for _, fd := range table.ExtraFds() {
		spec.ExtraFiles = append(spec.ExtraFiles, table.Get(fd))
	}

	cmd, err := r.Launcher.Launch(spec)
	if err != nil {
		return r.launchFailure(argv[0], err), nil
	}

	if ctx.Background {
		job := r.Launcher.Jobs.Add(cmd.Process.Pid, cmd.Process.Pid, strings.Join(argv, " "))
		r.St.LastBgPid = cmd.Process.Pid
		go func() {
			exit := r.Launcher.Wait(cmd)
			r.Launcher.Jobs.Finish(job, exit)
		}()
		return 0, nil
	}

	exit := r.Launcher.Wait(cmd)
	r.Launcher.TakeTerminal(r.Launcher.ShellPgid())
	return exit, nil
}

// ExecReplace implements exec with a command: the shell process is replaced
// via execve. On failure a non-interactive shell exits.
func (r *Runner) ExecReplace(argv []string) (int, error) {
	path, code := r.lookPath(argv[0])
	if code != 0 {
		if r.Launcher.Interactive {
			return code, nil
		}
		return code, NewExit(code)
	}
	// Map the table's stdio onto the real descriptors the new image will
	// inherit.
	for fd := 0; fd <= 2; fd++ {
		if f := r.Fds.Get(fd); f != nil && int(f.Fd()) != fd {
			_ = unix.Dup2(int(f.Fd()), fd)
		}
	}
	err := unix.Exec(path, argv, r.St.Environ())
	// Exec only returns on failure.
	r.Errorf(argv[0], "%s", err)
	if r.Launcher.Interactive {
		return 126, nil
	}
	return 126, NewExit(126)
}

// lookPath resolves a command name against PATH. Not-found is 127, found
// but not executable is 126.
func (r *Runner) lookPath(name string) (string, int) {
	if strings.ContainsRune(name, '/') {
		if info, err := os.Stat(name); err == nil {
			if info.IsDir() || info.Mode()&0o111 == 0 {
				r.Errorf(name, "Permission denied")
				return "", 126
			}
			return name, 0
		}
		r.Errorf(name, "No such file or directory")
		return "", 127
	}
	for _, dir := range filepath.SplitList(r.St.Get("PATH")) {
		if dir == "" {
			dir = "."
		}
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			r.Errorf(name, "Permission denied")
			return "", 126
		}
		return p, 0
	}
	r.Errorf(name, "command not found")
	return "", 127
}

func (r *Runner) launchFailure(name string, err error) int {
	if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
		r.Errorf(name, "command not found")
		return 127
	}
	if os.IsPermission(err) {
		r.Errorf(name, "Permission denied")
		return 126
	}
	r.Errorf(name, "%s", err)
	return 126
}
