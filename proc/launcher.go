// Package proc is the single chokepoint for starting child processes. Every
// external command, including external pipeline members, goes through Launch
// so that process-group, terminal and signal discipline live in exactly one
// place. In-process shell children (subshells, substitutions) do not start a
// process and do not pass through this package.
package proc

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Role describes a child's position in a pipeline.
type Role int

const (
	// RoleSingle is a standalone child: its own process group when job
	// control is on.
	RoleSingle Role = iota
	// RoleLeader is the first pipeline member; it creates the group.
	RoleLeader
	// RoleMember joins the leader's group.
	RoleMember
)

// Spec configures one launch.
type Spec struct {
	Role       Role
	Pgid       int // target group for RoleMember; 0 means "new group"
	Foreground bool

	Argv []string
	Env  []string
	Dir  string

	// Stdio files for fds 0, 1, 2.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	// ExtraFiles are passed as fd 3 and up, in order.
	ExtraFiles []*os.File
}

// Launcher starts children and manages the terminal.
type Launcher struct {
	// Interactive enables job control: process groups and terminal handoff.
	Interactive bool
	// Terminal is the controlling terminal fd (normally stdin's).
	Terminal int

	Jobs *JobTable
}

// NewLauncher builds a launcher; terminal handling activates only when
// interactive.
func NewLauncher(interactive bool) *Launcher {
	return &Launcher{
		Interactive: interactive,
		Terminal:    int(os.Stdin.Fd()),
		Jobs:        NewJobTable(),
	}
}

// Launch starts an external command per spec. The child's signal
// dispositions reset to default (Go sets SIG_DFL across exec for handled
// signals) and its process group follows the role. Launch returns once the
// child is started; Wait collects it.
func (l *Launcher) Launch(spec *Spec) (*exec.Cmd, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty argv")
	}
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Path = spec.Argv[0]
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.ExtraFiles = spec.ExtraFiles

	if l.Interactive {
		attr := &syscall.SysProcAttr{Setpgid: true}
		switch spec.Role {
		case RoleSingle, RoleLeader:
			attr.Pgid = 0
		case RoleMember:
			attr.Pgid = spec.Pgid
		}
		if spec.Foreground && spec.Role != RoleMember {
			// Hand the terminal to the new group before the child needs it;
			// Foreground makes the kernel do this atomically with the fork.
			attr.Foreground = true
			attr.Ctty = l.Terminal
		}
		cmd.SysProcAttr = attr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Wait collects an external child and maps its status to a shell exit code:
// 128+N for a signal death.
func (l *Launcher) Wait(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ws, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 127
}

// TakeTerminal gives the foreground back to pgid; used after a foreground
// job completes, and by the shell to reclaim the terminal.
func (l *Launcher) TakeTerminal(pgid int) {
	if !l.Interactive {
		return
	}
	// Ignore errors: the terminal may be gone or we may not own it.
	_ = unix.IoctlSetPointerInt(l.Terminal, unix.TIOCSPGRP, pgid)
}

// ShellPgid returns the shell's own process group for terminal reclaim.
func (l *Launcher) ShellPgid() int {
	pgid, err := unix.Getpgid(0)
	if err != nil {
		return os.Getpid()
	}
	return pgid
}
