package iomgr

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"psh/ast"
)

// Mode selects the dispatch path, which differ in save/restore and error
// discipline.
type Mode int

const (
	// Temporary redirections (compound commands) are saved and restored by
	// the caller via the returned Saved.
	Temporary Mode = iota
	// Permanent redirections (exec with no command) modify the table for
	// good.
	Permanent
	// Builtin wraps a builtin invocation; like Temporary, but the builtin
	// reads its stdio straight from the table.
	Builtin
	// Child applies redirections in a child context before launch; nothing
	// is saved because the child execs or exits.
	Child
)

// Callbacks supplies the expansion and process hooks the manager needs but
// does not own.
type Callbacks struct {
	// ExpandTarget expands a redirect target word: tilde and parameter
	// expansion, no splitting, no globbing. quoted suppresses expansion.
	ExpandTarget func(w *ast.Word, quoteChar byte) (string, error)
	// ExpandHeredoc expands an unquoted heredoc body.
	ExpandHeredoc func(body string) (string, error)
	// Noclobber reports whether set -C is active.
	Noclobber func() bool
	// StartProcSub starts the child for a process substitution and returns
	// a wait function. f is the child's end of the pipe.
	StartProcSub func(commandText string, output bool, f *os.File) (wait func() int, err error)
}

// Manager applies redirect lists and tracks process-substitution children
// whose lifetime must outlast the redirected command.
type Manager struct {
	cb Callbacks

	procSubs []procSub
}

type procSub struct {
	parentEnd *os.File
	wait      func() int
}

// NewManager builds a manager with the given hooks.
func NewManager(cb Callbacks) *Manager {
	return &Manager{cb: cb}
}

// Saved records displaced table entries for restoration. Restore must run
// exactly once on every exit path out of a temporary-redirection scope.
type Saved struct {
	table   *Table
	entries []savedEntry
	done    bool
}

type savedEntry struct {
	fd      int
	file    *os.File
	present bool
	owned   bool
}

// Discard makes the redirections permanent: displaced files the table owned
// are closed and nothing is restored. The exec builtin uses this path.
func (s *Saved) Discard() {
	if s == nil || s.done {
		return
	}
	s.done = true
	for _, e := range s.entries {
		if e.present && e.owned {
			e.file.Close()
		}
	}
}

// Restore puts the displaced fds back and closes everything the redirection
// opened.
func (s *Saved) Restore() {
	if s == nil || s.done {
		return
	}
	s.done = true
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if cur, ok := s.table.files[e.fd]; ok && s.table.owned[e.fd] {
			cur.Close()
		}
		if e.present {
			s.table.files[e.fd] = e.file
			s.table.owned[e.fd] = e.owned
		} else {
			delete(s.table.files, e.fd)
			delete(s.table.owned, e.fd)
		}
	}
}

// Apply runs every redirect against the table. For Temporary and Builtin
// modes the returned Saved restores the prior state; for Permanent and
// Child it is nil.
func (m *Manager) Apply(redirects []*ast.Redirect, table *Table, mode Mode) (*Saved, error) {
	var saved *Saved
	if mode == Temporary || mode == Builtin {
		saved = &Saved{table: table}
	}
	for _, r := range redirects {
		if err := m.applyOne(r, table, saved); err != nil {
			if saved != nil {
				saved.Restore()
			}
			return nil, err
		}
	}
	return saved, nil
}

// remember snapshots the fd about to be displaced. The snapshot is taken
// before the new file lands on the slot, so a dup chain can never validate
// against a just-replaced descriptor.
func (m *Manager) remember(saved *Saved, table *Table, fd int) {
	if saved == nil {
		return
	}
	for _, e := range saved.entries {
		if e.fd == fd {
			return // first displacement wins
		}
	}
	f, present := table.files[fd]
	saved.entries = append(saved.entries, savedEntry{
		fd: fd, file: f, present: present, owned: table.owned[fd],
	})
	// Ownership moves to the snapshot; the slot gets a fresh owner below.
	table.owned[fd] = false
}

func (m *Manager) applyOne(r *ast.Redirect, table *Table, saved *Saved) error {
	fd := r.SourceFd
	if fd < 0 {
		fd = r.DefaultSourceFd()
	}

	switch r.Type {
	case ast.RedirIn:
		return m.openInto(r, table, saved, fd, os.O_RDONLY, 0)

	case ast.RedirOut:
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if m.cb.Noclobber != nil && m.cb.Noclobber() {
			target, err := m.target(r)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(target); statErr == nil {
				return errors.Errorf("%s: cannot overwrite existing file", target)
			}
			return m.openPath(table, saved, fd, target, flags, 0o666)
		}
		return m.openInto(r, table, saved, fd, flags, 0o666)

	case ast.RedirClobber:
		return m.openInto(r, table, saved, fd, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)

	case ast.RedirAppend:
		return m.openInto(r, table, saved, fd, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o666)

	case ast.RedirReadWrite:
		return m.openInto(r, table, saved, fd, os.O_RDWR|os.O_CREATE, 0o666)

	case ast.RedirAllOut, ast.RedirAllAppend:
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if r.Type == ast.RedirAllAppend {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		target, err := m.target(r)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(target, flags, 0o666)
		if err != nil {
			return errors.Wrap(err, target)
		}
		m.remember(saved, table, 1)
		m.remember(saved, table, 2)
		table.Set(1, f, true)
		table.Set(2, f, false) // same file object; closed once via fd 1
		return nil

	case ast.RedirHeredoc, ast.RedirHeredocTab:
		body := r.HeredocContent
		if !r.HeredocQuoted && m.cb.ExpandHeredoc != nil {
			expanded, err := m.cb.ExpandHeredoc(body)
			if err != nil {
				return err
			}
			body = expanded
		}
		return m.pipeInto(table, saved, fd, body)

	case ast.RedirHerestring:
		content, err := m.target(r)
		if err != nil {
			return err
		}
		return m.pipeInto(table, saved, fd, content+"\n")

	case ast.RedirDupIn, ast.RedirDupOut:
		if r.CloseFd {
			m.remember(saved, table, fd)
			table.Close(fd)
			return nil
		}
		src := table.Get(r.TargetFd)
		if src == nil || !fdValid(src) {
			return errors.Errorf("%d: bad file descriptor", r.TargetFd)
		}
		m.remember(saved, table, fd)
		table.Set(fd, src, false)
		return nil
	}

	// Process substitution as a direct redirect target arrives as a Word
	// holding the substitution; openInto handles the path it expands to.
	return m.openInto(r, table, saved, fd, os.O_RDONLY, 0)
}

func (m *Manager) target(r *ast.Redirect) (string, error) {
	if r.Target == nil {
		return "", errors.New("missing redirection target")
	}
	if m.cb.ExpandTarget == nil {
		return r.Target.String(), nil
	}
	t, err := m.cb.ExpandTarget(r.Target, r.QuoteChar)
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", errors.New("ambiguous redirect")
	}
	return t, nil
}

func (m *Manager) openInto(r *ast.Redirect, table *Table, saved *Saved, fd, flags int, perm os.FileMode) error {
	// A process substitution target opens the pipe directly instead of a
	// path on disk.
	if ps := procSubTarget(r.Target); ps != nil {
		return m.applyProcSub(ps, table, saved, fd)
	}
	target, err := m.target(r)
	if err != nil {
		return err
	}
	return m.openPath(table, saved, fd, target, flags, perm)
}

func (m *Manager) openPath(table *Table, saved *Saved, fd int, path string, flags int, perm os.FileMode) error {
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return errors.Wrap(trimPathErr(err), path)
	}
	m.remember(saved, table, fd)
	table.Set(fd, f, true)
	return nil
}

func (m *Manager) pipeInto(table *Table, saved *Saved, fd int, content string) error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return err
	}
	// Write in the background: a heredoc larger than the pipe buffer must
	// not deadlock against a consumer that has not started yet.
	go func() {
		pw.WriteString(content)
		pw.Close()
	}()
	m.remember(saved, table, fd)
	table.Set(fd, pr, true)
	return nil
}

func (m *Manager) applyProcSub(ps *ast.ProcessSubstitution, table *Table, saved *Saved, fd int) error {
	if m.cb.StartProcSub == nil {
		return errors.New("process substitution not available")
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return err
	}
	var parentEnd, childEnd *os.File
	if ps.Output {
		parentEnd, childEnd = pw, pr
	} else {
		parentEnd, childEnd = pr, pw
	}
	wait, err := m.cb.StartProcSub(ps.CommandText, ps.Output, childEnd)
	if err != nil {
		pr.Close()
		pw.Close()
		return err
	}
	m.procSubs = append(m.procSubs, procSub{parentEnd: parentEnd, wait: wait})
	m.remember(saved, table, fd)
	table.Set(fd, parentEnd, true)
	return nil
}

// ProcSubPath starts a process substitution used as an argument word and
// returns the /dev/fd path the command can open.
func (m *Manager) ProcSubPath(commandText string, output bool) (string, error) {
	if m.cb.StartProcSub == nil {
		return "", errors.New("process substitution not available")
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", err
	}
	var parentEnd, childEnd *os.File
	if output {
		parentEnd, childEnd = pw, pr
	} else {
		parentEnd, childEnd = pr, pw
	}
	wait, err := m.cb.StartProcSub(commandText, output, childEnd)
	if err != nil {
		pr.Close()
		pw.Close()
		return "", err
	}
	m.procSubs = append(m.procSubs, procSub{parentEnd: parentEnd, wait: wait})
	return fmt.Sprintf("/dev/fd/%d", parentEnd.Fd()), nil
}

// CleanupProcSubs closes substitution pipes and reaps their children. It
// runs after the command using them finishes, never before.
func (m *Manager) CleanupProcSubs() {
	for _, ps := range m.procSubs {
		ps.parentEnd.Close()
	}
	for _, ps := range m.procSubs {
		if ps.wait != nil {
			ps.wait()
		}
	}
	m.procSubs = nil
}

func procSubTarget(w *ast.Word) *ast.ProcessSubstitution {
	if w == nil || len(w.Parts) != 1 {
		return nil
	}
	ep, ok := w.Parts[0].(*ast.ExpansionPart)
	if !ok {
		return nil
	}
	ps, ok := ep.Expansion.(*ast.ProcessSubstitution)
	if !ok {
		return nil
	}
	return ps
}

// fdValid checks the descriptor with fcntl, not just table presence: the
// file object may have been closed underneath the table.
func fdValid(f *os.File) bool {
	_, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
	return err == nil
}

func trimPathErr(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err
	}
	return err
}

// ErrorLine formats a redirection failure the way the shell reports it.
func ErrorLine(err error) string {
	msg := err.Error()
	if !strings.HasPrefix(msg, "psh: ") {
		msg = "psh: " + msg
	}
	return msg
}
