// Package iomgr applies redirections to the shell's file-descriptor table.
// The table is an in-process view: builtins and in-process shell children
// read their stdio out of it, and external children receive its entries at
// launch. Four dispatch paths share one set of per-operator helpers.
package iomgr

import (
	"os"
	"sort"
)

// Table maps shell fd numbers to open files. It is the unit of save/restore
// for temporary redirections and the unit of inheritance for children.
type Table struct {
	files map[int]*os.File
	// owned marks files the manager opened itself and must close when the
	// fd is replaced or restored.
	owned map[int]bool
}

// NewTable builds the default table over the process stdio.
func NewTable(stdin, stdout, stderr *os.File) *Table {
	return &Table{
		files: map[int]*os.File{0: stdin, 1: stdout, 2: stderr},
		owned: map[int]bool{},
	}
}

// Get returns the file at fd, or nil when closed.
func (t *Table) Get(fd int) *os.File { return t.files[fd] }

// Stdin, Stdout and Stderr are shorthands for the standard slots.
func (t *Table) Stdin() *os.File  { return t.files[0] }
func (t *Table) Stdout() *os.File { return t.files[1] }
func (t *Table) Stderr() *os.File { return t.files[2] }

// Set installs file at fd, closing a previously owned occupant.
func (t *Table) Set(fd int, f *os.File, owned bool) {
	if old, ok := t.files[fd]; ok && t.owned[fd] && old != f {
		old.Close()
	}
	t.files[fd] = f
	t.owned[fd] = owned
}

// Close drops fd from the table.
func (t *Table) Close(fd int) {
	if old, ok := t.files[fd]; ok && t.owned[fd] {
		old.Close()
	}
	delete(t.files, fd)
	delete(t.owned, fd)
}

// Clone copies the table for a child context. Ownership stays with the
// parent: the clone closing a slot never closes the parent's file.
func (t *Table) Clone() *Table {
	nt := &Table{
		files: make(map[int]*os.File, len(t.files)),
		owned: make(map[int]bool),
	}
	for fd, f := range t.files {
		nt.files[fd] = f
	}
	return nt
}

// ExtraFds lists fds above 2 in ascending order, for passing to an external
// child.
func (t *Table) ExtraFds() []int {
	var out []int
	for fd := range t.files {
		if fd > 2 {
			out = append(out, fd)
		}
	}
	sort.Ints(out)
	return out
}
