package iomgr

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"psh/ast"
)

func litWord(s string) *ast.Word {
	return &ast.Word{Parts: []ast.WordPart{&ast.LiteralPart{Text: s}}}
}

func testManager() *Manager {
	return NewManager(Callbacks{
		ExpandTarget: func(w *ast.Word, quoteChar byte) (string, error) {
			s, _ := w.Lit()
			return s, nil
		},
		ExpandHeredoc: func(body string) (string, error) { return body, nil },
		Noclobber:     func() bool { return false },
	})
}

func TestOutputRedirect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()

	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirOut, SourceFd: -1, TargetFd: -1, Target: litWord(path)},
	}, table, Temporary)
	if err != nil {
		t.Fatal(err)
	}
	table.Stdout().WriteString("hello\n")
	saved.Restore()

	if table.Stdout() != os.Stdout {
		t.Error("restore must put the original stdout back")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Errorf("file content %q, err %v", data, err)
	}
}

func TestAppendRedirect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")
	if err := os.WriteFile(path, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirAppend, SourceFd: -1, TargetFd: -1, Target: litWord(path)},
	}, table, Temporary)
	if err != nil {
		t.Fatal(err)
	}
	table.Stdout().WriteString("second\n")
	saved.Restore()
	data, _ := os.ReadFile(path)
	if string(data) != "first\nsecond\n" {
		t.Errorf("content = %q", data)
	}
}

func TestNoclobber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists")
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := NewManager(Callbacks{
		ExpandTarget: func(w *ast.Word, quoteChar byte) (string, error) {
			s, _ := w.Lit()
			return s, nil
		},
		Noclobber: func() bool { return true },
	})

	_, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirOut, SourceFd: -1, TargetFd: -1, Target: litWord(path)},
	}, table, Temporary)
	if err == nil {
		t.Fatal("noclobber must refuse to overwrite")
	}

	// >| bypasses the check
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirClobber, SourceFd: -1, TargetFd: -1, Target: litWord(path)},
	}, table, Temporary)
	if err != nil {
		t.Fatalf(">| should bypass noclobber: %v", err)
	}
	saved.Restore()
}

func TestHeredocRedirect(t *testing.T) {
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirHeredoc, SourceFd: -1, TargetFd: -1, HeredocContent: "line1\nline2\n"},
	}, table, Temporary)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(table.Stdin())
	saved.Restore()
	if string(data) != "line1\nline2\n" {
		t.Errorf("heredoc content = %q", data)
	}
	if table.Stdin() != os.Stdin {
		t.Error("restore must put original stdin back")
	}
}

func TestFdDuplication(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "both")
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirOut, SourceFd: -1, TargetFd: -1, Target: litWord(path)},
		{Type: ast.RedirDupOut, SourceFd: 2, TargetFd: 1},
	}, table, Temporary)
	if err != nil {
		t.Fatal(err)
	}
	table.Stdout().WriteString("to stdout\n")
	table.Stderr().WriteString("to stderr\n")
	saved.Restore()
	data, _ := os.ReadFile(path)
	if string(data) != "to stdout\nto stderr\n" {
		t.Errorf("content = %q", data)
	}
	if table.Stderr() != os.Stderr {
		t.Error("fd 2 must be restored")
	}
}

func TestDupInvalidFd(t *testing.T) {
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	_, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirDupOut, SourceFd: -1, TargetFd: 9},
	}, table, Temporary)
	if err == nil {
		t.Fatal("duplicating a closed fd must fail")
	}
}

func TestCloseFd(t *testing.T) {
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirDupOut, SourceFd: 1, TargetFd: -1, CloseFd: true},
	}, table, Temporary)
	if err != nil {
		t.Fatal(err)
	}
	if table.Get(1) != nil {
		t.Error("fd 1 should be closed")
	}
	saved.Restore()
	if table.Stdout() != os.Stdout {
		t.Error("fd 1 should be restored")
	}
}

func TestRestoreRunsOnce(t *testing.T) {
	dir := t.TempDir()
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirOut, SourceFd: -1, TargetFd: -1, Target: litWord(filepath.Join(dir, "f"))},
	}, table, Temporary)
	if err != nil {
		t.Fatal(err)
	}
	saved.Restore()
	saved.Restore() // second call is a no-op
	if table.Stdout() != os.Stdout {
		t.Error("table corrupted by double restore")
	}
}

func TestChildModeDoesNotSave(t *testing.T) {
	dir := t.TempDir()
	table := NewTable(os.Stdin, os.Stdout, os.Stderr)
	m := testManager()
	saved, err := m.Apply([]*ast.Redirect{
		{Type: ast.RedirOut, SourceFd: -1, TargetFd: -1, Target: litWord(filepath.Join(dir, "f"))},
	}, table, Child)
	if err != nil {
		t.Fatal(err)
	}
	if saved != nil {
		t.Error("child mode must not produce a restore record")
	}
	table.Close(1)
}
