package state

import (
	"os"
	"strings"

	"psh/ast"
)

// Shell is the process-wide mutable state every subsystem reads and writes:
// scoped variables, options, positional parameters, functions, traps and the
// bookkeeping the executor needs between commands.
type Shell struct {
	scopes []*scope

	Options *Options

	ScriptName string
	Positional []string

	Functions map[string]*ast.FunctionDef
	Traps     map[string]string
	Aliases   map[string]string

	LastExitCode  int
	LastBgPid     int
	ForegroundPgid int
	InForkedChild bool

	// Dollar is $$: the shell's pid, fixed at startup and preserved across
	// in-process subshell snapshots.
	Dollar int
}

type scope struct {
	vars map[string]*Variable
}

// New creates shell state with the global scope populated from the host
// environment.
func New() *Shell {
	s := &Shell{
		scopes:    []*scope{{vars: make(map[string]*Variable)}},
		Options:   NewOptions(),
		Functions: make(map[string]*ast.FunctionDef),
		Traps:     make(map[string]string),
		Aliases:   make(map[string]string),
		Dollar:    os.Getpid(),
	}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			s.setInScope(s.scopes[0], kv[:i], kv[i+1:], AttrExported)
		}
	}
	return s
}

// Clone deep-copies the state for a subshell snapshot. Changes in the copy
// never propagate back.
func (s *Shell) Clone() *Shell {
	ns := &Shell{
		scopes:        make([]*scope, len(s.scopes)),
		Options:       s.Options.clone(),
		ScriptName:    s.ScriptName,
		Positional:    append([]string(nil), s.Positional...),
		Functions:     make(map[string]*ast.FunctionDef, len(s.Functions)),
		Traps:         make(map[string]string, len(s.Traps)),
		Aliases:       make(map[string]string, len(s.Aliases)),
		LastExitCode:  s.LastExitCode,
		LastBgPid:     s.LastBgPid,
		InForkedChild: true,
		Dollar:        s.Dollar,
	}
	for i, sc := range s.scopes {
		nsc := &scope{vars: make(map[string]*Variable, len(sc.vars))}
		for name, v := range sc.vars {
			nsc.vars[name] = v.clone()
		}
		ns.scopes[i] = nsc
	}
	for k, v := range s.Functions {
		ns.Functions[k] = v
	}
	for k, v := range s.Traps {
		ns.Traps[k] = v
	}
	for k, v := range s.Aliases {
		ns.Aliases[k] = v
	}
	return ns
}

// PushScope enters a function scope.
func (s *Shell) PushScope() {
	s.scopes = append(s.scopes, &scope{vars: make(map[string]*Variable)})
}

// PopScope leaves a function scope.
func (s *Shell) PopScope() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// ScopeDepth returns the number of scopes on the stack.
func (s *Shell) ScopeDepth() int { return len(s.scopes) }

// Lookup walks scopes innermost-out. A tombstone stops the search: the name
// is unset even if an outer scope defines it. Namerefs are followed.
func (s *Shell) Lookup(name string) (*Variable, bool) {
	v, ok := s.lookupRaw(name)
	if !ok {
		return nil, false
	}
	for depth := 0; v.Has(AttrNameref) && depth < 8; depth++ {
		next, ok := s.lookupRaw(v.Value)
		if !ok {
			return nil, false
		}
		v = next
	}
	return v, true
}

func (s *Shell) lookupRaw(name string) (*Variable, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i].vars[name]; ok {
			if v.Has(AttrTombstone) {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// Get returns the scalar value of name, or "" when unset.
func (s *Shell) Get(name string) string {
	if v, ok := s.Lookup(name); ok {
		return v.Scalar()
	}
	return ""
}

// IsSet reports whether name resolves to a set variable.
func (s *Shell) IsSet(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// ReadonlyError is returned when an assignment targets a readonly variable.
type ReadonlyError struct{ Name string }

func (e *ReadonlyError) Error() string { return e.Name + ": readonly variable" }

// Set assigns name=value following POSIX scoping: an existing variable is
// updated in its original scope; otherwise the variable is created in the
// global scope. Use SetLocal for local declarations.
func (s *Shell) Set(name, value string) error {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		// A tombstone scope owns the name now; assignment resurrects it
		// there rather than reaching the masked outer variable.
		if v, ok := s.scopes[i].vars[name]; ok {
			return s.assign(v, value)
		}
	}
	sc := s.scopes[0]
	if s.Options.Get("allexport") {
		return s.setInScope(sc, name, value, AttrExported)
	}
	return s.setInScope(sc, name, value, 0)
}

func (s *Shell) assign(v *Variable, value string) error {
	if v.Has(AttrReadonly) {
		return &ReadonlyError{Name: v.Name}
	}
	v.Attrs &^= AttrTombstone
	if v.Has(AttrInteger) {
		value = normalizeInteger(value)
	}
	value = v.applyCase(value)
	if v.Has(AttrIndexedArray) {
		if v.Indexed == nil {
			v.Indexed = make(map[int]string)
		}
		v.Indexed[0] = value
		return nil
	}
	v.Value = value
	return nil
}

// SetLocal creates name in the innermost scope, as the local builtin does.
func (s *Shell) SetLocal(name, value string) error {
	sc := s.scopes[len(s.scopes)-1]
	if v, ok := sc.vars[name]; ok {
		return s.assign(v, value)
	}
	return s.setInScope(sc, name, value, 0)
}

func (s *Shell) setInScope(sc *scope, name, value string, attrs Attr) error {
	if v, ok := sc.vars[name]; ok && v.Has(AttrReadonly) {
		return &ReadonlyError{Name: name}
	}
	sc.vars[name] = &Variable{Name: name, Value: value, Attrs: attrs}
	return nil
}

// SetVar installs a prepared Variable in the scope that owns name (or
// global), used by declare-style builtins.
func (s *Shell) SetVar(v *Variable) error {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if old, ok := s.scopes[i].vars[v.Name]; ok {
			if old.Has(AttrReadonly) {
				return &ReadonlyError{Name: v.Name}
			}
			s.scopes[i].vars[v.Name] = v
			return nil
		}
	}
	s.scopes[0].vars[v.Name] = v
	return nil
}

// Unset removes name. In an inner scope a tombstone is planted so outer
// definitions stay masked; in the global scope the variable is deleted.
func (s *Shell) Unset(name string) error {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i].vars[name]; ok {
			if v.Has(AttrReadonly) {
				return &ReadonlyError{Name: name}
			}
			if i == 0 {
				delete(s.scopes[i].vars, name)
			} else {
				s.scopes[i].vars[name] = &Variable{Name: name, Attrs: AttrTombstone}
			}
			return nil
		}
	}
	if len(s.scopes) > 1 {
		sc := s.scopes[len(s.scopes)-1]
		sc.vars[name] = &Variable{Name: name, Attrs: AttrTombstone}
	}
	return nil
}

// MarkAttr sets attribute bits on name, creating the variable if needed.
func (s *Shell) MarkAttr(name string, attrs Attr) {
	if v, ok := s.lookupRaw(name); ok && !v.Has(AttrTombstone) {
		v.Attrs |= attrs
		return
	}
	s.scopes[0].vars[name] = &Variable{Name: name, Attrs: attrs}
}

// Environ renders every exported variable as NAME=value for exec.
func (s *Shell) Environ() []string {
	seen := make(map[string]bool)
	var out []string
	for i := len(s.scopes) - 1; i >= 0; i-- {
		for name, v := range s.scopes[i].vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if v.Has(AttrExported) && !v.Has(AttrTombstone) {
				out = append(out, name+"="+v.Scalar())
			}
		}
	}
	return out
}

// AllNames returns every visible variable name, for ${!prefix*} matching.
func (s *Shell) AllNames() []string {
	seen := make(map[string]bool)
	var out []string
	for i := len(s.scopes) - 1; i >= 0; i-- {
		for name, v := range s.scopes[i].vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !v.Has(AttrTombstone) {
				out = append(out, name)
			}
		}
	}
	return out
}
