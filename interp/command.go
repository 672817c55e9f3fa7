package interp

import (
	"strings"

	"github.com/pkg/errors"

	"psh/ast"
	"psh/expander"
	"psh/iomgr"
	"psh/lexer"
	"psh/parser"
	"psh/state"
	"psh/token"
)

// runCommand dispatches one pipeline component on its node tag.
func (r *Runner) runCommand(cmd ast.Command, ctx ExecContext) (int, error) {
	switch c := cmd.(type) {
	case *ast.SimpleCommand:
		return r.runSimpleCommand(c, ctx)
	case *ast.SubshellGroup:
		return r.runSubshellGroup(c, ctx)
	case *ast.BraceGroup:
		return r.runBraceGroup(c, ctx)
	case *ast.IfClause:
		return r.runIf(c, ctx)
	case *ast.WhileLoop:
		return r.runWhile(c, ctx)
	case *ast.UntilLoop:
		return r.runUntil(c, ctx)
	case *ast.ForLoop:
		return r.runFor(c, ctx)
	case *ast.CStyleForLoop:
		return r.runCStyleFor(c, ctx)
	case *ast.CaseConditional:
		return r.runCase(c, ctx)
	case *ast.SelectLoop:
		return r.runSelect(c, ctx)
	case *ast.ArithmeticCommand:
		return r.runArithmeticCommand(c, ctx)
	case *ast.TestCommand:
		return r.runTestCommand(c, ctx)
	case *ast.BreakStatement:
		if !ctx.InLoop() {
			r.Errorf("break", "only meaningful in a `for', `while', or `until' loop")
			return 1, nil
		}
		return 0, NewBreak(c.Level)
	case *ast.ContinueStatement:
		if !ctx.InLoop() {
			r.Errorf("continue", "only meaningful in a `for', `while', or `until' loop")
			return 1, nil
		}
		return 0, NewContinue(c.Level)
	case *ast.ArrayAssignment:
		return r.runArrayAssignment(c)
	}
	r.Errorf("exec", "cannot execute node %T", cmd)
	return 2, nil
}

// runSimpleCommand expands and executes one simple command via the strategy
// chain: special builtin, regular builtin, function, alias, external.
func (r *Runner) runSimpleCommand(sc *ast.SimpleCommand, ctx ExecContext) (int, error) {
	// Alias expansion rewrites the command word unless it names a builtin or
	// a function, which come first in the chain.
	words, _ := r.expandAliases(sc.Words, ctx)

	argv, err := r.Exp.ExpandWords(words)
	if err != nil {
		return r.expansionFailure(err)
	}

	// Assignment-only command: apply permanently. Its status is 0 unless an
	// assignment fails or a command substitution ran during the values.
	if len(argv) == 0 {
		r.cmdSubRan = false
		code := 0
		for _, a := range sc.Assignments {
			if err := r.applyAssignment(a, false); err != nil {
				r.Errorf(a.Name, "%s", err)
				code = 1
			}
		}
		if code == 0 && r.cmdSubRan {
			code = r.St.LastExitCode
		}
		if len(sc.Redirects) > 0 {
			saved, err := r.IO.Apply(sc.Redirects, r.Fds, iomgr.Temporary)
			if err != nil {
				r.Errorf("redirect", "%s", err)
				return 1, nil
			}
			saved.Restore()
		}
		r.IO.CleanupProcSubs()
		return code, nil
	}

	r.xtrace(argv)
	name := argv[0]

	// Special builtins: assignments persist.
	if fn, ok := r.Builtin(name); ok && IsSpecialBuiltin(name) {
		if err := r.applyAssignments(sc.Assignments, false); err != nil {
			r.Errorf(name, "%s", err)
			return 1, nil
		}
		return r.runBuiltin(fn, argv, sc.Redirects)
	}

	// Everything below gets assignments temporarily.
	restore, err := r.applyTempAssignments(sc.Assignments)
	if err != nil {
		r.Errorf(name, "%s", err)
		return 1, nil
	}
	defer restore()

	if fn, ok := r.Builtin(name); ok {
		return r.runBuiltin(fn, argv, sc.Redirects)
	}

	if !ctx.SuppressFunctionLookup {
		if def, ok := r.St.Functions[name]; ok {
			return r.callFunction(def, argv, sc.Redirects, ctx)
		}
	}

	return r.runExternal(argv, sc.Redirects, ctx)
}

// expansionFailure reports an expansion error and converts it to the
// command's exit status.
func (r *Runner) expansionFailure(err error) (int, error) {
	var xe *expander.Error
	if errors.As(err, &xe) {
		r.Errorf("expansion", "%s", xe.Msg)
		// Expansion failures are fatal to a non-interactive shell and to
		// any subshell; an interactive shell returns to the prompt.
		if r.Ctx.InSubshell || !r.Launcher.Interactive {
			return xe.Code, &ExitError{Code: xe.Code}
		}
		return xe.Code, nil
	}
	if IsControlFlow(err) {
		return r.St.LastExitCode, err
	}
	r.Errorf("expansion", "%s", err)
	return 1, nil
}

// runBuiltin wraps a builtin invocation with its redirections so code inside
// the builtin sees the redirected stdio. The exec builtin may convert the
// temporary redirections into permanent ones.
func (r *Runner) runBuiltin(fn BuiltinFunc, argv []string, redirects []*ast.Redirect) (int, error) {
	saved, err := r.IO.Apply(redirects, r.Fds, iomgr.Builtin)
	if err != nil {
		r.Errorf("redirect", "%s", err)
		return 1, nil
	}
	defer r.IO.CleanupProcSubs()
	r.keepRedirects = false
	code, err := fn(r, argv)
	if r.keepRedirects {
		saved.Discard()
		r.keepRedirects = false
	} else {
		saved.Restore()
	}
	return code, err
}

// MakeRedirectionsPermanent is called by the exec builtin when invoked with
// no command: the redirections wrapping the invocation stay in force on the
// enclosing shell.
func (r *Runner) MakeRedirectionsPermanent() {
	r.keepRedirects = true
}

// applyAssignments applies each assignment permanently (or locally).
func (r *Runner) applyAssignments(assigns []*ast.Assignment, local bool) error {
	for _, a := range assigns {
		if err := r.applyAssignment(a, local); err != nil {
			return err
		}
	}
	return nil
}

// applyTempAssignments applies assignments and returns an undo closure run
// after the command completes.
func (r *Runner) applyTempAssignments(assigns []*ast.Assignment) (func(), error) {
	if len(assigns) == 0 {
		return func() {}, nil
	}
	type saved struct {
		name    string
		value   string
		existed bool
	}
	var undo []saved
	for _, a := range assigns {
		prev, existed := r.St.Lookup(a.Name)
		s := saved{name: a.Name, existed: existed}
		if existed {
			s.value = prev.Scalar()
		}
		undo = append(undo, s)
		if err := r.applyAssignment(a, false); err != nil {
			return func() {}, err
		}
		// Temporary assignments are exported to the command's environment.
		r.St.MarkAttr(a.Name, state.AttrExported)
	}
	return func() {
		for i := len(undo) - 1; i >= 0; i-- {
			s := undo[i]
			if s.existed {
				_ = r.St.Set(s.name, s.value)
			} else {
				_ = r.St.Unset(s.name)
			}
		}
	}, nil
}

// applyAssignment expands and applies one assignment word. Values get the
// full expansion pipeline except splitting and globbing.
func (r *Runner) applyAssignment(a *ast.Assignment, local bool) error {
	value := ""
	if a.Value != nil {
		v, err := r.Exp.ExpandWordNoSplit(a.Value)
		if err != nil {
			return err
		}
		value = v
	}

	if a.Index != nil {
		return r.assignElement(a, value)
	}

	if a.Append {
		old := r.St.Get(a.Name)
		value = old + value
	}
	if local {
		return r.St.SetLocal(a.Name, value)
	}
	return r.St.Set(a.Name, value)
}

// assignElement handles arr[idx]=value for indexed and associative arrays.
func (r *Runner) assignElement(a *ast.Assignment, value string) error {
	idxText, err := r.Exp.ExpandWordNoSplit(a.Index)
	if err != nil {
		return err
	}
	v, ok := r.St.Lookup(a.Name)
	if !ok {
		v = &state.Variable{Name: a.Name, Attrs: state.AttrIndexedArray}
		if err := r.St.SetVar(v); err != nil {
			return err
		}
	}
	if v.Has(state.AttrReadonly) {
		return &state.ReadonlyError{Name: a.Name}
	}
	if v.Has(state.AttrAssocArray) {
		if a.Append {
			value = v.Assoc[idxText] + value
		}
		v.SetAssoc(idxText, value)
		return nil
	}
	if !v.Has(state.AttrIndexedArray) {
		// promote scalar to indexed array
		old := v.Value
		v.Attrs |= state.AttrIndexedArray
		v.Indexed = map[int]string{0: old}
		v.Value = ""
	}
	idx64, err := r.Exp.Arith(idxText)
	if err != nil {
		return err
	}
	idx := int(idx64)
	if v.Indexed == nil {
		v.Indexed = make(map[int]string)
	}
	if a.Append {
		value = v.Indexed[idx] + value
	}
	v.Indexed[idx] = value
	return nil
}

// runArrayAssignment handles NAME=(words) initialisation.
func (r *Runner) runArrayAssignment(aa *ast.ArrayAssignment) (int, error) {
	var elems []string
	for _, w := range aa.Elements {
		fields, err := r.Exp.ExpandWord(w)
		if err != nil {
			return r.expansionFailure(err)
		}
		elems = append(elems, fields...)
	}
	v, ok := r.St.Lookup(aa.Name)
	if ok && v.Has(state.AttrReadonly) {
		r.Errorf(aa.Name, "readonly variable")
		return 1, nil
	}
	if !ok || !aa.Append || !v.Has(state.AttrIndexedArray) {
		v = &state.Variable{Name: aa.Name, Attrs: state.AttrIndexedArray, Indexed: make(map[int]string)}
	}
	base := 0
	if aa.Append {
		for k := range v.Indexed {
			if k >= base {
				base = k + 1
			}
		}
	}
	for i, e := range elems {
		v.Indexed[base+i] = e
	}
	if err := r.St.SetVar(v); err != nil {
		r.Errorf(aa.Name, "%s", err)
		return 1, nil
	}
	return 0, nil
}

// expandAliases rewrites the command word through the alias table. A leading
// backslash escapes alias lookup; recursion is bounded by the seen set.
func (r *Runner) expandAliases(words []*ast.Word, ctx ExecContext) ([]*ast.Word, bool) {
	if len(words) == 0 || !r.St.Options.Get("expand_aliases") {
		return words, false
	}
	lit, ok := words[0].Lit()
	if !ok {
		return words, false
	}
	if strings.HasPrefix(lit, "\\") {
		// escaped: strip the backslash, no alias lookup
		stripped := &ast.Word{Parts: []ast.WordPart{&ast.LiteralPart{Text: lit[1:]}}}
		return append([]*ast.Word{stripped}, words[1:]...), false
	}
	seen := map[string]bool{}
	out := words
	for {
		lit, ok := out[0].Lit()
		if !ok || seen[lit] {
			return out, len(seen) > 0
		}
		// Builtins and functions take precedence over aliases.
		if _, isBuiltin := r.Builtin(lit); isBuiltin {
			return out, len(seen) > 0
		}
		if _, isFunc := r.St.Functions[lit]; isFunc && !ctx.SuppressFunctionLookup {
			return out, len(seen) > 0
		}
		text, isAlias := r.St.Aliases[lit]
		if !isAlias {
			return out, len(seen) > 0
		}
		seen[lit] = true
		aliasWords := parseAliasWords(text)
		if len(aliasWords) == 0 {
			return out[1:], true
		}
		out = append(aliasWords, out[1:]...)
	}
}

// parseAliasWords lexes an alias value into word nodes.
func parseAliasWords(text string) []*ast.Word {
	l := lexer.New(text, lexer.Strict)
	toks, err := l.Tokenize()
	if err != nil {
		return nil
	}
	var words []*ast.Word
	for _, tok := range toks {
		if !tok.Type.IsWordLike() {
			break
		}
		words = append(words, wordFromToken(tok))
	}
	return words
}

func wordFromToken(tok token.Token) *ast.Word {
	if len(tok.Parts) > 0 {
		return parser.WordFromParts(tok.Parts)
	}
	return parser.WordFromParts([]token.Part{{Kind: token.PartLiteral, Text: tok.Literal}})
}
