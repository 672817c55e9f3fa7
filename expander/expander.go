package expander

import (
	"os/user"
	"strings"

	"psh/ast"
	"psh/state"
	"psh/trace"
)

// Expander runs the POSIX expansion pipeline over parser Word nodes:
// tilde expansion, parameter expansion, command and arithmetic substitution,
// word splitting, pathname expansion and quote removal, in that order.
//
// Command substitution and arithmetic evaluation are supplied as callbacks
// by the executor, which owns process creation and the evaluator.
type Expander struct {
	st *state.Shell

	// CmdSub runs a command substitution body and returns its captured
	// stdout. Trailing newlines are stripped here, not by the callback.
	CmdSub func(commandText string) (string, error)
	// Arith evaluates an arithmetic expression against shell state.
	Arith func(expr string) (int64, error)
	// ProcSub materialises <(cmd) / >(cmd) into a /dev/fd path.
	ProcSub func(commandText string, output bool) (string, error)
}

// New builds an Expander over st.
func New(st *state.Shell) *Expander {
	return &Expander{st: st}
}

// Error is an expansion failure such as ${var:?msg} on an unset variable or
// a bad substitution. It carries the exit code the failing command reports.
type Error struct {
	Msg  string
	Code int
}

func (e *Error) Error() string { return e.Msg }

// fragment is expanded text with the quote context it came from; quoting
// controls splitting and glob-char protection downstream.
type fragment struct {
	text   string
	quoted bool
}

// ExpandWords runs the full pipeline over a command's words and produces the
// final argument strings.
func (e *Expander) ExpandWords(words []*ast.Word) ([]string, error) {
	var argv []string
	for _, w := range words {
		fields, err := e.ExpandWord(w)
		if err != nil {
			return nil, err
		}
		argv = append(argv, fields...)
	}
	return argv, nil
}

// ExpandWord expands one word into zero or more fields.
func (e *Expander) ExpandWord(w *ast.Word) ([]string, error) {
	pieces, err := e.expandParts(w, true)
	if err != nil {
		return nil, err
	}
	// Protect quoted text from the glob stage before splitting; the escapes
	// are removed again as quote removal.
	for _, piece := range pieces {
		for i := range piece {
			piece[i].text = escapeFrag(piece[i])
		}
	}
	fields := e.splitPieces(pieces)
	out, err := e.globFields(fields)
	if err == nil {
		trace.ExpansionLog().Debugw("expand", "word", w.String(), "fields", out)
	}
	return out, err
}

// ExpandWordNoSplit expands a word to exactly one string: no word splitting,
// no pathname expansion. Used for assignment values, redirect targets, case
// scrutinees and heredoc bodies.
func (e *Expander) ExpandWordNoSplit(w *ast.Word) (string, error) {
	pieces, err := e.expandParts(w, false)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, piece := range pieces {
		for _, f := range piece {
			b.WriteString(f.text)
		}
	}
	return b.String(), nil
}

// expandParts performs tilde, parameter, command and arithmetic expansion
// over the word's parts. The result is a list of pieces: boundaries between
// pieces are hard field separators produced by "$@"-style expansions.
// allowMulti=false joins everything into one piece.
func (e *Expander) expandParts(w *ast.Word, allowMulti bool) ([][]fragment, error) {
	pieces := [][]fragment{nil}
	cur := &pieces[len(pieces)-1]

	appendFrag := func(f fragment) {
		*cur = append(*cur, f)
	}

	for i, part := range w.Parts {
		switch p := part.(type) {
		case *ast.LiteralPart:
			text := p.Text
			if !p.Quoted && i == 0 {
				text = e.expandTilde(text)
			}
			appendFrag(fragment{text: text, quoted: p.Quoted})

		case *ast.ExpansionPart:
			values, isMulti, err := e.expandExpansion(p.Expansion, p.Quoted)
			if err != nil {
				return nil, err
			}
			if isMulti && allowMulti && p.Quoted {
				// "$@": one hard field per element; prefix glues to the
				// first, suffix to the last, and with zero elements the
				// surrounding text vanishes with the word.
				if len(values) == 0 {
					return e.dropEmptyAtExpansion(w, i, pieces)
				}
				appendFrag(fragment{text: values[0], quoted: true})
				for _, v := range values[1:] {
					pieces = append(pieces, []fragment{{text: v, quoted: true}})
					cur = &pieces[len(pieces)-1]
				}
				continue
			}
			if isMulti && !p.Quoted {
				// Unquoted $@/$*: join with space, then let IFS splitting
				// break the result apart.
				appendFrag(fragment{text: strings.Join(values, " "), quoted: false})
				continue
			}
			text := ""
			if len(values) > 0 {
				text = values[0]
			}
			appendFrag(fragment{text: text, quoted: p.Quoted})
		}
	}
	return pieces, nil
}

// dropEmptyAtExpansion handles "x$@y" with zero positional parameters: the
// expansion and the whole word disappear unless other parts already
// produced text that must survive on its own.
func (e *Expander) dropEmptyAtExpansion(w *ast.Word, idx int, pieces [][]fragment) ([][]fragment, error) {
	rest := &ast.Word{Parts: w.Parts[idx+1:]}
	restPieces, err := e.expandParts(rest, true)
	if err != nil {
		return nil, err
	}
	// Merge: existing text + following text form one piece; if everything is
	// empty the caller produces zero fields because nothing is quoted-empty.
	nonEmpty := false
	for _, piece := range pieces {
		for _, f := range piece {
			if f.text != "" {
				nonEmpty = true
			}
		}
	}
	for _, piece := range restPieces {
		for _, f := range piece {
			if f.text != "" {
				nonEmpty = true
			}
		}
	}
	if !nonEmpty {
		return nil, nil
	}
	last := len(pieces) - 1
	for i, piece := range restPieces {
		if i == 0 {
			pieces[last] = append(pieces[last], piece...)
		} else {
			pieces = append(pieces, piece)
		}
	}
	return pieces, nil
}

// expandExpansion evaluates a single expansion node. isMulti marks results
// that expand to one field per element ("$@", "${arr[@]}").
func (e *Expander) expandExpansion(x ast.Expansion, quoted bool) (values []string, isMulti bool, err error) {
	switch n := x.(type) {
	case *ast.VariableExpansion:
		return e.expandVariable(n.Name, quoted)

	case *ast.ParameterExpansion:
		return e.expandParameter(n, quoted)

	case *ast.CommandSubstitution:
		if e.CmdSub == nil {
			return nil, false, &Error{Msg: "command substitution not available", Code: 1}
		}
		out, err := e.CmdSub(n.CommandText)
		if err != nil {
			return nil, false, err
		}
		return []string{strings.TrimRight(out, "\n")}, false, nil

	case *ast.ArithmeticExpansion:
		v, err := e.evalArith(n.ExprText)
		if err != nil {
			return nil, false, err
		}
		return []string{formatInt(v)}, false, nil

	case *ast.ProcessSubstitution:
		if e.ProcSub == nil {
			return nil, false, &Error{Msg: "process substitution not available", Code: 1}
		}
		path, err := e.ProcSub(n.CommandText, n.Output)
		if err != nil {
			return nil, false, err
		}
		return []string{path}, false, nil
	}
	return nil, false, &Error{Msg: "bad substitution", Code: 1}
}

// EvalArith evaluates arithmetic text including its embedded $-expansions;
// the executor uses it for (( )) commands and c-style for headers.
func (e *Expander) EvalArith(expr string) (int64, error) { return e.evalArith(expr) }

// MatchPattern matches s against a shell glob pattern, honouring the
// extglob and nocasematch options.
func (e *Expander) MatchPattern(pat, s string) (bool, error) {
	if e.st.Options.Get("nocasematch") {
		pat = strings.ToLower(pat)
		s = strings.ToLower(s)
	}
	return matchPattern(pat, s, e.extglob())
}

// evalArith pre-expands $vars and command substitutions inside the
// expression text, then hands the string to the arithmetic evaluator.
func (e *Expander) evalArith(expr string) (int64, error) {
	if e.Arith == nil {
		return 0, &Error{Msg: "arithmetic evaluation not available", Code: 1}
	}
	pre, err := e.preExpandArith(expr)
	if err != nil {
		return 0, err
	}
	return e.Arith(pre)
}

// preExpandArith substitutes ${...} and $(...) inside arithmetic text. Bare
// names are left for the evaluator, which resolves them against state.
func (e *Expander) preExpandArith(expr string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(expr); {
		c := expr[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		src, n, ok := scanDollar(expr, i)
		if !ok {
			b.WriteByte(c)
			i++
			continue
		}
		w := wordForExpansionSource(src)
		val, err := e.ExpandWordNoSplit(w)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
		i += n
	}
	return b.String(), nil
}

// expandTilde rewrites a leading ~, ~user and the ~ after each : or = in
// assignment-like words.
func (e *Expander) expandTilde(text string) string {
	if text == "" {
		return text
	}
	expandOne := func(s string) string {
		if !strings.HasPrefix(s, "~") {
			return s
		}
		rest := s[1:]
		slash := strings.IndexByte(rest, '/')
		name := rest
		tail := ""
		if slash >= 0 {
			name = rest[:slash]
			tail = rest[slash:]
		}
		if name == "" {
			home := e.st.Get("HOME")
			if home == "" {
				return s
			}
			return home + tail
		}
		u, err := user.Lookup(name)
		if err != nil {
			return s
		}
		return u.HomeDir + tail
	}

	if i := strings.IndexByte(text, '='); i >= 0 && looksLikeAssignment(text[:i]) {
		// expand after = and after each : in the value
		head := text[:i+1]
		parts := strings.Split(text[i+1:], ":")
		for j, p := range parts {
			parts[j] = expandOne(p)
		}
		return head + strings.Join(parts, ":")
	}
	return expandOne(text)
}

func looksLikeAssignment(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
