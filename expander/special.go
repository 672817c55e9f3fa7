package expander

import (
	"math/rand"
	"strconv"
	"strings"

	"psh/ast"
	"psh/lexer"
	"psh/parser"
	"psh/state"
	"psh/token"
)

// expandVariable resolves $name: ordinary variables, special parameters,
// positional parameters and array references like arr[@] or arr[n].
func (e *Expander) expandVariable(name string, quoted bool) ([]string, bool, error) {
	switch name {
	case "?":
		return []string{strconv.Itoa(e.st.LastExitCode)}, false, nil
	case "$":
		return []string{strconv.Itoa(e.st.Dollar)}, false, nil
	case "!":
		if e.st.LastBgPid == 0 {
			return []string{""}, false, nil
		}
		return []string{strconv.Itoa(e.st.LastBgPid)}, false, nil
	case "#":
		return []string{strconv.Itoa(len(e.st.Positional))}, false, nil
	case "-":
		return []string{e.st.Options.FlagString()}, false, nil
	case "0":
		return []string{e.st.ScriptName}, false, nil
	case "@":
		return append([]string(nil), e.st.Positional...), true, nil
	case "*":
		if quoted {
			return []string{strings.Join(e.st.Positional, e.ifsJoiner())}, false, nil
		}
		return append([]string(nil), e.st.Positional...), true, nil
	case "RANDOM":
		return []string{strconv.Itoa(rand.Intn(32768))}, false, nil
	}

	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		if n <= len(e.st.Positional) {
			return []string{e.st.Positional[n-1]}, false, nil
		}
		return e.unsetValue(name)
	}

	// arr[@], arr[*], arr[expr]
	if base, sub, ok := splitSubscript(name); ok {
		return e.expandArrayRef(base, sub, quoted)
	}

	if v, ok := e.st.Lookup(name); ok {
		return []string{v.Scalar()}, false, nil
	}
	return e.unsetValue(name)
}

// unsetValue applies nounset: an unset variable is an error with -u, an
// empty string otherwise.
func (e *Expander) unsetValue(name string) ([]string, bool, error) {
	if e.st.Options.Get("nounset") {
		return nil, false, &Error{Msg: name + ": unbound variable", Code: 1}
	}
	return []string{""}, false, nil
}

// ifsJoiner is the first character of IFS (or space), used by "$*".
func (e *Expander) ifsJoiner() string {
	if v, ok := e.st.Lookup("IFS"); ok {
		ifs := v.Scalar()
		if ifs == "" {
			return ""
		}
		return ifs[:1]
	}
	return " "
}

func splitSubscript(name string) (base, sub string, ok bool) {
	i := strings.IndexByte(name, '[')
	if i <= 0 || !strings.HasSuffix(name, "]") {
		return "", "", false
	}
	return name[:i], name[i+1 : len(name)-1], true
}

// expandArrayRef handles ${arr[...]} and $arr[...] references.
func (e *Expander) expandArrayRef(base, sub string, quoted bool) ([]string, bool, error) {
	v, set := e.st.Lookup(base)
	switch sub {
	case "@":
		if !set {
			return nil, true, nil
		}
		return v.ArrayValues(), true, nil
	case "*":
		if !set {
			return nil, true, nil
		}
		if quoted {
			return []string{strings.Join(v.ArrayValues(), e.ifsJoiner())}, false, nil
		}
		return v.ArrayValues(), true, nil
	}
	if !set {
		return e.unsetValue(base)
	}
	if v.Has(state.AttrAssocArray) {
		key, err := e.expandSubscriptText(sub)
		if err != nil {
			return nil, false, err
		}
		return []string{v.Assoc[key]}, false, nil
	}
	idxText, err := e.expandSubscriptText(sub)
	if err != nil {
		return nil, false, err
	}
	idx, aerr := e.evalArith(idxText)
	if aerr != nil {
		return nil, false, aerr
	}
	if v.Has(state.AttrIndexedArray) {
		n := int(idx)
		if n < 0 {
			vals := v.ArrayValues()
			n += len(vals)
			if n < 0 || n >= len(vals) {
				return []string{""}, false, nil
			}
			return []string{vals[n]}, false, nil
		}
		return []string{v.Indexed[n]}, false, nil
	}
	// scalar indexed like a one-element array
	if idx == 0 {
		return []string{v.Scalar()}, false, nil
	}
	return []string{""}, false, nil
}

// expandSubscriptText expands $-constructs inside an array subscript.
func (e *Expander) expandSubscriptText(sub string) (string, error) {
	return e.ExpandWordNoSplit(wordForExpansionSource(sub))
}

// --- shared helpers ---

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

// scanDollar finds the extent of a $-construct starting at text[pos].
func scanDollar(text string, pos int) (string, int, bool) {
	parts := lexer.ScanParts(text[pos:])
	if len(parts) == 0 || parts[0].Kind != token.PartExpansion {
		return "", 0, false
	}
	return parts[0].Text, len(parts[0].Text), true
}

// wordForExpansionSource rebuilds a Word node for raw source text like
// "${x:-1}" or "$(cmd)".
func wordForExpansionSource(src string) *ast.Word {
	return parser.WordFromParts(lexer.ScanParts(src))
}
