package expander

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"mvdan.cc/sh/v3/pattern"

	"psh/ast"
)

// expandParameter evaluates one ${...} expansion, decomposed by the parser
// into (name, operator, operand).
func (e *Expander) expandParameter(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	switch pe.Operator {
	case "":
		return e.expandVariable(pe.Name, quoted)

	case "#len":
		return e.paramLength(pe.Name)

	case "!":
		// indirect: the value of the variable named by $name
		target := e.st.Get(pe.Name)
		if target == "" {
			return []string{""}, false, nil
		}
		return e.expandVariable(target, quoted)

	case "!*", "!@":
		var names []string
		for _, n := range e.st.AllNames() {
			if strings.HasPrefix(n, pe.Name) {
				names = append(names, n)
			}
		}
		sortStrings(names)
		if pe.Operator == "!@" {
			return names, true, nil
		}
		return []string{strings.Join(names, " ")}, false, nil

	case ":-", "-":
		return e.paramDefault(pe, quoted)
	case ":=", "=":
		return e.paramAssignDefault(pe, quoted)
	case ":+", "+":
		return e.paramAlternate(pe, quoted)
	case ":?", "?":
		return e.paramErrorIfUnset(pe, quoted)
	case ":":
		return e.paramSubstring(pe, quoted)
	case "#", "##", "%", "%%":
		return e.paramTrim(pe, quoted)
	case "/", "//", "/#", "/%":
		return e.paramReplace(pe, quoted)
	case "^", "^^", ",", ",,":
		return e.paramCase(pe, quoted)
	}
	return nil, false, &Error{Msg: "${" + pe.Name + pe.Operator + "...}: bad substitution", Code: 1}
}

func (e *Expander) paramLength(name string) ([]string, bool, error) {
	if name == "*" || name == "@" {
		return []string{strconv.Itoa(len(e.st.Positional))}, false, nil
	}
	if base, sub, ok := splitSubscript(name); ok && (sub == "@" || sub == "*") {
		if v, set := e.st.Lookup(base); set {
			return []string{strconv.Itoa(len(v.ArrayValues()))}, false, nil
		}
		return []string{"0"}, false, nil
	}
	values, _, err := e.expandVariable(name, true)
	if err != nil {
		return nil, false, err
	}
	v := ""
	if len(values) > 0 {
		v = values[0]
	}
	return []string{strconv.Itoa(len([]rune(v)))}, false, nil
}

// nullOrUnset reports whether the parameter triggers the :-family operators.
// With the colon forms an empty value counts as unset.
func (e *Expander) nullOrUnset(name string, colon bool) (value string, trigger bool, err error) {
	values, _, err := e.expandVariableLenient(name)
	if err != nil {
		return "", false, err
	}
	set := values != nil
	v := ""
	if len(values) > 0 {
		v = values[0]
	}
	if !set {
		return "", true, nil
	}
	if colon && v == "" {
		return "", true, nil
	}
	return v, false, nil
}

// expandVariableLenient is expandVariable without the nounset error: the
// default-value operators need to observe unsetness directly. nil means
// unset.
func (e *Expander) expandVariableLenient(name string) ([]string, bool, error) {
	if name == "@" || name == "*" {
		return append([]string(nil), e.st.Positional...), true, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		if n <= len(e.st.Positional) {
			return []string{e.st.Positional[n-1]}, false, nil
		}
		return nil, false, nil
	}
	if base, sub, ok := splitSubscript(name); ok {
		if _, set := e.st.Lookup(base); !set {
			return nil, false, nil
		}
		return e.expandArrayRef(base, sub, true)
	}
	if v, ok := e.st.Lookup(name); ok {
		return []string{v.Scalar()}, false, nil
	}
	// Specials are always "set".
	switch name {
	case "?", "$", "!", "#", "-", "0":
		return e.expandVariable(name, true)
	}
	return nil, false, nil
}

func (e *Expander) operandText(w *ast.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	return e.ExpandWordNoSplit(w)
}

func (e *Expander) paramDefault(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	v, trigger, err := e.nullOrUnset(pe.Name, strings.HasPrefix(pe.Operator, ":"))
	if err != nil {
		return nil, false, err
	}
	if !trigger {
		return []string{v}, false, nil
	}
	word, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	return []string{word}, false, nil
}

func (e *Expander) paramAssignDefault(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	v, trigger, err := e.nullOrUnset(pe.Name, strings.HasPrefix(pe.Operator, ":"))
	if err != nil {
		return nil, false, err
	}
	if !trigger {
		return []string{v}, false, nil
	}
	word, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	if err := e.st.Set(pe.Name, word); err != nil {
		return nil, false, &Error{Msg: err.Error(), Code: 1}
	}
	return []string{word}, false, nil
}

func (e *Expander) paramAlternate(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	_, trigger, err := e.nullOrUnset(pe.Name, strings.HasPrefix(pe.Operator, ":"))
	if err != nil {
		return nil, false, err
	}
	if trigger {
		return []string{""}, false, nil
	}
	word, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	return []string{word}, false, nil
}

func (e *Expander) paramErrorIfUnset(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	v, trigger, err := e.nullOrUnset(pe.Name, strings.HasPrefix(pe.Operator, ":"))
	if err != nil {
		return nil, false, err
	}
	if !trigger {
		return []string{v}, false, nil
	}
	msg, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	if msg == "" {
		msg = "parameter null or not set"
	}
	return nil, false, &Error{Msg: pe.Name + ": " + msg, Code: 1}
}

// paramSubstring implements ${v:off} and ${v:off:len}; both pieces are
// arithmetic expressions.
func (e *Expander) paramSubstring(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	text, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	offText := text
	lenText := ""
	hasLen := false
	if i := strings.IndexByte(text, ':'); i >= 0 {
		offText, lenText, hasLen = text[:i], text[i+1:], true
	}
	off, err := e.evalArith(offText)
	if err != nil {
		return nil, false, err
	}
	values, _, err := e.expandVariable(pe.Name, true)
	if err != nil {
		return nil, false, err
	}
	v := ""
	if len(values) > 0 {
		v = values[0]
	}
	runes := []rune(v)
	start := int(off)
	if start < 0 {
		start += len(runes)
	}
	if start < 0 || start > len(runes) {
		return []string{""}, false, nil
	}
	end := len(runes)
	if hasLen {
		n, err := e.evalArith(lenText)
		if err != nil {
			return nil, false, err
		}
		if n < 0 {
			end = len(runes) + int(n)
		} else {
			end = start + int(n)
		}
		if end > len(runes) {
			end = len(runes)
		}
		if end < start {
			return []string{""}, false, nil
		}
	}
	return []string{string(runes[start:end])}, false, nil
}

// paramTrim implements ${v#p} ${v##p} ${v%p} ${v%%p}: prefix/suffix removal
// with shell-glob patterns.
func (e *Expander) paramTrim(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	pat, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	values, multi, err := e.expandVariableLenient(pe.Name)
	if err != nil {
		return nil, false, err
	}
	trim := func(v string) string {
		switch pe.Operator {
		case "#":
			return trimPrefixPattern(v, pat, false, e.extglob())
		case "##":
			return trimPrefixPattern(v, pat, true, e.extglob())
		case "%":
			return trimSuffixPattern(v, pat, false, e.extglob())
		default:
			return trimSuffixPattern(v, pat, true, e.extglob())
		}
	}
	if values == nil {
		return []string{""}, false, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = trim(v)
	}
	if multi {
		return out, true, nil
	}
	return out, false, nil
}

// paramReplace implements the ${v/p/r} family.
func (e *Expander) paramReplace(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	pat, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	repl := ""
	if pe.Replacement != nil {
		repl, err = e.operandText(pe.Replacement)
		if err != nil {
			return nil, false, err
		}
	}
	values, _, err := e.expandVariable(pe.Name, true)
	if err != nil {
		return nil, false, err
	}
	v := ""
	if len(values) > 0 {
		v = values[0]
	}
	re, err2 := patternRegexp(pat, e.extglob())
	if err2 != nil {
		return []string{v}, false, nil
	}
	switch pe.Operator {
	case "//":
		return []string{re.ReplaceAllLiteralString(v, repl)}, false, nil
	case "/#":
		anchored, err3 := regexp.Compile("^(?:" + re.String() + ")")
		if err3 != nil {
			return []string{v}, false, nil
		}
		return []string{anchored.ReplaceAllLiteralString(v, repl)}, false, nil
	case "/%":
		anchored, err3 := regexp.Compile("(?:" + re.String() + ")$")
		if err3 != nil {
			return []string{v}, false, nil
		}
		return []string{anchored.ReplaceAllLiteralString(v, repl)}, false, nil
	default: // "/"
		done := false
		out := re.ReplaceAllStringFunc(v, func(m string) string {
			if done {
				return m
			}
			done = true
			return repl
		})
		return []string{out}, false, nil
	}
}

// paramCase implements ${v^p} ${v^^p} ${v,p} ${v,,p}.
func (e *Expander) paramCase(pe *ast.ParameterExpansion, quoted bool) ([]string, bool, error) {
	pat, err := e.operandText(pe.Operand)
	if err != nil {
		return nil, false, err
	}
	values, _, err := e.expandVariable(pe.Name, true)
	if err != nil {
		return nil, false, err
	}
	v := ""
	if len(values) > 0 {
		v = values[0]
	}
	upper := pe.Operator[0] == '^'
	all := len(pe.Operator) == 2

	matches := func(r rune) bool {
		if pat == "" {
			return true
		}
		ok, err := matchPattern(pat, string(r), e.extglob())
		return err == nil && ok
	}
	convert := func(r rune) rune {
		if upper {
			return toUpperRune(r)
		}
		return toLowerRune(r)
	}

	runes := []rune(v)
	if all {
		for i, r := range runes {
			if matches(r) {
				runes[i] = convert(r)
			}
		}
	} else if len(runes) > 0 && matches(runes[0]) {
		runes[0] = convert(runes[0])
	}
	return []string{string(runes)}, false, nil
}

func (e *Expander) extglob() bool { return e.st.Options.Get("extglob") }

// --- pattern helpers (shell glob → regexp via mvdan.cc/sh/v3/pattern) ---

// The extglob argument is carried by the callers for symmetry with the
// shell option; pattern.Regexp understands the extended operators, so a
// disabled extglob only matters for patterns that would otherwise be
// literal, which the lexer has already kept as single words.
func patternRegexp(pat string, extglob bool) (*regexp.Regexp, error) {
	src, err := pattern.Regexp(pat, pattern.Shortest)
	if err != nil {
		return nil, err
	}
	return regexp.Compile(src)
}

// matchPattern reports whether s fully matches the shell pattern.
func matchPattern(pat, s string, extglob bool) (bool, error) {
	src, err := pattern.Regexp(pat, pattern.EntireString)
	if err != nil {
		return false, err
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// The trim helpers split at rune boundaries, never byte offsets: a split
// inside a multi-byte encoding would hand the matcher invalid UTF-8.

func trimPrefixPattern(v, pat string, longest, extglob bool) string {
	if pat == "" {
		return v
	}
	runes := []rune(v)
	for _, i := range candidateIndices(len(runes), longest) {
		if ok, err := matchPattern(pat, string(runes[:i]), extglob); err == nil && ok {
			return string(runes[i:])
		}
	}
	return v
}

func trimSuffixPattern(v, pat string, longest, extglob bool) string {
	if pat == "" {
		return v
	}
	// For suffixes, longest match means the earliest start index.
	runes := []rune(v)
	for _, i := range candidateIndices(len(runes), !longest) {
		if ok, err := matchPattern(pat, string(runes[i:]), extglob); err == nil && ok {
			return string(runes[:i])
		}
	}
	return v
}

// candidateIndices yields every split point 0..n, descending when
// descending is set.
func candidateIndices(n int, descending bool) []int {
	out := make([]int, 0, n+1)
	if descending {
		for i := n; i >= 0; i-- {
			out = append(out, i)
		}
	} else {
		for i := 0; i <= n; i++ {
			out = append(out, i)
		}
	}
	return out
}

func toUpperRune(r rune) rune { return unicode.ToUpper(r) }
func toLowerRune(r rune) rune { return unicode.ToLower(r) }

func sortStrings(s []string) { sort.Strings(s) }
