package lexer

import (
	"strconv"
	"strings"
)

// ExpandBraces rewrites {a,b,c} alternations and {1..5} / {1..9..2} numeric
// ranges in the raw source before tokenisation. Nested braces expand
// inside-out. Quoted and escaped braces are left alone. If the expression is
// malformed (unmatched braces, bad range) the original text is kept; brace
// expansion never fails the whole line.
func ExpandBraces(input string) string {
	for i := 0; i < 10; i++ { // nesting bound; inner braces expand first
		out, changed := expandBracesOnce(input)
		if !changed {
			return out
		}
		input = out
	}
	return input
}

func expandBracesOnce(input string) (string, bool) {
	var b strings.Builder
	changed := false
	quote := byte(0)
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
			i++
		case c == '\\' && i+1 < len(input):
			b.WriteString(input[i : i+2])
			i += 2
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
			i++
		case c == '$' && i+1 < len(input) && input[i+1] == '{':
			// ${...} is a parameter expansion, not a brace alternation
			end := matchingBrace(input, i+1)
			if end < 0 {
				b.WriteString(input[i:])
				return b.String(), changed
			}
			b.WriteString(input[i : end+1])
			i = end + 1
		case c == '{':
			end := matchingBrace(input, i)
			if end < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			body := input[i+1 : end]
			if strings.ContainsAny(body, "{}") {
				// Inner braces first; copy verbatim this round.
				b.WriteByte(c)
				i++
				continue
			}
			alts, ok := braceAlternatives(body)
			if !ok {
				b.WriteString(input[i : end+1])
				i = end + 1
				continue
			}
			prefix := trailingWordPrefix(b.String())
			suffix, rest := leadingWordSuffix(input[end+1:])
			trimmed := b.String()[:len(b.String())-len(prefix)]
			b.Reset()
			b.WriteString(trimmed)
			for k, alt := range alts {
				if k > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(prefix)
				b.WriteString(alt)
				b.WriteString(suffix)
			}
			input = rest
			i = 0
			changed = true
			// Continue scanning rest with the builder as accumulated output.
			b.WriteString(scanRemainder(&input))
			return b.String(), changed
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), changed
}

// scanRemainder recursively expands the remainder of the line after a
// rewrite, so one expandBracesOnce call finishes the whole string.
func scanRemainder(input *string) string {
	out, _ := expandBracesOnce(*input)
	*input = ""
	return out
}

// matchingBrace returns the offset of the '}' matching the '{' at open, or -1.
func matchingBrace(input string, open int) int {
	depth := 0
	quote := byte(0)
	for i := open; i < len(input); i++ {
		c := input[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\\':
			i++
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// braceAlternatives turns the body of a brace expression into its expansion
// list. Returns ok=false when the body is not a valid alternation or range.
func braceAlternatives(body string) ([]string, bool) {
	if seq, ok := braceSequence(body); ok {
		return seq, true
	}
	if !strings.Contains(body, ",") {
		return nil, false
	}
	return strings.Split(body, ","), true
}

// braceSequence handles {1..5}, {5..1} and {1..9..2} numeric ranges plus
// single-character alphabetic ranges like {a..e}.
func braceSequence(body string) ([]string, bool) {
	fields := strings.Split(body, "..")
	if len(fields) != 2 && len(fields) != 3 {
		return nil, false
	}
	step := 1
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil || n == 0 {
			return nil, false
		}
		if n < 0 {
			n = -n
		}
		step = n
	}
	lo, errLo := strconv.Atoi(fields[0])
	hi, errHi := strconv.Atoi(fields[1])
	if errLo == nil && errHi == nil {
		var out []string
		if lo <= hi {
			for v := lo; v <= hi; v += step {
				out = append(out, strconv.Itoa(v))
			}
		} else {
			for v := lo; v >= hi; v -= step {
				out = append(out, strconv.Itoa(v))
			}
		}
		return out, true
	}
	if len(fields[0]) == 1 && len(fields[1]) == 1 {
		a, z := fields[0][0], fields[1][0]
		if isAlpha(a) && isAlpha(z) {
			var out []string
			if a <= z {
				for c := a; c <= z; c += byte(step) {
					out = append(out, string(c))
				}
			} else {
				for c := a; c >= z; c -= byte(step) {
					out = append(out, string(c))
				}
			}
			return out, true
		}
	}
	return nil, false
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// trailingWordPrefix returns the suffix of s belonging to the same word as a
// following brace expression (everything after the last separator).
func trailingWordPrefix(s string) string {
	i := strings.LastIndexAny(s, " \t\n;|&<>()")
	return s[i+1:]
}

// leadingWordSuffix splits s into the piece glued to the brace expression and
// the remainder of the line.
func leadingWordSuffix(s string) (suffix, rest string) {
	i := strings.IndexAny(s, " \t\n;|&<>()")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
