package lexer

import (
	"strconv"
	"strings"
)

// quoteRule describes how one quote character behaves. The unified quote
// parser is driven entirely by this table; adding a quote style means adding
// a row.
type quoteRule struct {
	char            byte
	allowExpansions bool   // $ starts an expansion inside the quotes
	allowEscapes    bool   // backslash escapes are processed
	escapable       string // characters backslash may escape ("" = all)
	ansiC           bool   // $'...' escape decoding
}

var quoteRules = map[byte]quoteRule{
	'\'': {char: '\'', allowExpansions: false, allowEscapes: false},
	'"':  {char: '"', allowExpansions: true, allowEscapes: true, escapable: "$`\"\\\n"},
	// '$' stands for the $'...' form; the opening $ has been consumed.
	'$': {char: '\'', allowExpansions: false, allowEscapes: true, ansiC: true},
}

// quoteSpan is one parsed quoted region: the decoded text, any embedded
// expansion sources, and where scanning stopped.
type quoteSpan struct {
	segments []quoteSegment
	end      int // offset just past the closing quote
	closed   bool
}

type quoteSegment struct {
	expansion bool
	text      string // decoded literal text, or raw expansion source
}

// parseQuoted scans a quoted region starting at the opening quote character
// at input[pos]. quote is the rule key: '\'', '"' or '$' for $'...'.
func parseQuoted(input string, pos int, quote byte) quoteSpan {
	rule := quoteRules[quote]
	i := pos + 1 // past opening quote (for $'...' the caller skips the $ too)
	var segs []quoteSegment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, quoteSegment{text: lit.String()})
			lit.Reset()
		}
	}

	for i < len(input) {
		c := input[i]
		if c == rule.char {
			flush()
			return quoteSpan{segments: segs, end: i + 1, closed: true}
		}
		if c == '\\' && rule.allowEscapes && i+1 < len(input) {
			next := input[i+1]
			if rule.ansiC {
				decoded, n := decodeAnsiEscape(input[i+1:])
				lit.WriteString(decoded)
				i += 1 + n
				continue
			}
			if rule.escapable == "" || strings.IndexByte(rule.escapable, next) >= 0 {
				if next != '\n' { // line continuation inside "" drops both chars
					lit.WriteByte(next)
				}
				i += 2
				continue
			}
			lit.WriteByte(c)
			i++
			continue
		}
		if c == '$' && rule.allowExpansions {
			src, n, ok := scanExpansion(input, i)
			if ok {
				flush()
				segs = append(segs, quoteSegment{expansion: true, text: src})
				i += n
				continue
			}
		}
		if c == '`' && rule.allowExpansions {
			src, n, ok := scanBackquote(input, i)
			if ok {
				flush()
				segs = append(segs, quoteSegment{expansion: true, text: src})
				i += n
				continue
			}
		}
		lit.WriteByte(c)
		i++
	}
	flush()
	return quoteSpan{segments: segs, end: i, closed: false}
}

// decodeAnsiEscape decodes one escape sequence for $'...' quoting. The input
// starts just past the backslash; returns the decoded text and the number of
// input bytes consumed.
func decodeAnsiEscape(s string) (string, int) {
	if s == "" {
		return "\\", 0
	}
	switch s[0] {
	case 'n':
		return "\n", 1
	case 't':
		return "\t", 1
	case 'r':
		return "\r", 1
	case 'a':
		return "\a", 1
	case 'b':
		return "\b", 1
	case 'f':
		return "\f", 1
	case 'v':
		return "\v", 1
	case 'e', 'E':
		return "\x1b", 1
	case '\\':
		return "\\", 1
	case '\'':
		return "'", 1
	case '"':
		return "\"", 1
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n := 1
		for n < 3 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
			n++
		}
		v, _ := strconv.ParseUint(s[:n], 8, 16)
		return string(rune(v & 0xff)), n
	case 'x':
		n := 1
		for n < 3 && n < len(s) && isHexDigit(s[n]) {
			n++
		}
		if n == 1 {
			return "\\x", 1
		}
		v, _ := strconv.ParseUint(s[1:n], 16, 16)
		return string(rune(v)), n
	case 'u':
		return decodeUnicodeEscape(s, 4)
	case 'U':
		return decodeUnicodeEscape(s, 8)
	}
	return "\\" + string(s[0]), 1
}

func decodeUnicodeEscape(s string, max int) (string, int) {
	n := 1
	for n <= max && n < len(s) && isHexDigit(s[n]) {
		n++
	}
	if n == 1 {
		return "\\" + string(s[0]), 1
	}
	v, _ := strconv.ParseUint(s[1:n], 16, 32)
	return string(rune(v)), n
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
