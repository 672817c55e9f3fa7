package lexer

import (
	"strings"

	"psh/token"
)

// metachars terminate an unquoted word.
const metachars = " \t\r\n;|&<>()"

type wordRecognizer struct{}

func (wordRecognizer) priority() int { return 70 }

func (wordRecognizer) canRecognize(l *Lexer) bool {
	c := l.peek()
	if c == 0 {
		return false
	}
	// A # at the start of a word opens a comment; leave it to the comment
	// recogniser.
	if c == '#' && (commentRecognizer{}).canRecognize(l) {
		return false
	}
	return strings.IndexByte(metachars, c) < 0
}

func (wordRecognizer) recognize(l *Lexer) (token.Token, bool) {
	start := l.pos
	var parts []token.Part
	var plain strings.Builder
	sawQuote := false
	sawExpansion := false

	flushPlain := func() {
		if plain.Len() > 0 {
			parts = append(parts, token.Part{Kind: token.PartLiteral, Text: plain.String()})
			plain.Reset()
		}
	}

	appendSpan := func(span quoteSpan, quote, quoteChar byte) {
		flushPlain()
		if len(span.segments) == 0 {
			// '' and "" contribute an empty literal part; it still produces a
			// field during expansion.
			parts = append(parts, token.Part{Kind: token.PartLiteral, Quote: quote, QuoteChar: quoteChar})
			return
		}
		for _, seg := range span.segments {
			kind := token.PartLiteral
			if seg.expansion {
				kind = token.PartExpansion
			}
			parts = append(parts, token.Part{Kind: kind, Text: seg.text, Quote: quote, QuoteChar: quoteChar})
		}
	}

	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if strings.IndexByte(metachars, c) >= 0 {
			break
		}
		switch {
		case c == '\'':
			span := parseQuoted(l.input, l.pos, '\'')
			if !span.closed {
				l.failIncomplete(l.pos, "unexpected EOF while looking for matching `''")
				return token.Token{}, false
			}
			appendSpan(span, '\'', '\'')
			sawQuote = true
			l.pos = span.end
		case c == '"':
			span := parseQuoted(l.input, l.pos, '"')
			if !span.closed {
				l.failIncomplete(l.pos, "unexpected EOF while looking for matching `\"'")
				return token.Token{}, false
			}
			appendSpan(span, '"', '"')
			sawQuote = true
			for _, seg := range span.segments {
				if seg.expansion {
					sawExpansion = true
				}
			}
			l.pos = span.end
		case c == '$' && l.peekAt(1) == '\'':
			span := parseQuoted(l.input, l.pos+1, '$')
			if !span.closed {
				l.failIncomplete(l.pos, "unexpected EOF while looking for matching `''")
				return token.Token{}, false
			}
			appendSpan(span, '$', '\'')
			sawQuote = true
			l.pos = span.end
		case c == '$':
			src, n, ok := scanExpansion(l.input, l.pos)
			if !ok {
				// A lone $ is literal.
				plain.WriteByte(c)
				l.pos++
				continue
			}
			flushPlain()
			parts = append(parts, token.Part{Kind: token.PartExpansion, Text: src})
			sawExpansion = true
			l.pos += n
		case c == '`':
			src, n, ok := scanBackquote(l.input, l.pos)
			if !ok {
				l.failIncomplete(l.pos, "unexpected EOF while looking for matching ``'")
				return token.Token{}, false
			}
			flushPlain()
			parts = append(parts, token.Part{Kind: token.PartExpansion, Text: src})
			sawExpansion = true
			l.pos += n
		case c == '\\':
			if l.pos+1 >= len(l.input) {
				l.failIncomplete(l.pos, "unexpected EOF after backslash")
				return token.Token{}, false
			}
			// An escaped character behaves like a single-quoted one: no
			// expansion, no globbing.
			flushPlain()
			parts = append(parts, token.Part{
				Kind:  token.PartLiteral,
				Text:  string(l.input[l.pos+1]),
				Quote: '\'',
			})
			sawQuote = true
			l.pos += 2
		default:
			// Extended glob groups ?( *( +( @( !( swallow through the
			// matching paren so the pattern stays one word.
			if strings.IndexByte("?*+@!", c) >= 0 && l.peekAt(1) == '(' {
				if end := matchingParens(l.input, l.pos+2, 1); end >= 0 {
					plain.WriteString(l.input[l.pos : end+1])
					l.pos = end + 1
					continue
				}
			}
			plain.WriteByte(c)
			l.pos++
		}
	}
	flushPlain()

	lit := reconstruct(parts)

	// A pure digit run glued to < or > is a file descriptor number.
	if !sawQuote && !sawExpansion && isAllDigits(lit) && (l.peek() == '<' || l.peek() == '>') {
		return l.makeToken(token.NUMBER, lit, start), true
	}

	// Register a pending heredoc delimiter.
	if l.pendingHeredoc != nil {
		ph := l.pendingHeredoc
		l.pendingHeredoc = nil
		l.heredocs.register(lit, sawQuote, ph.stripTabs)
	}

	if !sawQuote && !sawExpansion {
		tok := l.makeToken(token.WORD, lit, start)
		return tok, true
	}
	tok := l.makeToken(token.STRING, lit, start)
	tok.Parts = parts
	if len(parts) == 1 {
		tok.Quote = parts[0].Quote
	}
	return tok, true
}

// ScanParts scans text into word parts without treating shell metacharacters
// as terminators. The parser uses it for parameter-expansion operands and the
// expander for heredoc bodies, where spaces are ordinary characters.
func ScanParts(text string) []token.Part {
	var parts []token.Part
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			parts = append(parts, token.Part{Kind: token.PartLiteral, Text: plain.String()})
			plain.Reset()
		}
	}
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'':
			span := parseQuoted(text, i, '\'')
			flush()
			if len(span.segments) == 0 {
				parts = append(parts, token.Part{Kind: token.PartLiteral, Quote: '\'', QuoteChar: '\''})
			}
			for _, seg := range span.segments {
				parts = append(parts, token.Part{Kind: token.PartLiteral, Text: seg.text, Quote: '\'', QuoteChar: '\''})
			}
			i = span.end
		case c == '"':
			span := parseQuoted(text, i, '"')
			flush()
			if len(span.segments) == 0 {
				parts = append(parts, token.Part{Kind: token.PartLiteral, Quote: '"', QuoteChar: '"'})
			}
			for _, seg := range span.segments {
				kind := token.PartLiteral
				if seg.expansion {
					kind = token.PartExpansion
				}
				parts = append(parts, token.Part{Kind: kind, Text: seg.text, Quote: '"', QuoteChar: '"'})
			}
			i = span.end
		case c == '$' && i+1 < len(text) && text[i+1] == '\'':
			span := parseQuoted(text, i+1, '$')
			flush()
			for _, seg := range span.segments {
				parts = append(parts, token.Part{Kind: token.PartLiteral, Text: seg.text, Quote: '$', QuoteChar: '\''})
			}
			i = span.end
		case c == '$':
			if src, n, ok := scanExpansion(text, i); ok {
				flush()
				parts = append(parts, token.Part{Kind: token.PartExpansion, Text: src})
				i += n
				continue
			}
			plain.WriteByte(c)
			i++
		case c == '`':
			if src, n, ok := scanBackquote(text, i); ok {
				flush()
				parts = append(parts, token.Part{Kind: token.PartExpansion, Text: src})
				i += n
				continue
			}
			plain.WriteByte(c)
			i++
		case c == '\\' && i+1 < len(text):
			flush()
			parts = append(parts, token.Part{Kind: token.PartLiteral, Text: string(text[i+1]), Quote: '\''})
			i += 2
		default:
			plain.WriteByte(c)
			i++
		}
	}
	flush()
	return parts
}

func reconstruct(parts []token.Part) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
