package lexer

import (
	"sort"
	"strings"

	"psh/token"
)

// recognizer is one stage of the scanning registry. canRecognize peeks;
// recognize consumes. Returning produced=false means the input was consumed
// silently (whitespace, comments).
type recognizer interface {
	priority() int
	canRecognize(l *Lexer) bool
	recognize(l *Lexer) (token.Token, bool)
}

func defaultRecognizers() []recognizer {
	rs := []recognizer{
		processSubRecognizer{},  // 160
		operatorRecognizer{},    // 150
		wordRecognizer{},        // 70
		commentRecognizer{},     // 60
		whitespaceRecognizer{},  // 30
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].priority() > rs[j].priority() })
	return rs
}

// --- process substitution ---

type processSubRecognizer struct{}

func (processSubRecognizer) priority() int { return 160 }

func (processSubRecognizer) canRecognize(l *Lexer) bool {
	c := l.peek()
	return (c == '<' || c == '>') && l.peekAt(1) == '('
}

func (processSubRecognizer) recognize(l *Lexer) (token.Token, bool) {
	start := l.pos
	dir := l.peek()
	end := matchingParens(l.input, l.pos+2, 1)
	if end < 0 {
		l.failIncomplete(start, "unexpected EOF while looking for matching `)'")
		return token.Token{}, false
	}
	body := l.input[l.pos+2 : end]
	l.pos = end + 1
	t := token.PROC_SUB_IN
	if dir == '>' {
		t = token.PROC_SUB_OUT
	}
	return l.makeToken(t, body, start), true
}

// --- operators ---

type operatorRecognizer struct{}

// operators is ordered longest first so the scan is maximal-munch.
var operators = []struct {
	text string
	typ  token.Type
}{
	{";;&", token.DSEMI_AMP},
	{"<<<", token.TLT},
	{"<<-", token.DLT_DASH},
	{"&>>", token.AND_DGT},
	{"&&", token.AND_IF},
	{"||", token.OR_IF},
	{";;", token.DSEMI},
	{";&", token.SEMI_AMP},
	{"<<", token.DLT},
	{">>", token.DGT},
	{"<&", token.LT_AND},
	{">&", token.GT_AND},
	{">|", token.GT_PIPE},
	{"&>", token.AND_GT},
	{"<>", token.LT_GT},
	{"|&", token.PIPE_BOTH},
	{"|", token.PIPE},
	{"&", token.AMP},
	{";", token.SEMI},
	{"<", token.LT},
	{">", token.GT},
	{"(", token.LPAREN},
	{")", token.RPAREN},
	{"\n", token.NEWLINE},
}

func (operatorRecognizer) priority() int { return 150 }

func (operatorRecognizer) canRecognize(l *Lexer) bool {
	return strings.IndexByte(";|&<>()\n", l.peek()) >= 0
}

func (operatorRecognizer) recognize(l *Lexer) (token.Token, bool) {
	start := l.pos

	// (( opens an arithmetic command when the construct closes with an
	// adjacent )). Capturing the whole expression here keeps << and >> inside
	// it from ever looking like redirections.
	if l.peek() == '(' && l.peekAt(1) == '(' {
		if end := matchingParens(l.input, l.pos+2, 2); end >= 1 && l.input[end-1] == ')' {
			body := l.input[l.pos+2 : end-1]
			l.pos = end + 1
			return l.makeToken(token.DLPAREN, body, start), true
		}
	}

	rest := l.input[l.pos:]
	for _, op := range operators {
		if !strings.HasPrefix(rest, op.text) {
			continue
		}
		l.pos += len(op.text)
		tok := l.makeToken(op.typ, op.text, start)
		switch op.typ {
		case token.LPAREN:
			l.parenDepth++
		case token.RPAREN:
			if l.parenDepth > 0 {
				l.parenDepth--
			}
		case token.DLT, token.DLT_DASH:
			l.pendingHeredoc = &pendingHeredoc{stripTabs: op.typ == token.DLT_DASH}
		case token.NEWLINE:
			if len(l.heredocs.pending) > 0 {
				newPos, closed := l.heredocs.collect(l.input, l.pos)
				l.pos = newPos
				if !closed {
					l.failIncomplete(start, "here-document delimited by end-of-file")
				}
				tok.End = l.pos
				l.lastEnd = l.pos
			}
		}
		return tok, true
	}
	l.pos++
	return l.makeToken(token.ILLEGAL, string(l.input[start]), start), true
}

// --- comments ---

type commentRecognizer struct{}

func (commentRecognizer) priority() int { return 60 }

func (commentRecognizer) canRecognize(l *Lexer) bool {
	if l.peek() != '#' {
		return false
	}
	// # only starts a comment at the start of a word
	if l.pos == 0 {
		return true
	}
	prev := l.input[l.pos-1]
	return strings.IndexByte(" \t\n;|&<>()", prev) >= 0
}

func (commentRecognizer) recognize(l *Lexer) (token.Token, bool) {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
	}
	l.lastEnd = l.pos
	return token.Token{}, false
}

// --- whitespace ---

type whitespaceRecognizer struct{}

func (whitespaceRecognizer) priority() int { return 30 }

func (whitespaceRecognizer) canRecognize(l *Lexer) bool {
	c := l.peek()
	if c == ' ' || c == '\t' || c == '\r' {
		return true
	}
	return c == '\\' && l.peekAt(1) == '\n'
}

func (whitespaceRecognizer) recognize(l *Lexer) (token.Token, bool) {
	for {
		switch c := l.peek(); {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\\' && l.peekAt(1) == '\n':
			l.pos += 2 // line continuation
		default:
			return token.Token{}, false
		}
	}
}
