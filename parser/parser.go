package parser

import (
	"fmt"

	"psh/ast"
	"psh/lexer"
	"psh/token"
)

// Parser is a recursive-descent parser over the lexer's token slice. The
// grammar domains (statements, commands, control structures, tests,
// redirections, functions, arrays, words) each live in their own file and
// share this context.
type Parser struct {
	tokens []token.Token
	pos    int

	heredocs   []*lexer.Heredoc
	heredocIdx int

	// parsing flags
	inFunctionBody       bool
	inTestExpr           bool
	inCasePattern        bool
	inCommandSubstitution bool

	// depth counters
	loopDepth        int
	conditionalDepth int
	nesting          int

	mode          ErrorMode
	source        string
	errors        []*ParseError
	errorConsumed bool
}

// Parse tokenises and parses src in one step.
func Parse(src string, mode ErrorMode) (*ast.Program, error) {
	l := lexer.New(src, lexer.Strict)
	toks, err := l.Tokenize()
	if err != nil {
		return nil, err
	}
	p := NewFromTokens(toks, l.Heredocs(), mode)
	p.source = src
	return p.ParseProgram()
}

// NewFromTokens builds a parser over an already-tokenised slice; heredocs is
// the lexer's collector output, consumed in order as << operators appear.
func NewFromTokens(toks []token.Token, heredocs []*lexer.Heredoc, mode ErrorMode) *Parser {
	return &Parser{tokens: toks, heredocs: heredocs, mode: mode}
}

// Errors returns every collected parse error.
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

// ParseProgram parses the whole token stream. The stream is always fully
// consumed; anything unparseable raises (or collects) an error.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		p.skipSeparators()
		if p.curIs(token.EOF) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		} else if !p.failed() {
			p.errorf("syntax error near unexpected token `%s'", p.cur().Literal)
		}
		if p.failed() {
			if p.mode == Strict || len(p.errors) >= MaxErrors {
				return prog, p.errors[0]
			}
			if p.mode == Recover {
				p.synchronize()
			} else {
				p.advance()
				p.errorConsumed = true
			}
		}
	}
	if len(p.errors) > 0 {
		return prog, p.errors[0]
	}
	return prog, nil
}

// --- token cursor ---

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) curIs(t token.Type) bool  { return p.cur().Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peek().Type == t }

func (p *Parser) advance() token.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// save and restore implement bounded lookahead.
func (p *Parser) save() int        { return p.pos }
func (p *Parser) restore(mark int) { p.pos = mark }

// expect consumes a token of type t or records an error.
func (p *Parser) expect(t token.Type) (token.Token, bool) {
	if p.curIs(t) {
		return p.advance(), true
	}
	p.errorExpected(t)
	return p.cur(), false
}

// skipSeparators consumes newlines and semicolons between statements.
func (p *Parser) skipSeparators() {
	for p.curIs(token.NEWLINE) || p.curIs(token.SEMI) {
		p.advance()
	}
}

// skipNewlines consumes newlines only (used inside constructs where ; is
// significant).
func (p *Parser) skipNewlines() {
	for p.curIs(token.NEWLINE) {
		p.advance()
	}
}

// --- error handling ---

func (p *Parser) failed() bool {
	return len(p.errors) > 0 && !p.errorConsumed
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.addError(&ParseError{
		Msg:    fmt.Sprintf(format, args...),
		Tok:    p.cur(),
		Source: p.source,
	})
}

func (p *Parser) errorExpected(t token.Type) {
	p.addError(&ParseError{
		Msg:        "unexpected token `" + p.cur().Literal + "'",
		Tok:        p.cur(),
		Expected:   []token.Type{t},
		Suggestion: suggestionFor(t, p.cur()),
		Source:     p.source,
	})
}

func (p *Parser) addError(pe *ParseError) {
	if len(p.errors) >= MaxErrors {
		return
	}
	p.errors = append(p.errors, pe)
	p.errorConsumed = false
}

// synchronize skips to the next statement boundary after an error.
func (p *Parser) synchronize() {
	p.errorConsumed = true
	for !p.curIs(token.EOF) {
		switch p.cur().Type {
		case token.SEMI, token.NEWLINE:
			p.advance()
			return
		}
		p.advance()
	}
}

// nextHeredoc pops the next collected here-document.
func (p *Parser) nextHeredoc() *lexer.Heredoc {
	if p.heredocIdx >= len(p.heredocs) {
		return nil
	}
	h := p.heredocs[p.heredocIdx]
	p.heredocIdx++
	return h
}
